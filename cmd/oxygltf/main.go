package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-gltf/engine"
	"github.com/Carmen-Shannon/oxy-gltf/engine/config"

	getopt "github.com/pborman/getopt/v2"
)

const usage = "inspect <file> | convert <in> <out>"

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		verbose    bool
		binary     bool
		profile    bool
		help       bool
	)

	optSet := getopt.New()
	optSet.SetProgram("oxygltf")
	optSet.SetParameters(usage)
	optSet.FlagLong(&configPath, "config", 'c', "TOML configuration file", "path")
	optSet.FlagLong(&verbose, "verbose", 'v', "Log at debug level")
	optSet.FlagLong(&binary, "binary", 'b', "Write a GLB container regardless of the output extension")
	optSet.FlagLong(&profile, "profile", 'p', "Log parse phase timings")
	optSet.FlagLong(&help, "help", 'h', "Print this help")

	if err := optSet.Getopt(args, nil); err != nil {
		fmt.Fprintln(stderr, err)
		optSet.PrintUsage(stderr)
		return 2
	}
	// flags may also follow the command name
	var params []string
	if rest := optSet.Args(); len(rest) > 0 {
		if err := optSet.Getopt(rest, nil); err != nil {
			fmt.Fprintln(stderr, err)
			optSet.PrintUsage(stderr)
			return 2
		}
		params = append([]string{rest[0]}, optSet.Args()...)
	}
	if help {
		optSet.PrintUsage(stdout)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if binary {
		cfg.Exporter.Binary = true
	}

	if len(params) == 0 {
		optSet.PrintUsage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e := engine.NewEngine(engine.WithConfig(cfg), engine.WithProfiling(profile))
	defer e.Dispose()

	switch cmd := params[0]; cmd {
	case "inspect":
		if len(params) != 2 {
			fmt.Fprintf(stderr, "usage: oxygltf inspect <file>\n")
			return 2
		}
		return inspect(ctx, e, params[1], stdout, stderr)
	case "convert":
		if len(params) != 3 {
			fmt.Fprintf(stderr, "usage: oxygltf convert <in> <out>\n")
			return 2
		}
		if err := e.Convert(ctx, params[1], params[2]); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q, expected %s\n", cmd, usage)
		return 2
	}
}

func inspect(ctx context.Context, e engine.Engine, path string, stdout, stderr io.Writer) int {
	model, err := e.Load(ctx, path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	s := engine.Summarize(model)
	fmt.Fprintf(stdout, "asset:      version %s", s.Version)
	if s.Generator != "" {
		fmt.Fprintf(stdout, ", generator %q", s.Generator)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "scenes:     %d\n", s.Scenes)
	fmt.Fprintf(stdout, "nodes:      %d\n", s.Nodes)
	fmt.Fprintf(stdout, "meshes:     %d\n", s.Meshes)
	fmt.Fprintf(stdout, "materials:  %d\n", s.Materials)
	fmt.Fprintf(stdout, "cameras:    %d\n", s.Cameras)
	fmt.Fprintf(stdout, "animations: %d\n", s.Animations)
	for _, clip := range model.Animations {
		fmt.Fprintf(stdout, "  %s: %d tracks, %.3fs\n", clip.Name, len(clip.Tracks), clip.Duration)
	}
	return 0
}
