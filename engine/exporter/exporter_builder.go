package exporter

// ExporterBuilderOption configures an Exporter during construction.
type ExporterBuilderOption func(*exporter)

// WithGenerator sets the asset.generator string written into every document.
//
// Parameters:
//   - generator: the generator name
//
// Returns:
//   - ExporterBuilderOption: a function that sets the exporter's generator
func WithGenerator(generator string) ExporterBuilderOption {
	return func(e *exporter) {
		if generator != "" {
			e.generator = generator
		}
	}
}

// WithCopyright sets the asset.copyright string.
func WithCopyright(copyright string) ExporterBuilderOption {
	return func(e *exporter) {
		e.copyright = copyright
	}
}
