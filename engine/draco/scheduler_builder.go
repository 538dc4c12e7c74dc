package draco

// SchedulerBuilderOption configures a Scheduler during construction.
type SchedulerBuilderOption func(*scheduler)

// WithWorkerLimit sets the maximum number of decode workers. Values below 1 are raised to 1.
//
// Parameters:
//   - n: the worker limit
//
// Returns:
//   - SchedulerBuilderOption: a function that sets the scheduler's worker limit
func WithWorkerLimit(n int) SchedulerBuilderOption {
	return func(s *scheduler) {
		if n < 1 {
			n = 1
		}
		s.workerLimit = n
	}
}

// WithModuleFactory sets the function each worker calls once to initialize its decoder module.
//
// Parameters:
//   - factory: the module factory
//
// Returns:
//   - SchedulerBuilderOption: a function that sets the scheduler's module factory
func WithModuleFactory(factory ModuleFactory) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.moduleFactory = factory
	}
}

// WithDecoderConfig sets the configuration passed to the module factory.
func WithDecoderConfig(cfg DecoderConfig) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.decoderConfig = cfg
	}
}
