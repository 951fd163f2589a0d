package querycounter

// Option defines a functional option for configuring a QueryCounter.
type Option func(*QueryCounter) error

// WithAnalysisConfig replaces the whole AnalysisConfig, later options still apply on top of it.
func WithAnalysisConfig(config AnalysisConfig) Option {
	return func(qc *QueryCounter) error {
		qc.config = config.clone()
		return nil
	}
}

// WithAlertThreshold sets the count a statement group must exceed to be reported.
func WithAlertThreshold(threshold int) Option {
	return func(qc *QueryCounter) error {
		if threshold < 0 {
			return ErrNegativeAlertThreshold
		}

		qc.config.AlertThreshold = threshold

		return nil
	}
}

// WithRaiseIfExceeds makes Analyze return a *QueryThresholdExceededError for a non-empty Report.
func WithRaiseIfExceeds(raise bool) Option {
	return func(qc *QueryCounter) error {
		qc.config.RaiseIfExceeds = raise
		return nil
	}
}

// WithLogNoAlert makes Analyze emit an info notification when nothing exceeds the threshold.
func WithLogNoAlert(logNoAlert bool) Option {
	return func(qc *QueryCounter) error {
		qc.config.LogNoAlert = logNoAlert
		return nil
	}
}

// WithTraceback enables call stack capture for every tracked statement.
func WithTraceback(enabled bool) Option {
	return func(qc *QueryCounter) error {
		qc.config.TracebackEnabled = enabled
		return nil
	}
}

// WithHeuristicPaths enables heuristic filtering of the stacks captured with WithTraceback:
// only frames whose file path contains at least one of the given substrings are kept.
func WithHeuristicPaths(paths ...string) Option {
	return func(qc *QueryCounter) error {
		if len(paths) == 0 {
			return ErrHeuristicPathsRequired
		}

		qc.config.HeuristicsEnabled = true
		qc.config.HeuristicPaths = append([]string{}, paths...)

		return nil
	}
}

// WithMaxReportFrames sets how many frames per stack the default formatting prints.
func WithMaxReportFrames(frames int) Option {
	return func(qc *QueryCounter) error {
		if frames < 0 {
			return ErrNegativeMaxReportFrames
		}

		qc.config.MaxReportFrames = frames

		return nil
	}
}

// WithAccumulateAcrossIntervals keeps recorded statements when Initialize starts a new interval.
func WithAccumulateAcrossIntervals(accumulate bool) Option {
	return func(qc *QueryCounter) error {
		qc.config.AccumulateAcrossIntervals = accumulate
		return nil
	}
}

// WithDialect selects the lexing rules used to normalize statements.
func WithDialect(dialect Dialect) Option {
	return func(qc *QueryCounter) error {
		if !dialect.IsKnown() {
			return ErrUnknownDialect
		}

		qc.config.Dialect = dialect

		return nil
	}
}

// WithLogger sets the notification sink.
// The logger will receive messages at different levels:
//
// Debug level: interval start/stop
// Info level: "no queries exceed threshold" when LogNoAlert is configured
// Warn level: one message per offending statement group
// Error level: capture failures inside the execution hook.
func WithLogger(logger Logger) Option {
	return func(qc *QueryCounter) error {
		qc.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware notification sink, which is preferred over the Logger.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(qc *QueryCounter) error {
		qc.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for recorded statements, capture failures and analysis runs.
func WithMetrics(collector MetricsCollector) Option {
	return func(qc *QueryCounter) error {
		qc.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector which receives one span per Analyze call.
func WithTracing(collector TracingCollector) Option {
	return func(qc *QueryCounter) error {
		qc.tracingCollector = collector
		return nil
	}
}
