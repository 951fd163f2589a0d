package querycounter

import (
	"errors"
	"slices"
)

const (
	DefaultAlertThreshold  = 10
	DefaultMaxReportFrames = 5
)

// AnalysisConfig determines what QueryCounter captures and how Analyze reports.
// It is resolved once when the QueryCounter is constructed and never changes afterward.
type AnalysisConfig struct {
	// AlertThreshold is the exclusive lower bound: a group is reported when its count is greater.
	AlertThreshold int
	// RaiseIfExceeds makes Analyze return a *QueryThresholdExceededError for a non-empty Report.
	RaiseIfExceeds bool
	// LogNoAlert emits one info notification when the Report is empty.
	LogNoAlert bool
	// TracebackEnabled captures the call stack of every statement.
	TracebackEnabled bool
	// HeuristicsEnabled keeps only frames whose file path contains one of HeuristicPaths.
	// It has no effect unless TracebackEnabled is set.
	HeuristicsEnabled bool
	HeuristicPaths    []string
	// MaxReportFrames limits the frames per stack in formatted output, 0 means no frames.
	MaxReportFrames int
	// AccumulateAcrossIntervals keeps the ledger when Initialize starts a new interval.
	AccumulateAcrossIntervals bool
	// Dialect selects the quoting and escape rules used for normalization, empty means postgres.
	Dialect Dialect
}

// DefaultAnalysisConfig returns the configuration used when no options are supplied.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		AlertThreshold:  DefaultAlertThreshold,
		MaxReportFrames: DefaultMaxReportFrames,
		HeuristicPaths:  []string{},
		Dialect:         DialectPostgres,
	}
}

// Validate reports configuration errors joined with ErrInvalidConfiguration.
func (c AnalysisConfig) Validate() error {
	var errs []error

	if c.AlertThreshold < 0 {
		errs = append(errs, ErrNegativeAlertThreshold)
	}

	if c.MaxReportFrames < 0 {
		errs = append(errs, ErrNegativeMaxReportFrames)
	}

	if c.Dialect != "" && !c.Dialect.IsKnown() {
		errs = append(errs, ErrUnknownDialect)
	}

	if c.HeuristicsEnabled && len(c.HeuristicPaths) == 0 {
		errs = append(errs, ErrHeuristicPathsRequired)
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(append([]error{ErrInvalidConfiguration}, errs...)...)
}

// captureEnabled tells if a stack walk is needed at all; heuristics only filter a captured stack.
func (c AnalysisConfig) captureEnabled() bool {
	return c.TracebackEnabled
}

func (c AnalysisConfig) clone() AnalysisConfig {
	c.HeuristicPaths = slices.Clone(c.HeuristicPaths)
	return c
}
