package querycounter

import (
	"errors"
)

var ErrInvalidConfiguration = errors.New("invalid query counter configuration")
var ErrHeuristicPathsRequired = errors.New("heuristics enabled without any heuristic paths")
var ErrNegativeAlertThreshold = errors.New("alert threshold must not be negative")
var ErrNegativeMaxReportFrames = errors.New("max report frames must not be negative")
var ErrUnknownDialect = errors.New("unknown sql dialect")
var ErrNilEventSource = errors.New("nil event source supplied")
var ErrNilStatementHandler = errors.New("nil statement handler supplied")
var ErrAlreadyActive = errors.New("query counter is already tracking")
var ErrNotActive = errors.New("query counter is not tracking")
var ErrSubscribeFailed = errors.New("subscribing to the event source failed")
var ErrCaptureFailed = errors.New("capturing statement failed")
var ErrBuildingStatementFailed = errors.New("building statement failed")
var ErrQueryThresholdExceeded = errors.New("query count exceeded alert threshold")

// QueryThresholdExceededError is returned by Analyze when RaiseIfExceeds is configured and at least one
// statement group was executed more often than the alert threshold.
// It carries the full Report so that callers can inspect the offending groups programmatically.
type QueryThresholdExceededError struct {
	Report    Report
	maxFrames int
}

func (e *QueryThresholdExceededError) Error() string {
	return "querycounter:\n" + e.Report.Format(e.maxFrames)
}

// Unwrap allows errors.Is(err, ErrQueryThresholdExceeded).
func (e *QueryThresholdExceededError) Unwrap() error {
	return ErrQueryThresholdExceeded
}
