package querycounter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	logMsgIntervalStarted          = "querycounter: tracking interval started"
	logMsgIntervalStopped          = "querycounter: tracking interval stopped"
	logMsgIntervalRestarted        = "querycounter: tracking interval restarted"
	logMsgOffendingQuery           = "querycounter: query exceeded alert threshold"
	logMsgNoQueriesExceedThreshold = "querycounter: no queries exceed threshold"
	logMsgCaptureFailed            = "querycounter: capturing statement failed"
	logMsgAnalyzeCompleted         = "querycounter: analysis completed"
	logAttrIntervalID              = "interval_id"
	logAttrCount                   = "count"
	logAttrQuery                   = "query"
	logAttrKeyHash                 = "key_hash"
	logAttrStack                   = "stack"
	logAttrThreshold               = "threshold"
	logAttrError                   = "error"
	logAttrTotalStatements         = "total_statements"
	logAttrDistinctStatements      = "distinct_statements"
	logAttrDurationMS              = "duration_ms"
)

// QueryCounter is the interval controller: it attaches to an EventSource between Initialize and Teardown,
// records every observed statement in its Ledger and analyzes the Ledger on demand.
//
// One QueryCounter tracks one session. It is safe to call its methods from multiple goroutines,
// e.g. when a connection pool dispatches hooks concurrently.
type QueryCounter struct {
	mu           sync.Mutex
	source       EventSource
	subscription Subscription
	active       bool
	intervalID   string

	config AnalysisConfig
	ledger *Ledger

	normalize    func(raw string) NormalizedKey
	captureStack func(config AnalysisConfig) Stack

	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewQueryCounter creates an inactive QueryCounter observing source.
// It fails with ErrInvalidConfiguration if the resolved AnalysisConfig is invalid.
func NewQueryCounter(source EventSource, options ...Option) (*QueryCounter, error) {
	if source == nil {
		return nil, ErrNilEventSource
	}

	qc := &QueryCounter{
		source:       source,
		config:       DefaultAnalysisConfig(),
		ledger:       NewLedger(),
		captureStack: CaptureStack,
	}

	for _, option := range options {
		if err := option(qc); err != nil {
			return nil, errors.Join(ErrInvalidConfiguration, err)
		}
	}

	if err := qc.config.Validate(); err != nil {
		return nil, err
	}

	dialect := qc.config.Dialect
	qc.normalize = func(raw string) NormalizedKey {
		return NormalizeDialect(raw, dialect)
	}

	return qc, nil
}

// Initialize starts a tracking interval and attaches the execution hook.
// The ledger is cleared first, unless AccumulateAcrossIntervals is configured.
func (qc *QueryCounter) Initialize() error {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if qc.active {
		return ErrAlreadyActive
	}

	if !qc.config.AccumulateAcrossIntervals {
		qc.ledger.Reset()
	}

	subscription, err := qc.source.Subscribe(qc.handle)
	if err != nil {
		return errors.Join(ErrSubscribeFailed, err)
	}

	qc.subscription = subscription
	qc.active = true
	qc.intervalID = uuid.NewString()

	qc.logDebug(context.Background(), logMsgIntervalStarted, logAttrIntervalID, qc.intervalID)

	return nil
}

// Teardown detaches the execution hook and ends the interval.
// Calling it on an inactive QueryCounter is a no-op, so it can always be deferred.
// The ledger is kept, so Analyze still reports the finished interval.
func (qc *QueryCounter) Teardown() {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if !qc.active {
		return
	}

	qc.subscription.Unsubscribe()
	qc.subscription = nil
	qc.active = false

	qc.logDebug(
		context.Background(),
		logMsgIntervalStopped,
		logAttrIntervalID, qc.intervalID,
		logAttrTotalStatements, qc.ledger.Total(),
	)
}

// Restart clears the ledger of an active interval without detaching the hook.
func (qc *QueryCounter) Restart() error {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if !qc.active {
		return ErrNotActive
	}

	qc.ledger.Reset()
	qc.intervalID = uuid.NewString()

	qc.logDebug(context.Background(), logMsgIntervalRestarted, logAttrIntervalID, qc.intervalID)

	return nil
}

// Track runs fn inside a tracking interval; Teardown runs on every exit path, including panics.
func (qc *QueryCounter) Track(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := qc.Initialize(); err != nil {
		return err
	}
	defer qc.Teardown()

	return fn(ctx)
}

// TrackAndAnalyze runs fn inside a tracking interval and analyzes the interval before it ends.
// Analyze is skipped if fn fails.
func (qc *QueryCounter) TrackAndAnalyze(ctx context.Context, fn func(ctx context.Context) error) (Report, error) {
	var report Report

	err := qc.Track(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}

		var analyzeErr error
		report, analyzeErr = qc.Analyze(ctx)

		return analyzeErr
	})

	return report, err
}

// Analyze reduces a snapshot of the ledger into a Report and notifies about it:
// one warning per offending group, or one info message if nothing exceeds the threshold and LogNoAlert is set.
// With RaiseIfExceeds it returns a *QueryThresholdExceededError for a non-empty Report.
// Analyze never modifies the ledger and can be called repeatedly, during or after an interval.
func (qc *QueryCounter) Analyze(ctx context.Context) (Report, error) {
	start := time.Now()
	intervalID := qc.IntervalID()

	tracing, ctx := qc.startAnalyzeTracing(ctx, intervalID)
	metrics := qc.startAnalyzeMetrics(ctx)

	report := BuildReport(qc.ledger.Snapshot(), qc.config.AlertThreshold)
	report.IntervalID = intervalID

	qc.notifyReport(ctx, report)

	duration := time.Since(start)
	metrics.recordAnalyzed(report, duration)

	qc.logDebug(
		ctx,
		logMsgAnalyzeCompleted,
		logAttrIntervalID, intervalID,
		logAttrTotalStatements, report.TotalStatements,
		logAttrDistinctStatements, report.DistinctStatements,
		logAttrDurationMS, toMilliseconds(duration),
	)

	if !report.Empty() && qc.config.RaiseIfExceeds {
		metrics.recordThresholdExceeded()
		tracing.finishExceeded(report, duration)

		return report, &QueryThresholdExceededError{Report: report, maxFrames: qc.config.MaxReportFrames}
	}

	tracing.finishSuccess(report, duration)

	return report, nil
}

// Active tells if a tracking interval is running.
func (qc *QueryCounter) Active() bool {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	return qc.active
}

// IntervalID returns the id of the current or last interval, empty before the first Initialize.
func (qc *QueryCounter) IntervalID() string {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	return qc.intervalID
}

// Ledger returns a snapshot of all records of the current or last interval.
func (qc *QueryCounter) Ledger() []LedgerRecord {
	return qc.ledger.Snapshot()
}

// Config returns a copy of the resolved configuration.
func (qc *QueryCounter) Config() AnalysisConfig {
	return qc.config.clone()
}

// handle is the execution hook: capture, normalize and record, inline with the database call.
// It never panics into the caller; failed statements are recorded under UnknownKey.
func (qc *QueryCounter) handle(ctx context.Context, statement TrackedStatement) {
	tracked, err := qc.capture(statement)
	if err != nil {
		tracked.NormalizedKey = UnknownKey
		qc.logError(ctx, logMsgCaptureFailed, err, logAttrQuery, statement.RawText)
		qc.recordCaptureFailure(ctx)
	}

	qc.ledger.Record(tracked.NormalizedKey, tracked.RawText, tracked.Stack)
	qc.recordStatement(ctx)
}

func (qc *QueryCounter) capture(statement TrackedStatement) (tracked TrackedStatement, err error) {
	tracked = statement

	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(ErrCaptureFailed, fmt.Errorf("%v", r))
		}
	}()

	tracked.Stack = qc.captureStack(qc.config)
	tracked.NormalizedKey = qc.normalize(statement.RawText)

	return tracked, nil
}

// notifyReport emits the warning or info notifications for report.
func (qc *QueryCounter) notifyReport(ctx context.Context, report Report) {
	if report.Empty() {
		if qc.config.LogNoAlert {
			qc.logInfo(
				ctx,
				logMsgNoQueriesExceedThreshold,
				logAttrIntervalID, report.IntervalID,
				logAttrThreshold, report.Threshold,
				logAttrTotalStatements, report.TotalStatements,
				logAttrDistinctStatements, report.DistinctStatements,
			)
		}

		return
	}

	for _, entry := range report.Entries {
		args := []any{
			logAttrIntervalID, report.IntervalID,
			logAttrCount, entry.Count,
			logAttrThreshold, report.Threshold,
			logAttrQuery, entry.SampleText,
			logAttrKeyHash, entry.KeyHash,
		}

		if preview := entry.stackPreview(qc.config.MaxReportFrames); len(preview) > 0 {
			args = append(args, logAttrStack, preview)
		}

		qc.logWarn(ctx, logMsgOffendingQuery, args...)
	}
}
