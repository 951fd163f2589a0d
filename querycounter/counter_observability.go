package querycounter

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	metricStatementsRecorded = "querycounter_statements_recorded_total"
	metricCaptureFailures    = "querycounter_capture_failures_total"
	metricAnalyzeDuration    = "querycounter_analyze_duration_seconds"
	metricOffendingGroups    = "querycounter_offending_groups"
	metricThresholdExceeded  = "querycounter_threshold_exceeded_total"
	spanNameAnalyze          = "querycounter.analyze"
	spanAttrIntervalID       = "interval_id"
	spanAttrThreshold        = "threshold"
	spanAttrOffendingGroups  = "offending_groups"
	spanAttrTotalStatements  = "total_statements"
	spanAttrTopCount         = "top_count"
	spanAttrDurationMS       = "duration_ms"
	labelOperation           = "operation"
	labelStatus              = "status"
	operationRecord          = "record"
	operationAnalyze         = "analyze"
	statusSuccess            = "success"
	statusError              = "error"
	statusExceeded           = "threshold_exceeded"
)

func (qc *QueryCounter) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case qc.contextualLogger != nil:
		qc.contextualLogger.DebugContext(ctx, msg, args...)
	case qc.logger != nil:
		qc.logger.Debug(msg, args...)
	}
}

func (qc *QueryCounter) logInfo(ctx context.Context, msg string, args ...any) {
	switch {
	case qc.contextualLogger != nil:
		qc.contextualLogger.InfoContext(ctx, msg, args...)
	case qc.logger != nil:
		qc.logger.Info(msg, args...)
	}
}

func (qc *QueryCounter) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case qc.contextualLogger != nil:
		qc.contextualLogger.WarnContext(ctx, msg, args...)
	case qc.logger != nil:
		qc.logger.Warn(msg, args...)
	}
}

func (qc *QueryCounter) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case qc.contextualLogger != nil:
		qc.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	case qc.logger != nil:
		qc.logger.Error(msg, allArgs...)
	}
}

// recordStatement counts one recorded statement if the metrics collector is configured.
func (qc *QueryCounter) recordStatement(ctx context.Context) {
	qc.incrementCounter(ctx, metricStatementsRecorded, map[string]string{
		labelOperation: operationRecord,
		labelStatus:    statusSuccess,
	})
}

// recordCaptureFailure counts one statement that was recorded under UnknownKey.
func (qc *QueryCounter) recordCaptureFailure(ctx context.Context) {
	qc.incrementCounter(ctx, metricCaptureFailures, map[string]string{
		labelOperation: operationRecord,
		labelStatus:    statusError,
	})
}

func (qc *QueryCounter) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if qc.metricsCollector == nil {
		return
	}

	if contextual, ok := qc.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	qc.metricsCollector.IncrementCounter(metric, labels)
}

func (qc *QueryCounter) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if qc.metricsCollector == nil {
		return
	}

	if contextual, ok := qc.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	qc.metricsCollector.RecordDuration(metric, duration, labels)
}

func (qc *QueryCounter) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if qc.metricsCollector == nil {
		return
	}

	if contextual, ok := qc.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	qc.metricsCollector.RecordValue(metric, value, labels)
}

// analyzeMetricsObserver records the metrics of one Analyze call.
type analyzeMetricsObserver struct {
	qc  *QueryCounter
	ctx context.Context
}

func (qc *QueryCounter) startAnalyzeMetrics(ctx context.Context) *analyzeMetricsObserver {
	return &analyzeMetricsObserver{qc: qc, ctx: ctx}
}

func (amo *analyzeMetricsObserver) recordAnalyzed(report Report, duration time.Duration) {
	labels := map[string]string{
		labelOperation: operationAnalyze,
		labelStatus:    statusSuccess,
	}

	amo.qc.recordDuration(amo.ctx, metricAnalyzeDuration, duration, labels)
	amo.qc.recordValue(amo.ctx, metricOffendingGroups, float64(len(report.Entries)), labels)
}

func (amo *analyzeMetricsObserver) recordThresholdExceeded() {
	amo.qc.incrementCounter(amo.ctx, metricThresholdExceeded, map[string]string{
		labelOperation: operationAnalyze,
		labelStatus:    statusExceeded,
	})
}

// analyzeTracingObserver wraps the span of one Analyze call; a nil span makes it a no-op.
type analyzeTracingObserver struct {
	qc   *QueryCounter
	span SpanContext
}

func (qc *QueryCounter) startAnalyzeTracing(ctx context.Context, intervalID string) (*analyzeTracingObserver, context.Context) {
	observer := &analyzeTracingObserver{qc: qc}

	if qc.tracingCollector == nil {
		return observer, ctx
	}

	spanCtx, span := qc.tracingCollector.StartSpan(ctx, spanNameAnalyze, map[string]string{
		spanAttrIntervalID: intervalID,
		spanAttrThreshold:  formatCount(qc.config.AlertThreshold),
	})
	observer.span = span

	return observer, spanCtx
}

func (ato *analyzeTracingObserver) finishSuccess(report Report, duration time.Duration) {
	ato.finish(statusSuccess, report, duration)
}

func (ato *analyzeTracingObserver) finishExceeded(report Report, duration time.Duration) {
	ato.finish(statusExceeded, report, duration)
}

func (ato *analyzeTracingObserver) finish(status string, report Report, duration time.Duration) {
	if ato.span == nil {
		return
	}

	attrs := map[string]string{
		spanAttrOffendingGroups: formatCount(len(report.Entries)),
		spanAttrTotalStatements: formatCount(report.TotalStatements),
		spanAttrDurationMS:      fmt.Sprintf("%.3f", toMilliseconds(duration)),
	}

	if !report.Empty() {
		attrs[spanAttrTopCount] = formatCount(report.Entries[0].Count)
	}

	ato.span.SetStatus(status)
	ato.qc.tracingCollector.FinishSpan(ato.span, status, attrs)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatCount(n int) string {
	return strconv.Itoa(n)
}
