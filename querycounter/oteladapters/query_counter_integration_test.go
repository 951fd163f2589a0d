package oteladapters_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/query-counter-go/querycounter"
	"github.com/AntonStoeckl/query-counter-go/querycounter/oteladapters"
)

// spanAwareHandler remembers the span context of every record it handles.
type spanAwareHandler struct {
	mu      sync.Mutex
	traceID []oteltrace.TraceID
}

func (h *spanAwareHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *spanAwareHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level != slog.LevelWarn {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.traceID = append(h.traceID, oteltrace.SpanContextFromContext(ctx).TraceID())

	return nil
}

func (h *spanAwareHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *spanAwareHandler) WithGroup(string) slog.Handler { return h }

func Test_QueryCounter_WithOTelAdapters(t *testing.T) {
	// setup
	ctx := context.Background()
	tracingCollector, exporter := newTracedCollector()
	metricsCollector, reader := newMeteredCollector()
	handler := &spanAwareHandler{}
	bus := querycounter.NewEventBus()

	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(2),
		querycounter.WithRaiseIfExceeds(true),
		querycounter.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler(handler)),
		querycounter.WithMetrics(metricsCollector),
		querycounter.WithTracing(tracingCollector),
	)
	require.NoError(t, err)

	// act
	_, err = qc.TrackAndAnalyze(ctx, func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			bus.Emit(ctx, querycounter.TrackedStatement{RawText: "SELECT * FROM posts WHERE user_id = 1"})
		}

		return nil
	})

	// assert
	assert.ErrorIs(t, err, querycounter.ErrQueryThresholdExceeded)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "querycounter.analyze", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)

	require.Len(t, handler.traceID, 1)
	assert.Equal(t, spans[0].SpanContext.TraceID(), handler.traceID[0], "the warning is correlated with the analyze span")

	recorded, ok := findMetric(t, collect(t, reader), "querycounter_statements_recorded_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, recorded.DataPoints, 1)
	assert.Equal(t, int64(3), recorded.DataPoints[0].Value)
}
