package querycounter_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/query-counter-go/querycounter"
	. "github.com/AntonStoeckl/query-counter-go/testutil/helper" //nolint:revive
)

const (
	selectUser  = "SELECT * FROM users WHERE id = 1"
	selectOrder = "SELECT * FROM orders WHERE id = 1"
)

func givenStatement(raw string) querycounter.TrackedStatement {
	return querycounter.TrackedStatement{RawText: raw}
}

func emitTimes(ctx context.Context, bus *querycounter.EventBus, raw string, times int) {
	for i := 0; i < times; i++ {
		bus.Emit(ctx, givenStatement(raw))
	}
}

func Test_QueryCounter_Analyze_ReportsGroupAboveThreshold(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus, querycounter.WithAlertThreshold(2))
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)
	emitTimes(ctx, bus, selectOrder, 1)

	// act
	report, err := qc.Analyze(ctx)

	// assert
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, querycounter.NormalizedKey("SELECT * FROM users WHERE id = ?"), report.Entries[0].Key)
	assert.Equal(t, 3, report.Entries[0].Count)
	assert.Equal(t, selectUser, report.Entries[0].SampleText)
	assert.Equal(t, 4, report.TotalStatements)
	assert.Equal(t, 2, report.DistinctStatements)
	assert.Equal(t, qc.IntervalID(), report.IntervalID)
}

func Test_QueryCounter_Analyze_RaiseIfExceeds_ReturnsReportInError(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(2),
		querycounter.WithRaiseIfExceeds(true),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)
	emitTimes(ctx, bus, selectOrder, 1)

	// act
	report, err := qc.Analyze(ctx)

	// assert
	assert.ErrorIs(t, err, querycounter.ErrQueryThresholdExceeded)

	var exceededErr *querycounter.QueryThresholdExceededError
	require.ErrorAs(t, err, &exceededErr)
	assert.Equal(t, report, exceededErr.Report)
	assert.Equal(t, "querycounter:\nCount: 3 Query: "+selectUser, err.Error())
}

func Test_QueryCounter_Analyze_RaiseIfExceeds_NothingExceeds_NoError(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(3),
		querycounter.WithRaiseIfExceeds(true),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)

	// act
	report, err := qc.Analyze(ctx)

	// assert
	assert.NoError(t, err)
	assert.True(t, report.Empty())
}

func Test_QueryCounter_Analyze_Twice_SameResult(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus, querycounter.WithAlertThreshold(1))
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 2)

	// act
	first, firstErr := qc.Analyze(ctx)
	second, secondErr := qc.Analyze(ctx)

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, first, second)
	assert.Len(t, qc.Ledger(), 1)
}

func Test_QueryCounter_Teardown_StopsCounting(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	emitTimes(ctx, bus, selectUser, 1)

	// act
	qc.Teardown()
	emitTimes(ctx, bus, selectUser, 5)

	// assert
	assert.False(t, qc.Active())
	assert.Equal(t, 0, bus.SubscriberCount())
	require.Len(t, qc.Ledger(), 1)
	assert.Equal(t, 1, qc.Ledger()[0].Count)
}

func Test_QueryCounter_Teardown_IsIdempotent(t *testing.T) {
	// setup
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)

	// act & assert
	assert.NotPanics(t, func() {
		qc.Teardown()
		require.NoError(t, qc.Initialize())
		qc.Teardown()
		qc.Teardown()
	})
	assert.False(t, qc.Active())
}

func Test_QueryCounter_Initialize_Twice_AlreadyActive(t *testing.T) {
	// setup
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()

	// act
	err = qc.Initialize()

	// assert
	assert.ErrorIs(t, err, querycounter.ErrAlreadyActive)
	assert.Equal(t, 1, bus.SubscriberCount())
}

func Test_QueryCounter_Initialize_ClearsLedger(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	emitTimes(ctx, bus, selectUser, 3)
	qc.Teardown()
	firstIntervalID := qc.IntervalID()

	// act
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()

	// assert
	assert.Empty(t, qc.Ledger())
	assert.NotEqual(t, firstIntervalID, qc.IntervalID())
}

func Test_QueryCounter_AccumulateAcrossIntervals_KeepsLedger(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus, querycounter.WithAccumulateAcrossIntervals(true))
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	emitTimes(ctx, bus, selectUser, 2)
	qc.Teardown()

	// act
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 2)

	// assert
	require.Len(t, qc.Ledger(), 1)
	assert.Equal(t, 4, qc.Ledger()[0].Count)
}

func Test_QueryCounter_Restart(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)

	// arrange
	assert.ErrorIs(t, qc.Restart(), querycounter.ErrNotActive)
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)
	intervalID := qc.IntervalID()

	// act
	err = qc.Restart()
	emitTimes(ctx, bus, selectOrder, 1)

	// assert
	require.NoError(t, err)
	assert.True(t, qc.Active())
	assert.NotEqual(t, intervalID, qc.IntervalID())
	require.Len(t, qc.Ledger(), 1)
	assert.Equal(t, querycounter.Normalize(selectOrder), qc.Ledger()[0].Key)
}

func Test_QueryCounter_Track_TearsDownOnError(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)
	failure := errors.New("work failed")

	// act
	err = qc.Track(ctx, func(ctx context.Context) error {
		emitTimes(ctx, bus, selectUser, 1)
		return failure
	})

	// assert
	assert.ErrorIs(t, err, failure)
	assert.False(t, qc.Active())
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.Len(t, qc.Ledger(), 1)
}

func Test_QueryCounter_Track_TearsDownOnPanic(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)

	// act
	assert.Panics(t, func() {
		_ = qc.Track(ctx, func(context.Context) error {
			panic("work panicked")
		})
	})

	// assert
	assert.False(t, qc.Active())
	assert.Equal(t, 0, bus.SubscriberCount())
}

func Test_QueryCounter_TrackAndAnalyze(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(2),
		querycounter.WithRaiseIfExceeds(true),
	)
	require.NoError(t, err)

	// act
	report, err := qc.TrackAndAnalyze(ctx, func(ctx context.Context) error {
		emitTimes(ctx, bus, selectUser, 3)
		return nil
	})

	// assert
	assert.ErrorIs(t, err, querycounter.ErrQueryThresholdExceeded)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, 3, report.Entries[0].Count)
	assert.False(t, qc.Active())
}

func Test_QueryCounter_TrackAndAnalyze_WorkFails_SkipsAnalyze(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(0),
		querycounter.WithRaiseIfExceeds(true),
	)
	require.NoError(t, err)
	failure := errors.New("work failed")

	// act
	report, err := qc.TrackAndAnalyze(ctx, func(ctx context.Context) error {
		emitTimes(ctx, bus, selectUser, 3)
		return failure
	})

	// assert
	assert.ErrorIs(t, err, failure)
	assert.NotErrorIs(t, err, querycounter.ErrQueryThresholdExceeded)
	assert.Empty(t, report.Entries)
}

func Test_QueryCounter_ConcurrentStatements_AllCounted(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	wg := sync.WaitGroup{}

	// act
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitTimes(ctx, bus, selectUser, 100)
		}()
	}
	wg.Wait()

	// assert
	require.Len(t, qc.Ledger(), 1)
	assert.Equal(t, 1000, qc.Ledger()[0].Count)
}

func Test_QueryCounter_Traceback_CapturesCallerFrames(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus, querycounter.WithTraceback(true))
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()

	// act
	bus.Emit(ctx, givenStatement(selectUser))

	// assert
	ledger := qc.Ledger()
	require.Len(t, ledger, 1)
	require.Len(t, ledger[0].Stacks, 1)
	assert.True(t, strings.HasSuffix(ledger[0].Stacks[0][0].Function, "Test_QueryCounter_Traceback_CapturesCallerFrames"))
}

func Test_QueryCounter_Heuristics_FirstFrameIsCaller(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(1),
		querycounter.WithTraceback(true),
		querycounter.WithHeuristicPaths("querycounter/counter_test.go"),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()

	// act
	emitTimes(ctx, bus, selectUser, 2)
	report, err := qc.Analyze(ctx)

	// assert
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	require.Len(t, report.Entries[0].Stacks, 2)

	frames := report.Entries[0].Stacks[0]
	require.Len(t, frames, 2, "emitTimes and the test function are in this file")
	assert.True(t, strings.HasSuffix(frames[0].Function, "emitTimes"))
	assert.True(t, strings.HasSuffix(frames[1].Function, "Test_QueryCounter_Heuristics_FirstFrameIsCaller"))
}

func Test_QueryCounter_Heuristics_NoMatch_CountsWithoutStacks(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithTraceback(true),
		querycounter.WithHeuristicPaths("no/such/path"),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()

	// act
	emitTimes(ctx, bus, selectUser, 2)

	// assert
	ledger := qc.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, 2, ledger[0].Count)
	assert.Empty(t, ledger[0].Stacks)
}

func Test_QueryCounter_HeuristicsWithoutTraceback_StoresNoStacks(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus, querycounter.WithHeuristicPaths("querycounter/"))
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()

	// act
	emitTimes(ctx, bus, selectUser, 1)

	// assert
	ledger := qc.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, 1, ledger[0].Count)
	assert.Empty(t, ledger[0].Stacks)
}

func Test_NewQueryCounter_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		options     []querycounter.Option
		expectedErr error
	}{
		{
			name:        "negative_threshold",
			options:     []querycounter.Option{querycounter.WithAlertThreshold(-1)},
			expectedErr: querycounter.ErrNegativeAlertThreshold,
		},
		{
			name:        "negative_max_frames",
			options:     []querycounter.Option{querycounter.WithMaxReportFrames(-1)},
			expectedErr: querycounter.ErrNegativeMaxReportFrames,
		},
		{
			name:        "heuristic_option_without_paths",
			options:     []querycounter.Option{querycounter.WithHeuristicPaths()},
			expectedErr: querycounter.ErrHeuristicPathsRequired,
		},
		{
			name: "heuristics_config_without_paths",
			options: []querycounter.Option{querycounter.WithAnalysisConfig(querycounter.AnalysisConfig{
				HeuristicsEnabled: true,
			})},
			expectedErr: querycounter.ErrHeuristicPathsRequired,
		},
		{
			name:        "unknown_dialect",
			options:     []querycounter.Option{querycounter.WithDialect("oracle")},
			expectedErr: querycounter.ErrUnknownDialect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			qc, err := querycounter.NewQueryCounter(querycounter.NewEventBus(), tt.options...)

			// assert
			assert.Nil(t, qc)
			assert.ErrorIs(t, err, querycounter.ErrInvalidConfiguration)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_NewQueryCounter_NilSource(t *testing.T) {
	// act
	qc, err := querycounter.NewQueryCounter(nil)

	// assert
	assert.Nil(t, qc)
	assert.ErrorIs(t, err, querycounter.ErrNilEventSource)
}

func Test_NewQueryCounter_Defaults(t *testing.T) {
	// act
	qc, err := querycounter.NewQueryCounter(querycounter.NewEventBus())

	// assert
	require.NoError(t, err)
	assert.Equal(t, querycounter.DefaultAnalysisConfig(), qc.Config())
	assert.False(t, qc.Active())
	assert.Empty(t, qc.IntervalID())
}

func Test_QueryCounter_WithDialect_GroupsBackslashEscapedStrings(t *testing.T) {
	// setup
	ctx := context.Background()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus,
		querycounter.WithAlertThreshold(1),
		querycounter.WithDialect(querycounter.DialectMySQL),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	bus.Emit(ctx, givenStatement(`SELECT id FROM users WHERE name = 'O\'Brien' AND active = 1`))
	bus.Emit(ctx, givenStatement(`SELECT id FROM users WHERE name = 'Smith' AND active = 1`))

	// act
	report, err := qc.Analyze(ctx)

	// assert
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, querycounter.NormalizedKey("SELECT id FROM users WHERE name = ? AND active = ?"), report.Entries[0].Key)
	assert.Equal(t, 2, report.Entries[0].Count)
	assert.Equal(t, querycounter.DialectMySQL, qc.Config().Dialect)
}

type failingSource struct{}

func (failingSource) Subscribe(querycounter.StatementHandler) (querycounter.Subscription, error) {
	return nil, errors.New("hook registry closed")
}

func Test_QueryCounter_Initialize_SubscribeFails(t *testing.T) {
	// setup
	qc, err := querycounter.NewQueryCounter(failingSource{})
	require.NoError(t, err)

	// act
	err = qc.Initialize()

	// assert
	assert.ErrorIs(t, err, querycounter.ErrSubscribeFailed)
	assert.False(t, qc.Active())
}

func Test_Observability_QueryCounter_WithLogger_WarnsPerOffendingGroup(t *testing.T) {
	// setup
	ctx := context.Background()
	testHandler := NewLogHandlerSpy(false)
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(1),
		querycounter.WithLogger(slog.New(testHandler)),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)
	emitTimes(ctx, bus, selectOrder, 2)

	// act
	_, err = qc.Analyze(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, testHandler.CountLevel(slog.LevelWarn))
	assert.Equal(t, 0, testHandler.CountLevel(slog.LevelInfo))
	assert.True(t,
		testHandler.HasWarnLogWithMessage("querycounter: query exceeded alert threshold").
			WithIntAttr("count", 3).
			WithIntAttr("threshold", 1).
			WithStringAttr("query", selectUser).
			WithStringAttr("key_hash", querycounter.Normalize(selectUser).Hash()).
			WithAttr("interval_id").
			Assert(), "should warn with count, threshold, query and key hash",
	)
}

func Test_Observability_QueryCounter_WithLogger_LogNoAlert(t *testing.T) {
	// setup
	ctx := context.Background()
	testHandler := NewLogHandlerSpy(false)
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithLogNoAlert(true),
		querycounter.WithLogger(slog.New(testHandler)),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)

	// act
	_, err = qc.Analyze(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 0, testHandler.CountLevel(slog.LevelWarn))
	assert.Equal(t, 1, testHandler.CountLevel(slog.LevelInfo))
	assert.True(t,
		testHandler.HasInfoLogWithMessage("querycounter: no queries exceed threshold").
			WithIntAttr("threshold", int64(querycounter.DefaultAlertThreshold)).
			WithIntAttr("total_statements", 3).
			Assert(), "should log that nothing exceeds the threshold",
	)
}

func Test_Observability_QueryCounter_WithoutLogNoAlert_Silent(t *testing.T) {
	// setup
	ctx := context.Background()
	testHandler := NewLogHandlerSpy(false)
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(bus, querycounter.WithLogger(slog.New(testHandler)))
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)

	// act
	_, err = qc.Analyze(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 0, testHandler.CountLevel(slog.LevelWarn))
	assert.Equal(t, 0, testHandler.CountLevel(slog.LevelInfo))
}

func Test_Observability_QueryCounter_WithMetrics(t *testing.T) {
	// setup
	ctx := context.Background()
	metricsSpy := NewMetricsCollectorSpy()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(2),
		querycounter.WithRaiseIfExceeds(true),
		querycounter.WithMetrics(metricsSpy),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)

	// act
	_, err = qc.Analyze(ctx)

	// assert
	assert.ErrorIs(t, err, querycounter.ErrQueryThresholdExceeded)
	assert.Equal(t, 3, metricsSpy.CounterCalls("querycounter_statements_recorded_total"))
	assert.Equal(t, 1, metricsSpy.CounterCalls("querycounter_threshold_exceeded_total"))
	assert.Equal(t, 0, metricsSpy.CounterCalls("querycounter_capture_failures_total"))
	assert.Equal(t, 1, metricsSpy.DurationCalls("querycounter_analyze_duration_seconds"))

	offendingGroups, recorded := metricsSpy.LastValue("querycounter_offending_groups")
	assert.True(t, recorded)
	assert.InDelta(t, 1.0, offendingGroups, 0.0001)
}

func Test_Observability_QueryCounter_WithTracing(t *testing.T) {
	// setup
	ctx := context.Background()
	tracingSpy := NewTracingCollectorSpy()
	bus := querycounter.NewEventBus()
	qc, err := querycounter.NewQueryCounter(
		bus,
		querycounter.WithAlertThreshold(2),
		querycounter.WithRaiseIfExceeds(true),
		querycounter.WithTracing(tracingSpy),
	)
	require.NoError(t, err)

	// arrange
	require.NoError(t, qc.Initialize())
	defer qc.Teardown()
	emitTimes(ctx, bus, selectUser, 3)

	// act
	_, err = qc.Analyze(ctx)

	// assert
	assert.ErrorIs(t, err, querycounter.ErrQueryThresholdExceeded)

	spans := tracingSpy.GetSpanRecords()
	require.Len(t, spans, 1)
	assert.Equal(t, "querycounter.analyze", spans[0].Name)
	assert.Equal(t, qc.IntervalID(), spans[0].StartAttributes["interval_id"])
	assert.Equal(t, "2", spans[0].StartAttributes["threshold"])
	assert.True(t, spans[0].Finished)
	assert.Equal(t, "threshold_exceeded", spans[0].Status)
	assert.Equal(t, "threshold_exceeded", spans[0].SpanContext.GetStatus())
	assert.Equal(t, "1", spans[0].EndAttributes["offending_groups"])
	assert.Equal(t, "3", spans[0].EndAttributes["top_count"])
	assert.Equal(t, "3", spans[0].EndAttributes["total_statements"])
}
