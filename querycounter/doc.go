// Package querycounter detects N+1 query patterns by counting the statements a session executes
// during a tracked interval.
//
// Every statement observed through an EventSource is normalized into a key that ignores literal
// and bind-parameter values, optionally annotated with the call stack that issued it, and counted
// in a Ledger. Analyze reduces the Ledger into a Report of all statement shapes that were executed
// more often than the configured alert threshold.
//
// Key types:
//   - QueryCounter: owns one tracking interval (Initialize / Teardown / Analyze)
//   - EventSource: anything that can dispatch executed statements (EventBus, sqlhook.Source, pgxhook.Tracer)
//   - Ledger: per-key counters with sample text and captured stacks
//   - Report: the ranked offending statement groups
//
// Common usage pattern:
//
//	source := sqlhook.NewSource()
//	db, _ := source.OpenSQLX(sqlhook.PostgresDriver(), "postgres", dsn)
//
//	counter, err := querycounter.NewQueryCounter(
//		source,
//		querycounter.WithAlertThreshold(3),
//		querycounter.WithRaiseIfExceeds(true),
//		querycounter.WithLogger(slog.Default()),
//	)
//	if err != nil {
//		// handle configuration error
//	}
//
//	report, err := counter.TrackAndAnalyze(ctx, func(ctx context.Context) error {
//		return loadFeed(ctx, db)
//	})
//	if errors.Is(err, querycounter.ErrQueryThresholdExceeded) {
//		// report.Entries holds the offending statement groups
//	}
package querycounter
