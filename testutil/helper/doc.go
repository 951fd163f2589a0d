// Package helper provides test spies for the querycounter observability interfaces.
//
// LogHandlerSpy captures slog records, MetricsCollectorSpy and TracingCollectorSpy capture
// metrics and span calls, so tests can assert on the notifications a QueryCounter emits.
package helper
