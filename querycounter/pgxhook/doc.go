// Package pgxhook provides a querycounter.EventSource for pgx connections and pools.
//
// Tracer implements pgx.QueryTracer and pgx.BatchTracer. Attach it to a pgx.ConnConfig
// (also reachable through pgxpool.Config.ConnConfig) and every query and every batched query is
// dispatched to the subscribed QueryCounter before the result is returned.
package pgxhook
