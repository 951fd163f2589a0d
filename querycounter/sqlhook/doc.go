// Package sqlhook provides a querycounter.EventSource for database/sql drivers.
//
// A Source wraps any driver.Driver with github.com/qustavo/sqlhooks/v2, so every statement executed
// through the resulting *sql.DB or *sqlx.DB is dispatched to the subscribed QueryCounter.
// It works with lib/pq, modernc.org/sqlite and every other driver implementing driver.ConnBeginTx.
//
// Usage:
//
//	source := sqlhook.NewSource()
//	drv, _ := sqlhook.LookupDriver("sqlite")
//	db, _ := source.OpenSQLX(drv, "sqlite3", ":memory:")
//	qc, _ := querycounter.NewQueryCounter(source, querycounter.WithAlertThreshold(3))
package sqlhook
