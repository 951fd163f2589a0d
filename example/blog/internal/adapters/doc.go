// Package adapters lets the blog repository run on pgxpool.Pool and sqlx.DB
// through one DBAdapter interface.
package adapters
