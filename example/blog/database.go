package blog

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

const (
	defaultMaxOpenConnections = 10
	defaultMaxIdleConnections = 10
	defaultMaxConnections     = int32(8)
	defaultMinConnections     = int32(2)
	defaultMaxConnLifetime    = time.Hour
	defaultMaxConnIdleTime    = time.Minute * 5
	defaultHealthCheckPeriod  = time.Minute
	defaultConnectTimeout     = time.Second * 5
)

// TuneSQLX applies the connection pool settings used by the demo to a sqlx.DB.
// SQLite in-memory databases must keep a single connection, so maxOpen overrides the default when > 0.
func TuneSQLX(db *sqlx.DB, maxOpen int) {
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConnections
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(maxOpen, defaultMaxIdleConnections))
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}

// TunePGXPool applies the connection pool settings used by the demo to a pgxpool.Config.
func TunePGXPool(poolConfig *pgxpool.Config) {
	poolConfig.MaxConns = defaultMaxConnections
	poolConfig.MinConns = defaultMinConnections
	poolConfig.MaxConnLifetime = defaultMaxConnLifetime
	poolConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout
}
