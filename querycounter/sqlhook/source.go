package sqlhook

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/AntonStoeckl/query-counter-go/querycounter"
)

const driverNamePrefix = "querycounter-"

var ErrNilDriver = errors.New("nil driver supplied")
var ErrDriverAlreadyRegistered = errors.New("driver name is already registered")
var ErrDriverLookupFailed = errors.New("looking up driver failed")
var ErrOpeningDatabaseFailed = errors.New("opening database failed")

// registerMu serializes the check-and-register sequence, because sql.Register panics on duplicates.
var registerMu sync.Mutex

// Source is a querycounter.EventSource which implements sqlhooks.Hooks.
// Every statement passing through a driver wrapped by this Source is emitted before it executes.
type Source struct {
	*querycounter.EventBus
}

// NewSource creates a Source without subscribers.
func NewSource() *Source {
	return &Source{EventBus: querycounter.NewEventBus()}
}

// Before implements sqlhooks.Hooks.
func (s *Source) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	s.Emit(ctx, querycounter.TrackedStatement{RawText: query, Args: args})

	return ctx, nil
}

// After implements sqlhooks.Hooks.
func (s *Source) After(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	return ctx, nil
}

// Wrap returns drv with this Source's hooks attached.
func (s *Source) Wrap(drv driver.Driver) driver.Driver {
	return sqlhooks.Wrap(drv, s)
}

// Register wraps drv and registers it with database/sql under name.
func (s *Source) Register(name string, drv driver.Driver) error {
	if drv == nil {
		return ErrNilDriver
	}

	registerMu.Lock()
	defer registerMu.Unlock()

	if slices.Contains(sql.Drivers(), name) {
		return errors.Join(ErrDriverAlreadyRegistered, errors.New(name))
	}

	sql.Register(name, s.Wrap(drv))

	return nil
}

// Open registers drv under a generated name and opens a *sql.DB with it.
func (s *Source) Open(drv driver.Driver, dsn string) (*sql.DB, error) {
	name := driverNamePrefix + uuid.NewString()

	if err := s.Register(name, drv); err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	return db, nil
}

// OpenSQLX is Open for sqlx. The bindDriverName selects sqlx's bind variable style,
// e.g. "postgres", "pgx" or "sqlite3".
func (s *Source) OpenSQLX(drv driver.Driver, bindDriverName, dsn string) (*sqlx.DB, error) {
	db, err := s.Open(drv, dsn)
	if err != nil {
		return nil, err
	}

	return sqlx.NewDb(db, bindDriverName), nil
}

// PostgresDriver returns the lib/pq driver.
func PostgresDriver() driver.Driver {
	return &pq.Driver{}
}

// LookupDriver returns the driver registered with database/sql under name.
func LookupDriver(name string) (driver.Driver, error) {
	db, err := sql.Open(name, "")
	if err != nil {
		return nil, errors.Join(ErrDriverLookupFailed, err)
	}
	defer func() { _ = db.Close() }()

	return db.Driver(), nil
}

// Ensure Source implements the required interfaces.
var (
	_ querycounter.EventSource = (*Source)(nil)
	_ sqlhooks.Hooks           = (*Source)(nil)
)
