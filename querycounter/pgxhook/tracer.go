package pgxhook

import (
	"context"
	"database/sql"
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/AntonStoeckl/query-counter-go/querycounter"
)

var ErrParsingConfigFailed = errors.New("parsing pgx config failed")
var ErrConnectingFailed = errors.New("connecting to postgres failed")

// Tracer is a querycounter.EventSource fed by pgx's tracing hooks.
type Tracer struct {
	*querycounter.EventBus
}

// NewTracer creates a Tracer without subscribers.
func NewTracer() *Tracer {
	return &Tracer{EventBus: querycounter.NewEventBus()}
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	t.Emit(ctx, querycounter.TrackedStatement{RawText: data.SQL, Args: data.Args})

	return ctx
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *Tracer) TraceQueryEnd(_ context.Context, _ *pgx.Conn, _ pgx.TraceQueryEndData) {}

// TraceBatchStart implements pgx.BatchTracer.
func (t *Tracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceBatchStartData) context.Context {
	return ctx
}

// TraceBatchQuery implements pgx.BatchTracer; every query of a batch counts as one statement.
func (t *Tracer) TraceBatchQuery(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	t.Emit(ctx, querycounter.TrackedStatement{RawText: data.SQL, Args: data.Args})
}

// TraceBatchEnd implements pgx.BatchTracer.
func (t *Tracer) TraceBatchEnd(_ context.Context, _ *pgx.Conn, _ pgx.TraceBatchEndData) {}

// Attach installs the Tracer on cfg. An already configured tracer keeps working next to it.
func (t *Tracer) Attach(cfg *pgx.ConnConfig) {
	if cfg.Tracer == nil {
		cfg.Tracer = t
		return
	}

	if t.attachedTo(cfg.Tracer) {
		return
	}

	cfg.Tracer = multitracer.New(cfg.Tracer, t)
}

func (t *Tracer) attachedTo(tracer pgx.QueryTracer) bool {
	if tracer == pgx.QueryTracer(t) {
		return true
	}

	combined, ok := tracer.(*multitracer.Tracer)

	return ok && slices.Contains(combined.QueryTracers, pgx.QueryTracer(t))
}

// ParseConfig parses dsn into a pgx.ConnConfig with the Tracer attached.
func (t *Tracer) ParseConfig(dsn string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Join(ErrParsingConfigFailed, err)
	}

	t.Attach(cfg)

	return cfg, nil
}

// Connect opens a single traced pgx connection.
func (t *Tracer) Connect(ctx context.Context, dsn string) (*pgx.Conn, error) {
	cfg, err := t.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	return conn, nil
}

// NewPool creates a traced pgxpool.Pool.
func (t *Tracer) NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Join(ErrParsingConfigFailed, err)
	}

	t.Attach(poolConfig.ConnConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	return pool, nil
}

// OpenDB returns a traced *sql.DB using pgx's database/sql driver.
func (t *Tracer) OpenDB(dsn string) (*sql.DB, error) {
	cfg, err := t.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	return stdlib.OpenDB(*cfg), nil
}

// Ensure Tracer implements the required interfaces.
var (
	_ querycounter.EventSource = (*Tracer)(nil)
	_ pgx.QueryTracer          = (*Tracer)(nil)
	_ pgx.BatchTracer          = (*Tracer)(nil)
)
