// Package db persists completed question runs to Postgres for audit and
// analysis. Writes are fire-and-forget from the workflow's perspective; a
// store outage never fails a run.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/metrics"
)

// Config holds Postgres connection settings.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RunRecord is one persisted question run. Citations and Trace are stored
// as JSONB.
type RunRecord struct {
	ID            string    `db:"id"`
	Question      string    `db:"question"`
	Route         string    `db:"route"`
	Answer        string    `db:"answer"`
	Citations     []byte    `db:"citations"`
	Trace         []byte    `db:"trace"`
	Refinements   int       `db:"refinements"`
	Regenerations int       `db:"regenerations"`
	BestEffort    bool      `db:"best_effort"`
	CreatedAt     time.Time `db:"created_at"`
}

// Client wraps the Postgres connection pool.
type Client struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewClient connects to Postgres and verifies the connection.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	logger.Info("Connected to run history store",
		zap.String("host", cfg.Host), zap.String("database", cfg.Database))
	return &Client{db: db, logger: logger}, nil
}

// NewClientFromDB wraps an existing connection (used by tests).
func NewClientFromDB(db *sqlx.DB, logger *zap.Logger) *Client {
	return &Client{db: db, logger: logger}
}

const insertRunQuery = `
	INSERT INTO question_runs (
		id, question, route, answer, citations, trace,
		refinements, regenerations, best_effort, created_at
	) VALUES (
		:id, :question, :route, :answer, :citations, :trace,
		:refinements, :regenerations, :best_effort, :created_at
	)`

// SaveRun writes one completed run.
func (c *Client) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := c.db.NamedExecContext(ctx, insertRunQuery, rec); err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	metrics.RunsPersisted.Inc()
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (c *Client) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunRecord
	err := c.db.SelectContext(ctx, &runs,
		`SELECT id, question, route, answer, citations, trace,
		        refinements, regenerations, best_effort, created_at
		 FROM question_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent runs: %w", err)
	}
	return runs, nil
}

// HealthCheck pings the database.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}
