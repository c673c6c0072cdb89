//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/logging"
	"github.com/veridata-io/recon-engine/pkg/retry"
)

// Conn is a PostgreSQL connection implementing all reconciliation
// capabilities (introspection, row reads, aggregates) over one pool.
type Conn struct {
	cfg    *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewConn opens a pooled PostgreSQL connection. If logger is nil, a no-op
// logger is used. Pool creation is retried on transient failures.
func NewConn(ctx context.Context, cfg *Config, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connStr := buildConnectionString(cfg)
	pool, err := retry.DoWithResult(ctx, nil, func() (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, connStr)
	})
	if err != nil {
		logger.Error("Postgres connection failed",
			zap.String("conn", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	logger.Debug("Connected to postgres",
		zap.String("conn", logging.SanitizeConnectionString(connStr)))

	return &Conn{cfg: cfg, pool: pool, logger: logger}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
func (c *Conn) TestConnection(ctx context.Context) error {
	ctx, cancel := c.queryContext(ctx)
	defer cancel()
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Conn) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

// queryContext applies the configured per-query timeout, if any.
func (c *Conn) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.QueryTimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(c.cfg.QueryTimeoutSeconds)*time.Second)
}

// qualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
// Otherwise returns "schema"."table".
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	quotedSchema := pgx.Identifier{schemaName}.Sanitize()
	return quotedSchema + "." + quotedTable
}
