//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/logging"
)

// Conn is a SQL Server connection implementing all reconciliation
// capabilities (introspection, row reads, aggregates).
type Conn struct {
	cfg    *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewConn opens a SQL Server connection. If logger is nil, a no-op logger
// is used.
func NewConn(ctx context.Context, cfg *Config, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connStr := buildConnectionString(cfg)
	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		logger.Error("SQL Server connection failed",
			zap.String("conn", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}

	logger.Debug("Opened sqlserver connection",
		zap.String("conn", logging.SanitizeConnectionString(connStr)))

	return &Conn{cfg: cfg, db: db, logger: logger}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
func (c *Conn) TestConnection(ctx context.Context) error {
	ctx, cancel := c.queryContext(ctx)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlserver: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Conn) Close() error {
	if c.db != nil {
		return c.db.Close()
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

// quoteName brackets an identifier, escaping closing brackets, matching
// QUOTENAME semantics.
func quoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// qualifiedTableName returns a bracket-quoted table reference.
func qualifiedTableName(schemaName, tableName string) string {
	if schemaName == "" {
		return quoteName(tableName)
	}
	return quoteName(schemaName) + "." + quoteName(tableName)
}
