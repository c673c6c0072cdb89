//go:build mssql || all_adapters

package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
)

func init() {
	newConn := func(ctx context.Context, config map[string]any, logger *zap.Logger) (*Conn, error) {
		cfg, err := FromMap(config)
		if err != nil {
			return nil, err
		}
		return NewConn(ctx, cfg, logger)
	}

	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2017+, Azure SQL Database",
		},
		TesterFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.ConnectionTester, error) {
			return newConn(ctx, config, logger)
		},
		IntrospectorFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.SchemaIntrospector, error) {
			return newConn(ctx, config, logger)
		},
		RowReaderFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.RowReader, error) {
			return newConn(ctx, config, logger)
		},
		AggregatorFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Aggregator, error) {
			return newConn(ctx, config, logger)
		},
	})
}

// Compile-time capability checks.
var (
	_ datasource.ConnectionTester   = (*Conn)(nil)
	_ datasource.SchemaIntrospector = (*Conn)(nil)
	_ datasource.RowReader          = (*Conn)(nil)
	_ datasource.Aggregator         = (*Conn)(nil)
)
