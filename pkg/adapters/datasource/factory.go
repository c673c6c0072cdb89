package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AdapterFactory creates capability implementations from the registry.
type AdapterFactory interface {
	// NewConnectionTester creates a connection tester for the given datasource type.
	NewConnectionTester(ctx context.Context, dsType string, config map[string]any) (ConnectionTester, error)

	// NewSchemaIntrospector creates a schema introspector for the given datasource type.
	NewSchemaIntrospector(ctx context.Context, dsType string, config map[string]any) (SchemaIntrospector, error)

	// NewRowReader creates a row reader for the given datasource type.
	NewRowReader(ctx context.Context, dsType string, config map[string]any) (RowReader, error)

	// NewAggregator creates an aggregator for the given datasource type.
	NewAggregator(ctx context.Context, dsType string, config map[string]any) (Aggregator, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewAdapterFactory returns a factory that uses the global registry.
// If logger is nil, a no-op logger is used.
func NewAdapterFactory(logger *zap.Logger) AdapterFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{logger: logger}
}

func (f *registryFactory) NewConnectionTester(ctx context.Context, dsType string, config map[string]any) (ConnectionTester, error) {
	reg, ok := lookup(dsType)
	if !ok || reg.TesterFactory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	return reg.TesterFactory(ctx, config, f.logger)
}

func (f *registryFactory) NewSchemaIntrospector(ctx context.Context, dsType string, config map[string]any) (SchemaIntrospector, error) {
	reg, ok := lookup(dsType)
	if !ok || reg.IntrospectorFactory == nil {
		return nil, fmt.Errorf("schema introspection not supported for type: %s", dsType)
	}
	return reg.IntrospectorFactory(ctx, config, f.logger)
}

func (f *registryFactory) NewRowReader(ctx context.Context, dsType string, config map[string]any) (RowReader, error) {
	reg, ok := lookup(dsType)
	if !ok || reg.RowReaderFactory == nil {
		return nil, fmt.Errorf("row scans not supported for type: %s", dsType)
	}
	return reg.RowReaderFactory(ctx, config, f.logger)
}

func (f *registryFactory) NewAggregator(ctx context.Context, dsType string, config map[string]any) (Aggregator, error) {
	reg, ok := lookup(dsType)
	if !ok || reg.AggregatorFactory == nil {
		return nil, fmt.Errorf("aggregate queries not supported for type: %s", dsType)
	}
	return reg.AggregatorFactory(ctx, config, f.logger)
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements AdapterFactory at compile time.
var _ AdapterFactory = (*registryFactory)(nil)
