package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/config"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// mockFactory hands out the same capability mocks for every datasource type.
type mockFactory struct {
	tester       datasource.ConnectionTester
	introspector datasource.SchemaIntrospector
	reader       datasource.RowReader
	aggregator   datasource.Aggregator
}

func (f *mockFactory) NewConnectionTester(ctx context.Context, dsType string, cfg map[string]any) (datasource.ConnectionTester, error) {
	return f.tester, nil
}

func (f *mockFactory) NewSchemaIntrospector(ctx context.Context, dsType string, cfg map[string]any) (datasource.SchemaIntrospector, error) {
	return f.introspector, nil
}

func (f *mockFactory) NewRowReader(ctx context.Context, dsType string, cfg map[string]any) (datasource.RowReader, error) {
	return f.reader, nil
}

func (f *mockFactory) NewAggregator(ctx context.Context, dsType string, cfg map[string]any) (datasource.Aggregator, error) {
	return f.aggregator, nil
}

func (f *mockFactory) ListTypes() []datasource.AdapterInfo { return nil }

var _ datasource.AdapterFactory = (*mockFactory)(nil)

func runConfig(scope string) *config.Config {
	return &config.Config{
		Datasources: map[string]config.DatasourceEntry{
			"dw": {Type: "postgres", Settings: map[string]any{}},
		},
		Reconcile: config.ReconcileConfig{
			Target:      "dw:public.orders_v2",
			Sources:     []string{"dw:public.orders_v1"},
			Scope:       scope,
			SampleLimit: 5,
		},
	}
}

func happyPathFactory() *mockFactory {
	columns := []models.ColumnDescriptor{
		{Name: "order_id", DataType: "integer", OrdinalPosition: 1},
		{Name: "total", DataType: "numeric", OrdinalPosition: 2},
	}

	return &mockFactory{
		tester: &mockConnectionTester{},
		introspector: &mockIntrospector{
			describeColumnsFunc: func(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
				return columns, nil
			},
		},
		reader: &mockRowReader{
			countRowsFunc: func(ctx context.Context, dataset models.DatasetHandle) (int64, error) {
				return 100, nil
			},
			antiJoinFunc: func(ctx context.Context, source, target models.DatasetHandle, keys models.KeySet, sampleLimit int) (*datasource.RowDiff, error) {
				return &datasource.RowDiff{}, nil
			},
			keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
				return [][]string{{"1"}, {"2"}}, nil
			},
			checkKeyUniquenessFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (*datasource.UniquenessResult, error) {
				return &datasource.UniquenessResult{TotalRows: 100, DistinctKeys: 100}, nil
			},
		},
		aggregator: &mockAggregator{
			columnStatsFunc: func(ctx context.Context, dataset models.DatasetHandle, spec models.ColumnSpec) (*datasource.ColumnStatsResult, error) {
				return &datasource.ColumnStatsResult{Column: spec.Name, Category: spec.Category, TotalRows: 100, NonNullCount: 100}, nil
			},
			overlapStatsFunc: func(ctx context.Context, source, target models.DatasetHandle, cols []string) ([]models.ColumnOverlapStat, error) {
				stats := make([]models.ColumnOverlapStat, 0, len(cols))
				for _, name := range cols {
					stats = append(stats, models.ColumnOverlapStat{ColumnName: name, SourceNonNull: 100, TargetNonNull: 100})
				}
				return stats, nil
			},
		},
	}
}

func TestOrchestratorFullRun(t *testing.T) {
	orch := NewOrchestrator(runConfig(config.ScopeFull), happyPathFactory(), nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, report.Status)
	assert.Equal(t, "public.orders_v2", report.TargetName)
	assert.Equal(t, models.KeySet{"order_id"}, report.Keys)
	assert.True(t, report.KeysInferred)

	assert.Len(t, report.Schemas, 2)
	require.Len(t, report.RecordCounts, 1)
	assert.Equal(t, int64(0), report.RecordCounts[0].Difference)
	// Both directions compared.
	assert.Len(t, report.RowDiffs, 2)
	require.NotNil(t, report.UnionCoverage)
	assert.Equal(t, int64(0), report.UnionCoverage.MissingKeyCount)
	assert.Empty(t, report.SchemaDrift)
	// Source and target both profiled, two columns each.
	assert.Len(t, report.Profiles, 4)
	require.Len(t, report.Overlaps, 1)
	assert.Len(t, report.Overlaps[0].Columns, 2)
	assert.Empty(t, report.Failures)
}

func TestOrchestratorRowsScopeSkipsProfiling(t *testing.T) {
	orch := NewOrchestrator(runConfig(config.ScopeRows), happyPathFactory(), nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RowDiffs)
	assert.Nil(t, report.UnionCoverage)
	assert.Empty(t, report.Profiles)
	assert.Empty(t, report.Overlaps)
}

func TestOrchestratorTargetUnavailableIsFatal(t *testing.T) {
	factory := happyPathFactory()
	factory.introspector = &mockIntrospector{
		describeColumnsFunc: func(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
			return nil, fmt.Errorf("%w: connection refused", apperrors.ErrMetadataUnavailable)
		},
	}

	orch := NewOrchestrator(runConfig(config.ScopeFull), factory, nil)

	_, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTargetUnavailable))
}

func TestOrchestratorCatalogFailureFallsBackToExplicitKeys(t *testing.T) {
	factory := happyPathFactory()
	factory.introspector = &mockIntrospector{
		describeColumnsFunc: func(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
			return nil, fmt.Errorf("%w: permissions", apperrors.ErrMetadataUnavailable)
		},
	}

	cfg := runConfig(config.ScopeFull)
	cfg.Reconcile.Keys = []string{"order_id"}

	orch := NewOrchestrator(cfg, factory, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	// The run reconciles on the explicit key instead of aborting.
	assert.Equal(t, models.KeySet{"order_id"}, report.Keys)
	assert.False(t, report.KeysInferred)
	require.Len(t, report.Schemas, 2)
	assert.True(t, report.Schemas[0].Fallback)
	assert.True(t, report.Schemas[1].Fallback)
	assert.Len(t, report.RowDiffs, 2)
	// No real type info, so no drift is reported.
	assert.Empty(t, report.SchemaDrift)
	assert.Empty(t, report.Failures)
	assert.Equal(t, models.StatusOK, report.Status)
}

func TestOrchestratorTargetPingFailureIsFatal(t *testing.T) {
	factory := happyPathFactory()
	factory.tester = &mockConnectionTester{
		testConnectionFunc: func(ctx context.Context) error {
			return fmt.Errorf("connection refused")
		},
	}

	orch := NewOrchestrator(runConfig(config.ScopeRows), factory, nil)

	_, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTargetUnavailable))
}

func TestOrchestratorSourceSnapshotFailureIsScoped(t *testing.T) {
	factory := happyPathFactory()
	factory.introspector = &mockIntrospector{
		describeColumnsFunc: func(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
			if dataset.TableName == "orders_v1" {
				return nil, fmt.Errorf("%w: catalog locked", apperrors.ErrMetadataUnavailable)
			}
			return []models.ColumnDescriptor{{Name: "order_id", DataType: "integer", OrdinalPosition: 1}}, nil
		},
	}

	orch := NewOrchestrator(runConfig(config.ScopeFull), factory, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, report.Status)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, models.FailureMetadataUnavailable, report.Failures[0].Kind)
	assert.Equal(t, "snapshot", report.Failures[0].Stage)
	assert.Equal(t, "public.orders_v1", report.Failures[0].Dataset)
}

func TestOrchestratorExplicitKeysAreValidated(t *testing.T) {
	cfg := runConfig(config.ScopeRows)
	cfg.Reconcile.Keys = []string{"no_such_column"}

	orch := NewOrchestrator(cfg, happyPathFactory(), nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, report.Status)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, models.FailureKeyColumnNotFound, report.Failures[0].Kind)
	assert.Equal(t, "key_resolution", report.Failures[0].Stage)
	assert.False(t, report.KeysInferred)
	// No row work ran without a usable key.
	assert.Empty(t, report.RowDiffs)
}

func TestOrchestratorMissingRowsProduceWarning(t *testing.T) {
	factory := happyPathFactory()
	factory.reader = &mockRowReader{
		countRowsFunc: func(ctx context.Context, dataset models.DatasetHandle) (int64, error) {
			return 100, nil
		},
		antiJoinFunc: func(ctx context.Context, source, target models.DatasetHandle, keys models.KeySet, sampleLimit int) (*datasource.RowDiff, error) {
			if source.TableName == "orders_v1" {
				return &datasource.RowDiff{MissingCount: 4, Samples: []models.RowSample{{KeyTuple: []string{"11"}}}}, nil
			}
			return &datasource.RowDiff{}, nil
		},
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return nil, nil
		},
		checkKeyUniquenessFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (*datasource.UniquenessResult, error) {
			return &datasource.UniquenessResult{TotalRows: 100, DistinctKeys: 100}, nil
		},
	}

	orch := NewOrchestrator(runConfig(config.ScopeRows), factory, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusWarning, report.Status)
	require.Len(t, report.RowDiffs, 2)
	assert.Equal(t, int64(4), report.RowDiffs[0].MissingCount)
}

func TestOrchestratorSchemaScopeDetectsDrift(t *testing.T) {
	factory := happyPathFactory()
	factory.introspector = &mockIntrospector{
		describeColumnsFunc: func(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
			if dataset.TableName == "orders_v1" {
				return []models.ColumnDescriptor{
					{Name: "order_id", DataType: "integer", OrdinalPosition: 1},
					{Name: "legacy_flag", DataType: "boolean", OrdinalPosition: 2},
				}, nil
			}
			return []models.ColumnDescriptor{
				{Name: "order_id", DataType: "integer", OrdinalPosition: 1},
				{Name: "created_at", DataType: "timestamp", OrdinalPosition: 2},
			}, nil
		},
	}

	orch := NewOrchestrator(runConfig(config.ScopeSchema), factory, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusWarning, report.Status)
	require.Len(t, report.SchemaDrift, 1)
	drift := report.SchemaDrift[0]
	assert.Equal(t, "public.orders_v1", drift.BeforeDataset)
	assert.Equal(t, "public.orders_v2", drift.AfterDataset)
	assert.Len(t, drift.Added, 1)
	assert.Len(t, drift.Removed, 1)
	// Schema scope runs no row queries.
	assert.Empty(t, report.RowDiffs)
	assert.Empty(t, report.RecordCounts)
}
