package services

import (
	"context"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// mockIntrospector implements datasource.SchemaIntrospector with function
// fields for test control.
type mockIntrospector struct {
	describeColumnsFunc func(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error)
}

func (m *mockIntrospector) DescribeColumns(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
	return m.describeColumnsFunc(ctx, dataset)
}

func (m *mockIntrospector) Close() error { return nil }

// mockRowReader implements datasource.RowReader with function fields.
type mockRowReader struct {
	countRowsFunc          func(ctx context.Context, dataset models.DatasetHandle) (int64, error)
	antiJoinFunc           func(ctx context.Context, source, target models.DatasetHandle, keys models.KeySet, sampleLimit int) (*datasource.RowDiff, error)
	keyTuplesFunc          func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error)
	countNullKeysFunc      func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (int64, error)
	checkKeyUniquenessFunc func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (*datasource.UniquenessResult, error)
}

func (m *mockRowReader) CountRows(ctx context.Context, dataset models.DatasetHandle) (int64, error) {
	return m.countRowsFunc(ctx, dataset)
}

func (m *mockRowReader) AntiJoin(ctx context.Context, source, target models.DatasetHandle, keys models.KeySet, sampleLimit int) (*datasource.RowDiff, error) {
	return m.antiJoinFunc(ctx, source, target, keys, sampleLimit)
}

func (m *mockRowReader) KeyTuples(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
	return m.keyTuplesFunc(ctx, dataset, keys)
}

func (m *mockRowReader) CountNullKeys(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (int64, error) {
	if m.countNullKeysFunc == nil {
		return 0, nil
	}
	return m.countNullKeysFunc(ctx, dataset, keys)
}

func (m *mockRowReader) CheckKeyUniqueness(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (*datasource.UniquenessResult, error) {
	return m.checkKeyUniquenessFunc(ctx, dataset, keys)
}

func (m *mockRowReader) Close() error { return nil }

// mockConnectionTester implements datasource.ConnectionTester. A nil
// testConnectionFunc reports the connection as healthy.
type mockConnectionTester struct {
	testConnectionFunc func(ctx context.Context) error
}

func (m *mockConnectionTester) TestConnection(ctx context.Context) error {
	if m.testConnectionFunc == nil {
		return nil
	}
	return m.testConnectionFunc(ctx)
}

func (m *mockConnectionTester) Close() error { return nil }

// mockAggregator implements datasource.Aggregator with function fields.
type mockAggregator struct {
	columnStatsFunc      func(ctx context.Context, dataset models.DatasetHandle, spec models.ColumnSpec) (*datasource.ColumnStatsResult, error)
	groupedAggregateFunc func(ctx context.Context, dataset models.DatasetHandle, groupColumn, measureColumn string, stats []string) ([]models.GroupAggregate, error)
	overlapStatsFunc     func(ctx context.Context, source, target models.DatasetHandle, columns []string) ([]models.ColumnOverlapStat, error)
}

func (m *mockAggregator) ColumnStats(ctx context.Context, dataset models.DatasetHandle, spec models.ColumnSpec) (*datasource.ColumnStatsResult, error) {
	return m.columnStatsFunc(ctx, dataset, spec)
}

func (m *mockAggregator) GroupedAggregate(ctx context.Context, dataset models.DatasetHandle, groupColumn, measureColumn string, stats []string) ([]models.GroupAggregate, error) {
	return m.groupedAggregateFunc(ctx, dataset, groupColumn, measureColumn, stats)
}

func (m *mockAggregator) OverlapStats(ctx context.Context, source, target models.DatasetHandle, columns []string) ([]models.ColumnOverlapStat, error) {
	return m.overlapStatsFunc(ctx, source, target, columns)
}

func (m *mockAggregator) Close() error { return nil }

// Compile-time checks.
var (
	_ datasource.SchemaIntrospector = (*mockIntrospector)(nil)
	_ datasource.RowReader          = (*mockRowReader)(nil)
	_ datasource.Aggregator         = (*mockAggregator)(nil)
	_ datasource.ConnectionTester   = (*mockConnectionTester)(nil)
)

// snapshotOf builds a snapshot from name/type pairs for test brevity.
func snapshotOf(dataset string, cols ...string) models.SchemaSnapshot {
	snap := models.SchemaSnapshot{Dataset: dataset}
	for i := 0; i+1 < len(cols); i += 2 {
		snap.Columns = append(snap.Columns, models.ColumnDescriptor{
			Name:            cols[i],
			DataType:        cols[i+1],
			OrdinalPosition: i/2 + 1,
		})
	}
	return snap
}
