package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

func boundOf(datasourceName, table string, reader datasource.RowReader) BoundDataset {
	return BoundDataset{
		Handle: models.DatasetHandle{Datasource: datasourceName, SchemaName: "public", TableName: table},
		Reader: reader,
	}
}

func TestCompareCounts(t *testing.T) {
	svc := NewRowReconciliationService(nil)

	counts := map[string]int64{"orders_v1": 120, "orders_v2": 115}
	reader := &mockRowReader{
		countRowsFunc: func(ctx context.Context, dataset models.DatasetHandle) (int64, error) {
			return counts[dataset.TableName], nil
		},
	}

	result, err := svc.CompareCounts(context.Background(),
		boundOf("dw", "orders_v1", reader), boundOf("dw", "orders_v2", reader))
	require.NoError(t, err)
	assert.Equal(t, int64(120), result.SourceCount)
	assert.Equal(t, int64(115), result.TargetCount)
	assert.Equal(t, int64(5), result.Difference)
}

func TestReconcileSameConnectionUsesAntiJoin(t *testing.T) {
	svc := NewRowReconciliationService(nil)
	keys := models.KeySet{"id"}

	reader := &mockRowReader{
		antiJoinFunc: func(ctx context.Context, source, target models.DatasetHandle, gotKeys models.KeySet, sampleLimit int) (*datasource.RowDiff, error) {
			assert.Equal(t, keys, gotKeys)
			assert.Equal(t, 5, sampleLimit)
			return &datasource.RowDiff{
				MissingCount: 2,
				Samples: []models.RowSample{
					{KeyTuple: []string{"7"}},
					{KeyTuple: []string{"9"}},
				},
			}, nil
		},
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			t.Fatal("key scan must not run when the anti-join can be pushed down")
			return nil, nil
		},
	}

	result, err := svc.Reconcile(context.Background(),
		boundOf("dw", "orders_v1", reader), boundOf("dw", "orders_v2", reader), keys, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.MissingCount)
	require.Len(t, result.SampleMissingRows, 2)
	assert.Equal(t, []string{"7"}, result.SampleMissingRows[0].KeyTuple)
}

func TestReconcileCrossConnectionDifferencesKeySets(t *testing.T) {
	svc := NewRowReconciliationService(nil)
	keys := models.KeySet{"id"}

	srcReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"1"}, {"2"}, {"3"}}, nil
		},
	}
	tgtReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"1"}, {"3"}}, nil
		},
	}

	result, err := svc.Reconcile(context.Background(),
		boundOf("legacy", "orders", srcReader), boundOf("dw", "orders", tgtReader), keys, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MissingCount)
	require.Len(t, result.SampleMissingRows, 1)
	assert.Equal(t, []string{"2"}, result.SampleMissingRows[0].KeyTuple)
}

func TestReconcileCrossConnectionCountsNullKeyRows(t *testing.T) {
	svc := NewRowReconciliationService(nil)
	keys := models.KeySet{"id"}

	// Key scans skip NULL keys, so those rows arrive via the null count.
	srcReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"1"}, {"2"}}, nil
		},
		countNullKeysFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (int64, error) {
			return 3, nil
		},
	}
	tgtReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"1"}, {"2"}}, nil
		},
	}

	result, err := svc.Reconcile(context.Background(),
		boundOf("legacy", "orders", srcReader), boundOf("dw", "orders", tgtReader), keys, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.MissingCount)
	assert.Empty(t, result.SampleMissingRows)
}

func TestReconcileCrossConnectionCountsRowsNotDistinctKeys(t *testing.T) {
	svc := NewRowReconciliationService(nil)
	keys := models.KeySet{"id"}

	// Three source rows share one key absent from the target; all three
	// count missing, the sample lists the key once.
	srcReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"1"}, {"2"}, {"2"}, {"2"}}, nil
		},
	}
	tgtReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"1"}}, nil
		},
	}

	result, err := svc.Reconcile(context.Background(),
		boundOf("legacy", "orders", srcReader), boundOf("dw", "orders", tgtReader), keys, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.MissingCount)
	require.Len(t, result.SampleMissingRows, 1)
	assert.Equal(t, []string{"2"}, result.SampleMissingRows[0].KeyTuple)
}

func TestReconcileEmptyKeySet(t *testing.T) {
	svc := NewRowReconciliationService(nil)

	_, err := svc.Reconcile(context.Background(),
		boundOf("dw", "a", &mockRowReader{}), boundOf("dw", "b", &mockRowReader{}), models.KeySet{}, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyKeySet))
}

func TestReconcileUnion(t *testing.T) {
	svc := NewRowReconciliationService(nil)
	keys := models.KeySet{"id"}

	tuplesByTable := map[string][][]string{
		"shard_a": {{"1"}, {"2"}},
		"shard_b": {{"2"}, {"3"}, {"4"}},
		"merged":  {{"1"}, {"2"}, {"3"}},
	}
	reader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return tuplesByTable[dataset.TableName], nil
		},
	}

	result, err := svc.ReconcileUnion(context.Background(),
		[]BoundDataset{boundOf("dw", "shard_a", reader), boundOf("dw", "shard_b", reader)},
		boundOf("dw", "merged", reader), keys, 5)
	require.NoError(t, err)
	assert.Equal(t, "merged", result.TargetName)
	assert.Equal(t, int64(1), result.MissingKeyCount)
	assert.Equal(t, [][]string{{"4"}}, result.SampleMissingKeys)
}

func TestReconcileUnionFullCoverage(t *testing.T) {
	svc := NewRowReconciliationService(nil)

	reader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"1"}, {"2"}}, nil
		},
	}

	result, err := svc.ReconcileUnion(context.Background(),
		[]BoundDataset{boundOf("dw", "shard_a", reader)},
		boundOf("dw", "merged", reader), models.KeySet{"id"}, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.MissingKeyCount)
	assert.Empty(t, result.SampleMissingKeys)
}

func TestReconcileUnionSamplesAreCappedAndSorted(t *testing.T) {
	svc := NewRowReconciliationService(nil)

	srcReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return [][]string{{"9"}, {"3"}, {"5"}, {"1"}, {"7"}, {"2"}, {"8"}}, nil
		},
	}
	tgtReader := &mockRowReader{
		keyTuplesFunc: func(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
			return nil, nil
		},
	}

	result, err := svc.ReconcileUnion(context.Background(),
		[]BoundDataset{boundOf("legacy", "orders", srcReader)},
		boundOf("dw", "orders", tgtReader), models.KeySet{"id"}, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.MissingKeyCount)
	// Capped at the sample ceiling and sorted for determinism.
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"3"}, {"5"}, {"7"}}, result.SampleMissingKeys)
}

func TestTupleDifferenceCompositeKeys(t *testing.T) {
	a := [][]string{{"1", "east"}, {"1", "west"}, {"2", "east"}}
	b := [][]string{{"1", "east"}, {"2", "east"}}

	missing := tupleDifference(a, b)
	assert.Equal(t, [][]string{{"1", "west"}}, missing)
}
