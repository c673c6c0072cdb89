package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// BoundDataset pairs a dataset handle with the row reader of its backing
// connection.
type BoundDataset struct {
	Handle models.DatasetHandle
	Reader datasource.RowReader
}

// RowReconciliationService answers which rows of one dataset are missing
// from another, by key-tuple.
type RowReconciliationService interface {
	// CompareCounts returns the row counts of a source/target pair.
	CompareCounts(ctx context.Context, source, target BoundDataset) (*models.RecordCountComparison, error)

	// Reconcile finds source rows whose key-tuple has no match in target.
	// When both datasets share a backing connection the anti-join is pushed
	// down; otherwise both key sets are scanned and differenced here. A
	// NULL key value never matches, so rows carrying one count as missing
	// on either path.
	Reconcile(ctx context.Context, source, target BoundDataset, keys models.KeySet, sampleLimit int) (*models.RowDiffResult, error)

	// ReconcileUnion checks the union of all source key-tuples against the
	// target: a key counted here exists in some source but not in target.
	ReconcileUnion(ctx context.Context, sources []BoundDataset, target BoundDataset, keys models.KeySet, sampleLimit int) (*models.UnionCoverageResult, error)
}

type rowReconciliationService struct {
	logger *zap.Logger
}

// NewRowReconciliationService creates a new RowReconciliationService.
func NewRowReconciliationService(logger *zap.Logger) RowReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rowReconciliationService{logger: logger}
}

var _ RowReconciliationService = (*rowReconciliationService)(nil)

func (s *rowReconciliationService) CompareCounts(ctx context.Context, source, target BoundDataset) (*models.RecordCountComparison, error) {
	srcCount, err := source.Reader.CountRows(ctx, source.Handle)
	if err != nil {
		return nil, err
	}
	tgtCount, err := target.Reader.CountRows(ctx, target.Handle)
	if err != nil {
		return nil, err
	}

	return &models.RecordCountComparison{
		SourceName:  source.Handle.Name(),
		TargetName:  target.Handle.Name(),
		SourceCount: srcCount,
		TargetCount: tgtCount,
		Difference:  srcCount - tgtCount,
	}, nil
}

func (s *rowReconciliationService) Reconcile(ctx context.Context, source, target BoundDataset, keys models.KeySet, sampleLimit int) (*models.RowDiffResult, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}

	result := &models.RowDiffResult{
		SourceName: source.Handle.Name(),
		TargetName: target.Handle.Name(),
	}

	if source.Handle.Datasource == target.Handle.Datasource {
		diff, err := source.Reader.AntiJoin(ctx, source.Handle, target.Handle, keys, sampleLimit)
		if err != nil {
			return nil, err
		}
		result.MissingCount = diff.MissingCount
		result.SampleMissingRows = diff.Samples
		return result, nil
	}

	// The datasets live on different connections, so the anti-join cannot
	// be pushed down. Scan one key-tuple per source row and difference the
	// sets here; samples then carry key-tuples only. Source rows with a
	// NULL key value can never match and are counted missing as well, so
	// both reconcile paths report the same row counts.
	srcTuples, err := source.Reader.KeyTuples(ctx, source.Handle, keys)
	if err != nil {
		return nil, err
	}
	tgtTuples, err := target.Reader.KeyTuples(ctx, target.Handle, keys)
	if err != nil {
		return nil, err
	}
	nullKeyRows, err := source.Reader.CountNullKeys(ctx, source.Handle, keys)
	if err != nil {
		return nil, err
	}

	missing := tupleDifference(srcTuples, tgtTuples)
	result.MissingCount = int64(len(missing)) + nullKeyRows
	for _, tuple := range capTuples(uniqueTuples(missing), sampleLimit) {
		result.SampleMissingRows = append(result.SampleMissingRows, models.RowSample{KeyTuple: tuple})
	}

	s.logger.Debug("Cross-connection reconcile complete",
		zap.String("source", result.SourceName),
		zap.String("target", result.TargetName),
		zap.Int64("missing", result.MissingCount))

	return result, nil
}

func (s *rowReconciliationService) ReconcileUnion(ctx context.Context, sources []BoundDataset, target BoundDataset, keys models.KeySet, sampleLimit int) (*models.UnionCoverageResult, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("union coverage needs at least one source")
	}

	union := make(map[string][]string)
	for _, source := range sources {
		tuples, err := source.Reader.KeyTuples(ctx, source.Handle, keys)
		if err != nil {
			return nil, fmt.Errorf("union key scan of %s: %w", source.Handle.Name(), err)
		}
		for _, tuple := range tuples {
			union[tupleKey(tuple)] = tuple
		}
	}

	tgtTuples, err := target.Reader.KeyTuples(ctx, target.Handle, keys)
	if err != nil {
		return nil, fmt.Errorf("union key scan of %s: %w", target.Handle.Name(), err)
	}
	for _, tuple := range tgtTuples {
		delete(union, tupleKey(tuple))
	}

	missing := make([][]string, 0, len(union))
	for _, tuple := range union {
		missing = append(missing, tuple)
	}
	sortTuples(missing)

	return &models.UnionCoverageResult{
		TargetName:        target.Handle.Name(),
		MissingKeyCount:   int64(len(missing)),
		SampleMissingKeys: capTuples(missing, sampleLimit),
	}, nil
}

// tupleKey joins a key-tuple into one map key. The unit separator cannot
// occur in the rendered values.
func tupleKey(tuple []string) string {
	return strings.Join(tuple, "\x1f")
}

// tupleDifference returns the tuples of a that are absent from b, in a's
// order.
func tupleDifference(a, b [][]string) [][]string {
	present := make(map[string]struct{}, len(b))
	for _, tuple := range b {
		present[tupleKey(tuple)] = struct{}{}
	}

	var missing [][]string
	for _, tuple := range a {
		if _, ok := present[tupleKey(tuple)]; !ok {
			missing = append(missing, tuple)
		}
	}
	return missing
}

// uniqueTuples drops adjacent duplicates from an ordered tuple list, so
// samples list each missing key once even when source keys repeat.
func uniqueTuples(tuples [][]string) [][]string {
	var out [][]string
	for i, tuple := range tuples {
		if i > 0 && tupleKey(tuple) == tupleKey(tuples[i-1]) {
			continue
		}
		out = append(out, tuple)
	}
	return out
}

// sortTuples orders tuples lexicographically so samples are deterministic.
func sortTuples(tuples [][]string) {
	sort.Slice(tuples, func(i, j int) bool {
		return tupleKey(tuples[i]) < tupleKey(tuples[j])
	})
}

func capTuples(tuples [][]string, limit int) [][]string {
	if limit <= 0 || len(tuples) == 0 {
		return nil
	}
	if limit > models.MaxSampleRows {
		limit = models.MaxSampleRows
	}
	if len(tuples) > limit {
		tuples = tuples[:limit]
	}
	return tuples
}

// wrapQueryFailure classifies a reconciliation error into a report failure.
func wrapQueryFailure(stage, dataset string, keys models.KeySet, err error) models.Failure {
	kind := models.FailureQueryExecution
	switch {
	case errors.Is(err, apperrors.ErrEmptyKeySet):
		kind = models.FailureEmptyKeySet
	case errors.Is(err, apperrors.ErrKeyColumnNotFound):
		kind = models.FailureKeyColumnNotFound
	case errors.Is(err, apperrors.ErrNoCommonKey):
		kind = models.FailureNoCommonKey
	case errors.Is(err, apperrors.ErrMetadataUnavailable):
		kind = models.FailureMetadataUnavailable
	}
	return models.Failure{
		Kind:    kind,
		Stage:   stage,
		Dataset: dataset,
		Keys:    keys,
		Message: err.Error(),
	}
}
