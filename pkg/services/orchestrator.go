package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/config"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// Orchestrator runs one full reconciliation: snapshots, key resolution,
// row and schema comparisons, and profiling, then assembles the report.
type Orchestrator interface {
	// Run executes the configured reconciliation. An unreachable target
	// wraps apperrors.ErrTargetUnavailable and fails the run; any other
	// failure is scoped to its comparison and collected in the report.
	Run(ctx context.Context) (*models.ReconciliationReport, error)
}

type orchestrator struct {
	cfg      *config.Config
	factory  datasource.AdapterFactory
	schemas  SchemaService
	keys     KeyInferenceService
	rows     RowReconciliationService
	drift    SchemaDriftService
	profiler ProfilerService
	builder  ReportBuilder
	logger   *zap.Logger
}

// NewOrchestrator wires the reconciliation services together.
func NewOrchestrator(cfg *config.Config, factory datasource.AdapterFactory, logger *zap.Logger) Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orchestrator{
		cfg:      cfg,
		factory:  factory,
		schemas:  NewSchemaService(logger.Named("schema")),
		keys:     NewKeyInferenceService(logger.Named("keys")),
		rows:     NewRowReconciliationService(logger.Named("rows")),
		drift:    NewSchemaDriftService(logger.Named("drift")),
		profiler: NewProfilerService(logger.Named("profiler")),
		builder:  NewReportBuilder(logger.Named("report")),
		logger:   logger,
	}
}

var _ Orchestrator = (*orchestrator)(nil)

// connections holds one capability set per datasource name, shared by every
// dataset on that connection.
type connections struct {
	introspectors map[string]datasource.SchemaIntrospector
	readers       map[string]datasource.RowReader
	aggregators   map[string]datasource.Aggregator
}

func (c *connections) closeAll(logger *zap.Logger) {
	for name, conn := range c.introspectors {
		if err := conn.Close(); err != nil {
			logger.Warn("Close introspector", zap.String("datasource", name), zap.Error(err))
		}
	}
	for name, conn := range c.readers {
		if err := conn.Close(); err != nil {
			logger.Warn("Close row reader", zap.String("datasource", name), zap.Error(err))
		}
	}
	for name, conn := range c.aggregators {
		if err := conn.Close(); err != nil {
			logger.Warn("Close aggregator", zap.String("datasource", name), zap.Error(err))
		}
	}
}

// sourceResult is the partial result of one source comparison, produced by
// its own goroutine and merged into the report once, after all workers
// finish.
type sourceResult struct {
	source   models.DatasetHandle
	counts   *models.RecordCountComparison
	rowDiffs []models.RowDiffResult
	drift    *models.SchemaDiff
	profiles []models.ColumnProfile
	overlap  *models.OverlapComparison
	failures []models.Failure
}

func (o *orchestrator) Run(ctx context.Context) (*models.ReconciliationReport, error) {
	target, err := o.cfg.TargetDataset()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTargetUnavailable, err)
	}
	sources, err := o.cfg.SourceDatasets()
	if err != nil {
		return nil, err
	}

	conns, err := o.connect(ctx, target, sources)
	if err != nil {
		return nil, err
	}
	defer conns.closeAll(o.logger)

	draft := models.ReconciliationReport{TargetName: target.Name()}

	// An unreadable catalog falls back to the explicitly configured keys
	// as a minimal column list, so the run survives on explicit keys.
	fallback := o.fallbackColumns()

	// The target snapshot is the reference everything compares against;
	// without it there is nothing to reconcile.
	targetSnap, err := o.schemas.Snapshot(ctx, conns.introspectors[target.Datasource], target, fallback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTargetUnavailable, err)
	}
	draft.Schemas = append(draft.Schemas, *targetSnap)

	// Snapshot sources. A source whose schema cannot be read is dropped
	// from the run with a scoped failure; the others still reconcile.
	var live []models.DatasetHandle
	var liveSnaps []models.SchemaSnapshot
	for _, source := range sources {
		snap, err := o.schemas.Snapshot(ctx, conns.introspectors[source.Datasource], source, fallback)
		if err != nil {
			draft.Failures = append(draft.Failures, wrapQueryFailure("snapshot", source.Name(), nil, err))
			continue
		}
		live = append(live, source)
		liveSnaps = append(liveSnaps, *snap)
		draft.Schemas = append(draft.Schemas, *snap)
	}
	if len(live) == 0 {
		o.logger.Error("No source dataset could be snapshotted")
		return o.builder.Build(draft), nil
	}

	allSnaps := append([]models.SchemaSnapshot{*targetSnap}, liveSnaps...)

	keys, inferred, err := o.resolveKeys(allSnaps)
	if err != nil {
		draft.Failures = append(draft.Failures, wrapQueryFailure("key_resolution", target.Name(), keys, err))
		return o.builder.Build(draft), nil
	}
	draft.Keys = keys
	draft.KeysInferred = inferred

	// An inferred key is a guess; check it actually identifies target rows
	// before trusting coverage numbers built on it.
	if inferred {
		uniq, err := conns.readers[target.Datasource].CheckKeyUniqueness(ctx, target, keys)
		if err != nil {
			o.logger.Warn("Key uniqueness check failed",
				zap.String("dataset", target.Name()),
				zap.Error(err))
		} else if !uniq.IsUnique() {
			o.logger.Warn("Inferred key is not unique on target",
				zap.String("dataset", target.Name()),
				zap.String("keys", keys.String()),
				zap.Int64("total_rows", uniq.TotalRows),
				zap.Int64("distinct_keys", uniq.DistinctKeys))
		}
	}

	scope := o.cfg.Reconcile.Scope

	// Each source is compared on its own goroutine; results stay private
	// to the worker and are merged exactly once below.
	results := make([]*sourceResult, len(live))
	var wg sync.WaitGroup
	for i, source := range live {
		wg.Add(1)
		go func(i int, source models.DatasetHandle, snap models.SchemaSnapshot) {
			defer wg.Done()
			results[i] = o.compareSource(ctx, conns, source, snap, target, *targetSnap, keys, scope)
		}(i, source, liveSnaps[i])
	}
	wg.Wait()

	for _, res := range results {
		if res.counts != nil {
			draft.RecordCounts = append(draft.RecordCounts, *res.counts)
		}
		draft.RowDiffs = append(draft.RowDiffs, res.rowDiffs...)
		if res.drift != nil && !res.drift.IsEmpty() {
			draft.SchemaDrift = append(draft.SchemaDrift, *res.drift)
		}
		draft.Profiles = append(draft.Profiles, res.profiles...)
		if res.overlap != nil {
			draft.Overlaps = append(draft.Overlaps, *res.overlap)
		}
		draft.Failures = append(draft.Failures, res.failures...)
	}

	if scope == config.ScopeUnion || scope == config.ScopeFull {
		bound := make([]BoundDataset, 0, len(live))
		for _, source := range live {
			bound = append(bound, BoundDataset{Handle: source, Reader: conns.readers[source.Datasource]})
		}
		targetBound := BoundDataset{Handle: target, Reader: conns.readers[target.Datasource]}

		coverage, err := o.rows.ReconcileUnion(ctx, bound, targetBound, keys, o.cfg.Reconcile.SampleLimit)
		if err != nil {
			draft.Failures = append(draft.Failures, wrapQueryFailure("union_coverage", target.Name(), keys, err))
		} else {
			draft.UnionCoverage = coverage
		}
	}

	if scope == config.ScopeFull {
		merged := o.schemas.CommonColumns(allSnaps)
		draft.ColumnConflicts = merged.Conflicts

		o.profileTarget(ctx, conns, target, *targetSnap, &draft)
		o.aggregate(ctx, conns, target, &draft)
	}

	return o.builder.Build(draft), nil
}

// connect opens one capability set per distinct datasource referenced by
// the run, failing fast when the target's datasource is unreachable.
func (o *orchestrator) connect(ctx context.Context, target models.DatasetHandle, sources []models.DatasetHandle) (*connections, error) {
	conns := &connections{
		introspectors: make(map[string]datasource.SchemaIntrospector),
		readers:       make(map[string]datasource.RowReader),
		aggregators:   make(map[string]datasource.Aggregator),
	}

	names := []string{target.Datasource}
	for _, source := range sources {
		names = append(names, source.Datasource)
	}

	for _, name := range names {
		if _, done := conns.readers[name]; done {
			continue
		}
		entry := o.cfg.Datasources[name]

		tester, err := o.factory.NewConnectionTester(ctx, entry.Type, entry.Settings)
		if err != nil {
			conns.closeAll(o.logger)
			return nil, o.connectErr(name, target, err)
		}
		pingErr := tester.TestConnection(ctx)
		if err := tester.Close(); err != nil {
			o.logger.Warn("Close connection tester", zap.String("datasource", name), zap.Error(err))
		}
		if pingErr != nil {
			// Only the target is fatal here; a dead source surfaces as
			// scoped failures once its queries run.
			if name == target.Datasource {
				conns.closeAll(o.logger)
				return nil, o.connectErr(name, target, pingErr)
			}
			o.logger.Warn("Datasource unreachable",
				zap.String("datasource", name),
				zap.Error(pingErr))
		}

		introspector, err := o.factory.NewSchemaIntrospector(ctx, entry.Type, entry.Settings)
		if err != nil {
			conns.closeAll(o.logger)
			return nil, o.connectErr(name, target, err)
		}
		conns.introspectors[name] = introspector

		reader, err := o.factory.NewRowReader(ctx, entry.Type, entry.Settings)
		if err != nil {
			conns.closeAll(o.logger)
			return nil, o.connectErr(name, target, err)
		}
		conns.readers[name] = reader

		aggregator, err := o.factory.NewAggregator(ctx, entry.Type, entry.Settings)
		if err != nil {
			conns.closeAll(o.logger)
			return nil, o.connectErr(name, target, err)
		}
		conns.aggregators[name] = aggregator
	}

	return conns, nil
}

func (o *orchestrator) connectErr(name string, target models.DatasetHandle, err error) error {
	if name == target.Datasource {
		return fmt.Errorf("%w: connect %s: %v", apperrors.ErrTargetUnavailable, name, err)
	}
	return fmt.Errorf("connect %s: %w", name, err)
}

// fallbackColumns builds a minimal column list from the explicitly
// configured keys, used when a catalog cannot be read.
func (o *orchestrator) fallbackColumns() []models.ColumnDescriptor {
	cols := make([]models.ColumnDescriptor, 0, len(o.cfg.Reconcile.Keys))
	for i, key := range o.cfg.Reconcile.Keys {
		cols = append(cols, models.ColumnDescriptor{Name: key, OrdinalPosition: i + 1})
	}
	return cols
}

// resolveKeys validates explicit keys or infers them from the snapshots.
func (o *orchestrator) resolveKeys(snapshots []models.SchemaSnapshot) (models.KeySet, bool, error) {
	if len(o.cfg.Reconcile.Keys) > 0 {
		keys := models.KeySet(o.cfg.Reconcile.Keys)
		if err := o.keys.ValidateKeys(keys, snapshots); err != nil {
			return keys, false, err
		}
		return keys, false, nil
	}

	keys, err := o.keys.InferKeys(snapshots, o.cfg.Reconcile.CompositeFallback)
	if err != nil {
		return nil, true, err
	}
	return keys, true, nil
}

// compareSource runs every scoped check for one source against the target.
func (o *orchestrator) compareSource(ctx context.Context, conns *connections, source models.DatasetHandle, sourceSnap models.SchemaSnapshot, target models.DatasetHandle, targetSnap models.SchemaSnapshot, keys models.KeySet, scope string) *sourceResult {
	res := &sourceResult{source: source}

	srcBound := BoundDataset{Handle: source, Reader: conns.readers[source.Datasource]}
	tgtBound := BoundDataset{Handle: target, Reader: conns.readers[target.Datasource]}

	if scope == config.ScopeRows || scope == config.ScopeFull {
		counts, err := o.rows.CompareCounts(ctx, srcBound, tgtBound)
		if err != nil {
			res.failures = append(res.failures, wrapQueryFailure("record_counts", source.Name(), nil, err))
		} else {
			res.counts = counts
		}

		// Both directions: rows the target is missing, then rows the
		// target has that no longer exist in the source.
		sampleLimit := o.cfg.Reconcile.SampleLimit
		forward, err := o.rows.Reconcile(ctx, srcBound, tgtBound, keys, sampleLimit)
		if err != nil {
			res.failures = append(res.failures, wrapQueryFailure("row_reconcile", source.Name(), keys, err))
		} else {
			res.rowDiffs = append(res.rowDiffs, *forward)
		}
		reverse, err := o.rows.Reconcile(ctx, tgtBound, srcBound, keys, sampleLimit)
		if err != nil {
			res.failures = append(res.failures, wrapQueryFailure("row_reconcile", target.Name(), keys, err))
		} else {
			res.rowDiffs = append(res.rowDiffs, *reverse)
		}
	}

	if scope == config.ScopeSchema || scope == config.ScopeFull {
		// A fallback snapshot carries no real type info, so there is
		// nothing meaningful to diff.
		if !sourceSnap.Fallback && !targetSnap.Fallback {
			res.drift = o.drift.Diff(sourceSnap, targetSnap)
		}
	}

	if scope == config.ScopeFull {
		specs := o.profileSpecs(sourceSnap)
		profiles, failures := o.profiler.Profile(ctx, conns.aggregators[source.Datasource], source, specs)
		res.profiles = profiles
		res.failures = append(res.failures, failures...)

		if source.Datasource == target.Datasource {
			columns := commonColumnNames([]models.SchemaSnapshot{sourceSnap, targetSnap})
			overlap, err := conns.aggregators[source.Datasource].OverlapStats(ctx, source, target, columns)
			if err != nil {
				res.failures = append(res.failures, wrapQueryFailure("overlap", source.Name(), nil, err))
			} else if len(overlap) > 0 {
				res.overlap = &models.OverlapComparison{
					SourceName: source.Name(),
					TargetName: target.Name(),
					Columns:    overlap,
				}
			}
		}
	}

	return res
}

// profileSpecs selects the columns to profile on a dataset: the configured
// list when present, otherwise every column, categorized by declared type.
func (o *orchestrator) profileSpecs(snap models.SchemaSnapshot) []models.ColumnSpec {
	wanted := o.cfg.Profile.Columns

	var specs []models.ColumnSpec
	for _, col := range snap.Columns {
		if len(wanted) > 0 && !models.KeySet(wanted).Contains(col.Name) {
			continue
		}
		specs = append(specs, models.ColumnSpec{
			Name:     col.Name,
			Category: models.CategorizeDataType(col.DataType),
		})
	}

	sort.SliceStable(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// profileTarget profiles the target dataset itself.
func (o *orchestrator) profileTarget(ctx context.Context, conns *connections, target models.DatasetHandle, snap models.SchemaSnapshot, draft *models.ReconciliationReport) {
	specs := o.profileSpecs(snap)
	profiles, failures := o.profiler.Profile(ctx, conns.aggregators[target.Datasource], target, specs)
	draft.Profiles = append(draft.Profiles, profiles...)
	draft.Failures = append(draft.Failures, failures...)
}

// aggregate runs the configured grouped aggregates against the target.
func (o *orchestrator) aggregate(ctx context.Context, conns *connections, target models.DatasetHandle, draft *models.ReconciliationReport) {
	for _, spec := range o.cfg.Profile.GroupBy {
		result, err := o.profiler.AggregateBy(ctx, conns.aggregators[target.Datasource], target, GroupByRequest{
			GroupColumn:   spec.GroupColumn,
			MeasureColumn: spec.MeasureColumn,
			Stats:         spec.Stats,
			PrimaryStat:   spec.PrimaryStatOf(),
		})
		if err != nil {
			failure := wrapQueryFailure("aggregate", target.Name(), nil, err)
			failure.Column = spec.GroupColumn
			draft.Failures = append(draft.Failures, failure)
			continue
		}
		draft.Aggregates = append(draft.Aggregates, *result)
	}
}
