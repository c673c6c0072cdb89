package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// GroupByRequest is one grouped-aggregate request against a dataset.
type GroupByRequest struct {
	GroupColumn   string
	MeasureColumn string
	Stats         []string
	PrimaryStat   string
}

// ProfilerService computes aggregate statistics over datasets, pushing all
// aggregation to the backing engine.
type ProfilerService interface {
	// Profile computes one ColumnProfile per spec. A failing column is
	// skipped and reported as a failure; the remaining columns still
	// profile.
	Profile(ctx context.Context, agg datasource.Aggregator, dataset models.DatasetHandle, specs []models.ColumnSpec) ([]models.ColumnProfile, []models.Failure)

	// AggregateBy computes grouped statistics, ordered by the primary stat
	// descending, then row count descending, then group value, so output
	// is reproducible.
	AggregateBy(ctx context.Context, agg datasource.Aggregator, dataset models.DatasetHandle, req GroupByRequest) (*models.GroupedAggregateResult, error)
}

type profilerService struct {
	logger *zap.Logger
}

// NewProfilerService creates a new ProfilerService.
func NewProfilerService(logger *zap.Logger) ProfilerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &profilerService{logger: logger}
}

var _ ProfilerService = (*profilerService)(nil)

func (s *profilerService) Profile(ctx context.Context, agg datasource.Aggregator, dataset models.DatasetHandle, specs []models.ColumnSpec) ([]models.ColumnProfile, []models.Failure) {
	var profiles []models.ColumnProfile
	var failures []models.Failure

	for _, spec := range specs {
		stats, err := agg.ColumnStats(ctx, dataset, spec)
		if err != nil {
			s.logger.Warn("Column profile failed",
				zap.String("dataset", dataset.Name()),
				zap.String("column", spec.Name),
				zap.Error(err))
			failure := wrapQueryFailure("profile", dataset.Name(), nil, err)
			failure.Column = spec.Name
			failures = append(failures, failure)
			continue
		}

		profiles = append(profiles, models.ColumnProfile{
			Dataset:      dataset.Name(),
			Column:       stats.Column,
			Category:     stats.Category,
			TotalRows:    stats.TotalRows,
			NonNullCount: stats.NonNullCount,
			NullCount:    stats.NullCount,
			NullPercent:  models.NullPercentOf(stats.NullCount, stats.TotalRows),
			Numeric:      stats.Numeric,
			String:       stats.String,
			Temporal:     stats.Temporal,
		})
	}

	return profiles, failures
}

func (s *profilerService) AggregateBy(ctx context.Context, agg datasource.Aggregator, dataset models.DatasetHandle, req GroupByRequest) (*models.GroupedAggregateResult, error) {
	groups, err := agg.GroupedAggregate(ctx, dataset, req.GroupColumn, req.MeasureColumn, req.Stats)
	if err != nil {
		return nil, err
	}

	primary := req.PrimaryStat
	if primary == "" && len(req.Stats) > 0 {
		primary = req.Stats[0]
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Stats[primary] != b.Stats[primary] {
			return a.Stats[primary] > b.Stats[primary]
		}
		if a.RowCount != b.RowCount {
			return a.RowCount > b.RowCount
		}
		return a.GroupValue < b.GroupValue
	})

	return &models.GroupedAggregateResult{
		Dataset:       dataset.Name(),
		GroupColumn:   req.GroupColumn,
		MeasureColumn: req.MeasureColumn,
		PrimaryStat:   primary,
		Groups:        groups,
	}, nil
}
