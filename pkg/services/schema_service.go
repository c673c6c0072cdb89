package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// CommonColumnsResult is the merged column view across several snapshots.
type CommonColumnsResult struct {
	// Columns present in every snapshot, in the first snapshot's ordinal
	// order. The first-seen descriptor wins on shape conflicts.
	Columns []models.ColumnDescriptor
	// Conflicts lists columns whose shape differed between snapshots.
	Conflicts []models.ColumnConflict
}

// SchemaService captures schema snapshots and merges them across datasets.
type SchemaService interface {
	// Snapshot describes a dataset through live introspection. When the
	// catalog is unavailable and fallbackColumns were supplied, the
	// snapshot is built from those instead and marked as a fallback.
	// Without a fallback the ErrMetadataUnavailable error propagates.
	Snapshot(ctx context.Context, introspector datasource.SchemaIntrospector, dataset models.DatasetHandle, fallbackColumns []models.ColumnDescriptor) (*models.SchemaSnapshot, error)

	// CommonColumns intersects the given snapshots case-insensitively.
	CommonColumns(snapshots []models.SchemaSnapshot) *CommonColumnsResult
}

type schemaService struct {
	logger *zap.Logger
}

// NewSchemaService creates a new SchemaService.
func NewSchemaService(logger *zap.Logger) SchemaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &schemaService{logger: logger}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) Snapshot(ctx context.Context, introspector datasource.SchemaIntrospector, dataset models.DatasetHandle, fallbackColumns []models.ColumnDescriptor) (*models.SchemaSnapshot, error) {
	columns, err := introspector.DescribeColumns(ctx, dataset)
	if err != nil {
		if errors.Is(err, apperrors.ErrMetadataUnavailable) && len(fallbackColumns) > 0 {
			s.logger.Warn("Catalog unavailable, using caller-supplied columns",
				zap.String("dataset", dataset.Name()),
				zap.Error(err))
			return &models.SchemaSnapshot{
				Dataset:    dataset.Name(),
				Columns:    fallbackColumns,
				CapturedAt: time.Now().UTC(),
				Fallback:   true,
			}, nil
		}
		return nil, fmt.Errorf("snapshot %s: %w", dataset.Name(), err)
	}

	return &models.SchemaSnapshot{
		Dataset:    dataset.Name(),
		Columns:    columns,
		CapturedAt: time.Now().UTC(),
	}, nil
}

func (s *schemaService) CommonColumns(snapshots []models.SchemaSnapshot) *CommonColumnsResult {
	result := &CommonColumnsResult{}
	if len(snapshots) == 0 {
		return result
	}

	for _, col := range snapshots[0].Columns {
		kept := col
		keptFrom := snapshots[0].Dataset
		common := true

		for _, snap := range snapshots[1:] {
			other, ok := snap.Column(col.Name)
			if !ok {
				common = false
				break
			}
			if !kept.SameShape(other) {
				result.Conflicts = append(result.Conflicts, models.ColumnConflict{
					ColumnName:  col.Name,
					KeptFrom:    keptFrom,
					Kept:        kept,
					Conflicting: snap.Dataset,
					Dropped:     other,
				})
			}
		}

		if common {
			result.Columns = append(result.Columns, kept)
		}
	}

	return result
}

// lowerNames returns the lowercased column names of a snapshot as a set.
func lowerNames(snap models.SchemaSnapshot) map[string]struct{} {
	names := make(map[string]struct{}, len(snap.Columns))
	for _, col := range snap.Columns {
		names[strings.ToLower(col.Name)] = struct{}{}
	}
	return names
}
