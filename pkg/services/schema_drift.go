package services

import (
	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/models"
)

// SchemaDriftService compares two schema snapshots of nominally the same
// dataset and classifies the differences.
type SchemaDriftService interface {
	// Diff matches columns by name only, so a rename shows up as one
	// removal plus one addition. Ordinal position changes are ignored.
	Diff(before, after models.SchemaSnapshot) *models.SchemaDiff
}

type schemaDriftService struct {
	logger *zap.Logger
}

// NewSchemaDriftService creates a new SchemaDriftService.
func NewSchemaDriftService(logger *zap.Logger) SchemaDriftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &schemaDriftService{logger: logger}
}

var _ SchemaDriftService = (*schemaDriftService)(nil)

func (s *schemaDriftService) Diff(before, after models.SchemaSnapshot) *models.SchemaDiff {
	diff := &models.SchemaDiff{
		BeforeDataset: before.Dataset,
		AfterDataset:  after.Dataset,
	}

	for _, col := range before.Columns {
		other, ok := after.Column(col.Name)
		if !ok {
			diff.Removed = append(diff.Removed, col)
			continue
		}
		if fields := col.ChangedFields(other); len(fields) > 0 {
			diff.Changed = append(diff.Changed, models.ColumnChange{
				Name:   col.Name,
				Before: col,
				After:  other,
				Fields: fields,
			})
		}
	}

	for _, col := range after.Columns {
		if !before.HasColumn(col.Name) {
			diff.Added = append(diff.Added, col)
		}
	}

	if !diff.IsEmpty() {
		s.logger.Info("Schema drift detected",
			zap.String("before", before.Dataset),
			zap.String("after", after.Dataset),
			zap.Int("added", len(diff.Added)),
			zap.Int("removed", len(diff.Removed)),
			zap.Int("changed", len(diff.Changed)))
	}

	return diff
}
