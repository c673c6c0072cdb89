package datasource

import "github.com/veridata-io/recon-engine/pkg/models"

// RowDiff is the raw outcome of an anti-join between a source and a target.
type RowDiff struct {
	MissingCount int64
	Samples      []models.RowSample
}

// ColumnStatsResult holds the statistics for one column. Exactly one of
// Numeric, String, Temporal is populated, matching the requested category;
// the "other" category carries the counts only.
type ColumnStatsResult struct {
	Column       string
	Category     models.ColumnCategory
	TotalRows    int64
	NonNullCount int64
	NullCount    int64

	Numeric  *models.NumericStats
	String   *models.StringStats
	Temporal *models.TemporalStats
}

// UniquenessResult reports total rows against distinct key-tuples.
type UniquenessResult struct {
	TotalRows    int64
	DistinctKeys int64
}

// IsUnique reports whether the key-tuple identifies rows one-to-one.
func (u UniquenessResult) IsUnique() bool {
	return u.TotalRows == u.DistinctKeys
}
