package datasource

import (
	"context"

	"github.com/veridata-io/recon-engine/pkg/models"
)

// The engine depends on three narrow capabilities of a backing query
// engine, not on any specific catalog API. Each implementation owns its
// connection and must be closed when done. All capabilities are strictly
// read-only.

// SchemaIntrospector obtains a dataset's ordered column list from the
// backing catalog.
type SchemaIntrospector interface {
	// DescribeColumns returns the columns of a dataset in ordinal order.
	// A failure to reach the catalog wraps apperrors.ErrMetadataUnavailable
	// so callers can fall back to a supplied column list.
	DescribeColumns(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error)

	// Close releases the connection.
	Close() error
}

// RowReader executes row-identity queries: counts, anti-joins, and key
// scans over the resolved key columns.
type RowReader interface {
	// CountRows returns the total row count of a dataset.
	CountRows(ctx context.Context, dataset models.DatasetHandle) (int64, error)

	// AntiJoin counts source rows whose key-tuple has no match in target,
	// with up to sampleLimit example rows ordered by key. NULL key values
	// never match (standard relational equality). Both datasets must live
	// on this reader's connection.
	AntiJoin(ctx context.Context, source, target models.DatasetHandle, keys models.KeySet, sampleLimit int) (*RowDiff, error)

	// KeyTuples returns one key-tuple per row whose key values are all
	// non-NULL, ordered by key so output is deterministic. Used for
	// coverage checks that span two different backing connections; rows
	// excluded here are counted by CountNullKeys.
	KeyTuples(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error)

	// CountNullKeys returns the number of rows with a NULL in any key
	// column. Such rows can never match a target row.
	CountNullKeys(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (int64, error)

	// CheckKeyUniqueness reports total rows versus distinct key-tuples so
	// callers can validate an inferred key before trusting coverage
	// results. The engine itself never enforces uniqueness.
	CheckKeyUniqueness(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (*UniquenessResult, error)

	// Close releases the connection.
	Close() error
}

// Aggregator executes aggregate statistic queries, pushed to the backing
// engine rather than materializing rows.
type Aggregator interface {
	// ColumnStats computes the statistic set for one column according to
	// its declared category.
	ColumnStats(ctx context.Context, dataset models.DatasetHandle, spec models.ColumnSpec) (*ColumnStatsResult, error)

	// GroupedAggregate computes the named statistics of measureColumn per
	// distinct value of groupColumn. Ordering is the caller's concern.
	GroupedAggregate(ctx context.Context, dataset models.DatasetHandle, groupColumn, measureColumn string, stats []string) ([]models.GroupAggregate, error)

	// OverlapStats returns non-null and distinct counts for the given
	// columns on both source and target, side by side.
	OverlapStats(ctx context.Context, source, target models.DatasetHandle, columns []string) ([]models.ColumnOverlapStat, error)

	// Close releases the connection.
	Close() error
}

// ConnectionTester verifies a datasource is reachable with valid
// credentials before a run starts.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
	Close() error
}

// Statistic names accepted by GroupedAggregate.
const (
	StatCount = "count"
	StatSum   = "sum"
	StatAvg   = "avg"
	StatMin   = "min"
	StatMax   = "max"
)
