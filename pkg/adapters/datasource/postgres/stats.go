//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// ColumnStats computes the statistic set for one column according to its
// declared category. All aggregation is pushed to the server; no rows are
// materialized.
func (c *Conn) ColumnStats(ctx context.Context, dataset models.DatasetHandle, spec models.ColumnSpec) (*datasource.ColumnStatsResult, error) {
	tableRef := qualifiedTableName(dataset.SchemaName, dataset.TableName)
	col := pgx.Identifier{spec.Name}.Sanitize()

	result := &datasource.ColumnStatsResult{Column: spec.Name, Category: spec.Category}

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	switch spec.Category {
	case models.CategoryNumeric:
		query := fmt.Sprintf(`
			SELECT
				COUNT(*),
				COUNT(%s),
				MIN(%s::double precision),
				MAX(%s::double precision),
				AVG(%s::double precision),
				percentile_cont(0.5) WITHIN GROUP (ORDER BY %s::double precision)
			FROM %s
		`, col, col, col, col, col, tableRef)

		var min, max, mean, median *float64
		if err := c.pool.QueryRow(ctx, query).Scan(&result.TotalRows, &result.NonNullCount, &min, &max, &mean, &median); err != nil {
			return nil, statsErr(dataset, spec.Name, err)
		}
		if result.NonNullCount > 0 && min != nil && max != nil && mean != nil && median != nil {
			result.Numeric = &models.NumericStats{Min: *min, Max: *max, Mean: *mean, Median: *median}
		}

	case models.CategoryString:
		query := fmt.Sprintf(`
			SELECT
				COUNT(*),
				COUNT(%s),
				MIN(LENGTH(%s::text)),
				MAX(LENGTH(%s::text)),
				AVG(LENGTH(%s::text))::double precision,
				COUNT(DISTINCT %s)
			FROM %s
		`, col, col, col, col, col, tableRef)

		var minLen, maxLen *int64
		var avgLen *float64
		var distinct int64
		if err := c.pool.QueryRow(ctx, query).Scan(&result.TotalRows, &result.NonNullCount, &minLen, &maxLen, &avgLen, &distinct); err != nil {
			return nil, statsErr(dataset, spec.Name, err)
		}
		if result.NonNullCount > 0 && minLen != nil && maxLen != nil && avgLen != nil {
			result.String = &models.StringStats{
				MinLength:     *minLen,
				MaxLength:     *maxLen,
				AvgLength:     *avgLen,
				DistinctCount: distinct,
			}
		}

	case models.CategoryTemporal:
		query := fmt.Sprintf(`
			SELECT
				COUNT(*),
				COUNT(%s),
				MIN(%s::timestamptz),
				MAX(%s::timestamptz)
			FROM %s
		`, col, col, col, tableRef)

		var min, max *time.Time
		if err := c.pool.QueryRow(ctx, query).Scan(&result.TotalRows, &result.NonNullCount, &min, &max); err != nil {
			return nil, statsErr(dataset, spec.Name, err)
		}
		if result.NonNullCount > 0 && min != nil && max != nil {
			result.Temporal = &models.TemporalStats{
				Min:      *min,
				Max:      *max,
				SpanDays: int64(max.Sub(*min).Hours() / 24),
			}
		}

	default:
		query := fmt.Sprintf("SELECT COUNT(*), COUNT(%s) FROM %s", col, tableRef)
		if err := c.pool.QueryRow(ctx, query).Scan(&result.TotalRows, &result.NonNullCount); err != nil {
			return nil, statsErr(dataset, spec.Name, err)
		}
	}

	result.NullCount = result.TotalRows - result.NonNullCount
	return result, nil
}

// groupStatExpr maps a statistic name to its SQL aggregate over the measure
// column.
func groupStatExpr(stat, measureCol string) (string, error) {
	switch stat {
	case datasource.StatCount:
		return "COUNT(*)::double precision", nil
	case datasource.StatSum:
		return fmt.Sprintf("SUM(%s::double precision)", measureCol), nil
	case datasource.StatAvg:
		return fmt.Sprintf("AVG(%s::double precision)", measureCol), nil
	case datasource.StatMin:
		return fmt.Sprintf("MIN(%s::double precision)", measureCol), nil
	case datasource.StatMax:
		return fmt.Sprintf("MAX(%s::double precision)", measureCol), nil
	default:
		return "", fmt.Errorf("unsupported statistic %q", stat)
	}
}

// GroupedAggregate computes the named statistics of measureColumn per
// distinct value of groupColumn. Output order is unspecified; callers sort.
func (c *Conn) GroupedAggregate(ctx context.Context, dataset models.DatasetHandle, groupColumn, measureColumn string, stats []string) ([]models.GroupAggregate, error) {
	grpCol := pgx.Identifier{groupColumn}.Sanitize()
	msrCol := pgx.Identifier{measureColumn}.Sanitize()

	selects := []string{grpCol + "::text", "COUNT(*)"}
	for _, stat := range stats {
		expr, err := groupStatExpr(stat, msrCol)
		if err != nil {
			return nil, err
		}
		selects = append(selects, expr)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL GROUP BY %s",
		strings.Join(selects, ", "),
		qualifiedTableName(dataset.SchemaName, dataset.TableName),
		grpCol, grpCol)

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: grouped aggregate on %s: %v", apperrors.ErrQueryExecution, dataset.Name(), err)
	}
	defer rows.Close()

	var groups []models.GroupAggregate
	for rows.Next() {
		group := models.GroupAggregate{Stats: make(map[string]float64, len(stats))}
		statVals := make([]*float64, len(stats))

		dest := []any{&group.GroupValue, &group.RowCount}
		for i := range statVals {
			dest = append(dest, &statVals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scan group row: %v", apperrors.ErrQueryExecution, err)
		}

		for i, stat := range stats {
			if statVals[i] != nil {
				group.Stats[stat] = *statVals[i]
			}
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate group rows: %v", apperrors.ErrQueryExecution, err)
	}

	return groups, nil
}

// OverlapStats returns non-null and distinct counts for the given columns
// on both source and target, side by side. One aggregate query per side
// covers every column.
func (c *Conn) OverlapStats(ctx context.Context, source, target models.DatasetHandle, columns []string) ([]models.ColumnOverlapStat, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	srcNonNull, srcDistinct, err := c.sideCounts(ctx, source, columns)
	if err != nil {
		return nil, err
	}
	tgtNonNull, tgtDistinct, err := c.sideCounts(ctx, target, columns)
	if err != nil {
		return nil, err
	}

	stats := make([]models.ColumnOverlapStat, 0, len(columns))
	for i, name := range columns {
		stats = append(stats, models.ColumnOverlapStat{
			ColumnName:     name,
			SourceNonNull:  srcNonNull[i],
			TargetNonNull:  tgtNonNull[i],
			SourceDistinct: srcDistinct[i],
			TargetDistinct: tgtDistinct[i],
		})
	}
	return stats, nil
}

func (c *Conn) sideCounts(ctx context.Context, dataset models.DatasetHandle, columns []string) (nonNull, distinct []int64, err error) {
	selects := make([]string, 0, len(columns)*2)
	for _, name := range columns {
		col := pgx.Identifier{name}.Sanitize()
		selects = append(selects, fmt.Sprintf("COUNT(%s)", col), fmt.Sprintf("COUNT(DISTINCT %s)", col))
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(selects, ", "),
		qualifiedTableName(dataset.SchemaName, dataset.TableName))

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	nonNull = make([]int64, len(columns))
	distinct = make([]int64, len(columns))
	dest := make([]any, 0, len(columns)*2)
	for i := range columns {
		dest = append(dest, &nonNull[i], &distinct[i])
	}

	if err := c.pool.QueryRow(ctx, query).Scan(dest...); err != nil {
		return nil, nil, fmt.Errorf("%w: overlap counts on %s: %v", apperrors.ErrQueryExecution, dataset.Name(), err)
	}
	return nonNull, distinct, nil
}

func statsErr(dataset models.DatasetHandle, column string, err error) error {
	return fmt.Errorf("%w: column stats for %s.%s: %v", apperrors.ErrQueryExecution, dataset.Name(), column, err)
}
