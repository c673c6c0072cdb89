//go:build mssql || all_adapters

package mssql

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// CountRows returns the total row count of a dataset.
func (c *Conn) CountRows(ctx context.Context, dataset models.DatasetHandle) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s", qualifiedTableName(dataset.SchemaName, dataset.TableName))

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	var count int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count rows of %s: %v", apperrors.ErrQueryExecution, dataset.Name(), err)
	}
	return count, nil
}

// AntiJoin counts source rows whose key-tuple has no match in target, with
// up to sampleLimit example rows ordered by key. The NOT EXISTS predicate
// uses plain equality, so a NULL key value never matches and such rows are
// reported missing, mirroring standard relational join semantics.
func (c *Conn) AntiJoin(ctx context.Context, source, target models.DatasetHandle, keys models.KeySet, sampleLimit int) (*datasource.RowDiff, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}

	srcRef := qualifiedTableName(source.SchemaName, source.TableName)
	tgtRef := qualifiedTableName(target.SchemaName, target.TableName)

	conds := make([]string, 0, len(keys))
	orderCols := make([]string, 0, len(keys))
	for _, key := range keys {
		quoted := quoteName(key)
		conds = append(conds, fmt.Sprintf("t.%s = s.%s", quoted, quoted))
		orderCols = append(orderCols, "s."+quoted)
	}
	notExists := fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s t WHERE %s)", tgtRef, strings.Join(conds, " AND "))

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	countQuery := fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s s WHERE %s", srcRef, notExists)
	var missing int64
	if err := c.db.QueryRowContext(ctx, countQuery).Scan(&missing); err != nil {
		return nil, fmt.Errorf("%w: anti-join %s -> %s: %v", apperrors.ErrQueryExecution, source.Name(), target.Name(), err)
	}

	diff := &datasource.RowDiff{MissingCount: missing}
	if missing == 0 || sampleLimit <= 0 {
		return diff, nil
	}

	// Stable ordering by key keeps the sample deterministic for a fixed
	// dataset snapshot.
	sampleQuery := fmt.Sprintf("SELECT TOP (%d) s.* FROM %s s WHERE %s ORDER BY %s",
		sampleLimit, srcRef, notExists, strings.Join(orderCols, ", "))

	rows, err := c.db.QueryContext(ctx, sampleQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: sample missing rows of %s: %v", apperrors.ErrQueryExecution, source.Name(), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: read sample columns: %v", apperrors.ErrQueryExecution, err)
	}

	for rows.Next() {
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: read sample row: %v", apperrors.ErrQueryExecution, err)
		}

		sample := models.RowSample{Values: make(map[string]any, len(columns))}
		for i, name := range columns {
			sample.Values[name] = normalizeValue(*dest[i].(*any))
		}
		for _, key := range keys {
			sample.KeyTuple = append(sample.KeyTuple, formatKeyValue(sample.Values, key))
		}
		diff.Samples = append(diff.Samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sample rows: %v", apperrors.ErrQueryExecution, err)
	}

	c.logger.Debug("Anti-join complete",
		zap.String("source", source.Name()),
		zap.String("target", target.Name()),
		zap.Int64("missing", missing),
		zap.Int("samples", len(diff.Samples)))

	return diff, nil
}

// KeyTuples returns one key-tuple per row with all key values non-NULL, as
// text, ordered by key for deterministic output. Repeated keys appear once
// per row so missing-row counts stay row-accurate.
func (c *Conn) KeyTuples(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) ([][]string, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}

	selectCols := make([]string, 0, len(keys))
	notNull := make([]string, 0, len(keys))
	orderBy := make([]string, 0, len(keys))
	for i, key := range keys {
		quoted := quoteName(key)
		selectCols = append(selectCols, fmt.Sprintf("CAST(%s AS NVARCHAR(4000))", quoted))
		notNull = append(notNull, quoted+" IS NOT NULL")
		orderBy = append(orderBy, fmt.Sprintf("%d", i+1))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(selectCols, ", "),
		qualifiedTableName(dataset.SchemaName, dataset.TableName),
		strings.Join(notNull, " AND "),
		strings.Join(orderBy, ", "))

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: key scan of %s: %v", apperrors.ErrQueryExecution, dataset.Name(), err)
	}
	defer rows.Close()

	var tuples [][]string
	for rows.Next() {
		tuple := make([]string, len(keys))
		dest := make([]any, len(keys))
		for i := range tuple {
			dest[i] = &tuple[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scan key tuple: %v", apperrors.ErrQueryExecution, err)
		}
		tuples = append(tuples, tuple)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate key tuples: %v", apperrors.ErrQueryExecution, err)
	}

	return tuples, nil
}

// CountNullKeys returns the number of rows with a NULL in any key column.
func (c *Conn) CountNullKeys(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (int64, error) {
	if err := keys.Validate(); err != nil {
		return 0, err
	}

	conds := make([]string, 0, len(keys))
	for _, key := range keys {
		conds = append(conds, quoteName(key)+" IS NULL")
	}

	query := fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s WHERE %s",
		qualifiedTableName(dataset.SchemaName, dataset.TableName),
		strings.Join(conds, " OR "))

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	var count int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: null key count on %s: %v", apperrors.ErrQueryExecution, dataset.Name(), err)
	}
	return count, nil
}

// CheckKeyUniqueness reports total rows versus distinct key-tuples.
func (c *Conn) CheckKeyUniqueness(ctx context.Context, dataset models.DatasetHandle, keys models.KeySet) (*datasource.UniquenessResult, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}

	quoted := make([]string, 0, len(keys))
	for _, key := range keys {
		quoted = append(quoted, quoteName(key))
	}
	tableRef := qualifiedTableName(dataset.SchemaName, dataset.TableName)

	// COUNT(DISTINCT ...) takes a single expression here, so multi-column
	// keys go through a derived table.
	query := fmt.Sprintf(`
		SELECT
			(SELECT COUNT_BIG(*) FROM %s),
			(SELECT COUNT_BIG(*) FROM (SELECT DISTINCT %s FROM %s) d)
	`, tableRef, strings.Join(quoted, ", "), tableRef)

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	var result datasource.UniquenessResult
	if err := c.db.QueryRowContext(ctx, query).Scan(&result.TotalRows, &result.DistinctKeys); err != nil {
		return nil, fmt.Errorf("%w: uniqueness check on %s: %v", apperrors.ErrQueryExecution, dataset.Name(), err)
	}
	return &result, nil
}

// normalizeValue converts driver byte slices to strings so sample values
// render and compare like their text form.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// formatKeyValue renders one key column's value for a sample key-tuple.
// Column lookup is case-insensitive to match descriptor comparison rules.
func formatKeyValue(values map[string]any, key string) string {
	for name, v := range values {
		if strings.EqualFold(name, key) {
			if v == nil {
				return "NULL"
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}
