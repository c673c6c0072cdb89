//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// DescribeColumns returns the columns of a dataset in ordinal order.
// Catalog failures wrap apperrors.ErrMetadataUnavailable so the caller can
// fall back to a supplied column list instead of aborting.
func (c *Conn) DescribeColumns(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.character_maximum_length,
			c.is_nullable = 'YES' as is_nullable,
			c.ordinal_position
		FROM information_schema.columns c
		WHERE c.table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, query, dataset.SchemaName, dataset.TableName)
	if err != nil {
		return nil, fmt.Errorf("%w: query columns for %s: %v", apperrors.ErrMetadataUnavailable, dataset.Name(), err)
	}
	defer rows.Close()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var col models.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.DataType, &col.MaxLength, &col.Nullable, &col.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("%w: scan column: %v", apperrors.ErrMetadataUnavailable, err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate columns: %v", apperrors.ErrMetadataUnavailable, err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: dataset %s has no columns in catalog", apperrors.ErrMetadataUnavailable, dataset.Name())
	}

	c.logger.Debug("Described columns",
		zap.String("dataset", dataset.Name()),
		zap.Int("column_count", len(columns)))

	return columns, nil
}
