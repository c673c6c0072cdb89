//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// DescribeColumns returns the columns of a dataset in ordinal order, read
// from the sys catalog views. Catalog failures wrap
// apperrors.ErrMetadataUnavailable so the caller can fall back to a supplied
// column list instead of aborting.
func (c *Conn) DescribeColumns(ctx context.Context, dataset models.DatasetHandle) ([]models.ColumnDescriptor, error) {
	const query = `
		SELECT
			c.name,
			t.name AS data_type,
			c.max_length,
			c.is_nullable,
			c.column_id
		FROM sys.columns c
		JOIN sys.types t ON c.user_type_id = t.user_type_id
		WHERE c.object_id = OBJECT_ID(QUOTENAME(COALESCE(NULLIF(@schema, ''), SCHEMA_NAME())) + '.' + QUOTENAME(@table))
		ORDER BY c.column_id
	`

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query,
		sql.Named("schema", dataset.SchemaName),
		sql.Named("table", dataset.TableName))
	if err != nil {
		return nil, fmt.Errorf("%w: query columns for %s: %v", apperrors.ErrMetadataUnavailable, dataset.Name(), err)
	}
	defer rows.Close()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var col models.ColumnDescriptor
		var maxLength int64
		if err := rows.Scan(&col.Name, &col.DataType, &maxLength, &col.Nullable, &col.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("%w: scan column: %v", apperrors.ErrMetadataUnavailable, err)
		}
		col.MaxLength = characterMaxLength(col.DataType, maxLength)
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

// characterMaxLength converts sys.columns.max_length (bytes, -1 for MAX)
// into a character count for character types, nil otherwise.
func characterMaxLength(dataType string, maxLength int64) *int64 {
	if maxLength <= 0 {
		return nil
	}
	switch strings.ToLower(dataType) {
	case "nchar", "nvarchar":
		chars := maxLength / 2
		return &chars
	case "char", "varchar", "binary", "varbinary":
		return &maxLength
	default:
		return nil
	}
}
