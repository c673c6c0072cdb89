package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeDataType(t *testing.T) {
	tests := []struct {
		dataType string
		want     ColumnCategory
	}{
		{"integer", CategoryNumeric},
		{"BIGINT", CategoryNumeric},
		{"numeric", CategoryNumeric},
		{"double precision", CategoryNumeric},
		{"varchar", CategoryString},
		{"VARCHAR(255)", CategoryString},
		{"character varying", CategoryString},
		{"nvarchar", CategoryString},
		{"uuid", CategoryString},
		{"date", CategoryTemporal},
		{"timestamp with time zone", CategoryTemporal},
		{"datetime2", CategoryTemporal},
		{"bytea", CategoryOther},
		{"jsonb", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizeDataType(tt.dataType))
		})
	}
}

func TestNullPercentOf(t *testing.T) {
	t.Run("empty dataset is undefined", func(t *testing.T) {
		assert.Nil(t, NullPercentOf(0, 0))
	})

	t.Run("no nulls", func(t *testing.T) {
		pct := NullPercentOf(0, 10)
		require.NotNil(t, pct)
		assert.Equal(t, 0.0, *pct)
	})

	t.Run("partial nulls", func(t *testing.T) {
		pct := NullPercentOf(1, 4)
		require.NotNil(t, pct)
		assert.Equal(t, 25.0, *pct)
	})

	t.Run("all nulls", func(t *testing.T) {
		pct := NullPercentOf(3, 3)
		require.NotNil(t, pct)
		assert.Equal(t, 100.0, *pct)
	})
}
