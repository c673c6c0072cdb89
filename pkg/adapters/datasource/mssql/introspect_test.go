//go:build mssql || all_adapters

package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterMaxLength(t *testing.T) {
	t.Run("nvarchar counts characters not bytes", func(t *testing.T) {
		got := characterMaxLength("nvarchar", 64)
		require.NotNil(t, got)
		assert.Equal(t, int64(32), *got)
	})

	t.Run("varchar counts bytes", func(t *testing.T) {
		got := characterMaxLength("varchar", 255)
		require.NotNil(t, got)
		assert.Equal(t, int64(255), *got)
	})

	t.Run("max length is unbounded", func(t *testing.T) {
		assert.Nil(t, characterMaxLength("nvarchar", -1))
	})

	t.Run("non character type", func(t *testing.T) {
		assert.Nil(t, characterMaxLength("int", 4))
		assert.Nil(t, characterMaxLength("datetime2", 8))
	})
}

func TestQuoteName(t *testing.T) {
	assert.Equal(t, "[orders]", quoteName("orders"))
	assert.Equal(t, "[odd]]name]", quoteName("odd]name"))
	assert.Equal(t, "[dbo].[orders]", qualifiedTableName("dbo", "orders"))
	assert.Equal(t, "[orders]", qualifiedTableName("", "orders"))
}
