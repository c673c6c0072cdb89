package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterAndLookup(t *testing.T) {
	Register(AdapterRegistration{
		Info: AdapterInfo{Type: "fake", DisplayName: "Fake Engine"},
		RowReaderFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (RowReader, error) {
			return nil, nil
		},
	})

	assert.True(t, IsRegistered("fake"))
	assert.False(t, IsRegistered("nonexistent"))

	reg, ok := lookup("fake")
	require.True(t, ok)
	assert.Equal(t, "Fake Engine", reg.Info.DisplayName)
	assert.Nil(t, reg.AggregatorFactory)
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	factory := NewAdapterFactory(nil)

	_, err := factory.NewRowReader(context.Background(), "nonexistent", nil)
	require.Error(t, err)

	_, err = factory.NewSchemaIntrospector(context.Background(), "nonexistent", nil)
	require.Error(t, err)
}

func TestFactoryRejectsMissingCapability(t *testing.T) {
	Register(AdapterRegistration{
		Info: AdapterInfo{Type: "rows-only"},
		RowReaderFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (RowReader, error) {
			return nil, nil
		},
	})

	factory := NewAdapterFactory(nil)

	_, err := factory.NewAggregator(context.Background(), "rows-only", nil)
	require.Error(t, err)

	_, err = factory.NewRowReader(context.Background(), "rows-only", nil)
	assert.NoError(t, err)
}

func TestUniquenessResultIsUnique(t *testing.T) {
	assert.True(t, UniquenessResult{TotalRows: 3, DistinctKeys: 3}.IsUnique())
	assert.False(t, UniquenessResult{TotalRows: 4, DistinctKeys: 3}.IsUnique())
	assert.True(t, UniquenessResult{}.IsUnique())
}
