package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata-io/recon-engine/pkg/models"
)

func TestDiffNoDrift(t *testing.T) {
	svc := NewSchemaDriftService(nil)

	before := snapshotOf("v1", "id", "integer", "total", "numeric")
	after := snapshotOf("v2", "id", "integer", "total", "numeric")

	diff := svc.Diff(before, after)
	assert.True(t, diff.IsEmpty())
	assert.Equal(t, "v1", diff.BeforeDataset)
	assert.Equal(t, "v2", diff.AfterDataset)
}

func TestDiffAddedAndRemoved(t *testing.T) {
	svc := NewSchemaDriftService(nil)

	before := snapshotOf("v1", "id", "integer", "legacy_flag", "boolean")
	after := snapshotOf("v2", "id", "integer", "created_at", "timestamp")

	diff := svc.Diff(before, after)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "created_at", diff.Added[0].Name)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, "legacy_flag", diff.Removed[0].Name)
	assert.Empty(t, diff.Changed)
}

func TestDiffRenameIsRemovalPlusAddition(t *testing.T) {
	svc := NewSchemaDriftService(nil)

	before := snapshotOf("v1", "amount", "numeric")
	after := snapshotOf("v2", "total", "numeric")

	diff := svc.Diff(before, after)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, "amount", diff.Removed[0].Name)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "total", diff.Added[0].Name)
}

func TestDiffChangedFields(t *testing.T) {
	svc := NewSchemaDriftService(nil)

	before := models.SchemaSnapshot{
		Dataset: "v1",
		Columns: []models.ColumnDescriptor{
			{Name: "email", DataType: "varchar", MaxLength: int64Ptr(255), Nullable: false, OrdinalPosition: 1},
		},
	}
	after := models.SchemaSnapshot{
		Dataset: "v2",
		Columns: []models.ColumnDescriptor{
			{Name: "email", DataType: "varchar", MaxLength: int64Ptr(320), Nullable: true, OrdinalPosition: 1},
		},
	}

	diff := svc.Diff(before, after)
	require.Len(t, diff.Changed, 1)
	change := diff.Changed[0]
	assert.Equal(t, "email", change.Name)
	assert.ElementsMatch(t, []string{models.FieldMaxLength, models.FieldNullable}, change.Fields)
}

func TestDiffMatchesNamesCaseInsensitively(t *testing.T) {
	svc := NewSchemaDriftService(nil)

	before := snapshotOf("v1", "OrderID", "integer")
	after := snapshotOf("v2", "orderid", "integer")

	diff := svc.Diff(before, after)
	assert.True(t, diff.IsEmpty())
}

func int64Ptr(v int64) *int64 { return &v }
