package models

import (
	"strings"
	"time"
)

// ColumnDescriptor describes one column of a dataset as reported by the
// backing catalog. Compared structurally across datasets; name comparison is
// case-insensitive.
type ColumnDescriptor struct {
	Name            string `json:"name"`
	DataType        string `json:"data_type"`
	MaxLength       *int64 `json:"max_length,omitempty"`
	Nullable        bool   `json:"nullable"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// SameShape reports whether two descriptors agree on type, length, and
// nullability. Name is not considered; callers match by name first.
func (c ColumnDescriptor) SameShape(other ColumnDescriptor) bool {
	return len(c.ChangedFields(other)) == 0
}

// Changed field identifiers recorded on ColumnChange entries.
const (
	FieldDataType  = "data_type"
	FieldMaxLength = "max_length"
	FieldNullable  = "nullable"
)

// ChangedFields returns which of type, max length, and nullability differ
// between this descriptor and other.
func (c ColumnDescriptor) ChangedFields(other ColumnDescriptor) []string {
	var fields []string
	if !strings.EqualFold(c.DataType, other.DataType) {
		fields = append(fields, FieldDataType)
	}
	if !int64PtrEqual(c.MaxLength, other.MaxLength) {
		fields = append(fields, FieldMaxLength)
	}
	if c.Nullable != other.Nullable {
		fields = append(fields, FieldNullable)
	}
	return fields
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SchemaSnapshot is the ordered column list of one dataset at one point in
// time. Immutable once captured.
type SchemaSnapshot struct {
	Dataset    string             `json:"dataset"`
	Columns    []ColumnDescriptor `json:"columns"`
	CapturedAt time.Time          `json:"captured_at"`

	// Fallback is true when the catalog was unavailable and the column list
	// came from the caller instead of live introspection.
	Fallback bool `json:"fallback,omitempty"`
}

// Column returns the descriptor for name (case-insensitive) and whether it
// was found.
func (s SchemaSnapshot) Column(name string) (ColumnDescriptor, bool) {
	for _, col := range s.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return ColumnDescriptor{}, false
}

// HasColumn reports whether the snapshot contains name (case-insensitive).
func (s SchemaSnapshot) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// ColumnNames returns the column names in ordinal order.
func (s SchemaSnapshot) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		names = append(names, col.Name)
	}
	return names
}

// ColumnChange records one column present in both snapshots whose shape
// differs, with the specific fields that changed.
type ColumnChange struct {
	Name   string           `json:"name"`
	Before ColumnDescriptor `json:"before"`
	After  ColumnDescriptor `json:"after"`
	Fields []string         `json:"fields"`
}

// SchemaDiff classifies columns as added, removed, or changed between two
// snapshots of what is nominally the same dataset. Matching is by name only,
// so a rename shows up as one removal plus one addition.
type SchemaDiff struct {
	BeforeDataset string             `json:"before_dataset"`
	AfterDataset  string             `json:"after_dataset"`
	Added         []ColumnDescriptor `json:"added,omitempty"`
	Removed       []ColumnDescriptor `json:"removed,omitempty"`
	Changed       []ColumnChange     `json:"changed,omitempty"`
}

// IsEmpty reports whether the diff found no drift at all.
func (d SchemaDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}
