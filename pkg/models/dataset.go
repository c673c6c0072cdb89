package models

import (
	"fmt"
	"strings"

	"github.com/veridata-io/recon-engine/pkg/apperrors"
)

// DatasetHandle is an opaque reference to a queryable tabular dataset.
// Immutable and owned by the caller; the engine never persists it beyond
// one invocation.
type DatasetHandle struct {
	// Datasource names the backing connection this dataset lives on
	// (a key into the configured datasources).
	Datasource string `json:"datasource"`
	SchemaName string `json:"schema_name,omitempty"`
	TableName  string `json:"table_name"`
}

// Name returns the qualified dataset name for display and report context.
func (d DatasetHandle) Name() string {
	if d.SchemaName == "" {
		return d.TableName
	}
	return d.SchemaName + "." + d.TableName
}

// ParseDatasetHandle parses "datasource:schema.table" (schema optional) into
// a DatasetHandle.
func ParseDatasetHandle(s string) (DatasetHandle, error) {
	dsName, rest, ok := strings.Cut(s, ":")
	if !ok || dsName == "" || rest == "" {
		return DatasetHandle{}, fmt.Errorf("invalid dataset reference %q: want datasource:schema.table", s)
	}

	h := DatasetHandle{Datasource: dsName}
	if schema, table, ok := strings.Cut(rest, "."); ok {
		h.SchemaName = schema
		h.TableName = table
	} else {
		h.TableName = rest
	}
	if h.TableName == "" {
		return DatasetHandle{}, fmt.Errorf("invalid dataset reference %q: empty table name", s)
	}
	return h, nil
}

// KeySet is the ordered, non-empty list of column names used for row
// identity. Either explicitly supplied by the caller or inferred; inference
// failure is a reported condition, never a silent empty set.
type KeySet []string

// Validate returns ErrEmptyKeySet for an empty key list.
func (k KeySet) Validate() error {
	if len(k) == 0 {
		return apperrors.ErrEmptyKeySet
	}
	return nil
}

// Contains reports whether the key set includes name (case-insensitive).
func (k KeySet) Contains(name string) bool {
	for _, col := range k {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

func (k KeySet) String() string {
	return strings.Join(k, ", ")
}
