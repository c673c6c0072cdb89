package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxSampleRows caps the number of example rows or keys carried on any
// single diff result.
const MaxSampleRows = 5

// RowSample is one missing row, identified by its key-tuple. Values carries
// the full row content when the backing engine could return it cheaply.
type RowSample struct {
	KeyTuple []string       `json:"key_tuple"`
	Values   map[string]any `json:"values,omitempty"`
}

// RowDiffResult is the outcome of one directional source→target coverage
// check. Created fresh per comparison and never mutated afterwards.
type RowDiffResult struct {
	SourceName        string      `json:"source_name"`
	TargetName        string      `json:"target_name"`
	MissingCount      int64       `json:"missing_count"`
	SampleMissingRows []RowSample `json:"sample_missing_rows,omitempty"`
}

// UnionCoverageResult is the coverage of the union of all source key-tuples
// against the target.
type UnionCoverageResult struct {
	TargetName        string     `json:"target_name"`
	MissingKeyCount   int64      `json:"missing_key_count"`
	SampleMissingKeys [][]string `json:"sample_missing_keys,omitempty"`
}

// RecordCountComparison holds row counts for one source/target pair.
type RecordCountComparison struct {
	SourceName  string `json:"source_name"`
	TargetName  string `json:"target_name"`
	SourceCount int64  `json:"source_count"`
	TargetCount int64  `json:"target_count"`
	Difference  int64  `json:"difference"`
}

// ColumnOverlapStat compares non-null and distinct counts for one column
// common to a source and the target.
type ColumnOverlapStat struct {
	ColumnName     string `json:"column_name"`
	SourceNonNull  int64  `json:"source_non_null"`
	TargetNonNull  int64  `json:"target_non_null"`
	SourceDistinct int64  `json:"source_distinct"`
	TargetDistinct int64  `json:"target_distinct"`
}

// OverlapComparison groups the per-column overlap stats of one source/target
// pair.
type OverlapComparison struct {
	SourceName string              `json:"source_name"`
	TargetName string              `json:"target_name"`
	Columns    []ColumnOverlapStat `json:"columns"`
}

// FailureKind classifies a scoped failure entry in the report.
type FailureKind string

const (
	FailureMetadataUnavailable FailureKind = "metadata_unavailable"
	FailureNoCommonKey         FailureKind = "no_common_key"
	FailureKeyColumnNotFound   FailureKind = "key_column_not_found"
	FailureEmptyKeySet         FailureKind = "empty_key_set"
	FailureQueryExecution      FailureKind = "query_execution"
)

// Failure records one scoped failure: the smallest unit of work that caused
// it plus the dataset/column/key context a reader needs.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Stage   string      `json:"stage"`
	Dataset string      `json:"dataset,omitempty"`
	Column  string      `json:"column,omitempty"`
	Keys    KeySet      `json:"keys,omitempty"`
	Message string      `json:"message"`
}

// ColumnConflict records a column name that recurred across sources with a
// different shape. The first-seen descriptor wins; the conflict is flagged
// rather than silently overwritten.
type ColumnConflict struct {
	ColumnName  string           `json:"column_name"`
	KeptFrom    string           `json:"kept_from"`
	Kept        ColumnDescriptor `json:"kept"`
	Conflicting string           `json:"conflicting_dataset"`
	Dropped     ColumnDescriptor `json:"dropped"`
}

// ReportStatus is the overall outcome of a reconciliation run.
type ReportStatus string

const (
	// StatusOK means every comparison completed and found full coverage.
	StatusOK ReportStatus = "OK"
	// StatusWarning means comparisons completed but found data-quality
	// findings (missing rows, drift on key or required columns).
	StatusWarning ReportStatus = "WARNING"
	// StatusError means at least one comparison could not be completed.
	StatusError ReportStatus = "ERROR"
)

// ReconciliationReport is the terminal artifact of one engine invocation.
// Built once from independent partial results; not mutated afterwards.
type ReconciliationReport struct {
	RunID       uuid.UUID    `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Status      ReportStatus `json:"status"`
	Reasons     []string     `json:"reasons,omitempty"`

	TargetName   string `json:"target_name"`
	Keys         KeySet `json:"keys,omitempty"`
	KeysInferred bool   `json:"keys_inferred"`

	Schemas       []SchemaSnapshot         `json:"schemas,omitempty"`
	RecordCounts  []RecordCountComparison  `json:"record_counts,omitempty"`
	RowDiffs      []RowDiffResult          `json:"row_diffs,omitempty"`
	UnionCoverage *UnionCoverageResult     `json:"union_coverage,omitempty"`
	SchemaDrift   []SchemaDiff             `json:"schema_drift,omitempty"`
	Profiles      []ColumnProfile          `json:"profiles,omitempty"`
	Aggregates    []GroupedAggregateResult `json:"aggregates,omitempty"`
	Overlaps      []OverlapComparison      `json:"overlaps,omitempty"`

	ColumnConflicts []ColumnConflict `json:"column_conflicts,omitempty"`
	Failures        []Failure        `json:"failures,omitempty"`
}
