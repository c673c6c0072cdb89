package models

import (
	"strings"
	"time"
)

// ColumnCategory is the declared semantic category driving which statistic
// set the profiler computes for a column.
type ColumnCategory string

const (
	CategoryNumeric  ColumnCategory = "numeric"
	CategoryString   ColumnCategory = "string"
	CategoryTemporal ColumnCategory = "temporal"
	CategoryOther    ColumnCategory = "other"
)

// CategorizeDataType maps a declared database type to a profiling category.
func CategorizeDataType(dataType string) ColumnCategory {
	switch normalizeType(dataType) {
	case "smallint", "integer", "int", "bigint", "decimal", "numeric",
		"real", "double precision", "float", "money", "tinyint", "serial", "bigserial":
		return CategoryNumeric
	case "text", "varchar", "character varying", "character", "char",
		"nvarchar", "nchar", "ntext", "uuid", "name", "bpchar":
		return CategoryString
	case "date", "timestamp", "timestamp without time zone",
		"timestamp with time zone", "timestamptz", "datetime", "datetime2",
		"smalldatetime", "time":
		return CategoryTemporal
	default:
		return CategoryOther
	}
}

// normalizeType lowercases a declared type and strips any precision suffix,
// so "VARCHAR(255)" and "varchar" categorize identically.
func normalizeType(dataType string) string {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if idx := strings.IndexByte(t, '('); idx >= 0 {
		t = strings.TrimSpace(t[:idx])
	}
	return t
}

// ColumnSpec names a column to profile with its declared category.
type ColumnSpec struct {
	Name     string         `json:"name"`
	Category ColumnCategory `json:"category"`
}

// NumericStats summarizes a numeric column.
type NumericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// StringStats summarizes a string column.
type StringStats struct {
	MinLength     int64   `json:"min_length"`
	MaxLength     int64   `json:"max_length"`
	AvgLength     float64 `json:"avg_length"`
	DistinctCount int64   `json:"distinct_count"`
}

// TemporalStats summarizes a date/timestamp column.
type TemporalStats struct {
	Min      time.Time `json:"min"`
	Max      time.Time `json:"max"`
	SpanDays int64     `json:"span_days"`
}

// ColumnProfile holds per-column statistics for one dataset. Exactly one of
// Numeric, String, Temporal is set, matching the column's category; the
// "other" category carries null counts only.
type ColumnProfile struct {
	Dataset  string         `json:"dataset"`
	Column   string         `json:"column"`
	Category ColumnCategory `json:"category"`

	TotalRows    int64 `json:"total_rows"`
	NonNullCount int64 `json:"non_null_count"`
	NullCount    int64 `json:"null_count"`

	// NullPercent is nil (undefined) when TotalRows is 0, never zero by
	// convention.
	NullPercent *float64 `json:"null_percent,omitempty"`

	Numeric  *NumericStats  `json:"numeric,omitempty"`
	String   *StringStats   `json:"string,omitempty"`
	Temporal *TemporalStats `json:"temporal,omitempty"`
}

// NullPercentOf computes 100 * nullCount / totalRows, returning nil when
// totalRows is 0.
func NullPercentOf(nullCount, totalRows int64) *float64 {
	if totalRows == 0 {
		return nil
	}
	pct := 100 * float64(nullCount) / float64(totalRows)
	return &pct
}

// GroupAggregate holds one group's statistics from a grouped aggregation.
type GroupAggregate struct {
	GroupValue string             `json:"group_value"`
	RowCount   int64              `json:"row_count"`
	Stats      map[string]float64 `json:"stats"`
}

// GroupedAggregateResult is the ordered output of AggregateBy. Groups are
// sorted by the primary requested statistic descending, falling back to row
// count descending, so output is reproducible.
type GroupedAggregateResult struct {
	Dataset       string           `json:"dataset"`
	GroupColumn   string           `json:"group_column"`
	MeasureColumn string           `json:"measure_column"`
	PrimaryStat   string           `json:"primary_stat"`
	Groups        []GroupAggregate `json:"groups"`
}
