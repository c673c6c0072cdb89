package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/veridata-io/recon-engine/pkg/models"
)

// SaveReportYAML writes the full report to path as YAML. The report is
// round-tripped through its JSON form so the artifact keys match the wire
// names rather than Go field names.
func SaveReportYAML(report *models.ReconciliationReport, path string) error {
	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal report yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// SaveOverlapCSV writes the column overlap grid to path, one row per
// source/column pair. Nothing is written when the report has no overlaps.
func SaveOverlapCSV(report *models.ReconciliationReport, path string) error {
	if len(report.Overlaps) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create overlap csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"source", "target", "column", "source_non_null", "target_non_null", "source_distinct", "target_distinct"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write overlap csv header: %w", err)
	}

	for _, cmp := range report.Overlaps {
		for _, col := range cmp.Columns {
			record := []string{
				cmp.SourceName,
				cmp.TargetName,
				col.ColumnName,
				strconv.FormatInt(col.SourceNonNull, 10),
				strconv.FormatInt(col.TargetNonNull, 10),
				strconv.FormatInt(col.SourceDistinct, 10),
				strconv.FormatInt(col.TargetDistinct, 10),
			}
			if err := w.Write(record); err != nil {
				return fmt.Errorf("write overlap csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush overlap csv: %w", err)
	}
	return nil
}
