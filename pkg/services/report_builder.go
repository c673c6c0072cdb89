package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/models"
)

// ReportBuilder assembles the partial results of a run into one immutable
// report and derives its overall status.
type ReportBuilder interface {
	// Build stamps the report with a run ID and timestamp and derives
	// Status and Reasons from the collected findings. The input is not
	// mutated afterwards.
	Build(draft models.ReconciliationReport) *models.ReconciliationReport

	// FormatLogLines renders a human-readable summary, one finding per
	// line. Formatting is a separate pass over the finished report, never
	// interleaved with collection.
	FormatLogLines(report *models.ReconciliationReport) []string
}

type reportBuilder struct {
	logger *zap.Logger
}

// NewReportBuilder creates a new ReportBuilder.
func NewReportBuilder(logger *zap.Logger) ReportBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reportBuilder{logger: logger}
}

var _ ReportBuilder = (*reportBuilder)(nil)

func (b *reportBuilder) Build(draft models.ReconciliationReport) *models.ReconciliationReport {
	report := draft
	report.RunID = uuid.New()
	report.GeneratedAt = time.Now().UTC()
	report.Status, report.Reasons = deriveStatus(&report)

	b.logger.Info("Report built",
		zap.String("run_id", report.RunID.String()),
		zap.String("status", string(report.Status)),
		zap.Int("failures", len(report.Failures)))

	return &report
}

// deriveStatus ranks findings: any failure makes the run an error, any
// data-quality finding a warning, otherwise the run is clean.
func deriveStatus(report *models.ReconciliationReport) (models.ReportStatus, []string) {
	var reasons []string

	for _, failure := range report.Failures {
		reasons = append(reasons, fmt.Sprintf("%s failed for %s: %s", failure.Stage, failure.Dataset, failure.Message))
	}
	if len(reasons) > 0 {
		return models.StatusError, reasons
	}

	for _, diff := range report.RowDiffs {
		if diff.MissingCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d rows of %s missing from %s", diff.MissingCount, diff.SourceName, diff.TargetName))
		}
	}
	if report.UnionCoverage != nil && report.UnionCoverage.MissingKeyCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d union keys missing from %s", report.UnionCoverage.MissingKeyCount, report.UnionCoverage.TargetName))
	}
	for _, drift := range report.SchemaDrift {
		// Added-only drift is informational; removals and changes warn.
		if len(drift.Removed) > 0 || len(drift.Changed) > 0 {
			reasons = append(reasons, fmt.Sprintf("schema drift between %s and %s", drift.BeforeDataset, drift.AfterDataset))
		}
	}
	for _, conflict := range report.ColumnConflicts {
		reasons = append(reasons, fmt.Sprintf("column %s has conflicting shapes in %s and %s", conflict.ColumnName, conflict.KeptFrom, conflict.Conflicting))
	}

	if len(reasons) > 0 {
		return models.StatusWarning, reasons
	}
	return models.StatusOK, nil
}

func (b *reportBuilder) FormatLogLines(report *models.ReconciliationReport) []string {
	lines := []string{
		fmt.Sprintf("run %s: %s (target %s, keys [%s])",
			report.RunID, report.Status, report.TargetName, report.Keys),
	}
	if report.KeysInferred {
		lines = append(lines, fmt.Sprintf("keys [%s] were inferred, not supplied", report.Keys))
	}

	for _, counts := range report.RecordCounts {
		lines = append(lines, fmt.Sprintf("counts: %s=%d %s=%d (diff %+d)",
			counts.SourceName, counts.SourceCount, counts.TargetName, counts.TargetCount, counts.Difference))
	}

	for _, diff := range report.RowDiffs {
		if diff.MissingCount == 0 {
			lines = append(lines, fmt.Sprintf("rows: all of %s present in %s", diff.SourceName, diff.TargetName))
			continue
		}
		lines = append(lines, fmt.Sprintf("rows: %d of %s missing from %s", diff.MissingCount, diff.SourceName, diff.TargetName))
		for _, sample := range diff.SampleMissingRows {
			lines = append(lines, fmt.Sprintf("  missing key (%s)", joinTuple(sample.KeyTuple)))
		}
	}

	if cov := report.UnionCoverage; cov != nil {
		if cov.MissingKeyCount == 0 {
			lines = append(lines, fmt.Sprintf("union: %s covers every source key", cov.TargetName))
		} else {
			lines = append(lines, fmt.Sprintf("union: %d keys missing from %s", cov.MissingKeyCount, cov.TargetName))
			for _, tuple := range cov.SampleMissingKeys {
				lines = append(lines, fmt.Sprintf("  missing key (%s)", joinTuple(tuple)))
			}
		}
	}

	for _, drift := range report.SchemaDrift {
		if drift.IsEmpty() {
			continue
		}
		lines = append(lines, fmt.Sprintf("drift %s -> %s:", drift.BeforeDataset, drift.AfterDataset))
		for _, col := range drift.Added {
			lines = append(lines, fmt.Sprintf("  added column %s (%s)", col.Name, col.DataType))
		}
		for _, col := range drift.Removed {
			lines = append(lines, fmt.Sprintf("  removed column %s (%s)", col.Name, col.DataType))
		}
		for _, change := range drift.Changed {
			lines = append(lines, fmt.Sprintf("  changed column %s: %v", change.Name, change.Fields))
		}
	}

	for _, conflict := range report.ColumnConflicts {
		lines = append(lines, fmt.Sprintf("conflict: column %s kept from %s, differs in %s",
			conflict.ColumnName, conflict.KeptFrom, conflict.Conflicting))
	}

	for _, profile := range report.Profiles {
		line := fmt.Sprintf("profile %s.%s (%s): rows=%d nulls=%d",
			profile.Dataset, profile.Column, profile.Category, profile.TotalRows, profile.NullCount)
		if profile.NullPercent != nil {
			line += fmt.Sprintf(" (%.2f%%)", *profile.NullPercent)
		}
		lines = append(lines, line)
	}

	for _, failure := range report.Failures {
		lines = append(lines, fmt.Sprintf("failure [%s] %s %s: %s", failure.Kind, failure.Stage, failure.Dataset, failure.Message))
	}

	return lines
}

func joinTuple(tuple []string) string {
	out := ""
	for i, v := range tuple {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}
