package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

// ExportFormat selects the audit export encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseExportFormat validates a user-supplied format string.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON, "":
		return FormatJSON, nil
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Export renders entries in the requested format. JSON exports are the full
// entries; CSV exports a flat per-request summary row.
func Export(entries []domain.AuditLogEntry, format ExportFormat) (string, error) {
	switch format {
	case FormatCSV:
		return exportCSV(entries)
	case FormatJSON:
		return exportJSON(entries)
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func exportJSON(entries []domain.AuditLogEntry) (string, error) {
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode audit export: %w", err)
	}
	return string(encoded), nil
}

var csvHeader = []string{
	"id", "request_id", "user_id", "task_type", "state", "created_at",
	"input_hash", "output_hash", "source_count", "retrieval_method",
	"retry_count", "verified_fields", "total_fields", "confidence",
	"duration_ms", "requires_human_review", "anti_hallucination_compliant",
	"error",
}

func exportCSV(entries []domain.AuditLogEntry) (string, error) {
	var out strings.Builder
	writer := csv.NewWriter(&out)

	if err := writer.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write audit export header: %w", err)
	}
	for _, entry := range entries {
		row := []string{
			entry.ID,
			entry.RequestID,
			entry.UserID,
			string(entry.TaskType),
			string(entry.State),
			entry.CreatedAt.UTC().Format(time.RFC3339),
			entry.InputHash,
			entry.OutputHash,
			strconv.Itoa(entry.SourceCount),
			string(entry.RetrievalMethod),
			strconv.Itoa(entry.RetryCount),
			strconv.Itoa(entry.VerifiedFields),
			strconv.Itoa(entry.TotalFields),
			strconv.FormatFloat(entry.Confidence, 'f', 4, 64),
			strconv.FormatInt(entry.DurationMS, 10),
			strconv.FormatBool(entry.Compliance.RequiresHumanReview),
			strconv.FormatBool(entry.Compliance.AntiHallucinationCompliant),
			entry.Error,
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write audit export row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush audit export: %w", err)
	}
	return out.String(), nil
}
