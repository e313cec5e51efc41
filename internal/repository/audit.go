package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/audit"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository is the Postgres-backed audit store for durable
// deployments. It implements audit.Storage.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

const auditColumns = `id, request_id, user_id, task_type, state, created_at,
	input_hash, output_hash, prompt, raw_output, stage_timings, sources_used,
	source_count, retrieval_method, retry_count, verified_fields, total_fields,
	confidence, duration_ms, requires_human_review, anti_hallucination_compliant,
	critical_issues, error`

func (r *AuditRepository) Save(ctx context.Context, entry domain.AuditLogEntry) error {
	timingsJSON, err := json.Marshal(entry.StageTimings)
	if err != nil {
		return fmt.Errorf("failed to encode stage timings: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		entry.ID,
		entry.RequestID,
		nullableString(entry.UserID),
		string(entry.TaskType),
		string(entry.State),
		entry.CreatedAt,
		entry.InputHash,
		nullableString(entry.OutputHash),
		entry.Prompt,
		entry.RawOutput,
		timingsJSON,
		entry.SourcesUsed,
		entry.SourceCount,
		nullableString(string(entry.RetrievalMethod)),
		entry.RetryCount,
		entry.VerifiedFields,
		entry.TotalFields,
		entry.Confidence,
		entry.DurationMS,
		entry.Compliance.RequiresHumanReview,
		entry.Compliance.AntiHallucinationCompliant,
		entry.Compliance.CriticalIssues,
		nullableString(entry.Error),
	)
	return err
}

func (r *AuditRepository) Query(ctx context.Context, filters audit.Filters) (*pagination.PageResult[domain.AuditLogEntry], error) {
	cursor, err := pagination.DecodeCursor(filters.Cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid audit cursor")
	}
	limit := pagination.ClampLimit(filters.Limit)

	query, args := buildAuditQuery(filters)
	if cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, cursor.Timestamp, cursor.LastID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(entries, limit,
		func(e domain.AuditLogEntry) string { return e.ID },
		func(e domain.AuditLogEntry) time.Time { return e.CreatedAt },
	), nil
}

func (r *AuditRepository) All(ctx context.Context, filters audit.Filters) ([]domain.AuditLogEntry, error) {
	query, args := buildAuditQuery(filters)
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// Trim deletes the oldest entries beyond the retention bound.
func (r *AuditRepository) Trim(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM audit_logs
		 WHERE id NOT IN (
			SELECT id FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1
		 )`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func buildAuditQuery(filters audit.Filters) (string, []any) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE TRUE`
	var args []any

	if filters.UserID != "" {
		args = append(args, filters.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filters.TaskType != "" {
		args = append(args, string(filters.TaskType))
		query += fmt.Sprintf(" AND task_type = $%d", len(args))
	}
	if filters.State != "" {
		args = append(args, string(filters.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	if filters.MinConfidence > 0 {
		args = append(args, filters.MinConfidence)
		query += fmt.Sprintf(" AND confidence >= $%d", len(args))
	}
	if filters.ReviewOnly {
		query += " AND requires_human_review"
	}
	return query, args
}

func scanAuditRows(rows pgx.Rows) ([]domain.AuditLogEntry, error) {
	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var userID, outputHash, retrievalMethod, errMsg *string
		var taskType, state string
		var timingsJSON []byte
		if err := rows.Scan(
			&e.ID, &e.RequestID, &userID, &taskType, &state, &e.CreatedAt,
			&e.InputHash, &outputHash, &e.Prompt, &e.RawOutput, &timingsJSON,
			&e.SourcesUsed, &e.SourceCount, &retrievalMethod, &e.RetryCount,
			&e.VerifiedFields, &e.TotalFields, &e.Confidence, &e.DurationMS,
			&e.Compliance.RequiresHumanReview, &e.Compliance.AntiHallucinationCompliant,
			&e.Compliance.CriticalIssues, &errMsg,
		); err != nil {
			return nil, err
		}
		e.TaskType = domain.TaskType(taskType)
		e.State = domain.RequestState(state)
		if userID != nil {
			e.UserID = *userID
		}
		if outputHash != nil {
			e.OutputHash = *outputHash
		}
		if retrievalMethod != nil {
			e.RetrievalMethod = domain.RetrievalMethod(*retrievalMethod)
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		if len(timingsJSON) > 0 {
			if err := json.Unmarshal(timingsJSON, &e.StageTimings); err != nil {
				return nil, fmt.Errorf("failed to decode stage timings: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
