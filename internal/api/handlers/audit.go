package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/api"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/audit"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/pagination"
)

type AuditService interface {
	Query(ctx context.Context, filters audit.Filters) (*pagination.PageResult[domain.AuditLogEntry], error)
	Stats(ctx context.Context, filters audit.Filters) (*audit.Stats, error)
	Export(ctx context.Context, filters audit.Filters, format audit.ExportFormat) (string, error)
}

type AuditHandler struct {
	svc AuditService
}

func NewAuditHandler(svc AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

type AuditListResponse struct {
	Items   []domain.AuditLogEntry `json:"items"`
	Cursor  string                 `json:"cursor,omitempty"`
	HasMore bool                   `json:"has_more"`
}

func filtersFromQuery(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()

	filters := audit.Filters{
		UserID:   q.Get("user_id"),
		TaskType: domain.TaskType(q.Get("task_type")),
		State:    domain.RequestState(q.Get("state")),
		Cursor:   q.Get("cursor"),
	}

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, domain.NewDomainError(domain.ErrCodeValidation, "from must be an RFC 3339 timestamp")
		}
		filters.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, domain.NewDomainError(domain.ErrCodeValidation, "to must be an RFC 3339 timestamp")
		}
		filters.To = to
	}
	if raw := q.Get("min_confidence"); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil || min < 0 || min > 1 {
			return filters, domain.NewDomainError(domain.ErrCodeValidation, "min_confidence must be a number between 0 and 1")
		}
		filters.MinConfidence = min
	}
	if raw := q.Get("review_only"); raw != "" {
		filters.ReviewOnly = raw == "true" || raw == "1"
	}
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filters.Limit = parsed
		}
	}

	return filters, nil
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	page, err := h.svc.Query(r.Context(), filters)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AuditListResponse{
		Items:   page.Items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *AuditHandler) Stats(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	stats, err := h.svc.Stats(r.Context(), filters)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, stats)
}

func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	format, err := audit.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	body, err := h.svc.Export(r.Context(), filters, format)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	switch format {
	case audit.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.json"`)
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
