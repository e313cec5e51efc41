package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/audit"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Query(ctx context.Context, filters audit.Filters) (*pagination.PageResult[domain.AuditLogEntry], error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[domain.AuditLogEntry]), args.Error(1)
}

func (m *MockAuditService) Stats(ctx context.Context, filters audit.Filters) (*audit.Stats, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Stats), args.Error(1)
}

func (m *MockAuditService) Export(ctx context.Context, filters audit.Filters, format audit.ExportFormat) (string, error) {
	args := m.Called(ctx, filters, format)
	return args.String(0), args.Error(1)
}

func newTestAuditEntry() domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:         "audit-1",
		RequestID:  "req-1",
		UserID:     "user-1",
		TaskType:   domain.TaskTypeExtraction,
		State:      domain.StateCompleted,
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Confidence: 0.92,
	}
}

func TestAuditHandler_List_Success(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	page := &pagination.PageResult[domain.AuditLogEntry]{
		Items:   []domain.AuditLogEntry{newTestAuditEntry()},
		Cursor:  "next-cursor",
		HasMore: true,
	}
	mockSvc.On("Query", mock.Anything, mock.MatchedBy(func(f audit.Filters) bool {
		return f.UserID == "user-1" && f.Limit == 10
	})).Return(page, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?user_id=user-1&limit=10", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "next-cursor", data["cursor"])
	assert.Equal(t, true, data["has_more"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	mockSvc.AssertExpectations(t)
}

func TestAuditHandler_List_TimeAndStateFilters(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	page := &pagination.PageResult[domain.AuditLogEntry]{}
	mockSvc.On("Query", mock.Anything, mock.MatchedBy(func(f audit.Filters) bool {
		return f.State == domain.StateNeedsReview && f.From.Equal(from) && f.ReviewOnly && f.MinConfidence == 0.5
	})).Return(page, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/audit?state=needs_review&from=2025-06-01T00:00:00Z&review_only=true&min_confidence=0.5", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestAuditHandler_List_InvalidTimestamp(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?from=yesterday", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RFC 3339")
	mockSvc.AssertNotCalled(t, "Query")
}

func TestAuditHandler_List_InvalidMinConfidence(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?min_confidence=1.5", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Query")
}

func TestAuditHandler_List_InvalidCursor(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	mockSvc.On("Query", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor"))

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?cursor=garbage", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestAuditHandler_Stats_Success(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	stats := &audit.Stats{
		TotalRequests:  10,
		Completed:      8,
		NeedsReview:    1,
		Failed:         1,
		SuccessRate:    0.8,
		MeanConfidence: 0.87,
	}
	mockSvc.On("Stats", mock.Anything, mock.Anything).Return(stats, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(10), data["total_requests"])
	assert.Equal(t, 0.8, data["success_rate"])
	mockSvc.AssertExpectations(t)
}

func TestAuditHandler_Export_JSON(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	mockSvc.On("Export", mock.Anything, mock.Anything, audit.FormatJSON).Return(`[{"id":"audit-1"}]`, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/export", nil)
	w := httptest.NewRecorder()

	handler.Export(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit-export.json")
	assert.Equal(t, `[{"id":"audit-1"}]`, w.Body.String())
	mockSvc.AssertExpectations(t)
}

func TestAuditHandler_Export_CSV(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	mockSvc.On("Export", mock.Anything, mock.Anything, audit.FormatCSV).Return("id,request_id\naudit-1,req-1\n", nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/export?format=csv", nil)
	w := httptest.NewRecorder()

	handler.Export(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit-export.csv")
	mockSvc.AssertExpectations(t)
}

func TestAuditHandler_Export_UnsupportedFormat(t *testing.T) {
	mockSvc := new(MockAuditService)
	handler := NewAuditHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/export?format=xml", nil)
	w := httptest.NewRecorder()

	handler.Export(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported export format")
	mockSvc.AssertNotCalled(t, "Export")
}
