package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPipelineRunner struct {
	mock.Mock
}

func (m *MockPipelineRunner) Execute(ctx context.Context, req service.TaskRequest) (*service.TaskResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TaskResponse), args.Error(1)
}

func newTestTaskResponse() *service.TaskResponse {
	return &service.TaskResponse{
		RequestID:  "req-123",
		State:      domain.StateCompleted,
		Data:       map[string]any{"company_name": "Acme Corp"},
		Confidence: 0.93,
		Validation: domain.ValidationResult{Success: true, Confidence: 0.95},
		Verification: domain.VerificationResult{
			Confidence: 0.91,
			Fields: []domain.FieldVerificationResult{
				{FieldName: "company_name", Supported: true, Confidence: 0.91},
			},
		},
		AuditEntryID: "audit-456",
	}
}

func TestTaskHandler_Submit_Success(t *testing.T) {
	mockSvc := new(MockPipelineRunner)
	handler := NewTaskHandler(mockSvc)

	mockSvc.On("Execute", mock.Anything, mock.MatchedBy(func(req service.TaskRequest) bool {
		return req.TaskType == domain.TaskTypeExtraction && req.Input == "Acme Corp filing" && req.UserID == "user-1"
	})).Return(newTestTaskResponse(), nil)

	body := `{"task_type":"extraction","input":"Acme Corp filing","user_id":"user-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "req-123", data["request_id"])
	assert.Equal(t, "completed", data["state"])
	mockSvc.AssertExpectations(t)
}

func TestTaskHandler_Submit_InvalidJSON(t *testing.T) {
	mockSvc := new(MockPipelineRunner)
	handler := NewTaskHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader([]byte(`{invalid`)))
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestTaskHandler_Submit_EmptyInput(t *testing.T) {
	mockSvc := new(MockPipelineRunner)
	handler := NewTaskHandler(mockSvc)

	body := `{"task_type":"extraction"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "task input cannot be empty")
	mockSvc.AssertNotCalled(t, "Execute")
}

func TestTaskHandler_Submit_UnknownTaskTypePassedThrough(t *testing.T) {
	mockSvc := new(MockPipelineRunner)
	handler := NewTaskHandler(mockSvc)

	resp := newTestTaskResponse()
	mockSvc.On("Execute", mock.Anything, mock.MatchedBy(func(req service.TaskRequest) bool {
		return req.TaskType == domain.TaskType("nonsense")
	})).Return(resp, nil)

	body := `{"task_type":"nonsense","input":"some text"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestTaskHandler_Submit_GatewayUnavailable(t *testing.T) {
	mockSvc := new(MockPipelineRunner)
	handler := NewTaskHandler(mockSvc)

	mockSvc.On("Execute", mock.Anything, mock.Anything).Return(nil, domain.ErrModelUnavailable)

	body := `{"task_type":"extraction","input":"Acme Corp filing"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestTaskHandler_Submit_NeedsReviewResponse(t *testing.T) {
	mockSvc := new(MockPipelineRunner)
	handler := NewTaskHandler(mockSvc)

	reviewResp := newTestTaskResponse()
	reviewResp.State = domain.StateNeedsReview
	reviewResp.NeedsReview = true
	mockSvc.On("Execute", mock.Anything, mock.Anything).Return(reviewResp, nil)

	body := `{"task_type":"extraction","input":"Acme Corp filing"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "needs_review", data["state"])
	assert.Equal(t, true, data["needs_review"])
}
