package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/api"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/service"
)

type PipelineRunner interface {
	Execute(ctx context.Context, req service.TaskRequest) (*service.TaskResponse, error)
}

type TaskHandler struct {
	svc PipelineRunner
}

func NewTaskHandler(svc PipelineRunner) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type SubmitTaskRequest struct {
	TaskType            string   `json:"task_type"`
	Input               string   `json:"input"`
	Query               string   `json:"query"`
	Context             string   `json:"context"`
	UserID              string   `json:"user_id"`
	PreferredCategories []string `json:"preferred_categories"`
}

func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Input == "" {
		api.HandleError(w, domain.ErrEmptyTaskInput)
		return
	}

	input := service.TaskRequest{
		TaskType:            domain.TaskType(req.TaskType),
		Input:               req.Input,
		Query:               req.Query,
		Context:             req.Context,
		UserID:              req.UserID,
		PreferredCategories: req.PreferredCategories,
	}

	resp, err := h.svc.Execute(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resp)
}
