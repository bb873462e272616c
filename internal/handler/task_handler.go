// Package handler はHTTPリクエストハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// TaskService はタスクハンドラーが必要とするユースケースのインターフェース。
type TaskService interface {
	List(ctx context.Context, userID string, page int) (*model.TaskPage, error)
	Get(ctx context.Context, userID, taskID string) (*model.Task, error)
	Create(ctx context.Context, userID, title, description string) (*model.Task, error)
	Update(ctx context.Context, userID, taskID, title, description string) (*model.Task, error)
	Toggle(ctx context.Context, userID, taskID string) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
}

// TaskHandler はタスクAPIのHTTPハンドラー。
type TaskHandler struct {
	taskService TaskService
}

// NewTaskHandler はタスクハンドラーを生成する。
func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// taskResponse はタスク1件のJSONレスポンス。
type taskResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// taskListResponse はタスク一覧のJSONレスポンス。
type taskListResponse struct {
	Tasks      []taskResponse `json:"tasks"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalCount int            `json:"total_count"`
	TotalPages int            `json:"total_pages"`
	HasNext    bool           `json:"has_next"`
	HasPrev    bool           `json:"has_prev"`
}

// taskRequest はタスクの作成・更新リクエストボディ。
type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// List はGET /api/tasksを処理する。
// 認証済みユーザーのタスク一覧をページネーション付きで返す。
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// pageが不正な値の場合は1として扱う
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	result, err := h.taskService.List(r.Context(), userID, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	tasks := make([]taskResponse, 0, len(result.Tasks))
	for _, t := range result.Tasks {
		tasks = append(tasks, toTaskResponse(t))
	}

	writeJSON(w, http.StatusOK, taskListResponse{
		Tasks:      tasks,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
		HasNext:    result.HasNext,
		HasPrev:    result.HasPrev,
	})
}

// Create はPOST /api/tasksを処理する。
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	t, err := h.taskService.Create(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(t))
}

// Get はGET /api/tasks/{id}を処理する。
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	taskID := chi.URLParam(r, "id")
	t, err := h.taskService.Get(r.Context(), userID, taskID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Update はPUT /api/tasks/{id}を処理する。
// タイトルと説明を更新する。完了状態はこのエンドポイントでは変更されない。
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	taskID := chi.URLParam(r, "id")
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	t, err := h.taskService.Update(r.Context(), userID, taskID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Toggle はPOST /api/tasks/{id}/toggleを処理する。
// タスクの完了状態を反転する。
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	taskID := chi.URLParam(r, "id")
	t, err := h.taskService.Toggle(r.Context(), userID, taskID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Delete はDELETE /api/tasks/{id}を処理する。
// 破壊的操作のため、confirm=trueクエリパラメータによる確認を必須とする。
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewConfirmRequiredError())
		return
	}

	taskID := chi.URLParam(r, "id")
	if err := h.taskService.Delete(r.Context(), userID, taskID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toTaskResponse はドメインモデルをJSONレスポンスに変換する。
func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeInvalidRequestBody はリクエストボディのJSON解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの形式が正しくありません。",
		Category: "validation",
		Action:   "JSONの形式を確認してください。",
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスにマップする。
// APIErrorはコードに応じたステータスで返し、それ以外は詳細をログに記録して
// 一般的な500レスポンスを返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はエラーコードをHTTPステータスコードにマップする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest, model.ErrCodeConfirmRequired:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeTaskNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeCSRFTokenInvalid:
		return http.StatusForbidden
	case model.ErrCodeUsernameTaken:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
