// Package task はタスクのユースケースを提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
)

// Service はタスクのCRUD操作を提供する。
// すべての操作は認証済みユーザーIDを必須パラメータとして受け取り、
// リポジトリの所有者スコープクエリに渡す。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.InputSanitizerService
	collector *metrics.Collector
	pageSize  int
}

// NewService はタスクサービスを生成する。
// collectorはnil可（テスト時はメトリクス記録をスキップする）。
func NewService(
	taskRepo repository.TaskRepository,
	sanitizer security.InputSanitizerService,
	collector *metrics.Collector,
	pageSize int,
) *Service {
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
		collector: collector,
		pageSize:  pageSize,
	}
}

// List は指定ユーザーのタスク一覧をページネーション付きで取得する。
// 新しく作成されたタスクが先頭に来る（作成日時の降順）。
// pageが1未満の場合は1として扱う。総ページ数を超えるpageは空のページを返す。
func (s *Service) List(ctx context.Context, userID string, page int) (*model.TaskPage, error) {
	if page < 1 {
		page = 1
	}

	totalCount, err := s.taskRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タスク数の取得に失敗: %w", err)
	}

	totalPages := (totalCount + s.pageSize - 1) / s.pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	offset := (page - 1) * s.pageSize
	tasks, err := s.taskRepo.ListByUserID(ctx, userID, offset, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}

	return &model.TaskPage{
		Tasks:      tasks,
		Page:       page,
		PageSize:   s.pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, nil
}

// Get は指定ユーザーが所有するタスクを1件取得する。
// 存在しないIDと他ユーザー所有のIDは同一のTASK_NOT_FOUNDエラーとなる。
func (s *Service) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	t, err := s.taskRepo.FindByUserAndID(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

// Create はタスクを新規作成する。
// タイトルは必須で最大200文字。説明は任意。
// completedは常にfalseで開始する。
func (s *Service) Create(ctx context.Context, userID, title, description string) (*model.Task, error) {
	title = s.sanitizer.Sanitize(title)
	description = s.sanitizer.Sanitize(description)

	if fields := validateTitle(title); len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	now := time.Now().UTC()
	t := &model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, t); err != nil {
		if s.collector != nil {
			s.collector.TasksCreated.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("タスクの作成に失敗: %w", err)
	}

	if s.collector != nil {
		s.collector.TasksCreated.WithLabelValues("success").Inc()
	}
	slog.Info("task created",
		slog.String("task_id", t.ID),
		slog.String("user_id", userID),
	)
	return t, nil
}

// Update は指定ユーザーが所有するタスクのタイトルと説明を更新する。
// completedはこの操作では変更されない。
// 取得がバリデーションより先に行われるため、存在しないタスクへの不正な入力は
// TASK_NOT_FOUNDとなる。バリデーションに失敗した場合、既存のタスクは変更されない。
func (s *Service) Update(ctx context.Context, userID, taskID, title, description string) (*model.Task, error) {
	t, err := s.taskRepo.FindByUserAndID(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	title = s.sanitizer.Sanitize(title)
	description = s.sanitizer.Sanitize(description)

	if fields := validateTitle(title); len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	t.Title = title
	t.Description = description
	t.UpdatedAt = time.Now().UTC()

	updated, err := s.taskRepo.Update(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗: %w", err)
	}
	if !updated {
		// 取得後に削除された場合
		return nil, model.NewTaskNotFoundError(taskID)
	}

	return t, nil
}

// Toggle は指定ユーザーが所有するタスクの完了状態を反転する。
// 未完了は完了に、完了は未完了に切り替わる。
func (s *Service) Toggle(ctx context.Context, userID, taskID string) (*model.Task, error) {
	t, err := s.taskRepo.FindByUserAndID(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	t.Completed = !t.Completed
	t.UpdatedAt = time.Now().UTC()

	updated, err := s.taskRepo.Update(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗: %w", err)
	}
	if !updated {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	if s.collector != nil {
		s.collector.TasksToggled.Inc()
	}
	return t, nil
}

// Delete は指定ユーザーが所有するタスクを物理削除する。
// 対象が存在しない場合はTASK_NOT_FOUNDエラーを返す。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	deleted, err := s.taskRepo.DeleteByUserAndID(ctx, userID, taskID)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(taskID)
	}

	if s.collector != nil {
		s.collector.TasksDeleted.Inc()
	}
	slog.Info("task deleted",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)
	return nil
}

// validateTitle はタイトルのバリデーションを行い、
// エラーがある場合はフィールド別メッセージのマップを返す。
// 文字数はルーン単位でカウントする（マルチバイト文字を1文字と数える）。
func validateTitle(title string) map[string]string {
	fields := map[string]string{}
	if title == "" {
		fields["title"] = "タイトルを入力してください。"
	} else if utf8.RuneCountInString(title) > model.TitleMaxLength {
		fields["title"] = fmt.Sprintf("タイトルは%d文字以内で入力してください。", model.TitleMaxLength)
	}
	return fields
}
