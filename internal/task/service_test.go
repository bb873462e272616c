package task

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/security"
)

// mockTaskRepo はTaskRepositoryのモック実装。
type mockTaskRepo struct {
	listByUserIDFunc      func(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error)
	countByUserIDFunc     func(ctx context.Context, userID string) (int, error)
	findByUserAndIDFunc   func(ctx context.Context, userID, id string) (*model.Task, error)
	createFunc            func(ctx context.Context, task *model.Task) error
	updateFunc            func(ctx context.Context, task *model.Task) (bool, error)
	deleteByUserAndIDFunc func(ctx context.Context, userID, id string) (bool, error)
	deleteByUserIDFunc    func(ctx context.Context, userID string) error
}

func (m *mockTaskRepo) ListByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
	return m.listByUserIDFunc(ctx, userID, offset, limit)
}

func (m *mockTaskRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	return m.countByUserIDFunc(ctx, userID)
}

func (m *mockTaskRepo) FindByUserAndID(ctx context.Context, userID, id string) (*model.Task, error) {
	return m.findByUserAndIDFunc(ctx, userID, id)
}

func (m *mockTaskRepo) Create(ctx context.Context, task *model.Task) error {
	return m.createFunc(ctx, task)
}

func (m *mockTaskRepo) Update(ctx context.Context, task *model.Task) (bool, error) {
	return m.updateFunc(ctx, task)
}

func (m *mockTaskRepo) DeleteByUserAndID(ctx context.Context, userID, id string) (bool, error) {
	return m.deleteByUserAndIDFunc(ctx, userID, id)
}

func (m *mockTaskRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserIDFunc(ctx, userID)
}

func newTestService(repo *mockTaskRepo) *Service {
	return NewService(repo, security.NewInputSanitizer(), nil, 10)
}

func TestCreate(t *testing.T) {
	t.Run("正常系: タスクが作成される", func(t *testing.T) {
		var created *model.Task
		repo := &mockTaskRepo{
			createFunc: func(ctx context.Context, task *model.Task) error {
				created = task
				return nil
			},
		}
		svc := newTestService(repo)

		got, err := svc.Create(context.Background(), "user-1", "買い物", "牛乳を買う")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if created == nil {
			t.Fatal("expected repository Create to be called")
		}
		if got.ID == "" {
			t.Error("expected generated ID")
		}
		if got.UserID != "user-1" {
			t.Errorf("UserID = %q, want %q", got.UserID, "user-1")
		}
		if got.Title != "買い物" {
			t.Errorf("Title = %q, want %q", got.Title, "買い物")
		}
		if got.Completed {
			t.Error("new task should start as not completed")
		}
		if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
			t.Error("timestamps should be set")
		}
		// 作成直後はcreated_atとupdated_atが一致する
		if !got.CreatedAt.Equal(got.UpdatedAt) {
			t.Errorf("CreatedAt = %v, UpdatedAt = %v, want equal at creation", got.CreatedAt, got.UpdatedAt)
		}
	})

	t.Run("異常系: 空タイトルはバリデーションエラーになり永続化されない", func(t *testing.T) {
		repoCalled := false
		repo := &mockTaskRepo{
			createFunc: func(ctx context.Context, task *model.Task) error {
				repoCalled = true
				return nil
			},
		}
		svc := newTestService(repo)

		_, err := svc.Create(context.Background(), "user-1", "", "説明だけ")
		assertValidationError(t, err, "title")
		if repoCalled {
			t.Error("repository should not be called on validation failure")
		}
	})

	t.Run("異常系: 空白のみのタイトルもバリデーションエラー", func(t *testing.T) {
		repo := &mockTaskRepo{
			createFunc: func(ctx context.Context, task *model.Task) error {
				t.Error("repository should not be called")
				return nil
			},
		}
		svc := newTestService(repo)

		_, err := svc.Create(context.Background(), "user-1", "   ", "")
		assertValidationError(t, err, "title")
	})

	t.Run("境界値: 200文字のタイトルは許可される", func(t *testing.T) {
		repo := &mockTaskRepo{
			createFunc: func(ctx context.Context, task *model.Task) error { return nil },
		}
		svc := newTestService(repo)

		title := strings.Repeat("あ", model.TitleMaxLength)
		got, err := svc.Create(context.Background(), "user-1", title, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Title != title {
			t.Error("200-rune title should be preserved")
		}
	})

	t.Run("境界値: 201文字のタイトルはバリデーションエラー", func(t *testing.T) {
		repo := &mockTaskRepo{
			createFunc: func(ctx context.Context, task *model.Task) error {
				t.Error("repository should not be called")
				return nil
			},
		}
		svc := newTestService(repo)

		title := strings.Repeat("あ", model.TitleMaxLength+1)
		_, err := svc.Create(context.Background(), "user-1", title, "")
		assertValidationError(t, err, "title")
	})

	t.Run("正常系: HTMLタグはサニタイズされる", func(t *testing.T) {
		repo := &mockTaskRepo{
			createFunc: func(ctx context.Context, task *model.Task) error { return nil },
		}
		svc := newTestService(repo)

		got, err := svc.Create(context.Background(), "user-1", "<script>alert(1)</script>買い物", "<b>太字</b>")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(got.Title, "<") {
			t.Errorf("Title should not contain HTML tags: %q", got.Title)
		}
		if got.Description != "太字" {
			t.Errorf("Description = %q, want %q", got.Description, "太字")
		}
	})
}

func TestGet(t *testing.T) {
	t.Run("正常系: 所有タスクを取得できる", func(t *testing.T) {
		want := &model.Task{ID: "task-1", UserID: "user-1", Title: "買い物"}
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				if userID != "user-1" || id != "task-1" {
					t.Errorf("unexpected query: userID=%q id=%q", userID, id)
				}
				return want, nil
			},
		}
		svc := newTestService(repo)

		got, err := svc.Get(context.Background(), "user-1", "task-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Error("expected the repository task to be returned")
		}
	})

	t.Run("異常系: 存在しないタスクはTASK_NOT_FOUND", func(t *testing.T) {
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				return nil, nil
			},
		}
		svc := newTestService(repo)

		_, err := svc.Get(context.Background(), "user-1", "missing")
		assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("正常系: タイトルと説明が更新される", func(t *testing.T) {
		existing := &model.Task{ID: "task-1", UserID: "user-1", Title: "旧", Completed: true}
		var updated *model.Task
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				return existing, nil
			},
			updateFunc: func(ctx context.Context, task *model.Task) (bool, error) {
				updated = task
				return true, nil
			},
		}
		svc := newTestService(repo)

		got, err := svc.Update(context.Background(), "user-1", "task-1", "新タイトル", "新説明")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated == nil {
			t.Fatal("expected repository Update to be called")
		}
		if got.Title != "新タイトル" || got.Description != "新説明" {
			t.Errorf("got Title=%q Description=%q", got.Title, got.Description)
		}
		// completedはUpdateでは変更されない
		if !got.Completed {
			t.Error("Update should not change completed")
		}
	})

	t.Run("異常系: バリデーション失敗時は既存タスクが変更されない", func(t *testing.T) {
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				return &model.Task{ID: id, UserID: userID, Title: "旧"}, nil
			},
			updateFunc: func(ctx context.Context, task *model.Task) (bool, error) {
				t.Error("repository should not be updated on validation failure")
				return false, nil
			},
		}
		svc := newTestService(repo)

		_, err := svc.Update(context.Background(), "user-1", "task-1", "", "説明")
		assertValidationError(t, err, "title")
	})

	t.Run("異常系: 存在しないタスクは入力が不正でもTASK_NOT_FOUND", func(t *testing.T) {
		// 取得がバリデーションより先: 他ユーザー所有や存在しないIDは
		// タイトルが空でもTASK_NOT_FOUNDになる
		findCalled := false
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				findCalled = true
				return nil, nil
			},
		}
		svc := newTestService(repo)

		_, err := svc.Update(context.Background(), "user-2", "foreign-id", "", "説明")
		assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)
		if !findCalled {
			t.Error("owner-scoped lookup should run before validation")
		}
	})

	t.Run("異常系: 存在しないタスクはTASK_NOT_FOUND", func(t *testing.T) {
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				return nil, nil
			},
		}
		svc := newTestService(repo)

		_, err := svc.Update(context.Background(), "user-1", "missing", "新タイトル", "")
		assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)
	})
}

func TestToggle(t *testing.T) {
	t.Run("正常系: 完了状態が反転する", func(t *testing.T) {
		created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		existing := &model.Task{
			ID: "task-1", UserID: "user-1", Title: "買い物", Completed: false,
			CreatedAt: created, UpdatedAt: created,
		}
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				return existing, nil
			},
			updateFunc: func(ctx context.Context, task *model.Task) (bool, error) {
				return true, nil
			},
		}
		svc := newTestService(repo)

		got, err := svc.Toggle(context.Background(), "user-1", "task-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Completed {
			t.Error("first toggle should mark as completed")
		}
		if !got.UpdatedAt.After(created) {
			t.Errorf("UpdatedAt = %v, should advance past %v", got.UpdatedAt, created)
		}
		firstUpdated := got.UpdatedAt

		// 2回目の反転で元に戻る。updated_atはさらに進む
		got, err = svc.Toggle(context.Background(), "user-1", "task-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Completed {
			t.Error("second toggle should restore the original state")
		}
		if !got.UpdatedAt.After(firstUpdated) {
			t.Errorf("UpdatedAt = %v, should advance past %v", got.UpdatedAt, firstUpdated)
		}
		if !got.CreatedAt.Equal(created) {
			t.Error("CreatedAt should never change")
		}
	})

	t.Run("異常系: 存在しないタスクはTASK_NOT_FOUND", func(t *testing.T) {
		repo := &mockTaskRepo{
			findByUserAndIDFunc: func(ctx context.Context, userID, id string) (*model.Task, error) {
				return nil, nil
			},
		}
		svc := newTestService(repo)

		_, err := svc.Toggle(context.Background(), "user-1", "missing")
		assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)
	})
}

func TestDelete(t *testing.T) {
	t.Run("正常系: タスクが削除される", func(t *testing.T) {
		repo := &mockTaskRepo{
			deleteByUserAndIDFunc: func(ctx context.Context, userID, id string) (bool, error) {
				return true, nil
			},
		}
		svc := newTestService(repo)

		if err := svc.Delete(context.Background(), "user-1", "task-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("異常系: 削除済みタスクの再削除はTASK_NOT_FOUND", func(t *testing.T) {
		repo := &mockTaskRepo{
			deleteByUserAndIDFunc: func(ctx context.Context, userID, id string) (bool, error) {
				return false, nil
			},
		}
		svc := newTestService(repo)

		err := svc.Delete(context.Background(), "user-1", "task-1")
		assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)
	})

	t.Run("異常系: リポジトリエラーはラップして返す", func(t *testing.T) {
		repoErr := errors.New("connection refused")
		repo := &mockTaskRepo{
			deleteByUserAndIDFunc: func(ctx context.Context, userID, id string) (bool, error) {
				return false, repoErr
			},
		}
		svc := newTestService(repo)

		err := svc.Delete(context.Background(), "user-1", "task-1")
		if !errors.Is(err, repoErr) {
			t.Errorf("expected wrapped repository error, got: %v", err)
		}
	})
}

func TestList(t *testing.T) {
	t.Run("正常系: ページネーション情報が計算される", func(t *testing.T) {
		repo := &mockTaskRepo{
			countByUserIDFunc: func(ctx context.Context, userID string) (int, error) {
				return 25, nil
			},
			listByUserIDFunc: func(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
				if offset != 10 || limit != 10 {
					t.Errorf("offset=%d limit=%d, want offset=10 limit=10", offset, limit)
				}
				return []*model.Task{{ID: "task-11"}}, nil
			},
		}
		svc := newTestService(repo)

		page, err := svc.List(context.Background(), "user-1", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalCount != 25 {
			t.Errorf("TotalCount = %d, want 25", page.TotalCount)
		}
		if page.TotalPages != 3 {
			t.Errorf("TotalPages = %d, want 3", page.TotalPages)
		}
		if !page.HasNext || !page.HasPrev {
			t.Errorf("HasNext=%v HasPrev=%v, want both true", page.HasNext, page.HasPrev)
		}
	})

	t.Run("正常系: 1未満のページは1として扱う", func(t *testing.T) {
		repo := &mockTaskRepo{
			countByUserIDFunc: func(ctx context.Context, userID string) (int, error) {
				return 5, nil
			},
			listByUserIDFunc: func(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
				if offset != 0 {
					t.Errorf("offset = %d, want 0", offset)
				}
				return []*model.Task{}, nil
			},
		}
		svc := newTestService(repo)

		page, err := svc.List(context.Background(), "user-1", -1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Page != 1 {
			t.Errorf("Page = %d, want 1", page.Page)
		}
	})

	t.Run("正常系: 総ページ数を超えるページは空のページを返す", func(t *testing.T) {
		repo := &mockTaskRepo{
			countByUserIDFunc: func(ctx context.Context, userID string) (int, error) {
				return 5, nil
			},
			listByUserIDFunc: func(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
				return []*model.Task{}, nil
			},
		}
		svc := newTestService(repo)

		page, err := svc.List(context.Background(), "user-1", 99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Tasks) != 0 {
			t.Errorf("expected empty page, got %d tasks", len(page.Tasks))
		}
		if page.HasNext {
			t.Error("page past the end should not have next")
		}
	})

	t.Run("正常系: タスクが0件でも総ページ数は1", func(t *testing.T) {
		repo := &mockTaskRepo{
			countByUserIDFunc: func(ctx context.Context, userID string) (int, error) {
				return 0, nil
			},
			listByUserIDFunc: func(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
				return []*model.Task{}, nil
			},
		}
		svc := newTestService(repo)

		page, err := svc.List(context.Background(), "user-1", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalPages != 1 {
			t.Errorf("TotalPages = %d, want 1", page.TotalPages)
		}
		if page.HasNext || page.HasPrev {
			t.Error("single empty page should have neither next nor prev")
		}
	})
}

// assertValidationError はerrがVALIDATION_FAILEDかつ指定フィールドの
// エラーメッセージを含むことを検証する。
func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got: %v", err)
	}
	if apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidationFailed)
	}
	if _, ok := apiErr.Fields[field]; !ok {
		t.Errorf("expected field error for %q, got fields: %v", field, apiErr.Fields)
	}
}

// assertAPIErrorCode はerrが指定コードのAPIErrorであることを検証する。
func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}
