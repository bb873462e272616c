package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/database"
	"github.com/hitoshi/taskman/internal/model"
)

// testDB はテスト用データベース接続を返す。
// TEST_DATABASE_URLが未設定、または接続できない場合はテストをスキップする。
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := database.Open(databaseURL)
	if err != nil {
		t.Skipf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("database is not reachable: %v", err)
	}

	if err := database.RunMigrations(databaseURL); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// createTestUser はテスト用ユーザーを作成し、テスト終了時に削除する。
// CASCADE制約により関連するtasks、sessionsも削除される。
func createTestUser(t *testing.T, db *sql.DB, username string) *model.User {
	t.Helper()

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: "test-hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	repo := NewPostgresUserRepo(db)
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	t.Cleanup(func() {
		repo.DeleteByID(context.Background(), user.ID)
	})
	return user
}

// createTestTask はテスト用タスクを作成する。
func createTestTask(t *testing.T, db *sql.DB, userID, title string) *model.Task {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	task := &model.Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	repo := NewPostgresTaskRepo(db)
	if err := repo.Create(context.Background(), task); err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}
	return task
}
