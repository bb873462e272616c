package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
)

func TestPostgresSessionRepo(t *testing.T) {
	db := testDB(t)
	repo := NewPostgresSessionRepo(db)
	ctx := context.Background()

	user := createTestUser(t, db, "sessionrepo-"+uuid.New().String()[:8])

	newSession := func(expiresAt time.Time) *model.Session {
		return &model.Session{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			ExpiresAt: expiresAt,
			CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("有効なセッションを取得できる", func(t *testing.T) {
		session := newSession(time.Now().UTC().Add(time.Hour))
		if err := repo.Create(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.FindByID(ctx, session.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.UserID != user.ID {
			t.Errorf("FindByID = %+v", got)
		}
	})

	t.Run("期限切れセッションは取得できない", func(t *testing.T) {
		session := newSession(time.Now().UTC().Add(-time.Hour))
		if err := repo.Create(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.FindByID(ctx, session.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("expired session should not be found")
		}
	})

	t.Run("削除したセッションは取得できない", func(t *testing.T) {
		session := newSession(time.Now().UTC().Add(time.Hour))
		if err := repo.Create(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if err := repo.DeleteByID(ctx, session.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := repo.FindByID(ctx, session.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("deleted session should not be found")
		}
	})

	t.Run("DeleteExpiredは期限切れのみ削除する", func(t *testing.T) {
		valid := newSession(time.Now().UTC().Add(time.Hour))
		expired := newSession(time.Now().UTC().Add(-time.Hour))
		for _, s := range []*model.Session{valid, expired} {
			if err := repo.Create(ctx, s); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
		}

		deleted, err := repo.DeleteExpired(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if deleted < 1 {
			t.Errorf("deleted = %d, want at least 1", deleted)
		}

		got, err := repo.FindByID(ctx, valid.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Error("valid session should survive cleanup")
		}
	})

	t.Run("DeleteByUserIDで全セッションが削除される", func(t *testing.T) {
		first := newSession(time.Now().UTC().Add(time.Hour))
		second := newSession(time.Now().UTC().Add(time.Hour))
		for _, s := range []*model.Session{first, second} {
			if err := repo.Create(ctx, s); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
		}

		if err := repo.DeleteByUserID(ctx, user.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, s := range []*model.Session{first, second} {
			got, err := repo.FindByID(ctx, s.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != nil {
				t.Errorf("session %s should be deleted", s.ID)
			}
		}
	})
}
