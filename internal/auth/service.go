// Package auth はユーザー認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// Service はユーザー登録、ログイン、ログアウトを提供する。
type Service struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	collector     *metrics.Collector
	sessionMaxAge time.Duration
}

// NewService は認証サービスを生成する。
// collectorはnil可（テスト時はメトリクス記録をスキップする）。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	collector *metrics.Collector,
	sessionMaxAge time.Duration,
) *Service {
	return &Service{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		collector:     collector,
		sessionMaxAge: sessionMaxAge,
	}
}

// Register はユーザーを新規登録し、セッションを発行する（自動ログイン）。
// ユーザー名が既に使用されている場合はUSERNAME_TAKENエラーを返す。
func (s *Service) Register(ctx context.Context, username, password, passwordConfirm string) (*model.User, *model.Session, error) {
	if fields := validateRegistration(username, password, passwordConfirm); len(fields) > 0 {
		return nil, nil, model.NewValidationError(fields)
	}

	// 事前チェック。一意制約違反はリポジトリ側でも同一エラーにマップされる。
	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check username availability: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewUsernameTakenError(username)
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	if s.collector != nil {
		s.collector.UsersRegistered.Inc()
	}
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, session, nil
}

// Login はユーザー名とパスワードを検証し、新しいセッションを発行する。
// ユーザー名が存在しない場合とパスワードが誤っている場合で
// 同一のINVALID_CREDENTIALSエラーを返す（存在探りの防止）。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !VerifyPassword(user.PasswordHash, password) {
		if s.collector != nil {
			s.collector.LoginAttempts.WithLabelValues("failure").Inc()
		}
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	if s.collector != nil {
		s.collector.LoginAttempts.WithLabelValues("success").Inc()
	}
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)
	return user, session, nil
}

// Logout は指定されたセッションを削除する。
// セッションが既に存在しない場合もエラーとしない（冪等）。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CurrentUser は認証済みユーザーの情報を取得する。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// createSession は暗号的に安全なIDで新しいセッションを作成する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionMaxAge),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// generateSessionID は256ビットのランダムなセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// validateRegistration は登録入力のバリデーションを行い、
// エラーがある場合はフィールド別メッセージのマップを返す。
func validateRegistration(username, password, passwordConfirm string) map[string]string {
	fields := map[string]string{}

	if username == "" {
		fields["username"] = "ユーザー名を入力してください。"
	} else if utf8.RuneCountInString(username) > model.UsernameMaxLength {
		fields["username"] = fmt.Sprintf("ユーザー名は%d文字以内で入力してください。", model.UsernameMaxLength)
	}

	if password == "" {
		fields["password"] = "パスワードを入力してください。"
	} else if utf8.RuneCountInString(password) < model.PasswordMinLength {
		fields["password"] = fmt.Sprintf("パスワードは%d文字以上で入力してください。", model.PasswordMinLength)
	}

	if passwordConfirm != password {
		fields["password_confirm"] = "パスワードが一致しません。"
	}

	return fields
}
