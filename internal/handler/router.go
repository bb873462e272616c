package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なデータベース接続確認のインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	TaskHandler   *TaskHandler
	AuthHandler   *AuthHandler
	SessionFinder middleware.SessionFinder
	HealthChecker HealthChecker
	Collector     *metrics.Collector
	Logger        *slog.Logger
	CORSOrigin    string
	CSRFConfig    middleware.CSRFConfig
}

// NewRouter はアプリケーションのHTTPルーターを構築する。
//
// ミドルウェアの適用順序:
//  1. CORS（プリフライトを他のミドルウェアより先に処理するため最外側）
//  2. セキュリティヘッダー
//  3. リカバリー
//  4. ロギング
//  5. メトリクス
//  6. CSRF（状態変更メソッドのトークン検証）
//  7. セッション（/api/tasksと/auth/meのみ）
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	sessionMiddleware := middleware.NewSessionMiddleware(deps.SessionFinder)

	// 認証エンドポイント
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", deps.AuthHandler.Register)
		r.Post("/login", deps.AuthHandler.Login)
		r.Post("/logout", deps.AuthHandler.Logout)

		// 認証必須のエンドポイント
		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware)
			r.Get("/me", deps.AuthHandler.Me)
			r.Delete("/me", deps.AuthHandler.Withdraw)
		})
	})

	// タスクAPI（すべて認証必須）
	r.Route("/api", func(r chi.Router) {
		r.Handle("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware)
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", deps.TaskHandler.List)
				r.Post("/", deps.TaskHandler.Create)
				r.Get("/{id}", deps.TaskHandler.Get)
				r.Put("/{id}", deps.TaskHandler.Update)
				r.Post("/{id}/toggle", deps.TaskHandler.Toggle)
				r.Delete("/{id}", deps.TaskHandler.Delete)
			})
		})
	})

	// ヘルスチェック
	r.Get("/health", NewHealthHandler(deps.HealthChecker))

	// Prometheusメトリクス
	metrics.SetupMetricsRoute(r, deps.Collector)

	return r
}

// NewHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// データベースへの接続確認に成功した場合は200、失敗した場合は503を返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
