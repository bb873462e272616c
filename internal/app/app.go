// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/config"
	"github.com/hitoshi/taskman/internal/database"
	"github.com/hitoshi/taskman/internal/handler"
	"github.com/hitoshi/taskman/internal/logger"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
	"github.com/hitoshi/taskman/internal/task"
	"github.com/hitoshi/taskman/internal/user"
	"github.com/hitoshi/taskman/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの最大待機時間。
const shutdownTimeout = 10 * time.Second

// Run はアプリケーションのエントリーポイント。
// サブコマンドを解析して各処理に委譲し、終了コードを返す。
func Run(w io.Writer, args []string) int {
	logger.SetupDefault(w)

	cmd, err := ParseCommand(args)
	if err != nil {
		slog.Error("invalid command", slog.String("error", err.Error()))
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		return 1
	}

	switch cmd {
	case CommandServe:
		err = runServe(cfg, w)
	case CommandMigrate:
		err = runMigrate(cfg)
	case CommandCleanup:
		err = runCleanup(cfg)
	case CommandHealthcheck:
		err = runHealthcheck(cfg)
	}

	if err != nil {
		slog.Error("command failed",
			slog.String("command", string(cmd)),
			slog.String("error", err.Error()),
		)
		return 1
	}
	return 0
}

// runServe はHTTPサーバーを起動する。
// 起動時にマイグレーションを適用し、SIGINT/SIGTERMでグレースフルシャットダウンする。
func runServe(cfg *config.Config, w io.Writer) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	slog.Info("migrations applied")

	// 依存の組み立て
	taskRepo := repository.NewPostgresTaskRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	collector := metrics.NewCollector()
	sanitizer := security.NewInputSanitizer()

	sessionMaxAge := time.Duration(cfg.SessionMaxAge) * time.Second
	taskService := task.NewService(taskRepo, sanitizer, collector, cfg.TasksPerPage)
	authService := auth.NewService(userRepo, sessionRepo, collector, sessionMaxAge)
	userService := user.NewService(userRepo, sessionRepo)

	cookieConfig := handler.CookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
		MaxAge: cfg.SessionMaxAge,
	}

	router := handler.NewRouter(handler.RouterDeps{
		TaskHandler:   handler.NewTaskHandler(taskService),
		AuthHandler:   handler.NewAuthHandler(authService, userService, cookieConfig),
		SessionFinder: sessionRepo,
		HealthChecker: db,
		Collector:     collector,
		Logger:        logger.Setup(w),
		CORSOrigin:    cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// シグナル受信でグレースフルシャットダウン
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", slog.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// runMigrate はデータベースマイグレーションを適用する。
func runMigrate(cfg *config.Config) error {
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}

// runCleanup は期限切れセッションを削除する。
// cronなどから定期実行されることを想定したワンショット処理。
func runCleanup(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	job := cleanup.NewJob(repository.NewPostgresSessionRepo(db))
	return job.Run(context.Background())
}

// runHealthcheck はローカルのヘルスチェックエンドポイントを確認する。
// コンテナのHEALTHCHECKから利用する。
func runHealthcheck(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://localhost:%s/health", cfg.ServerPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
