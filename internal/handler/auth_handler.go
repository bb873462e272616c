package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

const sessionCookieName = "session_id"

// AuthService は認証ハンドラーが必要とするユースケースのインターフェース。
type AuthService interface {
	Register(ctx context.Context, username, password, passwordConfirm string) (*model.User, *model.Session, error)
	Login(ctx context.Context, username, password string) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// UserService はアカウント管理に必要なユースケースのインターフェース。
type UserService interface {
	Withdraw(ctx context.Context, userID string) error
}

// CookieConfig はセッションCookieの発行設定。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge int
}

// AuthHandler は認証APIのHTTPハンドラー。
type AuthHandler struct {
	authService  AuthService
	userService  UserService
	cookieConfig CookieConfig
}

// NewAuthHandler は認証ハンドラーを生成する。
func NewAuthHandler(authService AuthService, userService UserService, cookieConfig CookieConfig) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		userService:  userService,
		cookieConfig: cookieConfig,
	}
}

// registerRequest はユーザー登録リクエストボディ。
type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// loginRequest はログインリクエストボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のJSONレスポンス。
// パスワードハッシュは含まない。
type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

// Register はPOST /auth/registerを処理する。
// 登録成功時はセッションCookieを発行する（自動ログイン）。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	user, session, err := h.authService.Register(r.Context(), req.Username, req.Password, req.PasswordConfirm)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login はPOST /auth/loginを処理する。
// 認証成功時はセッションCookieを発行する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	user, session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout はPOST /auth/logoutを処理する。
// セッションを削除し、Cookieを失効させる。
// Cookieが存在しない場合も204を返す（冪等）。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me はGET /auth/meを処理する。
// 認証済みユーザーの情報を返す。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Withdraw はDELETE /auth/meを処理する（退会）。
// 破壊的操作のため、confirm=trueクエリパラメータによる確認を必須とする。
// アカウントと所有する全タスク、全セッションが削除される。
func (h *AuthHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewConfirmRequiredError())
		return
	}

	if err := h.userService.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// setSessionCookie はセッションIDをHTTP Only Cookieとして設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.cookieConfig.Domain,
		MaxAge:   h.cookieConfig.MaxAge,
		HttpOnly: true,
		Secure:   h.cookieConfig.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを失効させる。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieConfig.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieConfig.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// toUserResponse はドメインモデルをJSONレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}
