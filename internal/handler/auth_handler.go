// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/gitcloud/internal/model"
)

const oauthStateCookie = "oauth_state"

// OAuthProviderInterface は認証ハンドラーが必要とするプロバイダーインターフェース。
type OAuthProviderInterface interface {
	GetLoginURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*model.Principal, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string // フロントエンドのベースURL
	CookieSecure bool
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
// トークンはクライアント保持方式のため、サーバー側にセッション状態を持たない。
type AuthHandler struct {
	provider OAuthProviderInterface
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(provider OAuthProviderInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		config:   config,
	}
}

// Login はGitHub OAuthフローを開始する。
// GET /auth/github
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.provider.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// 認可コードをトークンに交換し、トークンとログイン名をクエリパラメータで
// フロントエンドのダッシュボードに引き渡す（クライアント保持方式）。
// GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. トークン交換とログイン名の解決
	principal, err := h.provider.ExchangeCode(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	slog.Info("github oauth success", slog.String("login", principal.Login))

	// 4. フロントエンドにトークンとログイン名を引き渡してリダイレクト
	params := url.Values{
		"token":    {principal.AccessToken},
		"username": {principal.Login},
	}
	http.Redirect(w, r, h.config.BaseURL+"/dashboard?"+params.Encode(), http.StatusTemporaryRedirect)
}

// Logout はログイン画面にリダイレクトする。
// サーバー側に破棄すべき状態はなく、トークンの破棄はクライアントが行う。
// セッションの有無にかかわらず常に成功する（冪等）。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.config.BaseURL+"/login", http.StatusTemporaryRedirect)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
