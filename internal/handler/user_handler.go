package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gitcloud/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetUser は認証済みユーザーのプロフィールを取得する。
	GetUser(ctx context.Context, principal *model.Principal) (*model.UserProfile, error)
}

// UserHandler は認証済みユーザー情報のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userResponse はユーザープロフィールのAPIレスポンス。
type userResponse struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
}

// GetUser は現在のログインユーザー情報を返す。
// GET /api/user
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), principal)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		Login:       user.Login,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		HTMLURL:     user.HTMLURL,
		PublicRepos: user.PublicRepos,
	})
}
