package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/gitcloud/internal/model"
)

// RepositoryServiceInterface はリポジトリハンドラーが必要とするサービスインターフェース。
type RepositoryServiceInterface interface {
	ListRepositories(ctx context.Context, principal *model.Principal) ([]model.RepositorySummary, error)
	CreateRepository(ctx context.Context, principal *model.Principal, name, description string, private bool) (*model.RepositorySummary, error)
}

// RepoHandlerConfig はリポジトリハンドラーの設定。
type RepoHandlerConfig struct {
	DefaultPrivate bool // 可視性未指定時にプライベートで作成するか
}

// RepoHandler はリポジトリ関連のHTTPハンドラー。
type RepoHandler struct {
	service RepositoryServiceInterface
	config  RepoHandlerConfig
}

// NewRepoHandler はRepoHandlerを生成する。
func NewRepoHandler(service RepositoryServiceInterface, config RepoHandlerConfig) *RepoHandler {
	return &RepoHandler{
		service: service,
		config:  config,
	}
}

// repoResponse はリポジトリ情報のAPIレスポンス。
type repoResponse struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Private       bool      `json:"private"`
	DefaultBranch string    `json:"default_branch"`
	HTMLURL       string    `json:"html_url"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// createRepoRequest はリポジトリ作成リクエスト。
// isPrivate未指定時はサーバー設定のデフォルト可視性を使用する。
type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   *bool  `json:"isPrivate"`
}

// ListRepositories は認証済みユーザーのリポジトリ一覧を返す。
// GET /api/repos
func (h *RepoHandler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	repos, err := h.service.ListRepositories(r.Context(), principal)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]repoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateRepository は新しいリポジトリを作成する。
// 名前が空の場合はGitHubを呼び出さずに400を返す。
// POST /api/repos
func (h *RepoHandler) CreateRepository(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req createRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONボディが不正です"))
		return
	}

	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRepoNameRequiredError())
		return
	}

	private := h.config.DefaultPrivate
	if req.IsPrivate != nil {
		private = *req.IsPrivate
	}

	repo, err := h.service.CreateRepository(r.Context(), principal, req.Name, req.Description, private)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRepoResponse(*repo))
}

// toRepoResponse はドメインモデルからAPIレスポンスに変換する。
func toRepoResponse(repo model.RepositorySummary) repoResponse {
	return repoResponse{
		Name:          repo.Name,
		FullName:      repo.FullName,
		Description:   repo.Description,
		Private:       repo.Private,
		DefaultBranch: repo.DefaultBranch,
		HTMLURL:       repo.HTMLURL,
		UpdatedAt:     repo.UpdatedAt,
	}
}
