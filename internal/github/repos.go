package github

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/hitoshi/gitcloud/internal/model"
)

// repoJSON はGitHubのリポジトリレスポンスのうち必要なフィールド。
type repoJSON struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Private       bool      `json:"private"`
	DefaultBranch string    `json:"default_branch"`
	HTMLURL       string    `json:"html_url"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// userJSON はGitHubのユーザーレスポンスのうち必要なフィールド。
type userJSON struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
}

// GetUser は認証済みユーザーのプロフィールを取得する。
func (c *Client) GetUser(ctx context.Context, principal *model.Principal) (*model.UserProfile, error) {
	body, err := c.getJSON(ctx, principal, "get user", "/user", nil)
	if err != nil {
		return nil, err
	}

	var user userJSON
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, model.NewUpstreamRejectedError("get user", 200)
	}
	if user.Login == "" {
		return nil, model.NewUpstreamRejectedError("get user", 200)
	}

	return &model.UserProfile{
		Login:       user.Login,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		HTMLURL:     user.HTMLURL,
		PublicRepos: user.PublicRepos,
	}, nil
}

// ListRepositories は認証済みユーザーのリポジトリ一覧を取得する。
// per_page=100で最初の1ページのみを取得する。2ページ目以降の走査は
// 行わない（典型的な利用では100件で十分という方針）。
func (c *Client) ListRepositories(ctx context.Context, principal *model.Principal) ([]model.RepositorySummary, error) {
	query := url.Values{
		"per_page": {"100"},
		"sort":     {"updated"},
	}

	body, err := c.getJSON(ctx, principal, "list repositories", "/user/repos", query)
	if err != nil {
		return nil, err
	}

	var repos []repoJSON
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, model.NewUpstreamRejectedError("list repositories", 200)
	}

	summaries := make([]model.RepositorySummary, 0, len(repos))
	for _, r := range repos {
		if r.Name == "" {
			continue
		}
		summaries = append(summaries, toRepositorySummary(r))
	}

	return summaries, nil
}

// createRepoRequest はリポジトリ作成APIのリクエストボディ。
type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

// CreateRepository は認証済みユーザーのリポジトリを作成する。
// nameが空の場合はGitHubを呼び出さずにバリデーションエラーを返す。
// 同名リポジトリが既に存在する場合はCONFLICTを返す。
func (c *Client) CreateRepository(ctx context.Context, principal *model.Principal, name, description string, private bool) (*model.RepositorySummary, error) {
	if name == "" {
		return nil, model.NewRepoNameRequiredError()
	}

	reqBody := createRepoRequest{
		Name:        name,
		Description: description,
		Private:     private,
	}

	body, err := c.doWrite(ctx, principal, "create repository", "POST", "/user/repos", reqBody, 201)
	if err != nil {
		return nil, err
	}

	var repo repoJSON
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, model.NewUpstreamRejectedError("create repository", 201)
	}
	if repo.Name == "" {
		return nil, model.NewUpstreamRejectedError("create repository", 201)
	}

	summary := toRepositorySummary(repo)
	return &summary, nil
}

// toRepositorySummary はGitHubレスポンスからドメインモデルに変換する。
func toRepositorySummary(r repoJSON) model.RepositorySummary {
	return model.RepositorySummary{
		Name:          r.Name,
		FullName:      r.FullName,
		Description:   r.Description,
		Private:       r.Private,
		DefaultBranch: r.DefaultBranch,
		HTMLURL:       r.HTMLURL,
		UpdatedAt:     r.UpdatedAt,
	}
}
