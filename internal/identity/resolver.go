// Package identity はリクエストに付与されたアクセストークンから
// 認証済みPrincipalを解決する機能を提供する。
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/gitcloud/internal/model"
)

const defaultUserURL = "https://api.github.com/user"

// cacheEntry はトークンに対するログイン名の解決結果を保持する。
type cacheEntry struct {
	login     string
	expiresAt time.Time
}

// Resolver はアクセストークンからPrincipalを解決する。
// ログイン名の解決結果をトークンのハッシュをキーとして短時間キャッシュし、
// リクエストごとのGitHub API呼び出しを抑える。
// トークンそのものは永続化せず、キャッシュのキーにも使用しない。
type Resolver struct {
	httpClient *http.Client
	logger     *slog.Logger
	userURL    string // テスト用にオーバーライド可能
	ttl        time.Duration

	mu    sync.RWMutex
	cache map[string]*cacheEntry

	stopCh chan struct{}
}

// NewResolver はResolverを生成する。
// バックグラウンドで期限切れキャッシュエントリのクリーンアップを開始する。
func NewResolver(httpClient *http.Client, logger *slog.Logger, ttl time.Duration) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	r := &Resolver{
		httpClient: httpClient,
		logger:     logger,
		userURL:    defaultUserURL,
		ttl:        ttl,
		cache:      make(map[string]*cacheEntry),
		stopCh:     make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *Resolver) Stop() {
	close(r.stopCh)
}

// Resolve はアクセストークンからPrincipalを解決する。
// キャッシュにヒットした場合はGitHub APIを呼び出さない。
// トークンが無効な場合はUNAUTHORIZEDのAPIErrorを返す。
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, model.NewUnauthorizedError()
	}

	key := cacheKey(token)

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return &model.Principal{AccessToken: token, Login: entry.login}, nil
	}

	login, err := r.fetchLogin(ctx, token)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = &cacheEntry{
		login:     login,
		expiresAt: time.Now().Add(r.ttl),
	}
	r.mu.Unlock()

	return &model.Principal{AccessToken: token, Login: login}, nil
}

// fetchLogin はGitHubのユーザーエンドポイントでログイン名を解決する。
func (r *Resolver) fetchLogin(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Error("failed to reach GitHub user endpoint",
			slog.String("error", err.Error()),
		)
		return "", model.NewUpstreamUnavailableError("resolve login")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.NewUpstreamUnavailableError("resolve login")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to parse
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// GitHubからの認可失敗はトークン無効のシグナルとして扱う
		return "", model.NewUnauthorizedError()
	default:
		return "", model.NewUpstreamRejectedError("resolve login", resp.StatusCode)
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", model.NewUpstreamRejectedError("resolve login", resp.StatusCode)
	}
	if user.Login == "" {
		return "", model.NewUnauthorizedError()
	}

	return user.Login, nil
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (r *Resolver) cleanupLoop() {
	interval := r.ttl
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup は期限切れのキャッシュエントリを削除する。
func (r *Resolver) cleanup() {
	now := time.Now()

	r.mu.Lock()
	for key, entry := range r.cache {
		if now.After(entry.expiresAt) {
			delete(r.cache, key)
		}
	}
	r.mu.Unlock()
}

// CacheSize は現在のキャッシュエントリ数を返す。テスト用。
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// SetUserURL はログイン名解決に使用するエンドポイントを差し替える。テスト用。
func (r *Resolver) SetUserURL(url string) {
	r.userURL = url
}

// cacheKey はトークンのSHA-256ハッシュをキャッシュキーとして返す。
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
