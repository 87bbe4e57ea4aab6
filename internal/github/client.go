// Package github はGitHub REST APIへの変換層を提供する。
// リポジトリ一覧・作成、コンテンツ一覧、ファイルのアップロード・削除を
// 認証済みPrincipalのトークンで呼び出し、レスポンスを境界で検証する。
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/gitcloud/internal/model"
)

// defaultAPIBaseURL はGitHub REST APIのベースURL。
const defaultAPIBaseURL = "https://api.github.com"

// MetricsRecorder はクライアントが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordUpstreamRequest(operation string, statusCode int)
	RecordUpstreamLatency(operation string, duration time.Duration)
	RecordUploadBytes(n int)
}

// RawDownloader はコンテンツAPIが報告するdownload_urlからファイル内容を
// 取得するインターフェース。URLが自前の設定ではなく上流レスポンス由来で
// あるため、実装はSSRF防止付きクライアントを使用する。
type RawDownloader interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	// APIBaseURL はGitHub APIのベースURL。テスト用にオーバーライド可能。
	APIBaseURL string
	// ReadRetryMax は読み取り操作のトランスポート失敗時の最大リトライ回数。
	// 書き込み操作（作成・アップロード・削除）は重複コミットを避けるため
	// リトライしない。
	ReadRetryMax int
}

// Client はGitHub REST APIのクライアント。
// 全操作がPrincipalを明示的に受け取り、暗黙の認証状態を持たない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder
	raw        RawDownloader
	config     ClientConfig
}

// NewClient はClientを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics MetricsRecorder, raw RawDownloader, config ClientConfig) *Client {
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		raw:        raw,
		config:     config,
	}
}

// retryWait はリトライ前の待機時間。
const retryWait = 200 * time.Millisecond

// getJSON はGETリクエストを実行し、200レスポンスのボディを返す。
// トランスポート失敗のみReadRetryMax回まで再試行する。
// 非2xxは再試行せず、即座にAPIErrorへ分類して返す。
func (c *Client) getJSON(ctx context.Context, principal *model.Principal, operation, apiPath string, query url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.ReadRetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, model.NewUpstreamUnavailableError(operation)
			case <-time.After(retryWait):
			}
		}

		body, apiErr, retryable := c.doOnce(ctx, principal, operation, http.MethodGet, apiPath, query, nil, http.StatusOK)
		if apiErr == nil {
			return body, nil
		}
		if !retryable {
			return nil, apiErr
		}
		lastErr = apiErr
	}

	return nil, lastErr
}

// doWrite は書き込みリクエストを1回だけ実行する。リトライしない。
func (c *Client) doWrite(ctx context.Context, principal *model.Principal, operation, method, apiPath string, reqBody any, wantStatus ...int) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	body, apiErr, _ := c.doOnce(ctx, principal, operation, method, apiPath, nil, bodyReader, wantStatus...)
	if apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

// doOnce は1回のAPIリクエストを実行する。
// 戻り値のretryableはトランスポート失敗（接続不可等）の場合のみtrue。
func (c *Client) doOnce(ctx context.Context, principal *model.Principal, operation, method, apiPath string, query url.Values, reqBody io.Reader, wantStatus ...int) (respBody []byte, apiErr *model.APIError, retryable bool) {
	reqURL := c.config.APIBaseURL + apiPath
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, model.NewUpstreamUnavailableError(operation), false
	}
	req.Header.Set("Authorization", "Bearer "+principal.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(operation, time.Since(start))
	}
	if err != nil {
		// トークンを含めないため、URLではなく操作名のみをログに残す
		c.logger.Error("GitHub API request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		if c.metrics != nil {
			c.metrics.RecordUpstreamRequest(operation, 0)
		}
		return nil, model.NewUpstreamUnavailableError(operation), true
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(operation, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewUpstreamUnavailableError(operation), true
	}

	for _, want := range wantStatus {
		if resp.StatusCode == want {
			return body, nil, false
		}
	}

	return nil, c.classifyStatus(operation, resp.StatusCode, resp.Header), false
}

// classifyStatus はGitHub APIの非2xxステータスをAPIErrorに分類する。
// 404は未検出、401は認可失敗（トークン無効のシグナル）、409/422は
// sha不一致等の競合、403はレート制限ヘッダーの有無で区別する。
func (c *Client) classifyStatus(operation string, statusCode int, header http.Header) *model.APIError {
	c.logger.Warn("GitHub API returned error status",
		slog.String("operation", operation),
		slog.Int("status", statusCode),
	)

	switch statusCode {
	case http.StatusUnauthorized:
		return model.NewUnauthorizedError()
	case http.StatusNotFound:
		return model.NewNotFoundError(operation)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return model.NewConflictError(operation)
	case http.StatusForbidden:
		if header.Get("X-RateLimit-Remaining") == "0" {
			return model.NewRateLimitedError()
		}
		return model.NewForbiddenError(operation)
	case http.StatusTooManyRequests:
		return model.NewRateLimitedError()
	default:
		return model.NewUpstreamRejectedError(operation, statusCode)
	}
}

// contentsPath は /repos/{owner}/{repo}/contents/{path} のAPIパスを構築する。
// pathが空の場合はリポジトリルートを指す。各セグメントはエスケープする。
func contentsPath(ref model.RepositoryRef, filePath string) string {
	base := fmt.Sprintf("/repos/%s/%s/contents", url.PathEscape(ref.Owner), url.PathEscape(ref.Name))
	filePath = strings.TrimPrefix(filePath, "/")
	if filePath == "" {
		return base
	}
	segments := strings.Split(filePath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return base + "/" + strings.Join(segments, "/")
}

// joinPath はアップロード先ディレクトリとファイル名からリポジトリ内の
// 対象パスを構築する。dirが空の場合はファイル名のみとなる。
func joinPath(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
