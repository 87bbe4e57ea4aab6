package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// RawFetcher はdownload_urlからファイル内容を取得する。
// download_urlは上流レスポンスに含まれる値であり自前の設定ではないため、
// safeurlによりプライベートIP・ループバック・リンクローカル・メタデータIP
// へのリクエストをブロックする。DNS再バインディング攻撃への対策も有効化される。
type RawFetcher struct {
	httpClient *http.Client
	maxSize    int64
}

// NewRawFetcher はRawFetcherを生成する。
// maxSizeは読み取るレスポンスボディの上限バイト数。
func NewRawFetcher(timeout time.Duration, maxSize int64) *RawFetcher {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &RawFetcher{
		httpClient: safeurl.Client(config).Client,
		maxSize:    maxSize,
	}
}

// Fetch は指定URLからファイル内容を取得する。
func (f *RawFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raw fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raw fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read raw response: %w", err)
	}

	return data, nil
}

// compile-time interface check
var _ RawDownloader = (*RawFetcher)(nil)
