package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/hitoshi/gitcloud/internal/model"
)

// entryJSON はGitHubコンテンツAPIのエントリレスポンス。
type entryJSON struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
}

// ListContents は指定パスのディレクトリ一覧を取得する。
// pathが空の場合はリポジトリルートを対象とする。
// 非2xx（not found、認可失敗を含む）は空リストに潰さず、
// 分類済みのAPIErrorとして呼び出し元に伝播する。
func (c *Client) ListContents(ctx context.Context, principal *model.Principal, repo, path string) ([]model.ContentEntry, error) {
	ref := model.RepositoryRef{Owner: principal.Login, Name: repo}

	body, err := c.getJSON(ctx, principal, "list contents", contentsPath(ref, path), nil)
	if err != nil {
		return nil, err
	}

	// ディレクトリは配列、単一ファイルはオブジェクトで返る
	var raw []entryJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		var single entryJSON
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, model.NewUpstreamRejectedError("list contents", 200)
		}
		raw = []entryJSON{single}
	}

	entries := make([]model.ContentEntry, 0, len(raw))
	for _, e := range raw {
		entry, err := toContentEntry(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// GetFile は単一ファイルの内容を取得する。
// コンテンツAPIがbase64で内容を返す場合はデコードして返す。
// 内容が含まれない場合（1MB超のファイル等）はdownload_url経由で取得する。
func (c *Client) GetFile(ctx context.Context, principal *model.Principal, repo, path string) (*model.FileContent, error) {
	ref := model.RepositoryRef{Owner: principal.Login, Name: repo}

	body, err := c.getJSON(ctx, principal, "get file", contentsPath(ref, path), nil)
	if err != nil {
		return nil, err
	}

	var e entryJSON
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, model.NewUpstreamRejectedError("get file", 200)
	}
	if e.Type != "" && e.Type != "file" {
		return nil, model.NewNotFoundError(path)
	}

	file := &model.FileContent{
		Name:        e.Name,
		Path:        strings.TrimPrefix(e.Path, "/"),
		SHA:         e.SHA,
		DownloadURL: e.DownloadURL,
	}

	if e.Encoding == "base64" && e.Content != "" {
		// GitHubはbase64内容に改行を含めて返す
		data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(e.Content, "\n", ""))
		if err != nil {
			return nil, model.NewUpstreamRejectedError("get file", 200)
		}
		file.Data = data
		return file, nil
	}

	if e.DownloadURL == "" {
		return nil, model.NewNotFoundError(path)
	}

	data, err := c.raw.Fetch(ctx, e.DownloadURL)
	if err != nil {
		return nil, model.NewUpstreamUnavailableError("get file")
	}
	file.Data = data
	return file, nil
}

// toContentEntry はGitHubレスポンスのエントリを境界で検証しつつ変換する。
// typeはfile/dir以外（symlink/submodule）をfileに正規化し、
// パスの先頭スラッシュを取り除く。
func toContentEntry(e entryJSON) (model.ContentEntry, error) {
	if e.Name == "" || e.SHA == "" {
		return model.ContentEntry{}, model.NewUpstreamRejectedError("list contents", 200)
	}

	entryType := model.EntryTypeFile
	if e.Type == "dir" {
		entryType = model.EntryTypeDir
	}

	entry := model.ContentEntry{
		Name:        e.Name,
		Path:        strings.TrimPrefix(e.Path, "/"),
		Type:        entryType,
		SHA:         e.SHA,
		Size:        e.Size,
		DownloadURL: e.DownloadURL,
	}

	if entryType == model.EntryTypeFile {
		entry.Media = model.ClassifyMedia(e.Name)
	}

	return entry, nil
}
