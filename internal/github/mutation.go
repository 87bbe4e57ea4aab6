package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gitcloud/internal/model"
)

// uploadRequest はコンテンツ作成・更新APIのリクエストボディ。
// contentはbase64エンコード必須（APIがバイナリを受け付けないため）。
type uploadRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
}

// deleteRequest はコンテンツ削除APIのリクエストボディ。
// shaは一覧取得時に観測した値をそのまま渡す（楽観的バージョントークン）。
type deleteRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
}

// uploadResponse はコンテンツ作成・更新APIのレスポンス。
type uploadResponse struct {
	Content struct {
		Name string `json:"name"`
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
}

// UploadFile は1ファイルをリポジトリにコミットする。
// 対象パスはdirが空でなければ dir/name、空ならname。
// コミットメッセージはファイル名を含めて生成する。リトライしない。
func (c *Client) UploadFile(ctx context.Context, principal *model.Principal, repo, dir string, file model.UploadFile) (*model.FileResult, error) {
	target := joinPath(dir, file.Name)
	ref := model.RepositoryRef{Owner: principal.Login, Name: repo}

	reqBody := uploadRequest{
		Message: fmt.Sprintf("Upload %s", file.Name),
		Content: base64.StdEncoding.EncodeToString(file.Data),
	}

	// 新規作成は201、既存パスの更新は200で返る
	body, err := c.doWrite(ctx, principal, "upload file", "PUT", contentsPath(ref, target), reqBody, 201, 200)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordUploadBytes(len(file.Data))
	}

	result := &model.FileResult{Name: file.Name, Path: target}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		result.SHA = resp.Content.SHA
	}

	return result, nil
}

// UploadAll は複数ファイルを順次アップロードし、ファイルごとの結果を返す。
// 各ファイルは独立したGitHubコミットとなり、アトミックな複数ファイル
// アップロードは存在しない。途中のファイルが失敗しても後続を続行する
// （部分成功がGitHub API上の現実的な結果であり、全体成功・全体失敗に
// 偽装してはならない）。
func (c *Client) UploadAll(ctx context.Context, principal *model.Principal, repo, dir string, files []model.UploadFile) []model.FileResult {
	results := make([]model.FileResult, 0, len(files))

	for _, file := range files {
		result, err := c.UploadFile(ctx, principal, repo, dir, file)
		if err != nil {
			results = append(results, model.FileResult{
				Name: file.Name,
				Path: joinPath(dir, file.Name),
				Err:  toAPIError(err),
			})
			continue
		}
		results = append(results, *result)
	}

	return results
}

// DeleteFile は指定パスのファイルを削除する。
// shaは呼び出し元が直近の一覧取得で観測した値でなければならない。
// 一覧取得後に対象が変更されていた場合、GitHubはsha不一致を報告し、
// CONFLICTとして伝播する（誤ったバージョンを黙って削除することはない）。
func (c *Client) DeleteFile(ctx context.Context, principal *model.Principal, repo, path, sha string) error {
	ref := model.RepositoryRef{Owner: principal.Login, Name: repo}

	reqBody := deleteRequest{
		Message: fmt.Sprintf("Delete %s", path),
		SHA:     sha,
	}

	_, err := c.doWrite(ctx, principal, "delete file", "DELETE", contentsPath(ref, path), reqBody, 200)
	return err
}

// DeleteAll は指定パス直下の全ファイルエントリを順次削除する。
// 一覧取得で現在のshaを取得してから1件ずつDeleteFileを呼び出す
// 合成操作であり、アトミックではない。ディレクトリエントリは対象外。
// どのファイルの削除が成功・失敗したかをファイルごとの結果で返す。
func (c *Client) DeleteAll(ctx context.Context, principal *model.Principal, repo, path string) ([]model.FileResult, error) {
	entries, err := c.ListContents(ctx, principal, repo, path)
	if err != nil {
		return nil, err
	}

	results := make([]model.FileResult, 0, len(entries))

	for _, entry := range entries {
		if entry.Type != model.EntryTypeFile {
			continue
		}

		result := model.FileResult{Name: entry.Name, Path: entry.Path, SHA: entry.SHA}
		if err := c.DeleteFile(ctx, principal, repo, entry.Path, entry.SHA); err != nil {
			result.Err = toAPIError(err)
			c.logger.Warn("failed to delete file in batch",
				slog.String("path", entry.Path),
				slog.String("error", err.Error()),
			)
		}
		results = append(results, result)
	}

	return results, nil
}

// toAPIError はエラーをAPIErrorに変換する。
// 分類済みでないエラーは上流到達失敗として扱う。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewUpstreamUnavailableError("mutation")
}
