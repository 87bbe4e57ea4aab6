package handler

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/hitoshi/gitcloud/internal/model"
)

// ContentServiceInterface はコンテンツハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	ListContents(ctx context.Context, principal *model.Principal, repo, path string) ([]model.ContentEntry, error)
	GetFile(ctx context.Context, principal *model.Principal, repo, path string) (*model.FileContent, error)
}

// ContentHandler はリポジトリコンテンツ閲覧のHTTPハンドラー。
type ContentHandler struct {
	service ContentServiceInterface
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentServiceInterface) *ContentHandler {
	return &ContentHandler{service: service}
}

// contentEntryResponse はディレクトリ一覧の1エントリのAPIレスポンス。
type contentEntryResponse struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	Media       string `json:"media"`
}

// ListContents は指定リポジトリ・パスのディレクトリ一覧を返す。
// pathが空ならリポジトリルート。repoは必須。
// GET /api/contents?repo=xxx&path=yyy
func (h *ContentHandler) ListContents(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	repo := r.URL.Query().Get("repo")
	if repo == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRepoRequiredError())
		return
	}
	path := r.URL.Query().Get("path")

	entries, err := h.service.ListContents(r.Context(), principal, repo, path)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]contentEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, contentEntryResponse{
			Name:        entry.Name,
			Path:        entry.Path,
			Type:        string(entry.Type),
			SHA:         entry.SHA,
			Size:        entry.Size,
			DownloadURL: entry.DownloadURL,
			Media:       string(entry.Media),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetFile は単一ファイルの生の内容を返す。
// Content-Typeはファイル拡張子から推定し、不明な場合は
// application/octet-streamを使用する。
// GET /api/file?repo=xxx&path=yyy
func (h *ContentHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	repo := r.URL.Query().Get("repo")
	if repo == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRepoRequiredError())
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFieldRequiredError("path"))
		return
	}

	file, err := h.service.GetFile(r.Context(), principal, repo, path)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(file.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}
