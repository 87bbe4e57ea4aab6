package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gitcloud/internal/model"
)

// MutationServiceInterface はアップロード・削除ハンドラーが必要とするサービスインターフェース。
type MutationServiceInterface interface {
	UploadAll(ctx context.Context, principal *model.Principal, repo, dir string, files []model.UploadFile) []model.FileResult
	DeleteFile(ctx context.Context, principal *model.Principal, repo, path, sha string) error
	DeleteAll(ctx context.Context, principal *model.Principal, repo, path string) ([]model.FileResult, error)
}

// BatchMetricsRecorder はバッチ操作の部分失敗を記録する。
type BatchMetricsRecorder interface {
	RecordPartialBatch()
}

// UploadHandlerConfig はアップロードハンドラーの設定。
type UploadHandlerConfig struct {
	MaxUploadSize int64 // multipartボディ全体の上限バイト数
}

// UploadHandler はファイルのアップロード・削除のHTTPハンドラー。
type UploadHandler struct {
	service MutationServiceInterface
	metrics BatchMetricsRecorder
	config  UploadHandlerConfig
}

// NewUploadHandler はUploadHandlerを生成する。metricsはnil可。
func NewUploadHandler(service MutationServiceInterface, metrics BatchMetricsRecorder, config UploadHandlerConfig) *UploadHandler {
	return &UploadHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// fileResultResponse はバッチ操作の1ファイル分の結果レスポンス。
type fileResultResponse struct {
	Name  string            `json:"name"`
	Path  string            `json:"path"`
	SHA   string            `json:"sha,omitempty"`
	OK    bool              `json:"ok"`
	Error *apiErrorResponse `json:"error,omitempty"`
}

// batchResponse はバッチ操作全体のレスポンス。
type batchResponse struct {
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []fileResultResponse `json:"results"`
}

// Upload は複数ファイルをリポジトリにアップロードする。
// multipart/form-dataでfilesフィールドにファイル、repoに対象リポジトリ、
// pathに格納先ディレクトリ（省略時はルート）を指定する。
// 全件成功なら200、一部失敗なら207でファイルごとの結果を返す。
// POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	if err := r.ParseMultipartForm(h.config.MaxUploadSize); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("multipartボディの解析に失敗しました"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	repo := r.FormValue("repo")
	if repo == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRepoRequiredError())
		return
	}
	dir := r.FormValue("path")

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFilesRequiredError())
		return
	}

	files := make([]model.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("ファイルの読み取りに失敗しました"))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("ファイルの読み取りに失敗しました"))
			return
		}
		files = append(files, model.UploadFile{Name: fh.Filename, Data: data})
	}

	results := h.service.UploadAll(r.Context(), principal, repo, dir, files)
	h.writeBatchResponse(w, principal.Login, "upload", results)
}

// deleteFileRequest はファイル削除リクエスト。
// shaは一覧取得時に観測した値（楽観的バージョントークン）。
type deleteFileRequest struct {
	Repo string `json:"repo"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
}

// DeleteFile は指定パスのファイルを1件削除する。
// repo・path・shaすべて必須。shaが現在値と一致しない場合は409。
// DELETE /api/delete-file
func (h *UploadHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req deleteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONボディが不正です"))
		return
	}

	if req.Repo == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRepoRequiredError())
		return
	}
	if req.Path == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFieldRequiredError("path"))
		return
	}
	if req.SHA == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFieldRequiredError("sha"))
		return
	}

	if err := h.service.DeleteFile(r.Context(), principal, req.Repo, req.Path, req.SHA); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "path": req.Path})
}

// deleteAllRequest は一括削除リクエスト。pathは省略時リポジトリルート。
type deleteAllRequest struct {
	Repo string `json:"repo"`
	Path string `json:"path"`
}

// DeleteAll は指定パス直下の全ファイルを削除する。
// 合成操作でありアトミックではない。ファイルごとの結果を返す。
// POST /api/delete-all
func (h *UploadHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req deleteAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONボディが不正です"))
		return
	}

	if req.Repo == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRepoRequiredError())
		return
	}

	results, err := h.service.DeleteAll(r.Context(), principal, req.Repo, req.Path)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeBatchResponse(w, principal.Login, "delete all", results)
}

// writeBatchResponse はバッチ結果を集計してレスポンスを書き込む。
// 全件成功は200、失敗を含む場合は207 Multi-Statusで返し、
// どのファイルが成功・失敗したかを必ず列挙する。
func (h *UploadHandler) writeBatchResponse(w http.ResponseWriter, login, operation string, results []model.FileResult) {
	succeeded, failed := model.CountResults(results)

	resp := batchResponse{
		Succeeded: succeeded,
		Failed:    failed,
		Results:   make([]fileResultResponse, 0, len(results)),
	}
	for _, result := range results {
		fr := fileResultResponse{
			Name: result.Name,
			Path: result.Path,
			SHA:  result.SHA,
			OK:   result.OK(),
		}
		if result.Err != nil {
			fr.Error = &apiErrorResponse{
				Code:     result.Err.Code,
				Message:  result.Err.Message,
				Category: result.Err.Category,
				Action:   result.Err.Action,
			}
		}
		resp.Results = append(resp.Results, fr)
	}

	statusCode := http.StatusOK
	if failed > 0 {
		statusCode = http.StatusMultiStatus
		if h.metrics != nil {
			h.metrics.RecordPartialBatch()
		}
		slog.Warn("batch operation partially failed",
			slog.String("login", login),
			slog.String("operation", operation),
			slog.Int("succeeded", succeeded),
			slog.Int("failed", failed),
		)
	}

	writeJSON(w, statusCode, resp)
}
