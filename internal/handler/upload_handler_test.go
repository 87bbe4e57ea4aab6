package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/gitcloud/internal/model"
)

// mockMutationService はMutationServiceInterfaceのモック実装。
type mockMutationService struct {
	uploadAllFn  func(ctx context.Context, principal *model.Principal, repo, dir string, files []model.UploadFile) []model.FileResult
	deleteFileFn func(ctx context.Context, principal *model.Principal, repo, path, sha string) error
	deleteAllFn  func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.FileResult, error)
}

func (m *mockMutationService) UploadAll(ctx context.Context, principal *model.Principal, repo, dir string, files []model.UploadFile) []model.FileResult {
	if m.uploadAllFn != nil {
		return m.uploadAllFn(ctx, principal, repo, dir, files)
	}
	return nil
}

func (m *mockMutationService) DeleteFile(ctx context.Context, principal *model.Principal, repo, path, sha string) error {
	if m.deleteFileFn != nil {
		return m.deleteFileFn(ctx, principal, repo, path, sha)
	}
	return errors.New("not implemented")
}

func (m *mockMutationService) DeleteAll(ctx context.Context, principal *model.Principal, repo, path string) ([]model.FileResult, error) {
	if m.deleteAllFn != nil {
		return m.deleteAllFn(ctx, principal, repo, path)
	}
	return nil, errors.New("not implemented")
}

// mockBatchMetrics はBatchMetricsRecorderのモック実装。
type mockBatchMetrics struct {
	partialBatchCount int
}

func (m *mockBatchMetrics) RecordPartialBatch() {
	m.partialBatchCount++
}

func testUploadConfig() UploadHandlerConfig {
	return UploadHandlerConfig{MaxUploadSize: 25 * 1024 * 1024}
}

// buildMultipartRequest はアップロードテスト用のmultipartリクエストを構築する。
func buildMultipartRequest(t *testing.T, repo, dir string, files map[string][]byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if repo != "" {
		if err := mw.WriteField("repo", repo); err != nil {
			t.Fatalf("failed to write repo field: %v", err)
		}
	}
	if dir != "" {
		if err := mw.WriteField("path", dir); err != nil {
			t.Fatalf("failed to write path field: %v", err)
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("failed to write file data: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withPrincipal(req, "octocat")
}

// --- POST /api/upload テスト ---

func TestUploadHandler_Upload_AllSucceed_Returns200(t *testing.T) {
	svc := &mockMutationService{
		uploadAllFn: func(ctx context.Context, principal *model.Principal, repo, dir string, files []model.UploadFile) []model.FileResult {
			if repo != "demo" {
				t.Errorf("repo = %q, want demo", repo)
			}
			if dir != "docs" {
				t.Errorf("dir = %q, want docs", dir)
			}
			results := make([]model.FileResult, 0, len(files))
			for _, f := range files {
				results = append(results, model.FileResult{Name: f.Name, Path: "docs/" + f.Name, SHA: "sha-" + f.Name})
			}
			return results
		},
	}
	metrics := &mockBatchMetrics{}

	h := NewUploadHandler(svc, metrics, testUploadConfig())

	req := buildMultipartRequest(t, "demo", "docs", map[string][]byte{
		"a.txt": []byte("aaa"),
		"b.txt": []byte("bbb"),
	})
	w := httptest.NewRecorder()

	h.Upload(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Succeeded != 2 || body.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 2/0", body.Succeeded, body.Failed)
	}
	if len(body.Results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(body.Results))
	}
	if metrics.partialBatchCount != 0 {
		t.Errorf("partialBatchCount = %d, want 0", metrics.partialBatchCount)
	}
}

func TestUploadHandler_Upload_PartialFailure_Returns207(t *testing.T) {
	svc := &mockMutationService{
		uploadAllFn: func(ctx context.Context, principal *model.Principal, repo, dir string, files []model.UploadFile) []model.FileResult {
			return []model.FileResult{
				{Name: "a.txt", Path: "a.txt", SHA: "sha-a"},
				{Name: "b.txt", Path: "b.txt", Err: model.NewConflictError("b.txt")},
			}
		},
	}
	metrics := &mockBatchMetrics{}

	h := NewUploadHandler(svc, metrics, testUploadConfig())

	req := buildMultipartRequest(t, "demo", "", map[string][]byte{
		"a.txt": []byte("a"),
		"b.txt": []byte("b"),
	})
	w := httptest.NewRecorder()

	h.Upload(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", resp.StatusCode)
	}

	var body batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Succeeded != 1 || body.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", body.Succeeded, body.Failed)
	}

	// 失敗したファイルにエラー詳細が含まれる
	var failedResult *fileResultResponse
	for i := range body.Results {
		if !body.Results[i].OK {
			failedResult = &body.Results[i]
		}
	}
	if failedResult == nil {
		t.Fatal("expected a failed result in response")
	}
	if failedResult.Error == nil || failedResult.Error.Code != model.ErrCodeConflict {
		t.Errorf("failed result error = %+v, want CONFLICT", failedResult.Error)
	}

	if metrics.partialBatchCount != 1 {
		t.Errorf("partialBatchCount = %d, want 1", metrics.partialBatchCount)
	}
}

func TestUploadHandler_Upload_NoFiles_Returns400(t *testing.T) {
	uploadCalled := false
	svc := &mockMutationService{
		uploadAllFn: func(ctx context.Context, principal *model.Principal, repo, dir string, files []model.UploadFile) []model.FileResult {
			uploadCalled = true
			return nil
		},
	}

	h := NewUploadHandler(svc, nil, testUploadConfig())

	req := buildMultipartRequest(t, "demo", "", nil)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if uploadCalled {
		t.Error("service must not be called without files")
	}

	var body apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeFilesRequired {
		t.Errorf("error code = %q, want FILES_REQUIRED", body.Code)
	}
}

func TestUploadHandler_Upload_MissingRepo_Returns400(t *testing.T) {
	h := NewUploadHandler(&mockMutationService{}, nil, testUploadConfig())

	req := buildMultipartRequest(t, "", "", map[string][]byte{"a.txt": []byte("a")})
	w := httptest.NewRecorder()

	h.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUploadHandler_Upload_NoPrincipal_ReturnsUnauthorized(t *testing.T) {
	h := NewUploadHandler(&mockMutationService{}, nil, testUploadConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// --- DELETE /api/delete-file テスト ---

func TestUploadHandler_DeleteFile_Success(t *testing.T) {
	svc := &mockMutationService{
		deleteFileFn: func(ctx context.Context, principal *model.Principal, repo, path, sha string) error {
			if repo != "demo" || path != "docs/a.txt" || sha != "sha-a" {
				t.Errorf("args = %q %q %q, want demo docs/a.txt sha-a", repo, path, sha)
			}
			return nil
		},
	}

	h := NewUploadHandler(svc, nil, testUploadConfig())

	reqBody := `{"repo":"demo","path":"docs/a.txt","sha":"sha-a"}`
	req := httptest.NewRequest(http.MethodDelete, "/api/delete-file", strings.NewReader(reqBody))
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.DeleteFile(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestUploadHandler_DeleteFile_MissingFields_Returns400(t *testing.T) {
	h := NewUploadHandler(&mockMutationService{}, nil, testUploadConfig())

	tests := []struct {
		name string
		body string
	}{
		{"missing repo", `{"path":"a.txt","sha":"s"}`},
		{"missing path", `{"repo":"demo","sha":"s"}`},
		{"missing sha", `{"repo":"demo","path":"a.txt"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/delete-file", strings.NewReader(tt.body))
			req = withPrincipal(req, "octocat")
			w := httptest.NewRecorder()

			h.DeleteFile(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

// 一覧取得後に対象が変更された場合、誤ったバージョンを黙って削除せず409を返す。
func TestUploadHandler_DeleteFile_StaleSHA_Returns409(t *testing.T) {
	svc := &mockMutationService{
		deleteFileFn: func(ctx context.Context, principal *model.Principal, repo, path, sha string) error {
			return model.NewConflictError(path)
		},
	}

	h := NewUploadHandler(svc, nil, testUploadConfig())

	reqBody := `{"repo":"demo","path":"a.txt","sha":"stale"}`
	req := httptest.NewRequest(http.MethodDelete, "/api/delete-file", strings.NewReader(reqBody))
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.DeleteFile(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

// --- POST /api/delete-all テスト ---

func TestUploadHandler_DeleteAll_Success_Returns200(t *testing.T) {
	svc := &mockMutationService{
		deleteAllFn: func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.FileResult, error) {
			return []model.FileResult{
				{Name: "a.txt", Path: "a.txt", SHA: "sha-a"},
				{Name: "b.txt", Path: "b.txt", SHA: "sha-b"},
			}, nil
		},
	}

	h := NewUploadHandler(svc, nil, testUploadConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/delete-all", strings.NewReader(`{"repo":"demo"}`))
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.DeleteAll(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Succeeded != 2 || body.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 2/0", body.Succeeded, body.Failed)
	}
}

func TestUploadHandler_DeleteAll_PartialFailure_Returns207(t *testing.T) {
	svc := &mockMutationService{
		deleteAllFn: func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.FileResult, error) {
			return []model.FileResult{
				{Name: "a.txt", Path: "a.txt", SHA: "sha-a"},
				{Name: "b.txt", Path: "b.txt", SHA: "sha-b", Err: model.NewConflictError("b.txt")},
			}, nil
		},
	}
	metrics := &mockBatchMetrics{}

	h := NewUploadHandler(svc, metrics, testUploadConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/delete-all", strings.NewReader(`{"repo":"demo","path":"docs"}`))
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.DeleteAll(w, req)

	if w.Code != http.StatusMultiStatus {
		t.Errorf("status = %d, want 207", w.Code)
	}
	if metrics.partialBatchCount != 1 {
		t.Errorf("partialBatchCount = %d, want 1", metrics.partialBatchCount)
	}
}

func TestUploadHandler_DeleteAll_MissingRepo_Returns400(t *testing.T) {
	h := NewUploadHandler(&mockMutationService{}, nil, testUploadConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/delete-all", strings.NewReader(`{"path":"docs"}`))
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.DeleteAll(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUploadHandler_DeleteAll_ListFails_PropagatesError(t *testing.T) {
	svc := &mockMutationService{
		deleteAllFn: func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.FileResult, error) {
			return nil, model.NewNotFoundError(path)
		},
	}

	h := NewUploadHandler(svc, nil, testUploadConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/delete-all", strings.NewReader(`{"repo":"demo","path":"missing"}`))
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.DeleteAll(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
