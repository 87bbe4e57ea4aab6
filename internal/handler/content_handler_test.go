package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gitcloud/internal/model"
)

// mockContentService はContentServiceInterfaceのモック実装。
type mockContentService struct {
	listContentsFn func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.ContentEntry, error)
	getFileFn      func(ctx context.Context, principal *model.Principal, repo, path string) (*model.FileContent, error)
}

func (m *mockContentService) ListContents(ctx context.Context, principal *model.Principal, repo, path string) ([]model.ContentEntry, error) {
	if m.listContentsFn != nil {
		return m.listContentsFn(ctx, principal, repo, path)
	}
	return nil, errors.New("not implemented")
}

func (m *mockContentService) GetFile(ctx context.Context, principal *model.Principal, repo, path string) (*model.FileContent, error) {
	if m.getFileFn != nil {
		return m.getFileFn(ctx, principal, repo, path)
	}
	return nil, errors.New("not implemented")
}

// --- GET /api/contents テスト ---

func TestContentHandler_ListContents_Success(t *testing.T) {
	svc := &mockContentService{
		listContentsFn: func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.ContentEntry, error) {
			if repo != "demo" {
				t.Errorf("repo = %q, want demo", repo)
			}
			if path != "docs" {
				t.Errorf("path = %q, want docs", path)
			}
			return []model.ContentEntry{
				{Name: "logo.png", Path: "docs/logo.png", Type: model.EntryTypeFile, SHA: "sha-1", Media: model.MediaKindImage},
				{Name: "sub", Path: "docs/sub", Type: model.EntryTypeDir, SHA: "sha-2"},
			}, nil
		},
	}

	h := NewContentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contents?repo=demo&path=docs", nil)
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.ListContents(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body []contentEntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("len(body) = %d, want 2", len(body))
	}
	if body[0].Type != "file" || body[0].Media != "image" {
		t.Errorf("body[0] = %+v, want type=file media=image", body[0])
	}
	if body[1].Type != "dir" {
		t.Errorf("body[1].Type = %q, want dir", body[1].Type)
	}
}

func TestContentHandler_ListContents_MissingRepo_Returns400(t *testing.T) {
	h := NewContentHandler(&mockContentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/contents", nil)
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.ListContents(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeRepoRequired {
		t.Errorf("error code = %q, want REPO_REQUIRED", body.Code)
	}
}

func TestContentHandler_ListContents_EmptyPathMeansRoot(t *testing.T) {
	var gotPath string
	svc := &mockContentService{
		listContentsFn: func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.ContentEntry, error) {
			gotPath = path
			return []model.ContentEntry{}, nil
		},
	}

	h := NewContentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contents?repo=demo", nil)
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.ListContents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotPath != "" {
		t.Errorf("path = %q, want empty (repo root)", gotPath)
	}
}

func TestContentHandler_ListContents_NotFound_Returns404(t *testing.T) {
	svc := &mockContentService{
		listContentsFn: func(ctx context.Context, principal *model.Principal, repo, path string) ([]model.ContentEntry, error) {
			return nil, model.NewNotFoundError(path)
		},
	}

	h := NewContentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contents?repo=demo&path=missing", nil)
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.ListContents(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- GET /api/file テスト ---

func TestContentHandler_GetFile_Success_SetsContentType(t *testing.T) {
	svc := &mockContentService{
		getFileFn: func(ctx context.Context, principal *model.Principal, repo, path string) (*model.FileContent, error) {
			return &model.FileContent{
				Name: "logo.png",
				Path: "docs/logo.png",
				SHA:  "sha-1",
				Data: []byte("png-bytes"),
			}, nil
		},
	}

	h := NewContentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/file?repo=demo&path=docs/logo.png", nil)
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.GetFile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if w.Body.String() != "png-bytes" {
		t.Errorf("body = %q, want raw file bytes", w.Body.String())
	}
}

func TestContentHandler_GetFile_UnknownExtension_UsesOctetStream(t *testing.T) {
	svc := &mockContentService{
		getFileFn: func(ctx context.Context, principal *model.Principal, repo, path string) (*model.FileContent, error) {
			return &model.FileContent{Name: "data.zzz", Data: []byte("x")}, nil
		},
	}

	h := NewContentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/file?repo=demo&path=data.zzz", nil)
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()

	h.GetFile(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q, want application/octet-stream", ct)
	}
}

func TestContentHandler_GetFile_MissingParams_Returns400(t *testing.T) {
	h := NewContentHandler(&mockContentService{})

	// repoなし
	req := httptest.NewRequest(http.MethodGet, "/api/file?path=a.txt", nil)
	req = withPrincipal(req, "octocat")
	w := httptest.NewRecorder()
	h.GetFile(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing repo: status = %d, want 400", w.Code)
	}

	// pathなし
	req = httptest.NewRequest(http.MethodGet, "/api/file?repo=demo", nil)
	req = withPrincipal(req, "octocat")
	w = httptest.NewRecorder()
	h.GetFile(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path: status = %d, want 400", w.Code)
	}
}
