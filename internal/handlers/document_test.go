package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/internal/services"
	"github.com/docregistry/apiserver/internal/storage"
	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

type memDocuments map[int]types.Document

func (m memDocuments) List(context.Context, types.DocumentFilter, int, int) ([]types.Document, int, error) {
	return nil, 0, nil
}

func (m memDocuments) Get(_ context.Context, id int) (types.Document, error) {
	d, ok := m[id]
	if !ok {
		return types.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (m memDocuments) Create(_ context.Context, d types.Document) (types.Document, error) {
	return d, nil
}

func (m memDocuments) Update(_ context.Context, d types.Document) (types.Document, error) {
	return d, nil
}

func (m memDocuments) SetAttachment(_ context.Context, id int, key string) error {
	d, ok := m[id]
	if !ok {
		return store.ErrNotFound
	}
	d.AttachmentKey = key
	m[id] = d
	return nil
}

func (m memDocuments) Delete(_ context.Context, id int) error {
	delete(m, id)
	return nil
}

type noPersons struct{}

func (noPersons) Get(context.Context, int) (types.Person, error) {
	return types.Person{}, store.ErrNotFound
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &body, w.FormDataContentType()
}

func TestDocumentAttachmentRoutes(t *testing.T) {
	issuer, err := auth.NewIssuer(auth.Config{AccessSecret: "a", RefreshSecret: "r"})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	clerk, _ := issuer.Issue(types.User{ID: 1, Clerk: true})
	reader, _ := issuer.Issue(types.User{ID: 2})

	docs := memDocuments{7: {ID: 7, ReferenceNumber: "IN-7"}}
	documents := services.NewDocumentService(docs, noPersons{}, storage.NewMemoryStorage("test"), nil)

	router := chi.NewRouter()
	router.Route("/documents", func(r chi.Router) {
		DocumentRouter(r, documents, RequireAuth(issuer), RequireClerk(issuer), nil)
	})

	do := func(method, target, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
		if body == nil {
			body = &bytes.Buffer{}
		}
		req := httptest.NewRequest(method, target, body)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodGet, "/documents/7/attachment", reader.AccessToken, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before upload, got %d", rec.Code)
	}

	body, ct := multipartBody(t, "file", "scan.pdf", []byte("%PDF-1.4"))
	if rec := do(http.MethodPut, "/documents/7/attachment", reader.AccessToken, body, ct); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-clerk upload, got %d", rec.Code)
	}

	body, ct = multipartBody(t, "other", "scan.pdf", []byte("%PDF-1.4"))
	if rec := do(http.MethodPut, "/documents/7/attachment", clerk.AccessToken, body, ct); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing file field, got %d", rec.Code)
	}

	body, ct = multipartBody(t, "file", "scan.pdf", []byte("%PDF-1.4"))
	if rec := do(http.MethodPut, "/documents/99/attachment", clerk.AccessToken, body, ct); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown document, got %d", rec.Code)
	}

	body, ct = multipartBody(t, "file", "scan.pdf", []byte("%PDF-1.4"))
	if rec := do(http.MethodPut, "/documents/7/attachment", clerk.AccessToken, body, ct); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for upload, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := do(http.MethodGet, "/documents/7/attachment", reader.AccessToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for download, got %d", rec.Code)
	}
	if rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected nosniff on downloads")
	}

	if rec := do(http.MethodGet, "/documents/7/attachment", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestDocumentAttachmentStorageDisabled(t *testing.T) {
	issuer, _ := auth.NewIssuer(auth.Config{AccessSecret: "a", RefreshSecret: "r"})
	clerk, _ := issuer.Issue(types.User{ID: 1, Clerk: true})
	documents := services.NewDocumentService(memDocuments{7: {ID: 7}}, noPersons{}, nil, nil)

	router := chi.NewRouter()
	router.Route("/documents", func(r chi.Router) {
		DocumentRouter(r, documents, RequireAuth(issuer), RequireClerk(issuer), nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/documents/7/attachment", nil)
	req.Header.Set("Authorization", "Bearer "+clerk.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
