package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/services"
	"github.com/docregistry/apiserver/internal/storage"
	"github.com/docregistry/apiserver/internal/store"
)

const (
	maxAttachmentBytes = 32 << 20
	maxMultipartMemory = 8 << 20
	formFieldFile      = "file"
)

// AttachmentResponse is returned after a successful upload.
type AttachmentResponse struct {
	DocumentID    int    `json:"document_id"`
	AttachmentKey string `json:"attachment_key"`
}

// DocumentHandler serves document scans.
type DocumentHandler struct {
	documents *services.DocumentService
	log       *logger.Logger
}

func NewDocumentHandler(documents *services.DocumentService, log *logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentHandler{documents: documents, log: log.Named("documents")}
}

// DocumentRouter registers attachment routes on the given router.
func DocumentRouter(
	r chi.Router,
	documents *services.DocumentService,
	authMiddleware func(http.Handler) http.Handler,
	clerkMiddleware func(http.Handler) http.Handler,
	log *logger.Logger,
) {
	handler := NewDocumentHandler(documents, log)

	r.Route("/{documentID}/attachment", func(r chi.Router) {
		r.With(authMiddleware).Get("/", handler.GetAttachment)
		r.With(clerkMiddleware).Put("/", handler.PutAttachment)
	})
}

// PutAttachment stores the multipart "file" field as the document's scan.
func (h *DocumentHandler) PutAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "documentID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes+(1<<20))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "attachment too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	if header.Size > maxAttachmentBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "attachment too large")
		return
	}
	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "empty file")
		return
	}

	document, err := h.documents.Attach(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AttachmentResponse{DocumentID: document.ID, AttachmentKey: document.AttachmentKey})
}

// GetAttachment streams the document's scan.
func (h *DocumentHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "documentID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	rc, document, err := h.documents.OpenAttachment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	ext := path.Ext(document.AttachmentKey)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("%s%s", document.ReferenceNumber, ext),
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WithContext(r.Context()).Warn("stream attachment", zap.Int("document_id", id), zap.Error(err))
	}
}

func (h *DocumentHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, storage.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithContext(r.Context()).Error("attachment request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
