package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/internal/events"
	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

// DocumentRepository defines persistence operations for documents.
type DocumentRepository interface {
	List(ctx context.Context, filter types.DocumentFilter, offset, limit int) ([]types.Document, int, error)
	Get(ctx context.Context, id int) (types.Document, error)
	Create(ctx context.Context, document types.Document) (types.Document, error)
	Update(ctx context.Context, document types.Document) (types.Document, error)
	SetAttachment(ctx context.Context, id int, key string) error
	Delete(ctx context.Context, id int) error
}

// PersonLookup fetches a person by ID.
type PersonLookup interface {
	Get(ctx context.Context, id int) (types.Person, error)
}

// AttachmentStore is the subset of object storage used for document scans.
type AttachmentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DocumentService encapsulates document registration use-cases.
type DocumentService struct {
	repo    DocumentRepository
	persons PersonLookup
	storage AttachmentStore
	events  events.Publisher
	log     *logger.Logger
}

// NewDocumentService builds a DocumentService. attachments may be nil, in
// which case attachment operations return ErrStorageDisabled.
func NewDocumentService(repo DocumentRepository, persons PersonLookup, attachments AttachmentStore, publisher events.Publisher) *DocumentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &DocumentService{repo: repo, persons: persons, storage: attachments, events: publisher, log: logger.Nop()}
}

// WithLogger sets the logger used for storage cleanup failures.
func (s *DocumentService) WithLogger(log *logger.Logger) *DocumentService {
	s.log = log.Named("documents")
	return s
}

// removeScan deletes an object that is no longer referenced. A failure
// leaves an orphaned object behind, which is logged and not returned.
func (s *DocumentService) removeScan(ctx context.Context, documentID int, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.WithContext(ctx).Warn("orphaned attachment",
			zap.Int("document_id", documentID),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (s *DocumentService) List(ctx context.Context, filter types.DocumentFilter, offset, limit int) ([]types.Document, int, error) {
	offset, limit = clampPage(offset, limit)
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, invalid("from must not be after to")
	}
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *DocumentService) Get(ctx context.Context, id int) (types.Document, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a document on behalf of the clerk actorID.
func (s *DocumentService) Create(ctx context.Context, actorID int, document types.Document) (types.Document, error) {
	document, err := s.normalize(ctx, document)
	if err != nil {
		return types.Document{}, err
	}
	document.CreatedBy = actorID
	document.AttachmentKey = ""

	created, err := s.repo.Create(ctx, document)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Document{}, invalid("reference number %q already registered", document.ReferenceNumber)
		}
		return types.Document{}, err
	}

	s.events.Publish(ctx, events.Event{
		Type:      events.DocumentRegistered,
		ActorID:   actorID,
		SubjectID: created.ID,
		Data: map[string]any{
			"reference_number": created.ReferenceNumber,
			"kind":             string(created.Kind),
			"document_date":    created.DocumentDate.Format(time.DateOnly),
		},
	})
	return created, nil
}

func (s *DocumentService) Update(ctx context.Context, document types.Document) (types.Document, error) {
	document, err := s.normalize(ctx, document)
	if err != nil {
		return types.Document{}, err
	}
	updated, err := s.repo.Update(ctx, document)
	if errors.Is(err, store.ErrConflict) {
		return types.Document{}, invalid("reference number %q already registered", document.ReferenceNumber)
	}
	return updated, err
}

// Delete removes the document and, best effort, its attachment.
func (s *DocumentService) Delete(ctx context.Context, actorID, id int) error {
	document, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if document.AttachmentKey != "" && s.storage != nil {
		s.removeScan(ctx, id, document.AttachmentKey)
	}

	s.events.Publish(ctx, events.Event{
		Type:      events.DocumentDeleted,
		ActorID:   actorID,
		SubjectID: id,
		Data:      map[string]any{"reference_number": document.ReferenceNumber},
	})
	return nil
}

// Attach stores a scan for the document and records its object key. A
// previous scan is removed after the new key is recorded.
func (s *DocumentService) Attach(ctx context.Context, id int, filename, contentType string, r io.Reader, size int64) (types.Document, error) {
	if s.storage == nil {
		return types.Document{}, ErrStorageDisabled
	}
	document, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Document{}, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("documents/%d/%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Document{}, fmt.Errorf("upload attachment: %w", err)
	}
	if err := s.repo.SetAttachment(ctx, id, key); err != nil {
		s.removeScan(ctx, id, key)
		return types.Document{}, err
	}
	if document.AttachmentKey != "" {
		s.removeScan(ctx, id, document.AttachmentKey)
	}
	document.AttachmentKey = key
	return document, nil
}

// OpenAttachment returns a reader for the document's scan. The caller must
// close it.
func (s *DocumentService) OpenAttachment(ctx context.Context, id int) (io.ReadCloser, types.Document, error) {
	if s.storage == nil {
		return nil, types.Document{}, ErrStorageDisabled
	}
	document, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, types.Document{}, err
	}
	if document.AttachmentKey == "" {
		return nil, types.Document{}, store.ErrNotFound
	}
	rc, err := s.storage.Get(ctx, document.AttachmentKey)
	if err != nil {
		return nil, types.Document{}, fmt.Errorf("open attachment: %w", err)
	}
	return rc, document, nil
}

func (s *DocumentService) normalize(ctx context.Context, d types.Document) (types.Document, error) {
	d.ReferenceNumber = strings.TrimSpace(d.ReferenceNumber)
	d.Title = strings.TrimSpace(d.Title)
	d.Division = strings.TrimSpace(d.Division)

	if d.ReferenceNumber == "" || d.Title == "" {
		return types.Document{}, invalid("reference number and title are required")
	}
	kind, err := types.ParseDocumentKind(string(d.Kind))
	if err != nil {
		return types.Document{}, invalid("%v", err)
	}
	d.Kind = kind
	if d.DocumentDate.IsZero() {
		return types.Document{}, invalid("document date is required")
	}
	d.DocumentDate = civilDate(d.DocumentDate)

	switch d.Kind {
	case types.DocumentIncoming:
		if d.SenderID == nil {
			return types.Document{}, invalid("incoming documents need a sender")
		}
	case types.DocumentOutgoing:
		if d.RecipientID == nil {
			return types.Document{}, invalid("outgoing documents need a recipient")
		}
	}

	for _, id := range []*int{d.SenderID, d.RecipientID} {
		if id == nil {
			continue
		}
		if _, err := s.persons.Get(ctx, *id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.Document{}, invalid("person %d does not exist", *id)
			}
			return types.Document{}, err
		}
	}
	return d, nil
}
