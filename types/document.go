package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Document is a registered piece of correspondence.
type Document struct {
	// ID is the unique identifier of the document.
	ID int `json:"id" db:"id"`

	// ReferenceNumber is the office reference printed on the document.
	// It is unique across the registry.
	ReferenceNumber string `json:"reference_number" db:"reference_number"`

	// Title is a short human-readable subject line.
	Title string `json:"title" db:"title"`

	// Kind tells whether the document came in, went out, or stayed internal.
	Kind DocumentKind `json:"kind" db:"kind"`

	// SenderID and RecipientID reference persons. Either may be nil for
	// internal documents.
	SenderID    *int `json:"sender_id" db:"sender_id"`
	RecipientID *int `json:"recipient_id" db:"recipient_id"`

	// DocumentDate is the date written on the document. It is used to
	// resolve the sender and recipient addresses valid at that time.
	DocumentDate time.Time `json:"document_date" db:"document_date"`

	// ReceivedAt is when the office received the document, if it did.
	ReceivedAt *time.Time `json:"received_at" db:"received_at"`

	Division string `json:"division" db:"division"`
	Notes    string `json:"notes" db:"notes"`

	// AttachmentKey is the object storage key of the scanned document.
	AttachmentKey string `json:"attachment_key,omitempty" db:"attachment_key"`

	// CreatedBy is the ID of the clerk who registered the document.
	CreatedBy int `json:"created_by" db:"created_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentFilter narrows document listings. Zero values are ignored.
type DocumentFilter struct {
	SenderID    int
	RecipientID int
	Kind        DocumentKind
	From        *time.Time
	To          *time.Time
}

// DocumentKind classifies a document's direction.
type DocumentKind string

// Supported document kinds.
const (
	DocumentIncoming DocumentKind = "incoming"
	DocumentOutgoing DocumentKind = "outgoing"
	DocumentInternal DocumentKind = "internal"
)

// ParseDocumentKind normalizes and validates a kind name.
func ParseDocumentKind(raw string) (DocumentKind, error) {
	kind := DocumentKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case DocumentIncoming, DocumentOutgoing, DocumentInternal:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown document kind %q", raw)
	}
}

func (k *DocumentKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDocumentKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
