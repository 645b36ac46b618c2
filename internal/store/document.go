package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docregistry/apiserver/types"
)

// DocumentRepository handles persistence for registered documents.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `
	id, reference_number, title, kind, sender_id, recipient_id, document_date,
	received_at, division, notes, attachment_key, created_by, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (types.Document, error) {
	var document types.Document
	var senderID, recipientID sql.NullInt64
	var receivedAt sql.NullTime
	err := row.Scan(
		&document.ID,
		&document.ReferenceNumber,
		&document.Title,
		&document.Kind,
		&senderID,
		&recipientID,
		&document.DocumentDate,
		&receivedAt,
		&document.Division,
		&document.Notes,
		&document.AttachmentKey,
		&document.CreatedBy,
		&document.CreatedAt,
		&document.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Document{}, ErrNotFound
		}
		return types.Document{}, err
	}
	document.SenderID = nullIntPtr(senderID)
	document.RecipientID = nullIntPtr(recipientID)
	if receivedAt.Valid {
		t := receivedAt.Time
		document.ReceivedAt = &t
	}
	return document, nil
}

func (r *DocumentRepository) List(ctx context.Context, filter types.DocumentFilter, offset, limit int) ([]types.Document, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.SenderID > 0 {
		add("sender_id = $%d", filter.SenderID)
	}
	if filter.RecipientID > 0 {
		add("recipient_id = $%d", filter.RecipientID)
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.From != nil {
		add("document_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("document_date <= $%d", *filter.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM documents%s
		ORDER BY document_date DESC, id DESC
		OFFSET $%d LIMIT $%d`, documentColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	documents := make([]types.Document, 0, limit)
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		documents = append(documents, document)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return documents, total, nil
}

func (r *DocumentRepository) Get(ctx context.Context, id int) (types.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRowContext(ctx, query, id))
}

func (r *DocumentRepository) Create(ctx context.Context, document types.Document) (types.Document, error) {
	now := time.Now()
	document.CreatedAt = now
	document.UpdatedAt = now

	const query = `
		INSERT INTO documents (
			reference_number, title, kind, sender_id, recipient_id, document_date,
			received_at, division, notes, attachment_key, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		document.ReferenceNumber,
		document.Title,
		string(document.Kind),
		document.SenderID,
		document.RecipientID,
		document.DocumentDate,
		document.ReceivedAt,
		document.Division,
		document.Notes,
		document.AttachmentKey,
		document.CreatedBy,
		document.CreatedAt,
		document.UpdatedAt,
	).Scan(&document.ID); err != nil {
		return types.Document{}, mapWriteError(err)
	}
	return document, nil
}

func (r *DocumentRepository) Update(ctx context.Context, document types.Document) (types.Document, error) {
	document.UpdatedAt = time.Now()

	const query = `
		UPDATE documents
		SET reference_number = $1,
			title = $2,
			kind = $3,
			sender_id = $4,
			recipient_id = $5,
			document_date = $6,
			received_at = $7,
			division = $8,
			notes = $9,
			updated_at = $10
		WHERE id = $11
		RETURNING attachment_key, created_by, created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		document.ReferenceNumber,
		document.Title,
		string(document.Kind),
		document.SenderID,
		document.RecipientID,
		document.DocumentDate,
		document.ReceivedAt,
		document.Division,
		document.Notes,
		document.UpdatedAt,
		document.ID,
	).Scan(&document.AttachmentKey, &document.CreatedBy, &document.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Document{}, ErrNotFound
		}
		return types.Document{}, mapWriteError(err)
	}
	return document, nil
}

// SetAttachment records the object key of a document's scan.
func (r *DocumentRepository) SetAttachment(ctx context.Context, id int, key string) error {
	const query = `UPDATE documents SET attachment_key = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *DocumentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
