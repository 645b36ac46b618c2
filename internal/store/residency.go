package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/docregistry/apiserver/types"
)

// ResidencyWriter is the write side handed to ResidencyRepository.Update
// callbacks. All calls run inside the same transaction.
type ResidencyWriter interface {
	Close(ctx context.Context, id int, end time.Time) error
	Insert(ctx context.Context, residency types.Residency) (types.Residency, error)
}

// ResidencyRepository handles persistence for address history.
type ResidencyRepository struct {
	db *sql.DB
}

func NewResidencyRepository(db *sql.DB) *ResidencyRepository {
	return &ResidencyRepository{db: db}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListByPerson returns the person's residencies. Callers must not rely on
// the order.
func (r *ResidencyRepository) ListByPerson(ctx context.Context, personID int) ([]types.Residency, error) {
	return listResidencies(ctx, r.db, personID, false)
}

func listResidencies(ctx context.Context, q queryer, personID int, forUpdate bool) ([]types.Residency, error) {
	query := `
		SELECT id, person_id, address_id, start_date, end_date, created_at
		FROM residencies
		WHERE person_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var residencies []types.Residency
	for rows.Next() {
		var residency types.Residency
		var end sql.NullTime
		if err := rows.Scan(
			&residency.ID,
			&residency.PersonID,
			&residency.AddressID,
			&residency.StartDate,
			&end,
			&residency.CreatedAt,
		); err != nil {
			return nil, err
		}
		if end.Valid {
			endDate := end.Time
			residency.EndDate = &endDate
		}
		residencies = append(residencies, residency)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return residencies, nil
}

// Update runs fn in a transaction holding a row lock on the person, so that
// concurrent history edits for the same person are serialized. fn receives
// the person's current residencies and a writer bound to the transaction.
// Returning an error from fn rolls everything back.
func (r *ResidencyRepository) Update(
	ctx context.Context,
	personID int,
	fn func(existing []types.Residency, w ResidencyWriter) error,
) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked int
	err = tx.QueryRowContext(ctx, `SELECT id FROM persons WHERE id = $1 FOR UPDATE`, personID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	existing, err := listResidencies(ctx, tx, personID, true)
	if err != nil {
		return err
	}

	if err = fn(existing, &residencyTx{tx: tx, personID: personID}); err != nil {
		return err
	}
	return tx.Commit()
}

type residencyTx struct {
	tx       *sql.Tx
	personID int
}

func (t *residencyTx) Close(ctx context.Context, id int, end time.Time) error {
	const query = `
		UPDATE residencies
		SET end_date = $1
		WHERE id = $2 AND person_id = $3 AND end_date IS NULL`
	result, err := t.tx.ExecContext(ctx, query, end, id, t.personID)
	if err != nil {
		return mapWriteError(err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("close residency %d: %w", id, err)
	}
	return nil
}

func (t *residencyTx) Insert(ctx context.Context, residency types.Residency) (types.Residency, error) {
	residency.PersonID = t.personID
	residency.CreatedAt = time.Now()

	const query = `
		INSERT INTO residencies (person_id, address_id, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := t.tx.QueryRowContext(
		ctx,
		query,
		residency.PersonID,
		residency.AddressID,
		residency.StartDate,
		residency.EndDate,
		residency.CreatedAt,
	).Scan(&residency.ID); err != nil {
		return types.Residency{}, mapWriteError(err)
	}
	return residency, nil
}
