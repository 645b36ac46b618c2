package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/docregistry/apiserver/types"
)

// PersonRepository handles persistence for senders and recipients.
type PersonRepository struct {
	db *sql.DB
}

func NewPersonRepository(db *sql.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

const personColumns = `id, first_name, last_name, organization, email, phone, notes, created_at, updated_at`

func scanPerson(row interface{ Scan(...any) error }) (types.Person, error) {
	var person types.Person
	err := row.Scan(
		&person.ID,
		&person.FirstName,
		&person.LastName,
		&person.Organization,
		&person.Email,
		&person.Phone,
		&person.Notes,
		&person.CreatedAt,
		&person.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Person{}, ErrNotFound
		}
		return types.Person{}, err
	}
	return person, nil
}

func (r *PersonRepository) List(ctx context.Context, filter types.PersonFilter, offset, limit int) ([]types.Person, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	pattern := "%"
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern = "%" + escapeLike(search) + "%"
	}

	const where = `
		WHERE first_name ILIKE $1
		   OR last_name ILIKE $1
		   OR organization ILIKE $1`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM persons`+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + personColumns + ` FROM persons` + where + `
		ORDER BY last_name, first_name, id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, pattern, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	persons := make([]types.Person, 0, limit)
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, 0, err
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return persons, total, nil
}

func (r *PersonRepository) Get(ctx context.Context, id int) (types.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1`
	return scanPerson(r.db.QueryRowContext(ctx, query, id))
}

func (r *PersonRepository) Create(ctx context.Context, person types.Person) (types.Person, error) {
	now := time.Now()
	person.CreatedAt = now
	person.UpdatedAt = now

	const query = `
		INSERT INTO persons (first_name, last_name, organization, email, phone, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		person.FirstName,
		person.LastName,
		person.Organization,
		person.Email,
		person.Phone,
		person.Notes,
		person.CreatedAt,
		person.UpdatedAt,
	).Scan(&person.ID); err != nil {
		return types.Person{}, mapWriteError(err)
	}
	return person, nil
}

func (r *PersonRepository) Update(ctx context.Context, person types.Person) (types.Person, error) {
	person.UpdatedAt = time.Now()

	const query = `
		UPDATE persons
		SET first_name = $1,
			last_name = $2,
			organization = $3,
			email = $4,
			phone = $5,
			notes = $6,
			updated_at = $7
		WHERE id = $8
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		person.FirstName,
		person.LastName,
		person.Organization,
		person.Email,
		person.Phone,
		person.Notes,
		person.UpdatedAt,
		person.ID,
	).Scan(&person.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Person{}, ErrNotFound
		}
		return types.Person{}, mapWriteError(err)
	}
	return person, nil
}

// Delete removes a person. Persons referenced by documents cannot be deleted
// and yield ErrConflict.
func (r *PersonRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		if errors.Is(mapWriteError(err), ErrNotFound) {
			return errors.Join(ErrConflict, err)
		}
		return mapWriteError(err)
	}
	return expectAffected(result)
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
