package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/docregistry/apiserver/types"
)

// AddressRepository handles persistence for countries and addresses.
type AddressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) ListCountries(ctx context.Context) ([]types.Country, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, name FROM countries ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var countries []types.Country
	for rows.Next() {
		var country types.Country
		if err := rows.Scan(&country.ID, &country.Code, &country.Name); err != nil {
			return nil, err
		}
		countries = append(countries, country)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return countries, nil
}

func (r *AddressRepository) GetCountry(ctx context.Context, id int) (types.Country, error) {
	var country types.Country
	err := r.db.QueryRowContext(ctx, `SELECT id, code, name FROM countries WHERE id = $1`, id).
		Scan(&country.ID, &country.Code, &country.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Country{}, ErrNotFound
		}
		return types.Country{}, err
	}
	return country, nil
}

func (r *AddressRepository) CreateCountry(ctx context.Context, country types.Country) (types.Country, error) {
	const query = `INSERT INTO countries (code, name) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, country.Code, country.Name).Scan(&country.ID); err != nil {
		return types.Country{}, mapWriteError(err)
	}
	return country, nil
}

func (r *AddressRepository) GetAddress(ctx context.Context, id int) (types.Address, error) {
	const query = `
		SELECT id, street, city, postal_code, country_id, created_at
		FROM addresses
		WHERE id = $1`
	var address types.Address
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&address.ID,
		&address.Street,
		&address.City,
		&address.PostalCode,
		&address.CountryID,
		&address.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Address{}, ErrNotFound
		}
		return types.Address{}, err
	}
	return address, nil
}

func (r *AddressRepository) CreateAddress(ctx context.Context, address types.Address) (types.Address, error) {
	address.CreatedAt = time.Now()

	const query = `
		INSERT INTO addresses (street, city, postal_code, country_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		address.Street,
		address.City,
		address.PostalCode,
		address.CountryID,
		address.CreatedAt,
	).Scan(&address.ID); err != nil {
		return types.Address{}, mapWriteError(err)
	}
	return address, nil
}
