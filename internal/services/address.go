package services

import (
	"context"
	"errors"
	"strings"

	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

// AddressRepository defines persistence operations for countries and
// addresses.
type AddressRepository interface {
	ListCountries(ctx context.Context) ([]types.Country, error)
	GetCountry(ctx context.Context, id int) (types.Country, error)
	CreateCountry(ctx context.Context, country types.Country) (types.Country, error)
	GetAddress(ctx context.Context, id int) (types.Address, error)
	CreateAddress(ctx context.Context, address types.Address) (types.Address, error)
}

type AddressService struct {
	repo AddressRepository
}

func NewAddressService(repo AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

func (s *AddressService) ListCountries(ctx context.Context) ([]types.Country, error) {
	return s.repo.ListCountries(ctx)
}

func (s *AddressService) GetCountry(ctx context.Context, id int) (types.Country, error) {
	return s.repo.GetCountry(ctx, id)
}

func (s *AddressService) GetAddress(ctx context.Context, id int) (types.Address, error) {
	return s.repo.GetAddress(ctx, id)
}

func (s *AddressService) CreateCountry(ctx context.Context, code, name string) (types.Country, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return types.Country{}, invalid("country code must be two letters")
	}
	if name == "" {
		return types.Country{}, invalid("country name is required")
	}

	country, err := s.repo.CreateCountry(ctx, types.Country{Code: code, Name: name})
	if errors.Is(err, store.ErrConflict) {
		return types.Country{}, invalid("country %s already exists", code)
	}
	return country, err
}

func (s *AddressService) CreateAddress(ctx context.Context, address types.Address) (types.Address, error) {
	address.Street = strings.TrimSpace(address.Street)
	address.City = strings.TrimSpace(address.City)
	address.PostalCode = strings.TrimSpace(address.PostalCode)
	if address.Street == "" || address.City == "" {
		return types.Address{}, invalid("street and city are required")
	}
	if _, err := s.repo.GetCountry(ctx, address.CountryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Address{}, invalid("country %d does not exist", address.CountryID)
		}
		return types.Address{}, err
	}
	return s.repo.CreateAddress(ctx, address)
}
