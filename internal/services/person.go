package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

// PersonRepository defines persistence operations for persons.
type PersonRepository interface {
	List(ctx context.Context, filter types.PersonFilter, offset, limit int) ([]types.Person, int, error)
	Get(ctx context.Context, id int) (types.Person, error)
	Create(ctx context.Context, person types.Person) (types.Person, error)
	Update(ctx context.Context, person types.Person) (types.Person, error)
	Delete(ctx context.Context, id int) error
}

// PersonService encapsulates sender and recipient use-cases.
type PersonService struct {
	repo PersonRepository
}

func NewPersonService(repo PersonRepository) *PersonService {
	return &PersonService{repo: repo}
}

func (s *PersonService) List(ctx context.Context, filter types.PersonFilter, offset, limit int) ([]types.Person, int, error) {
	offset, limit = clampPage(offset, limit)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *PersonService) Get(ctx context.Context, id int) (types.Person, error) {
	return s.repo.Get(ctx, id)
}

func (s *PersonService) Create(ctx context.Context, person types.Person) (types.Person, error) {
	person, err := normalizePerson(person)
	if err != nil {
		return types.Person{}, err
	}
	return s.repo.Create(ctx, person)
}

func (s *PersonService) Update(ctx context.Context, person types.Person) (types.Person, error) {
	person, err := normalizePerson(person)
	if err != nil {
		return types.Person{}, err
	}
	return s.repo.Update(ctx, person)
}

// Delete removes a person. Persons still referenced by documents cannot be
// deleted.
func (s *PersonService) Delete(ctx context.Context, id int) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, store.ErrConflict) {
		return invalid("person %d is referenced by documents", id)
	}
	return err
}

func normalizePerson(p types.Person) (types.Person, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Organization = strings.TrimSpace(p.Organization)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)

	if p.LastName == "" && p.Organization == "" {
		return types.Person{}, invalid("either last name or organization is required")
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return types.Person{}, invalid("invalid email")
		}
	}
	return p, nil
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}
