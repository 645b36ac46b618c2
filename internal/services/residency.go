package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/docregistry/apiserver/internal/events"
	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

// ResidencyRepository defines persistence operations for address history.
type ResidencyRepository interface {
	ListByPerson(ctx context.Context, personID int) ([]types.Residency, error)
	Update(ctx context.Context, personID int, fn func(existing []types.Residency, w store.ResidencyWriter) error) error
}

// AddressLookup resolves address and country rows by ID.
type AddressLookup interface {
	GetAddress(ctx context.Context, id int) (types.Address, error)
	GetCountry(ctx context.Context, id int) (types.Country, error)
}

// ResolvedAddress is a residency joined with its address and country.
type ResolvedAddress struct {
	Residency types.Residency
	Address   types.Address
	Country   types.Country
}

// ResidencyService answers "where did this person live" questions and edits
// the address history.
type ResidencyService struct {
	repo      ResidencyRepository
	addresses AddressLookup
	events    events.Publisher
}

func NewResidencyService(repo ResidencyRepository, addresses AddressLookup, publisher events.Publisher) *ResidencyService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ResidencyService{repo: repo, addresses: addresses, events: publisher}
}

// civilDate truncates t to its UTC calendar day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func covers(r types.Residency, day time.Time) bool {
	if day.Before(civilDate(r.StartDate)) {
		return false
	}
	return r.EndDate == nil || !day.After(civilDate(*r.EndDate))
}

// ResidencyAt picks the residency valid at the given date.
//
// With a nil date it returns the open residency. Otherwise it returns the
// first residency whose start is on or before at and whose end is either
// open or on or after at. Dates compare by calendar day. The boolean is
// false when nothing matches.
func ResidencyAt(residencies []types.Residency, at *time.Time) (types.Residency, bool) {
	if at == nil {
		for _, r := range residencies {
			if r.EndDate == nil {
				return r, true
			}
		}
		return types.Residency{}, false
	}

	day := civilDate(*at)
	for _, r := range residencies {
		if covers(r, day) {
			return r, true
		}
	}
	return types.Residency{}, false
}

// History returns the person's residencies, oldest first.
func (s *ResidencyService) History(ctx context.Context, personID int) ([]types.Residency, error) {
	residencies, err := s.repo.ListByPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	sort.Slice(residencies, func(i, j int) bool {
		return residencies[i].StartDate.Before(residencies[j].StartDate)
	})
	return residencies, nil
}

// AddressAt resolves the address a person lived at on the given date, or the
// current one when at is nil. ok is false when the person had no address then.
func (s *ResidencyService) AddressAt(ctx context.Context, personID int, at *time.Time) (ResolvedAddress, bool, error) {
	residencies, err := s.repo.ListByPerson(ctx, personID)
	if err != nil {
		return ResolvedAddress{}, false, err
	}
	residency, ok := ResidencyAt(residencies, at)
	if !ok {
		return ResolvedAddress{}, false, nil
	}

	address, err := s.addresses.GetAddress(ctx, residency.AddressID)
	if err != nil {
		return ResolvedAddress{}, false, fmt.Errorf("load address %d: %w", residency.AddressID, err)
	}
	country, err := s.addresses.GetCountry(ctx, address.CountryID)
	if err != nil {
		return ResolvedAddress{}, false, fmt.Errorf("load country %d: %w", address.CountryID, err)
	}
	return ResolvedAddress{Residency: residency, Address: address, Country: country}, true, nil
}

// Move closes the person's current residency the day before since and opens
// a new one at addressID starting on since. Both writes happen in one
// transaction.
func (s *ResidencyService) Move(ctx context.Context, actorID, personID, addressID int, since time.Time) (types.Residency, error) {
	if err := s.checkAddress(ctx, addressID); err != nil {
		return types.Residency{}, err
	}
	since = civilDate(since)

	var created types.Residency
	var previous *types.Residency
	err := s.repo.Update(ctx, personID, func(existing []types.Residency, w store.ResidencyWriter) error {
		var current *types.Residency
		for i := range existing {
			if existing[i].EndDate != nil {
				continue
			}
			if current != nil {
				return fmt.Errorf("person %d has more than one current residency", personID)
			}
			current = &existing[i]
		}

		if current != nil {
			if current.AddressID == addressID {
				return invalid("person already lives at address %d", addressID)
			}
			if !since.After(civilDate(current.StartDate)) {
				return fmt.Errorf("%w: move date must be after %s", ErrOverlap, current.StartDate.Format(time.DateOnly))
			}
		}
		for _, r := range existing {
			if r.EndDate != nil && !civilDate(*r.EndDate).Before(since) {
				return fmt.Errorf("%w: residency %d ends on %s", ErrOverlap, r.ID, r.EndDate.Format(time.DateOnly))
			}
		}

		if current != nil {
			end := since.AddDate(0, 0, -1)
			if err := w.Close(ctx, current.ID, end); err != nil {
				return err
			}
			closed := *current
			closed.EndDate = &end
			previous = &closed
		}

		inserted, err := w.Insert(ctx, types.Residency{AddressID: addressID, StartDate: since})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return types.Residency{}, mapResidencyError(err)
	}

	data := map[string]any{
		"address_id": addressID,
		"since":      since.Format(time.DateOnly),
	}
	if previous != nil {
		data["previous_address_id"] = previous.AddressID
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.PersonMoved,
		ActorID:   actorID,
		SubjectID: personID,
		Data:      data,
	})
	return created, nil
}

// AddHistory records a closed past residency. The interval may not overlap
// any existing residency of the person.
func (s *ResidencyService) AddHistory(ctx context.Context, personID, addressID int, from, to time.Time) (types.Residency, error) {
	from, to = civilDate(from), civilDate(to)
	if from.After(to) {
		return types.Residency{}, invalid("from must not be after to")
	}
	if err := s.checkAddress(ctx, addressID); err != nil {
		return types.Residency{}, err
	}

	var created types.Residency
	err := s.repo.Update(ctx, personID, func(existing []types.Residency, w store.ResidencyWriter) error {
		for _, r := range existing {
			if overlaps(r, from, to) {
				return fmt.Errorf("%w: residency %d", ErrOverlap, r.ID)
			}
		}
		end := to
		inserted, err := w.Insert(ctx, types.Residency{AddressID: addressID, StartDate: from, EndDate: &end})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return types.Residency{}, mapResidencyError(err)
	}
	return created, nil
}

// overlaps reports whether r shares at least one day with [from, to].
func overlaps(r types.Residency, from, to time.Time) bool {
	if civilDate(r.StartDate).After(to) {
		return false
	}
	return r.EndDate == nil || !civilDate(*r.EndDate).Before(from)
}

func (s *ResidencyService) checkAddress(ctx context.Context, addressID int) error {
	if _, err := s.addresses.GetAddress(ctx, addressID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("address %d does not exist", addressID)
		}
		return err
	}
	return nil
}

// mapResidencyError turns database constraint violations into ErrOverlap so
// races that slip past the in-transaction checks surface the same way.
func mapResidencyError(err error) error {
	if errors.Is(err, store.ErrConflict) && !errors.Is(err, ErrOverlap) {
		return fmt.Errorf("%w: %v", ErrOverlap, err)
	}
	return err
}
