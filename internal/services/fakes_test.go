package services

import (
	"context"
	"sync"
	"time"

	"github.com/docregistry/apiserver/internal/events"
	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeResidencies applies an Update callback's writes only when it returns
// nil, like a transaction.
type fakeResidencies struct {
	rows   map[int][]types.Residency
	nextID int
}

func newFakeResidencies() *fakeResidencies {
	return &fakeResidencies{rows: make(map[int][]types.Residency)}
}

func (f *fakeResidencies) ListByPerson(_ context.Context, personID int) ([]types.Residency, error) {
	return append([]types.Residency(nil), f.rows[personID]...), nil
}

func (f *fakeResidencies) Update(ctx context.Context, personID int, fn func([]types.Residency, store.ResidencyWriter) error) error {
	w := &fakeResidencyWriter{personID: personID, rows: append([]types.Residency(nil), f.rows[personID]...), nextID: f.nextID}
	if err := fn(append([]types.Residency(nil), f.rows[personID]...), w); err != nil {
		return err
	}
	f.rows[personID] = w.rows
	f.nextID = w.nextID
	return nil
}

type fakeResidencyWriter struct {
	personID int
	rows     []types.Residency
	nextID   int
}

func (w *fakeResidencyWriter) Close(_ context.Context, id int, end time.Time) error {
	for i := range w.rows {
		if w.rows[i].ID == id {
			w.rows[i].EndDate = &end
			return nil
		}
	}
	return store.ErrNotFound
}

func (w *fakeResidencyWriter) Insert(_ context.Context, r types.Residency) (types.Residency, error) {
	w.nextID++
	r.ID = w.nextID
	r.PersonID = w.personID
	w.rows = append(w.rows, r)
	return r, nil
}

type fakeAddresses struct {
	addresses map[int]types.Address
	countries map[int]types.Country
}

func newFakeAddresses() *fakeAddresses {
	return &fakeAddresses{
		addresses: map[int]types.Address{
			1: {ID: 1, Street: "1 Old Road", CountryID: 1},
			2: {ID: 2, Street: "2 New Street", CountryID: 1},
			3: {ID: 3, Street: "3 Third Lane", CountryID: 1},
		},
		countries: map[int]types.Country{1: {ID: 1, Code: "DE", Name: "Germany"}},
	}
}

func (f *fakeAddresses) GetAddress(_ context.Context, id int) (types.Address, error) {
	a, ok := f.addresses[id]
	if !ok {
		return types.Address{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAddresses) GetCountry(_ context.Context, id int) (types.Country, error) {
	c, ok := f.countries[id]
	if !ok {
		return types.Country{}, store.ErrNotFound
	}
	return c, nil
}
