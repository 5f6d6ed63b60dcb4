package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/auth"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/repository"
)

// fakeStore is an in-memory Store that counts calls and can be told to fail
// or to block inside Update/Delete.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]model.Species
	seq     int

	lists     int
	mutations int

	updateErr error
	deleteErr error

	// When hold is non-nil, Update and Delete signal entered and then wait
	// for hold to be closed.
	hold    chan struct{}
	entered chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]model.Species{}}
}

func (f *fakeStore) List(_ context.Context, opts repository.ListOptions) ([]model.Species, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++

	out := make([]model.Species, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	switch opts.OrderBy {
	case repository.SortByScientificName:
		sort.Slice(out, func(i, j int) bool { return out[i].ScientificName < out[j].ScientificName })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out, nil
}

func (f *fakeStore) Insert(ctx context.Context, fields model.SpeciesFields) (*model.Species, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++

	author, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, apperror.Unauthorized("no session")
	}
	f.seq++
	r := model.Species{
		ID:            fmt.Sprintf("sp-%d", f.seq),
		Author:        author,
		SpeciesFields: fields,
		CreatedAt:     time.Unix(int64(f.seq), 0),
	}
	f.records[r.ID] = r
	return &r, nil
}

func (f *fakeStore) Update(_ context.Context, id string, fields model.SpeciesFields) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++

	if f.updateErr != nil {
		return f.updateErr
	}
	r, ok := f.records[id]
	if !ok {
		return apperror.NotFound("species", id)
	}
	r.SpeciesFields = fields
	f.records[id] = r
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++

	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.records[id]; !ok {
		return apperror.NotFound("species", id)
	}
	delete(f.records, id)
	return nil
}

func (f *fakeStore) wait() {
	f.mu.Lock()
	hold, entered := f.hold, f.entered
	f.mu.Unlock()
	if hold == nil {
		return
	}
	entered <- struct{}{}
	<-hold
}

func (f *fakeStore) counts() (lists, mutations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists, f.mutations
}

// seed inserts a record authored by author directly.
func (f *fakeStore) seed(author, name string) model.Species {
	ctx := auth.WithUserID(context.Background(), author)
	r, err := f.Insert(ctx, model.SpeciesFields{ScientificName: name, Kingdom: model.KingdomAnimalia})
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	f.mutations--
	f.mu.Unlock()
	return *r
}

// countingInvalidator counts Invalidate calls.
type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func ctxAs(userID string) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }
