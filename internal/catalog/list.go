package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/repository"
)

// ListPresenter holds the full collection in both display orderings.
//
// Both orderings are fetched together, so switching between them is a
// local view change. After a mutation the presenter never patches its
// copies; Invalidate reloads both from the store.
type ListPresenter struct {
	store Store

	mu           sync.RWMutex
	recent       []model.Species // newest first
	byName       []model.Species // scientific name, A to Z
	alphabetical bool
	loaded       bool

	// Loads may overlap (a request's re-fetch and the live stream). Each
	// takes a ticket; a result older than the stored one is dropped.
	issued uint64
	stored uint64
}

func NewListPresenter(store Store) *ListPresenter {
	return &ListPresenter{store: store}
}

// Load fetches both orderings. On error the previous lists are kept, and a
// load that finishes after a newer one has been stored changes nothing.
func (p *ListPresenter) Load(ctx context.Context) error {
	p.mu.Lock()
	p.issued++
	ticket := p.issued
	p.mu.Unlock()

	recent, err := p.store.List(ctx, repository.Recent())
	if err != nil {
		return fmt.Errorf("loading recent species: %w", err)
	}
	byName, err := p.store.List(ctx, repository.Alphabetical())
	if err != nil {
		return fmt.Errorf("loading species by name: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ticket < p.stored {
		return nil
	}
	p.stored = ticket
	p.recent = recent
	p.byName = byName
	p.loaded = true
	return nil
}

// Invalidate implements Invalidator by reloading both orderings.
func (p *ListPresenter) Invalidate(ctx context.Context) error {
	return p.Load(ctx)
}

// Toggle flips the ordering and returns the new value of Alphabetical.
func (p *ListPresenter) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alphabetical = !p.alphabetical
	return p.alphabetical
}

func (p *ListPresenter) SetAlphabetical(on bool) {
	p.mu.Lock()
	p.alphabetical = on
	p.mu.Unlock()
}

func (p *ListPresenter) Alphabetical() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alphabetical
}

// Loaded reports whether at least one Load succeeded.
func (p *ListPresenter) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Visible returns a copy of the currently selected ordering.
func (p *ListPresenter) Visible() []model.Species {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.alphabetical {
		return append([]model.Species(nil), p.byName...)
	}
	return append([]model.Species(nil), p.recent...)
}

// Recent and ByName return copies of each ordering regardless of the toggle.
func (p *ListPresenter) Recent() []model.Species {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Species(nil), p.recent...)
}

func (p *ListPresenter) ByName() []model.Species {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Species(nil), p.byName...)
}

// Find looks a record up in the loaded collection.
func (p *ListPresenter) Find(id string) (model.Species, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.recent {
		if s.ID == id {
			return s, true
		}
	}
	return model.Species{}, false
}
