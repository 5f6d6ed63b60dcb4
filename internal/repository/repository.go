package repository

import (
	"context"

	"github.com/sakif/species-catalog/internal/model"
)

// SortField names a column the species list may be ordered by.
// Only these values reach SQL; anything else is rejected by the store.
type SortField string

const (
	SortByCreatedAt      SortField = "created_at"
	SortByScientificName SortField = "scientific_name"
)

type ListOptions struct {
	OrderBy    SortField
	Descending bool
}

// Recent is newest first, the default catalog ordering.
func Recent() ListOptions {
	return ListOptions{OrderBy: SortByCreatedAt, Descending: true}
}

// Alphabetical orders by scientific name, A to Z.
func Alphabetical() ListOptions {
	return ListOptions{OrderBy: SortByScientificName}
}

type SpeciesRepository interface {
	Create(ctx context.Context, species *model.Species) error
	GetByID(ctx context.Context, id string) (*model.Species, error)
	List(ctx context.Context, opts ListOptions) ([]model.Species, error)
	Update(ctx context.Context, species *model.Species) error
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	CreateLocal(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}
