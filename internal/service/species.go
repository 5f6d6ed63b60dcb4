// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → guards, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// SpeciesService is also the backing store of the catalog UI core: its
// List/Insert/Update/Delete methods are exactly the store contract the
// dialog, form and list presenter talk to. The HTTP JSON API and the
// server-driven UI therefore share one set of server-side guards.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/auth"
	"github.com/sakif/species-catalog/internal/metrics"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/repository"
	"github.com/sakif/species-catalog/internal/validation"
)

// Publisher is told about every committed mutation so that other open
// catalog views can re-fetch. events.Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, change model.Change)
}

// SpeciesService handles business logic for species records.
//
// DEPENDENCIES (injected via NewSpeciesService):
//   - repo       the database interface
//   - publisher  change fan-out, may be nil
//   - metrics    Prometheus collectors, may be nil
//   - logger     structured logging of business events
type SpeciesService struct {
	repo      repository.SpeciesRepository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSpeciesService creates a new SpeciesService.
func NewSpeciesService(
	repo repository.SpeciesRepository,
	publisher Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SpeciesService {
	return &SpeciesService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// List returns the whole collection in the requested order.
// Unknown orderings are rejected by the repository with ErrValidation.
func (s *SpeciesService) List(ctx context.Context, opts repository.ListOptions) ([]model.Species, error) {
	list, err := s.repo.List(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list species",
			slog.String("orderBy", string(opts.OrderBy)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing species: %w", err)
	}
	return list, nil
}

// GetByID retrieves one species record.
// Returns apperror.ErrNotFound if it doesn't exist.
func (s *SpeciesService) GetByID(ctx context.Context, id string) (*model.Species, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "species ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// Insert stores a new record authored by the session user.
//
// The payload is expected to come out of validation.Validate already; Check
// re-verifies it here because the JSON API and the UI both reach this
// method and neither is trusted to have normalized correctly.
func (s *SpeciesService) Insert(ctx context.Context, fields model.SpeciesFields) (created *model.Species, err error) {
	defer func() { s.metrics.RecordMutation("create", err) }()

	viewer, err := viewerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Check(fields); err != nil {
		return nil, err
	}

	species := &model.Species{Author: viewer, SpeciesFields: fields}
	if err := s.repo.Create(ctx, species); err != nil {
		s.logger.Error("failed to create species",
			slog.String("scientificName", fields.ScientificName),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating species: %w", err)
	}

	s.logger.Info("species created",
		slog.String("id", species.ID),
		slog.String("scientificName", species.ScientificName),
		slog.String("author", viewer),
	)
	s.publish(ctx, model.ChangeCreated, species.ID, viewer)
	return species, nil
}

// Update replaces the editable fields of record id.
//
// Only the author may update. There is no version check: the last write
// wins.
func (s *SpeciesService) Update(ctx context.Context, id string, fields model.SpeciesFields) (err error) {
	defer func() { s.metrics.RecordMutation("update", err) }()

	viewer, err := viewerFrom(ctx)
	if err != nil {
		return err
	}
	if err := validation.Check(fields); err != nil {
		return err
	}

	species, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !species.IsAuthor(viewer) {
		return apperror.Forbidden("only the author can edit this species")
	}

	species.SpeciesFields = fields
	if err := s.repo.Update(ctx, species); err != nil {
		s.logger.Error("failed to update species",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("updating species: %w", err)
	}

	s.logger.Info("species updated",
		slog.String("id", species.ID),
		slog.String("scientificName", species.ScientificName),
	)
	s.publish(ctx, model.ChangeUpdated, species.ID, viewer)
	return nil
}

// Delete removes record id. Only the author may delete.
func (s *SpeciesService) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordMutation("delete", err) }()

	viewer, err := viewerFrom(ctx)
	if err != nil {
		return err
	}

	species, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !species.IsAuthor(viewer) {
		return apperror.Forbidden("only the author can delete this species")
	}

	if err := s.repo.Delete(ctx, species.ID); err != nil {
		return err
	}

	s.logger.Info("species deleted",
		slog.String("id", species.ID),
		slog.String("scientificName", species.ScientificName),
	)
	s.publish(ctx, model.ChangeDeleted, species.ID, viewer)
	return nil
}

func (s *SpeciesService) publish(ctx context.Context, action model.ChangeAction, id, actor string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, model.Change{Action: action, SpeciesID: id, Actor: actor})
}

// viewerFrom reads the session user placed in ctx by the auth middleware.
func viewerFrom(ctx context.Context) (string, error) {
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", apperror.Unauthorized("sign in to change the catalog")
	}
	return id, nil
}
