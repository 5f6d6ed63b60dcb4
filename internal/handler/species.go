package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/repository"
	"github.com/sakif/species-catalog/internal/service"
	"github.com/sakif/species-catalog/internal/validation"
)

// SpeciesHandler serves the JSON API over the species collection.
// It is a thin HTTP skin: decode, validate, call the service, encode.
type SpeciesHandler struct {
	species *service.SpeciesService
	logger  *slog.Logger
}

// NewSpeciesHandler creates a SpeciesHandler.
func NewSpeciesHandler(species *service.SpeciesService, logger *slog.Logger) *SpeciesHandler {
	return &SpeciesHandler{species: species, logger: logger}
}

// flexString accepts a JSON string, number or null. Clients send
// totalPopulation either way; the validation rules then decide whether the
// text is a whole number of at least 1.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

// speciesRequest is the body of POST and PUT /api/species.
type speciesRequest struct {
	ScientificName  string     `json:"scientificName"`
	CommonName      *string    `json:"commonName"`
	Kingdom         string     `json:"kingdom"`
	TotalPopulation flexString `json:"totalPopulation"`
	Image           *string    `json:"image"`
	Description     *string    `json:"description"`
}

func (req speciesRequest) input() validation.Input {
	return validation.Input{
		ScientificName:  req.ScientificName,
		CommonName:      deref(req.CommonName),
		Kingdom:         req.Kingdom,
		TotalPopulation: string(req.TotalPopulation),
		Image:           deref(req.Image),
		Description:     deref(req.Description),
	}
}

// HandleList returns the catalog.
//
// HTTP: GET /api/species?order=recent|name
func (h *SpeciesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var opts repository.ListOptions
	switch order := strings.TrimSpace(r.URL.Query().Get("order")); order {
	case "", "recent":
		opts = repository.Recent()
	case "name":
		opts = repository.Alphabetical()
	default:
		writeError(w, apperror.ValidationFailed("order", "order must be recent or name"))
		return
	}

	list, err := h.species.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetByID returns a single record.
//
// HTTP: GET /api/species/{id}
func (h *SpeciesHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	species, err := h.species.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, species)
}

// HandleCreate inserts a record authored by the caller.
//
// HTTP: POST /api/species
// Auth: Required
// REQUEST BODY: {"scientificName":"Cavia porcellus","kingdom":"Animalia","totalPopulation":5000000}
func (h *SpeciesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req speciesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid species JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	fields, err := validation.Validate(req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.species.Insert(r.Context(), fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate replaces the editable fields of a record. The body is the
// full set of fields, not a patch: omitted optional fields become null.
//
// HTTP: PUT /api/species/{id}
// Auth: Required (author only)
func (h *SpeciesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req speciesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	fields, err := validation.Validate(req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.species.Update(r.Context(), id, fields); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.species.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete removes a record.
//
// HTTP: DELETE /api/species/{id}
// Auth: Required (author only)
//
// There is no typed confirmation here; that gate belongs to the UI dialog.
func (h *SpeciesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.species.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
