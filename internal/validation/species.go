// Package validation turns raw species form input into a normalized payload.
//
// Every rule is a pure function of its own field: no I/O, no shared state,
// and the same input always yields the same payload or the same errors.
// Rules run independently, so one bad field never hides another.
package validation

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/model"
)

// Field names used as keys in Errors and in API responses.
const (
	FieldScientificName  = "scientificName"
	FieldCommonName      = "commonName"
	FieldKingdom         = "kingdom"
	FieldTotalPopulation = "totalPopulation"
	FieldImage           = "image"
	FieldDescription     = "description"
)

// Input is the raw, unvalidated content of a species form.
// Everything is a string because that is what a browser form submits.
type Input struct {
	ScientificName  string `json:"scientificName"`
	CommonName      string `json:"commonName"`
	Kingdom         string `json:"kingdom"`
	TotalPopulation string `json:"totalPopulation"`
	Image           string `json:"image"`
	Description     string `json:"description"`
}

// InputFrom renders normalized fields back into form input, e.g. to seed an
// edit draft from the last committed record. Nil fields become "".
func InputFrom(f model.SpeciesFields) Input {
	in := Input{
		ScientificName: f.ScientificName,
		CommonName:     deref(f.CommonName),
		Kingdom:        string(f.Kingdom),
		Image:          deref(f.Image),
		Description:    deref(f.Description),
	}
	if f.TotalPopulation != nil {
		in.TotalPopulation = strconv.FormatInt(*f.TotalPopulation, 10)
	}
	return in
}

// Errors is a set of per-field validation failures keyed by field name.
//
// It implements error so Validate can return it directly, and Unwrap() []error
// so errors.Is(err, apperror.ErrRange) finds any matching field error.
type Errors map[string]*apperror.AppError

func (e Errors) Error() string {
	fields := e.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f].Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) Unwrap() []error {
	errs := make([]error, 0, len(e))
	for _, f := range e.Fields() {
		errs = append(errs, e[f])
	}
	return errs
}

// Fields returns the failing field names in sorted order.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Messages flattens the set to field -> message, the shape the UI and the
// JSON API show next to each input.
func (e Errors) Messages() map[string]string {
	out := make(map[string]string, len(e))
	for f, err := range e {
		out[f] = err.Message
	}
	return out
}

// Validate applies every field rule to in.
// On success it returns the normalized fields and a nil error; otherwise it
// returns an Errors value with one entry per failing field.
func Validate(in Input) (model.SpeciesFields, error) {
	var out model.SpeciesFields
	errs := Errors{}

	if name, err := scientificName(in.ScientificName); err != nil {
		errs[FieldScientificName] = err
	} else {
		out.ScientificName = name
	}

	out.CommonName = NullableText(in.CommonName)
	out.Description = NullableText(in.Description)

	if k, err := kingdom(in.Kingdom); err != nil {
		errs[FieldKingdom] = err
	} else {
		out.Kingdom = k
	}

	if n, err := totalPopulation(in.TotalPopulation); err != nil {
		errs[FieldTotalPopulation] = err
	} else {
		out.TotalPopulation = n
	}

	if u, err := image(in.Image); err != nil {
		errs[FieldImage] = err
	} else {
		out.Image = u
	}

	if len(errs) > 0 {
		return model.SpeciesFields{}, errs
	}
	return out, nil
}

// Check re-verifies the invariants of an already normalized payload.
// The service calls it before every write, so a caller that skipped
// Validate can't store an empty name or a whitespace-only common name.
func Check(f model.SpeciesFields) error {
	_, err := Validate(InputFrom(f))
	if err != nil {
		return err
	}
	errs := Errors{}
	if f.ScientificName != strings.TrimSpace(f.ScientificName) {
		errs[FieldScientificName] = apperror.FieldInvalid(apperror.ErrFormat,
			FieldScientificName, "scientific name must be trimmed")
	}
	for field, v := range map[string]*string{
		FieldCommonName:  f.CommonName,
		FieldDescription: f.Description,
		FieldImage:       f.Image,
	} {
		if v == nil {
			continue
		}
		if t := strings.TrimSpace(*v); t == "" || t != *v {
			errs[field] = apperror.FieldInvalid(apperror.ErrFormat, field, "value must be trimmed and non-empty, or null")
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// NullableText trims s and maps an empty result to nil.
// Applying it to its own output is a no-op.
func NullableText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func scientificName(raw string) (string, *apperror.AppError) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperror.FieldInvalid(apperror.ErrRequired,
			FieldScientificName, "scientific name is required")
	}
	return name, nil
}

// kingdom does not trim: the value comes from a fixed select list and must
// match a literal exactly.
func kingdom(raw string) (model.Kingdom, *apperror.AppError) {
	k := model.Kingdom(raw)
	if !k.Valid() {
		return "", apperror.FieldInvalid(apperror.ErrInvalidEnum,
			FieldKingdom, fmt.Sprintf("kingdom must be one of %s", kingdomList()))
	}
	return k, nil
}

func totalPopulation(raw string) (*int64, *apperror.AppError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return nil, apperror.FieldInvalid(apperror.ErrRange,
			FieldTotalPopulation, "total population must be a whole number of at least 1")
	}
	return &n, nil
}

func image(raw string) (*string, *apperror.AppError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperror.FieldInvalid(apperror.ErrFormat,
			FieldImage, "image must be a valid http or https URL")
	}
	return &raw, nil
}

func kingdomList() string {
	ks := model.Kingdoms()
	names := make([]string, len(ks))
	for i, k := range ks {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
