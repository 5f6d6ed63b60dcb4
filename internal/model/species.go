// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data: similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Kingdom is the top-level taxonomic rank of a species record.
//
// WHY A NAMED STRING TYPE?
// A plain string would let any value slip through the type system. A named type
// documents intent at every call site, and the Valid method keeps the check for
// "is this one of the six allowed values" in one place.
type Kingdom string

const (
	KingdomAnimalia Kingdom = "Animalia"
	KingdomPlantae  Kingdom = "Plantae"
	KingdomFungi    Kingdom = "Fungi"
	KingdomProtista Kingdom = "Protista"
	KingdomArchaea  Kingdom = "Archaea"
	KingdomBacteria Kingdom = "Bacteria"
)

// Kingdoms returns the allowed kingdoms in display order.
// A fresh slice is returned so callers can't mutate a shared value.
func Kingdoms() []Kingdom {
	return []Kingdom{
		KingdomAnimalia,
		KingdomPlantae,
		KingdomFungi,
		KingdomProtista,
		KingdomArchaea,
		KingdomBacteria,
	}
}

// Valid reports whether k is exactly one of the six enumerated kingdoms.
// The comparison is case-sensitive: "animalia" is not valid.
func (k Kingdom) Valid() bool {
	for _, allowed := range Kingdoms() {
		if k == allowed {
			return true
		}
	}
	return false
}

// SpeciesFields holds the user-editable part of a species record, already
// normalized by the validation package.
//
// NULLABLE FIELDS AS POINTERS:
// A nil *string means "no value" (SQL NULL, JSON null). Normalization guarantees
// that a non-nil pointer never points at an empty or whitespace-only string,
// so there is exactly one way to say "nothing here".
type SpeciesFields struct {
	ScientificName  string  `json:"scientificName"`
	CommonName      *string `json:"commonName"`
	Kingdom         Kingdom `json:"kingdom"`
	TotalPopulation *int64  `json:"totalPopulation"`
	Image           *string `json:"image"`
	Description     *string `json:"description"`
}

// Species is a single catalog entry as stored in the backing store.
//
// STRUCT EMBEDDING:
// SpeciesFields is embedded, so s.ScientificName works directly and the JSON
// encoder flattens the embedded fields into the same object:
//
//	{"id":"...","author":"...","scientificName":"Cavia porcellus",...}
type Species struct {
	ID     string `json:"id"`
	Author string `json:"author"` // user ID of the creator, never reassigned
	SpeciesFields
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAuthor reports whether userID created this record.
// An empty userID is never an author.
func (s *Species) IsAuthor(userID string) bool {
	return userID != "" && s.Author == userID
}
