package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X.
var _ repository.SpeciesRepository = (*DB)(nil)

// speciesColumns is shared by every SELECT so Scan order never drifts.
const speciesColumns = `id, author, scientific_name, common_name, kingdom,
	total_population, image, description, created_at, updated_at`

// orderClauses maps the allowed sort fields to SQL.
//
// WHY A WHITELIST?
// ORDER BY can't take a ? placeholder, so the column name has to be part of
// the SQL string. Building it from user input would be an injection hole.
// Only values present in this map ever reach the query.
//
// The id tiebreaker keeps the order stable when timestamps or names collide.
// xids embed a timestamp and a counter, so "id DESC" also means "newest first".
var orderClauses = map[repository.SortField][2]string{
	repository.SortByCreatedAt:      {"created_at ASC, id ASC", "created_at DESC, id DESC"},
	repository.SortByScientificName: {"scientific_name ASC, id ASC", "scientific_name DESC, id DESC"},
}

// Create inserts a new species record.
//
// ID and timestamps are generated here and written back into the caller's
// struct (pointer receiver), the same way the users table does it.
// species.Author must already be set by the caller: the store never
// decides who owns a record.
func (db *DB) Create(ctx context.Context, species *model.Species) error {
	species.ID = xid.New().String()

	now := time.Now()
	species.CreatedAt = now
	species.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO species (id, author, scientific_name, common_name, kingdom,
			total_population, image, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		species.ID,
		species.Author,
		species.ScientificName,
		nullString(species.CommonName),
		string(species.Kingdom),
		nullInt64(species.TotalPopulation),
		nullString(species.Image),
		nullString(species.Description),
		species.CreatedAt,
		species.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating species: %w", err)
	}

	return nil
}

// GetByID retrieves a single species by its ID.
// sql.ErrNoRows is translated to apperror.NotFound so handlers can return 404.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Species, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+speciesColumns+` FROM species WHERE id = ?`,
		id,
	)

	species, err := scanSpecies(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("species", id)
		}
		return nil, fmt.Errorf("sqlite: getting species %s: %w", id, err)
	}

	return species, nil
}

// List returns the whole collection in the requested order.
//
// NO PAGINATION:
// The catalog UI holds both orderings of the full collection and toggles
// between them locally, so the store always returns every row.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Species, error) {
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = repository.SortByCreatedAt
	}
	clauses, ok := orderClauses[orderBy]
	if !ok {
		return nil, apperror.ValidationFailed("order", fmt.Sprintf("cannot order species by %q", orderBy))
	}
	clause := clauses[0]
	if opts.Descending {
		clause = clauses[1]
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+speciesColumns+` FROM species ORDER BY `+clause,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing species: %w", err)
	}
	// CRITICAL: always close rows when done!
	defer rows.Close()

	list := make([]model.Species, 0)
	for rows.Next() {
		s, err := scanSpecies(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning species row: %w", err)
		}
		list = append(list, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating species: %w", err)
	}

	return list, nil
}

// Update replaces the editable fields of a species by ID.
//
// id, author and created_at are immutable and never appear in the SET list.
// Last write wins: there is no version check, by contract with the UI.
func (db *DB) Update(ctx context.Context, species *model.Species) error {
	species.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE species
		 SET scientific_name = ?, common_name = ?, kingdom = ?,
		     total_population = ?, image = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		species.ScientificName,
		nullString(species.CommonName),
		string(species.Kingdom),
		nullInt64(species.TotalPopulation),
		nullString(species.Image),
		nullString(species.Description),
		species.UpdatedAt,
		species.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating species %s: %w", species.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("species", species.ID)
	}

	return nil
}

// Delete removes a species by ID. Deletion is a hard delete.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM species WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting species %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("species", id)
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanSpecies reads one row in speciesColumns order.
//
// NULL HANDLING:
// Scanning NULL into a plain string fails, so nullable columns go through
// sql.NullString / sql.NullInt64 and are converted to pointers afterwards.
func scanSpecies(row scanner) (*model.Species, error) {
	var (
		s           model.Species
		kingdom     string
		commonName  sql.NullString
		population  sql.NullInt64
		image       sql.NullString
		description sql.NullString
	)
	if err := row.Scan(
		&s.ID,
		&s.Author,
		&s.ScientificName,
		&commonName,
		&kingdom,
		&population,
		&image,
		&description,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Kingdom = model.Kingdom(kingdom)
	s.CommonName = stringPtr(commonName)
	s.TotalPopulation = int64Ptr(population)
	s.Image = stringPtr(image)
	s.Description = stringPtr(description)
	return &s, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
