package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/whiskey"
)

const whiskeyColumns = `id, name, distillery, type, region, age_years, abv, notes, created_by, created_at, updated_at`

// WhiskeyStore implements whiskey.Store over database/sql.
type WhiskeyStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewWhiskeyStore creates a whiskey store for the given dialect
func NewWhiskeyStore(db *sql.DB, dialect Dialect) *WhiskeyStore {
	return &WhiskeyStore{db: db, dialect: dialect}
}

func scanWhiskey(row rowScanner) (*whiskey.Whiskey, error) {
	var (
		w   whiskey.Whiskey
		age sql.NullInt64
		abv sql.NullFloat64
	)
	if err := row.Scan(&w.ID, &w.Name, &w.Distillery, &w.Type, &w.Region, &age, &abv,
		&w.Notes, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if age.Valid {
		v := int(age.Int64)
		w.AgeYears = &v
	}
	if abv.Valid {
		v := abv.Float64
		w.ABV = &v
	}
	return &w, nil
}

func (s *WhiskeyStore) List(ctx context.Context) ([]*whiskey.Whiskey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+whiskeyColumns+` FROM whiskeys ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list whiskeys: %w", err)
	}
	defer rows.Close()

	out := []*whiskey.Whiskey{}
	for rows.Next() {
		w, err := scanWhiskey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan whiskey: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *WhiskeyStore) Get(ctx context.Context, id int64) (*whiskey.Whiskey, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+whiskeyColumns+` FROM whiskeys WHERE id = ?`), id)
	w, err := scanWhiskey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, whiskey.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query whiskey: %w", err)
	}
	return w, nil
}

func (s *WhiskeyStore) Create(ctx context.Context, in whiskey.Input, createdBy int64) (*whiskey.Whiskey, error) {
	now := time.Now().UTC()
	query := s.dialect.Rebind(`
		INSERT INTO whiskeys (name, distillery, type, region, age_years, abv, notes, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	if err := s.db.QueryRowContext(ctx, query,
		in.Name, in.Distillery, in.Type, in.Region, in.AgeYears, in.ABV, in.Notes, createdBy, now, now,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to insert whiskey: %w", err)
	}

	return &whiskey.Whiskey{
		ID:         id,
		Name:       in.Name,
		Distillery: in.Distillery,
		Type:       in.Type,
		Region:     in.Region,
		AgeYears:   in.AgeYears,
		ABV:        in.ABV,
		Notes:      in.Notes,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *WhiskeyStore) Update(ctx context.Context, id int64, in whiskey.Input) (*whiskey.Whiskey, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE whiskeys
		SET name = ?, distillery = ?, type = ?, region = ?, age_years = ?, abv = ?, notes = ?, updated_at = ?
		WHERE id = ?`),
		in.Name, in.Distillery, in.Type, in.Region, in.AgeYears, in.ABV, in.Notes, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update whiskey: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, whiskey.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *WhiskeyStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM whiskeys WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete whiskey: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return whiskey.ErrNotFound
	}
	return nil
}
