package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/plan"
	"github.com/neexbeast/travel-planner/internal/sentinel"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides database access for countries and travel plans.
// It implements both country.Store and plan.Store.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

type scanner interface {
	Scan(dest ...any) error
}

const countryColumns = `code, name, region, subregion, capital, population, flag, created_at, updated_at`

func scanCountry(row scanner) (country.Country, error) {
	var c country.Country
	err := row.Scan(
		&c.Code,
		&c.Name,
		&c.Region,
		&c.Subregion,
		&c.Capital,
		&c.Population,
		&c.Flag,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// GetCountry retrieves a country by normalized code.
// Returns nil, nil when the code is not cached.
func (r *Repository) GetCountry(ctx context.Context, code string) (*country.Country, error) {
	const q = `SELECT ` + countryColumns + ` FROM countries WHERE code = $1`

	c, err := scanCountry(r.q.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying country %s: %w", code, err)
	}
	return &c, nil
}

// InsertCountry stores a new country. A row already present for the code
// leaves the table untouched and yields sentinel.ErrConflict.
func (r *Repository) InsertCountry(ctx context.Context, c country.Country) (country.Country, error) {
	const q = `
		INSERT INTO countries (code, name, region, subregion, capital, population, flag, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (code) DO NOTHING
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, q, c.Code, c.Name, c.Region, c.Subregion, c.Capital, c.Population, c.Flag).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return country.Country{}, fmt.Errorf("country %s already cached: %w", c.Code, sentinel.ErrConflict)
		}
		return country.Country{}, fmt.Errorf("inserting country %s: %w", c.Code, err)
	}
	return c, nil
}

// ListCountries returns all cached countries in creation order.
func (r *Repository) ListCountries(ctx context.Context) ([]country.Country, error) {
	const q = `SELECT ` + countryColumns + ` FROM countries ORDER BY created_at, code`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying countries: %w", err)
	}
	defer rows.Close()

	countries := []country.Country{}
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning country row: %w", err)
		}
		countries = append(countries, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating country rows: %w", err)
	}
	return countries, nil
}

// DeleteCountry deletes a country inside a transaction that holds the
// country row FOR UPDATE while checking for referencing plans. Plan inserts
// take the same row FOR SHARE, so the two cannot interleave.
func (r *Repository) DeleteCountry(ctx context.Context, code string) error {
	return runInTx(ctx, r.q, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT code FROM countries WHERE code = $1 FOR UPDATE`, code).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("country %s is not cached: %w", code, sentinel.ErrNotFound)
			}
			return fmt.Errorf("locking country %s: %w", code, err)
		}

		var referenced bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM travel_plans WHERE country_code = $1)`, code).Scan(&referenced)
		if err != nil {
			return fmt.Errorf("checking plans for country %s: %w", code, err)
		}
		if referenced {
			return fmt.Errorf("country %s is referenced by travel plans: %w", code, sentinel.ErrConflict)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM countries WHERE code = $1`, code); err != nil {
			return fmt.Errorf("deleting country %s: %w", code, err)
		}
		return nil
	})
}

// InsertPlan stores a travel plan. The referenced country row is held
// FOR SHARE until commit; if it is gone the insert fails with sentinel.ErrNotFound.
func (r *Repository) InsertPlan(ctx context.Context, p plan.TravelPlan) (plan.TravelPlan, error) {
	err := runInTx(ctx, r.q, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT code FROM countries WHERE code = $1 FOR SHARE`, p.CountryCode).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("country %s is no longer cached: %w", p.CountryCode, sentinel.ErrNotFound)
			}
			return fmt.Errorf("locking country %s: %w", p.CountryCode, err)
		}

		const q = `
			INSERT INTO travel_plans (country_code, title, start_date, end_date, notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id::text, created_at
		`
		if err := tx.QueryRow(ctx, q, p.CountryCode, p.Title, p.StartDate, p.EndDate, p.Notes).
			Scan(&p.ID, &p.CreatedAt); err != nil {
			return fmt.Errorf("inserting travel plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return plan.TravelPlan{}, err
	}
	return p, nil
}

const planSelect = `
	SELECT p.id::text, p.country_code, p.title, p.start_date, p.end_date, p.notes, p.created_at,
	       c.code, c.name, c.region, c.subregion, c.capital, c.population, c.flag, c.created_at, c.updated_at
	FROM travel_plans p
	JOIN countries c ON c.code = p.country_code
`

func scanView(row scanner) (plan.View, error) {
	var v plan.View
	err := row.Scan(
		&v.ID,
		&v.CountryCode,
		&v.Title,
		&v.StartDate,
		&v.EndDate,
		&v.Notes,
		&v.CreatedAt,
		&v.Country.Code,
		&v.Country.Name,
		&v.Country.Region,
		&v.Country.Subregion,
		&v.Country.Capital,
		&v.Country.Population,
		&v.Country.Flag,
		&v.Country.CreatedAt,
		&v.Country.UpdatedAt,
	)
	return v, err
}

// ListPlans returns all travel plans joined with their countries.
func (r *Repository) ListPlans(ctx context.Context) ([]plan.View, error) {
	rows, err := r.q.Query(ctx, planSelect+` ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, fmt.Errorf("querying travel plans: %w", err)
	}
	defer rows.Close()

	views := []plan.View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning travel plan row: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating travel plan rows: %w", err)
	}
	return views, nil
}

// GetPlan retrieves one travel plan joined with its country.
// Returns nil, nil when the id is unknown.
func (r *Repository) GetPlan(ctx context.Context, id string) (*plan.View, error) {
	v, err := scanView(r.q.QueryRow(ctx, planSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying travel plan %s: %w", id, err)
	}
	return &v, nil
}

// HasPlansForCountry reports whether any plan references code.
func (r *Repository) HasPlansForCountry(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM travel_plans WHERE country_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("querying plans for country %s: %w", code, err)
	}
	return exists, nil
}
