package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// The CHECK constraints reject out-of-domain listings at ingestion so the
// scorer only sees well-formed rows.
const schema = `
CREATE TABLE IF NOT EXISTS properties (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title            TEXT NOT NULL,
	type             TEXT NOT NULL,
	price            DOUBLE PRECISION NOT NULL CHECK (price > 0),
	sqft             INTEGER NOT NULL CHECK (sqft > 0),
	year_built       INTEGER NOT NULL,
	beds             INTEGER NOT NULL CHECK (beds >= 1),
	baths            DOUBLE PRECISION NOT NULL CHECK (baths >= 0.5),
	lat              DOUBLE PRECISION NOT NULL,
	lng              DOUBLE PRECISION NOT NULL,
	location_score   DOUBLE PRECISION NOT NULL,
	safety_score     DOUBLE PRECISION NOT NULL,
	school_score     DOUBLE PRECISION NOT NULL,
	commute_minutes  DOUBLE PRECISION NOT NULL CHECK (commute_minutes >= 0),
	ideality_score   INTEGER,
	scored_year      INTEGER,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_properties_ideality ON properties (COALESCE(ideality_score, -1), id);
CREATE INDEX IF NOT EXISTS idx_properties_price ON properties (price, id);
CREATE INDEX IF NOT EXISTS idx_properties_lat_lng ON properties (lat, lng);

CREATE TABLE IF NOT EXISTS favorites (
	user_id      TEXT NOT NULL,
	property_id  UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, property_id)
);`

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const propertyColumns = `id, title, type, price, sqft, year_built, beds, baths,
	lat, lng, location_score, safety_score, school_score, commute_minutes,
	ideality_score, scored_year, created_at`

const favoriteColumns = `p.id, p.title, p.type, p.price, p.sqft, p.year_built, p.beds, p.baths,
	p.lat, p.lng, p.location_score, p.safety_score, p.school_score, p.commute_minutes,
	p.ideality_score, p.scored_year, p.created_at`

func scanProperty(row pgx.Row) (*Property, error) {
	p := &Property{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Type, &p.Price, &p.Sqft, &p.YearBuilt, &p.Beds, &p.Baths,
		&p.Lat, &p.Lng, &p.LocationScore, &p.SafetyScore, &p.SchoolScore, &p.CommuteMinutes,
		&p.IdealityScore, &p.ScoredYear, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func collectProperties(rows pgx.Rows) ([]*Property, error) {
	defer rows.Close()
	var out []*Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateProperty(ctx context.Context, p *Property) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO properties (id, title, type, price, sqft, year_built, beds, baths,
			lat, lng, location_score, safety_score, school_score, commute_minutes,
			ideality_score, scored_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at`,
		p.ID, p.Title, p.Type, p.Price, p.Sqft, p.YearBuilt, p.Beds, p.Baths,
		p.Lat, p.Lng, p.LocationScore, p.SafetyScore, p.SchoolScore, p.CommuteMinutes,
		p.IdealityScore, p.ScoredYear,
	).Scan(&p.CreatedAt)
}

func (s *PostgresStore) GetProperty(ctx context.Context, id uuid.UUID) (*Property, error) {
	p, err := scanProperty(s.pool.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func sortExpr(f SortField) string {
	switch f {
	case SortPrice, SortSqft, SortYearBuilt, SortCreatedAt:
		return string(f)
	default:
		return "COALESCE(ideality_score, -1)"
	}
}

func (s *PostgresStore) ListProperties(ctx context.Context, filter PropertyFilter) ([]*Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE 1=1`
	args := []interface{}{}
	n := 0

	add := func(cond string, v interface{}) {
		n++
		query += fmt.Sprintf(" AND "+cond, n)
		args = append(args, v)
	}

	if filter.MinPrice != nil {
		add("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price <= $%d", *filter.MaxPrice)
	}
	if filter.MinSqft != nil {
		add("sqft >= $%d", *filter.MinSqft)
	}
	if filter.MaxSqft != nil {
		add("sqft <= $%d", *filter.MaxSqft)
	}
	if filter.MinYear != nil {
		add("year_built >= $%d", *filter.MinYear)
	}
	if filter.MaxYear != nil {
		add("year_built <= $%d", *filter.MaxYear)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Beds != nil {
		add("beds = $%d", *filter.Beds)
	}
	if filter.Baths != nil {
		add("baths = $%d", *filter.Baths)
	}

	sortBy := filter.SortBy
	if !sortBy.Valid() {
		sortBy = SortIdealityScore
	}
	order := filter.SortOrder
	if !order.Valid() {
		order = SortDesc
	}
	expr := sortExpr(sortBy)

	if c := filter.Cursor; c != nil {
		cmp := "<"
		if order == SortAsc {
			cmp = ">"
		}
		var v interface{} = c.Num
		cast := "float8"
		if sortBy == SortCreatedAt {
			v = c.At
			cast = "timestamptz"
		}
		n += 2
		query += fmt.Sprintf(" AND (%s, id) %s ($%d::%s, $%d::uuid)", expr, cmp, n-1, cast, n)
		args = append(args, v, c.ID)
	}

	dir := "DESC"
	if order == SortAsc {
		dir = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", expr, dir, dir)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectProperties(rows)
}

func (s *PostgresStore) ListNeighbors(ctx context.Context, box BoundingBox, excludeID uuid.UUID) ([]*Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE id <> $1
		  AND lat BETWEEN $2 AND $3
		  AND lng BETWEEN $4 AND $5`,
		excludeID, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
	)
	if err != nil {
		return nil, err
	}
	return collectProperties(rows)
}

func (s *PostgresStore) GetFacets(ctx context.Context) (*Facets, error) {
	var minPrice, maxPrice *float64
	var minSqft, maxSqft, minYear, maxYear *int
	err := s.pool.QueryRow(ctx, `
		SELECT MIN(price), MAX(price), MIN(sqft), MAX(sqft), MIN(year_built), MAX(year_built)
		FROM properties`,
	).Scan(&minPrice, &maxPrice, &minSqft, &maxSqft, &minYear, &maxYear)
	if err != nil {
		return nil, err
	}

	f := &Facets{MinYear: 1900, MaxYear: time.Now().Year()}
	if minPrice != nil {
		f.MinPrice = *minPrice
	}
	if maxPrice != nil {
		f.MaxPrice = *maxPrice
	}
	if minSqft != nil {
		f.MinSqft = *minSqft
	}
	if maxSqft != nil {
		f.MaxSqft = *maxSqft
	}
	if minYear != nil {
		f.MinYear = *minYear
	}
	if maxYear != nil {
		f.MaxYear = *maxYear
	}
	return f, nil
}

func (s *PostgresStore) ListStaleScores(ctx context.Context, year, limit int) ([]*Property, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE ideality_score IS NULL OR scored_year IS DISTINCT FROM $1
		ORDER BY created_at ASC
		LIMIT $2`, year, limit)
	if err != nil {
		return nil, err
	}
	return collectProperties(rows)
}

func (s *PostgresStore) UpdateIdealityScore(ctx context.Context, id uuid.UUID, score, year int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE properties SET ideality_score = $2, scored_year = $3 WHERE id = $1`,
		id, score, year)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update ideality score: property %s not found", id)
	}
	return nil
}

func (s *PostgresStore) AddFavorite(ctx context.Context, userID string, propertyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO favorites (user_id, property_id) VALUES ($1, $2)
		ON CONFLICT (user_id, property_id) DO NOTHING`, userID, propertyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFavorited
	}
	return nil
}

func (s *PostgresStore) RemoveFavorite(ctx context.Context, userID string, propertyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND property_id = $2`, userID, propertyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFavorited
	}
	return nil
}

func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]*Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+favoriteColumns+` FROM favorites f
		JOIN properties p ON p.id = f.property_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectProperties(rows)
}
