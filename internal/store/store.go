package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
)

var (
	ErrAlreadyFavorited = errors.New("property already in favorites")
	ErrNotFavorited     = errors.New("property not in favorites")
	ErrInvalidCursor    = errors.New("invalid cursor")
)

type Property struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Type           string    `json:"type"`
	Price          float64   `json:"price"`
	Sqft           int       `json:"sqft"`
	YearBuilt      int       `json:"year_built"`
	Beds           int       `json:"beds"`
	Baths          float64   `json:"baths"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	LocationScore  float64   `json:"location_score"`
	SafetyScore    float64   `json:"safety_score"`
	SchoolScore    float64   `json:"school_score"`
	CommuteMinutes float64   `json:"commute_minutes"`

	// Stored ideality score, kept current by the rescore worker.
	IdealityScore *int `json:"ideality_score,omitempty"`
	ScoredYear    *int `json:"scored_year,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Attributes returns the scoring engine input for p.
func (p *Property) Attributes() scoring.PropertyAttributes {
	return scoring.PropertyAttributes{
		Price:          p.Price,
		Sqft:           float64(p.Sqft),
		YearBuilt:      p.YearBuilt,
		Beds:           p.Beds,
		Baths:          p.Baths,
		LocationScore:  p.LocationScore,
		SafetyScore:    p.SafetyScore,
		SchoolScore:    p.SchoolScore,
		CommuteMinutes: p.CommuteMinutes,
	}
}

type SortField string

const (
	SortIdealityScore SortField = "ideality_score"
	SortPrice         SortField = "price"
	SortSqft          SortField = "sqft"
	SortYearBuilt     SortField = "year_built"
	SortCreatedAt     SortField = "created_at"
)

// Valid reports whether f is a sortable column.
func (f SortField) Valid() bool {
	switch f {
	case SortIdealityScore, SortPrice, SortSqft, SortYearBuilt, SortCreatedAt:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

type PropertyFilter struct {
	MinPrice *float64
	MaxPrice *float64
	MinSqft  *int
	MaxSqft  *int
	MinYear  *int
	MaxYear  *int
	Type     string
	Beds     *int
	Baths    *float64

	SortBy    SortField
	SortOrder SortOrder
	Limit     int
	Cursor    *Cursor
}

// Cursor is a keyset position: the sort value and ID of the last row seen.
// Exactly one of Num or At is meaningful, depending on the sort column.
type Cursor struct {
	ID  uuid.UUID `json:"id"`
	Num float64   `json:"n,omitempty"`
	At  time.Time `json:"t,omitempty"`
}

// CursorFor builds the cursor pointing just past p under sort.
func CursorFor(p *Property, sort SortField) *Cursor {
	c := &Cursor{ID: p.ID}
	switch sort {
	case SortPrice:
		c.Num = p.Price
	case SortSqft:
		c.Num = float64(p.Sqft)
	case SortYearBuilt:
		c.Num = float64(p.YearBuilt)
	case SortCreatedAt:
		c.At = p.CreatedAt
	default:
		if p.IdealityScore != nil {
			c.Num = float64(*p.IdealityScore)
		} else {
			c.Num = -1
		}
	}
	return c
}

// Encode returns the opaque token handed to clients.
func (c *Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}
	return &c, nil
}

type Facets struct {
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	MinSqft  int     `json:"min_sqft"`
	MaxSqft  int     `json:"max_sqft"`
	MinYear  int     `json:"min_year"`
	MaxYear  int     `json:"max_year"`
}

// BoundingBox is an axis-aligned lat/lng window.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

type Favorite struct {
	UserID     string    `json:"user_id"`
	PropertyID uuid.UUID `json:"property_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type Store interface {
	CreateProperty(ctx context.Context, p *Property) error
	GetProperty(ctx context.Context, id uuid.UUID) (*Property, error)
	ListProperties(ctx context.Context, filter PropertyFilter) ([]*Property, error)
	ListNeighbors(ctx context.Context, box BoundingBox, excludeID uuid.UUID) ([]*Property, error)
	GetFacets(ctx context.Context) (*Facets, error)

	// Rescoring
	ListStaleScores(ctx context.Context, year, limit int) ([]*Property, error)
	UpdateIdealityScore(ctx context.Context, id uuid.UUID, score, year int) error

	// Favorites
	AddFavorite(ctx context.Context, userID string, propertyID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID string, propertyID uuid.UUID) error
	ListFavorites(ctx context.Context, userID string) ([]*Property, error)

	Close() error
}
