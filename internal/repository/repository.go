package repository

import (
	"context"
	"errors"
	"time"

	"github.com/drivewise/drivewise/internal/models"
)

// ErrNotFound is returned when a document is absent or its id is malformed
var ErrNotFound = errors.New("document not found")

// ListingSort selects the ordering of browse results
type ListingSort string

const (
	SortPriceAsc  ListingSort = "price_asc"
	SortPriceDesc ListingSort = "price_desc"
	SortYearAsc   ListingSort = "year_asc"
	SortYearDesc  ListingSort = "year_desc"
)

// ListingFilter narrows browse results; zero values mean "no constraint"
type ListingFilter struct {
	Search       string // case-insensitive substring match on name
	Category     string // exact match
	FeaturedOnly bool
	MinPrice     *int64 // inclusive
	MaxPrice     *int64 // inclusive
}

// Page is 1-indexed pagination
type Page struct {
	Number int
	Size   int
}

// ListingRepository provides document operations over car listings
type ListingRepository interface {
	Create(ctx context.Context, car *models.Car) (string, error)
	FindByID(ctx context.Context, id string) (*models.Car, error)
	// Find returns one page of matches plus the total match count
	Find(ctx context.Context, filter ListingFilter, sort ListingSort, page Page) ([]models.Car, int64, error)
	FindBySeller(ctx context.Context, seller string) ([]models.Car, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	DeleteBySeller(ctx context.Context, seller string) (int64, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
	// RefreshPostedDays recomputes the stored days-posted counters from the
	// creation timestamps and returns how many documents changed
	RefreshPostedDays(ctx context.Context, now time.Time) (int64, error)
}

// AccountRepository provides document operations over user accounts
type AccountRepository interface {
	Create(ctx context.Context, user *models.User) (string, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}
