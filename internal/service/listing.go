package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drivewise/drivewise/internal/apperr"
	"github.com/drivewise/drivewise/internal/assets"
	"github.com/drivewise/drivewise/internal/config"
	"github.com/drivewise/drivewise/internal/models"
	"github.com/drivewise/drivewise/internal/repository"
)

// ListingService orchestrates the car listing lifecycle
type ListingService struct {
	repo   repository.ListingRepository
	store  assets.Store
	config *config.Config
	log    *logrus.Logger
}

// NewListingService initializes a new listing service
func NewListingService(repo repository.ListingRepository, store assets.Store, cfg *config.Config, log *logrus.Logger) *ListingService {
	return &ListingService{repo: repo, store: store, config: cfg, log: log}
}

// CreateListingInput carries the raw listing fields from the request
type CreateListingInput struct {
	Name         string
	Location     string
	Price        string
	Year         string
	Mileage      string
	Fuel         string
	Transmission string
	Category     string
	Make         string
	Model        string
	Description  string
	Uploads      []Upload
}

// Create validates the input, persists the uploaded images and stores the new
// listing owned by seller
func (s *ListingService) Create(ctx context.Context, seller string, input CreateListingInput) (*models.Car, error) {
	fieldErrors := map[string]string{}

	requireNonBlank(fieldErrors, "name", input.Name, "Car name is required")
	requireNonBlank(fieldErrors, "location", input.Location, "Location is required")
	requireNonBlank(fieldErrors, "fuel", input.Fuel, "Fuel type is required")
	requireNonBlank(fieldErrors, "transmission", input.Transmission, "Transmission type is required")
	requireNonBlank(fieldErrors, "make", input.Make, "Make is required")
	requireNonBlank(fieldErrors, "model", input.Model, "Model is required")
	requireNonBlank(fieldErrors, "description", input.Description, "Description is required")

	price := parsePrice(fieldErrors, input.Price)
	year := parseYear(fieldErrors, input.Year)
	mileage := parseMileage(fieldErrors, input.Mileage)

	if strings.TrimSpace(input.Category) == "" {
		fieldErrors["category"] = "Category is required"
	} else if !models.ValidCategory(input.Category) {
		fieldErrors["category"] = fmt.Sprintf("Category must be one of: %s", strings.Join(models.Categories, ", "))
	}

	if err := checkUploads(input.Uploads); err != nil {
		fieldErrors["images"] = err.Error()
	}

	if len(fieldErrors) > 0 {
		return nil, apperr.Validation(fieldErrors)
	}

	refs, err := s.saveUploads(input.Uploads)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		// No files supplied: fall back to the configured placeholder
		refs = []string{s.config.PlaceholderImage}
	}

	car := &models.Car{
		Name:         strings.TrimSpace(input.Name),
		Location:     strings.TrimSpace(input.Location),
		Price:        price,
		Year:         year,
		Mileage:      mileage,
		Fuel:         input.Fuel,
		Transmission: input.Transmission,
		Category:     input.Category,
		Make:         strings.TrimSpace(input.Make),
		Model:        strings.TrimSpace(input.Model),
		Description:  strings.TrimSpace(input.Description),
		Images:       refs,
		Image:        refs[0],
		Featured:     false,
		Seller:       seller,
		PostedDays:   0,
		CreatedAt:    time.Now().UTC(),
	}

	id, err := s.repo.Create(ctx, car)
	if err != nil {
		s.log.Errorf("Failed to store listing: %v", err)
		s.deleteAssets(refs)
		return nil, apperr.Dependency("failed to create listing", err)
	}
	car.ID = id

	s.log.Infof("Listing created: %s by %s", id, seller)
	return car, nil
}

// saveUploads persists every file and returns the asset references; if any
// save fails, the files already written in this request are removed
func (s *ListingService) saveUploads(uploads []Upload) ([]string, error) {
	var refs []string
	for _, u := range uploads {
		ref, err := s.store.Save(u.Data, u.Filename)
		if err != nil {
			s.log.Errorf("Failed to save upload %q: %v", u.Filename, err)
			s.deleteAssets(refs)
			return nil, apperr.Dependency("failed to save uploaded images", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// deleteAssets removes managed asset references, best-effort
func (s *ListingService) deleteAssets(refs []string) {
	for _, ref := range refs {
		if !assets.Managed(ref) {
			continue
		}
		if !s.store.Delete(ref) {
			s.log.Warnf("Asset %s was not removed", ref)
		}
	}
}

// UpdateListingInput carries the changed listing fields; blank fields are
// left untouched
type UpdateListingInput struct {
	Name         string
	Location     string
	Price        string
	Year         string
	Mileage      string
	Fuel         string
	Transmission string
	Category     string
	Make         string
	Model        string
	Description  string
	Uploads      []Upload
}

// Update applies the supplied fields to a listing owned by caller. Supplying
// new images replaces the previous set entirely.
func (s *ListingService) Update(ctx context.Context, caller, id string, input UpdateListingInput) (*models.Car, error) {
	car, err := s.ownedListing(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	fieldErrors := map[string]string{}
	fields := map[string]any{}

	if strings.TrimSpace(input.Name) != "" {
		fields["name"] = strings.TrimSpace(input.Name)
	}
	if strings.TrimSpace(input.Location) != "" {
		fields["location"] = strings.TrimSpace(input.Location)
	}
	if strings.TrimSpace(input.Price) != "" {
		fields["price"] = parsePrice(fieldErrors, input.Price)
	}
	if strings.TrimSpace(input.Year) != "" {
		fields["year"] = parseYear(fieldErrors, input.Year)
	}
	if strings.TrimSpace(input.Mileage) != "" {
		fields["mileage"] = parseMileage(fieldErrors, input.Mileage)
	}
	if strings.TrimSpace(input.Fuel) != "" {
		fields["fuel"] = strings.TrimSpace(input.Fuel)
	}
	if strings.TrimSpace(input.Transmission) != "" {
		fields["transmission"] = strings.TrimSpace(input.Transmission)
	}
	if input.Category != "" {
		if !models.ValidCategory(input.Category) {
			fieldErrors["category"] = fmt.Sprintf("Category must be one of: %s", strings.Join(models.Categories, ", "))
		} else {
			fields["category"] = input.Category
		}
	}
	if strings.TrimSpace(input.Make) != "" {
		fields["make"] = strings.TrimSpace(input.Make)
	}
	if strings.TrimSpace(input.Model) != "" {
		fields["model"] = strings.TrimSpace(input.Model)
	}
	if strings.TrimSpace(input.Description) != "" {
		fields["description"] = strings.TrimSpace(input.Description)
	}

	if err := checkUploads(input.Uploads); err != nil {
		fieldErrors["images"] = err.Error()
	}

	if len(fieldErrors) > 0 {
		return nil, apperr.Validation(fieldErrors)
	}
	if len(fields) == 0 && len(input.Uploads) == 0 {
		return nil, apperr.ValidationField("general", "No fields to update")
	}

	if len(input.Uploads) > 0 {
		refs, err := s.replaceImages(car, input.Uploads)
		if err != nil {
			return nil, err
		}
		fields["images"] = refs
		fields["image"] = refs[0]
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("listing not found")
		}
		s.log.Errorf("Failed to update listing %s: %v", id, err)
		return nil, apperr.Dependency("failed to update listing", err)
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.log.Errorf("Failed to reload listing %s: %v", id, err)
		return nil, apperr.Dependency("failed to load updated listing", err)
	}

	s.log.Infof("Listing updated: %s by %s", id, caller)
	return updated, nil
}

// replaceImages deletes the listing's current images and saves the new set.
// The delete-then-write sequence is not transactional; a failure between the
// phases can leave the listing without stored images.
func (s *ListingService) replaceImages(car *models.Car, uploads []Upload) ([]string, error) {
	s.deleteAssets(car.Images)
	return s.saveUploads(uploads)
}

// Delete removes a listing owned by caller together with its stored images
func (s *ListingService) Delete(ctx context.Context, caller, id string) error {
	car, err := s.ownedListing(ctx, caller, id)
	if err != nil {
		return err
	}

	// Asset deletion first, best-effort; leftover files are preferable to a
	// listing document pointing at deleted assets
	s.deleteAssets(car.Images)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("listing not found")
		}
		s.log.Errorf("Failed to delete listing %s: %v", id, err)
		return apperr.Dependency("failed to delete listing", err)
	}

	s.log.Infof("Listing deleted: %s by %s", id, caller)
	return nil
}

// ownedListing loads a listing and checks caller owns it. Absence and
// ownership mismatch are reported identically.
func (s *ListingService) ownedListing(ctx context.Context, caller, id string) (*models.Car, error) {
	car, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("listing not found")
		}
		s.log.Errorf("Failed to load listing %s: %v", id, err)
		return nil, apperr.Dependency("failed to load listing", err)
	}
	if car.Seller != caller {
		return nil, apperr.NotFound("listing not found")
	}
	return car, nil
}

// Get returns a single listing by id
func (s *ListingService) Get(ctx context.Context, id string) (*models.Car, error) {
	car, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("listing not found")
		}
		s.log.Errorf("Failed to load listing %s: %v", id, err)
		return nil, apperr.Dependency("failed to load listing", err)
	}
	return car, nil
}

// BrowseInput selects, orders and pages the listings to return
type BrowseInput struct {
	Search       string
	Category     string
	FeaturedOnly bool
	MinPrice     *int64
	MaxPrice     *int64
	Sort         string
	Page         int
	PageSize     int
}

// BrowseResult is one page of listings plus pagination totals
type BrowseResult struct {
	Cars       []models.Car `json:"cars"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// Browse returns the filtered, sorted page of listings
func (s *ListingService) Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error) {
	if input.Page <= 0 {
		return nil, apperr.ValidationField("page", "Page must be a positive integer")
	}
	if input.PageSize <= 0 {
		return nil, apperr.ValidationField("pageSize", "Page size must be a positive integer")
	}

	var sortBy repository.ListingSort
	switch input.Sort {
	case "", string(repository.SortPriceAsc):
		sortBy = repository.SortPriceAsc
	case string(repository.SortPriceDesc), string(repository.SortYearAsc), string(repository.SortYearDesc):
		sortBy = repository.ListingSort(input.Sort)
	default:
		return nil, apperr.ValidationField("sort", "Sort must be one of: price_asc, price_desc, year_asc, year_desc")
	}

	filter := repository.ListingFilter{
		Search:       strings.TrimSpace(input.Search),
		Category:     input.Category,
		FeaturedOnly: input.FeaturedOnly,
		MinPrice:     input.MinPrice,
		MaxPrice:     input.MaxPrice,
	}

	cars, total, err := s.repo.Find(ctx, filter, sortBy, repository.Page{Number: input.Page, Size: input.PageSize})
	if err != nil {
		s.log.Errorf("Failed to browse listings: %v", err)
		return nil, apperr.Dependency("failed to browse listings", err)
	}

	return &BrowseResult{
		Cars:       cars,
		Total:      total,
		Page:       input.Page,
		PageSize:   input.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(input.PageSize))),
	}, nil
}

// All returns every listing, capped at a size no marketplace instance has
// approached; used by the sitemap
func (s *ListingService) All(ctx context.Context) ([]models.Car, error) {
	cars, _, err := s.repo.Find(ctx, repository.ListingFilter{}, repository.SortPriceAsc,
		repository.Page{Number: 1, Size: 50000})
	if err != nil {
		s.log.Errorf("Failed to load listings: %v", err)
		return nil, apperr.Dependency("failed to load listings", err)
	}
	return cars, nil
}

// BySeller returns every listing owned by seller
func (s *ListingService) BySeller(ctx context.Context, seller string) ([]models.Car, error) {
	cars, err := s.repo.FindBySeller(ctx, seller)
	if err != nil {
		s.log.Errorf("Failed to load listings for %s: %v", seller, err)
		return nil, apperr.Dependency("failed to load listings", err)
	}
	return cars, nil
}

// CategoryCounts returns the listing count per category, zero-filled for
// categories without listings
func (s *ListingService) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.CountByCategory(ctx)
	if err != nil {
		s.log.Errorf("Failed to count categories: %v", err)
		return nil, apperr.Dependency("failed to count categories", err)
	}
	result := make(map[string]int64, len(models.Categories))
	for _, c := range models.Categories {
		result[c] = counts[c]
	}
	return result, nil
}

// RefreshPostedDays recomputes the stored days-posted counters
func (s *ListingService) RefreshPostedDays(ctx context.Context) (int64, error) {
	updated, err := s.repo.RefreshPostedDays(ctx, time.Now().UTC())
	if err != nil {
		s.log.Errorf("Failed to refresh posted days: %v", err)
		return updated, fmt.Errorf("failed to refresh posted days: %w", err)
	}
	return updated, nil
}

func requireNonBlank(fieldErrors map[string]string, field, value, message string) {
	if strings.TrimSpace(value) == "" {
		fieldErrors[field] = message
	}
}

func parsePrice(fieldErrors map[string]string, value string) int64 {
	if strings.TrimSpace(value) == "" {
		fieldErrors["price"] = "Price is required"
		return 0
	}
	price, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || price <= 0 {
		fieldErrors["price"] = "Price must be a positive number"
		return 0
	}
	return price
}

func parseYear(fieldErrors map[string]string, value string) int {
	if strings.TrimSpace(value) == "" {
		fieldErrors["year"] = "Year is required"
		return 0
	}
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || year < 1900 || year > time.Now().Year() {
		fieldErrors["year"] = "Invalid year"
		return 0
	}
	return year
}

func parseMileage(fieldErrors map[string]string, value string) int64 {
	if strings.TrimSpace(value) == "" {
		fieldErrors["mileage"] = "Mileage is required"
		return 0
	}
	mileage, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || mileage < 0 {
		fieldErrors["mileage"] = "Mileage must be a non-negative number"
		return 0
	}
	return mileage
}
