package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/drivewise/drivewise/internal/models"
)

// MemoryListingRepository is an in-memory ListingRepository. It is safe for
// concurrent use and is primarily intended for tests and local development.
type MemoryListingRepository struct {
	mu     sync.RWMutex
	nextID int64
	cars   map[string]models.Car
}

var _ ListingRepository = (*MemoryListingRepository)(nil)

// NewMemoryListingRepository creates an empty listing repository
func NewMemoryListingRepository() *MemoryListingRepository {
	return &MemoryListingRepository{
		nextID: 1,
		cars:   make(map[string]models.Car),
	}
}

func (s *MemoryListingRepository) Create(ctx context.Context, car *models.Car) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%024x", s.nextID)
	s.nextID++
	stored := *car
	stored.ID = id
	stored.Images = append([]string(nil), car.Images...)
	s.cars[id] = stored
	return id, nil
}

func (s *MemoryListingRepository) FindByID(ctx context.Context, id string) (*models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	car, ok := s.cars[id]
	if !ok {
		return nil, ErrNotFound
	}
	car.Images = append([]string(nil), car.Images...)
	return &car, nil
}

func (s *MemoryListingRepository) Find(ctx context.Context, filter ListingFilter, sortBy ListingSort, page Page) ([]models.Car, int64, error) {
	s.mu.RLock()
	var matched []models.Car
	for _, car := range s.cars {
		if matchListing(car, filter) {
			matched = append(matched, car)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		switch sortBy {
		case SortPriceDesc:
			return matched[i].Price > matched[j].Price
		case SortYearAsc:
			return matched[i].Year < matched[j].Year
		case SortYearDesc:
			return matched[i].Year > matched[j].Year
		default:
			return matched[i].Price < matched[j].Price
		}
	})

	total := int64(len(matched))
	start := (page.Number - 1) * page.Size
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matchListing(car models.Car, filter ListingFilter) bool {
	if filter.Search != "" && !strings.Contains(strings.ToLower(car.Name), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.Category != "" && car.Category != filter.Category {
		return false
	}
	if filter.FeaturedOnly && !car.Featured {
		return false
	}
	if filter.MinPrice != nil && car.Price < *filter.MinPrice {
		return false
	}
	if filter.MaxPrice != nil && car.Price > *filter.MaxPrice {
		return false
	}
	return true
}

func (s *MemoryListingRepository) FindBySeller(ctx context.Context, seller string) ([]models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cars []models.Car
	for _, car := range s.cars {
		if car.Seller == seller {
			cars = append(cars, car)
		}
	}
	sort.SliceStable(cars, func(i, j int) bool { return cars[i].ID < cars[j].ID })
	return cars, nil
}

func (s *MemoryListingRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	car, ok := s.cars[id]
	if !ok {
		return ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "name":
			car.Name = value.(string)
		case "location":
			car.Location = value.(string)
		case "price":
			car.Price = value.(int64)
		case "year":
			car.Year = value.(int)
		case "mileage":
			car.Mileage = value.(int64)
		case "fuel":
			car.Fuel = value.(string)
		case "transmission":
			car.Transmission = value.(string)
		case "category":
			car.Category = value.(string)
		case "make":
			car.Make = value.(string)
		case "model":
			car.Model = value.(string)
		case "description":
			car.Description = value.(string)
		case "images":
			car.Images = append([]string(nil), value.([]string)...)
		case "image":
			car.Image = value.(string)
		case "featured":
			car.Featured = value.(bool)
		case "postedDays":
			car.PostedDays = value.(int)
		default:
			return fmt.Errorf("unknown car field %q", key)
		}
	}
	s.cars[id] = car
	return nil
}

func (s *MemoryListingRepository) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cars[id]; !ok {
		return ErrNotFound
	}
	delete(s.cars, id)
	return nil
}

func (s *MemoryListingRepository) DeleteBySeller(ctx context.Context, seller string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, car := range s.cars {
		if car.Seller == seller {
			delete(s.cars, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryListingRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64)
	for _, car := range s.cars {
		counts[car.Category]++
	}
	return counts, nil
}

func (s *MemoryListingRepository) RefreshPostedDays(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for id, car := range s.cars {
		days := PostedDays(car.CreatedAt, now)
		if days != car.PostedDays {
			car.PostedDays = days
			s.cars[id] = car
			updated++
		}
	}
	return updated, nil
}

// MemoryAccountRepository is an in-memory AccountRepository
type MemoryAccountRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]models.User
}

var _ AccountRepository = (*MemoryAccountRepository)(nil)

// NewMemoryAccountRepository creates an empty account repository
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		nextID: 1,
		users:  make(map[string]models.User),
	}
}

func (s *MemoryAccountRepository) Create(ctx context.Context, user *models.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%024x", s.nextID)
	s.nextID++
	stored := *user
	stored.ID = id
	s.users[id] = stored
	return id, nil
}

func (s *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryAccountRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryAccountRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "fullName":
			user.FullName = value.(string)
		case "contactNumber":
			user.ContactNumber = value.(string)
		case "profilePicture":
			user.ProfilePicture = value.(string)
		case "passwordHash":
			user.PasswordHash = value.(string)
		default:
			return fmt.Errorf("unknown user field %q", key)
		}
	}
	s.users[id] = user
	return nil
}

func (s *MemoryAccountRepository) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}
