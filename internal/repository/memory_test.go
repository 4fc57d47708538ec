package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drivewise/drivewise/internal/models"
)

func seedCars(t *testing.T, repo *MemoryListingRepository, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := repo.Create(context.Background(), &models.Car{
			Name:     fmt.Sprintf("Toyota Corolla %d", i),
			Category: "Sedans",
			Price:    int64(1000000 + i*10000),
			Year:     2010 + i%10,
			Seller:   "seller@example.com",
			Images:   []string{"/uploads/a.png"},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestFindFilters(t *testing.T) {
	t.Parallel()

	repo := NewMemoryListingRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.Car{Name: "Honda Civic", Category: "Sedans", Price: 3000000, Year: 2018})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Car{Name: "Suzuki Alto", Category: "Hatchbacks", Price: 1500000, Year: 2020, Featured: true})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Car{Name: "Toyota Prado", Category: "SUVs", Price: 9000000, Year: 2015})
	require.NoError(t, err)

	cars, total, err := repo.Find(ctx, ListingFilter{Search: "civ"}, SortPriceAsc, Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Honda Civic", cars[0].Name)

	_, total, err = repo.Find(ctx, ListingFilter{Category: "SUVs"}, SortPriceAsc, Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = repo.Find(ctx, ListingFilter{FeaturedOnly: true}, SortPriceAsc, Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	min, max := int64(1000000), int64(4000000)
	cars, total, err = repo.Find(ctx, ListingFilter{MinPrice: &min, MaxPrice: &max}, SortPriceDesc, Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, "Honda Civic", cars[0].Name, "descending price puts Civic first")
}

func TestFindSortAndPaginate(t *testing.T) {
	t.Parallel()

	repo := NewMemoryListingRepository()
	seedCars(t, repo, 20)
	ctx := context.Background()

	page1, total, err := repo.Find(ctx, ListingFilter{}, SortPriceAsc, Page{Number: 1, Size: 9})
	require.NoError(t, err)
	require.EqualValues(t, 20, total)
	require.Len(t, page1, 9)

	page2, _, err := repo.Find(ctx, ListingFilter{}, SortPriceAsc, Page{Number: 2, Size: 9})
	require.NoError(t, err)
	require.Len(t, page2, 9)

	page3, _, err := repo.Find(ctx, ListingFilter{}, SortPriceAsc, Page{Number: 3, Size: 9})
	require.NoError(t, err)
	require.Len(t, page3, 2)

	page4, _, err := repo.Find(ctx, ListingFilter{}, SortPriceAsc, Page{Number: 4, Size: 9})
	require.NoError(t, err)
	require.Empty(t, page4)

	for i := 1; i < len(page1); i++ {
		require.LessOrEqual(t, page1[i-1].Price, page1[i].Price)
	}
	require.LessOrEqual(t, page1[8].Price, page2[0].Price, "pages continue the ordering")
}

func TestRoundTripAndDelete(t *testing.T) {
	t.Parallel()

	repo := NewMemoryListingRepository()
	ctx := context.Background()

	car := &models.Car{
		Name:     "Kia Sportage",
		Category: "SUVs",
		Price:    7000000,
		Year:     2021,
		Images:   []string{"/uploads/1.png", "/uploads/2.png"},
		Seller:   "seller@example.com",
	}
	id, err := repo.Create(ctx, car)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, car.Name, got.Name)
	require.Equal(t, []string{"/uploads/1.png", "/uploads/2.png"}, got.Images)

	require.NoError(t, repo.Delete(ctx, id))
	require.ErrorIs(t, repo.Delete(ctx, id), ErrNotFound)
	_, err = repo.FindByID(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByID(ctx, "no-such-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFields(t *testing.T) {
	t.Parallel()

	repo := NewMemoryListingRepository()
	ctx := context.Background()
	ids := seedCars(t, repo, 1)

	err := repo.UpdateFields(ctx, ids[0], map[string]any{
		"price":  int64(2000000),
		"images": []string{"/uploads/new.jpg"},
		"image":  "/uploads/new.jpg",
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, ids[0])
	require.NoError(t, err)
	require.EqualValues(t, 2000000, got.Price)
	require.Equal(t, []string{"/uploads/new.jpg"}, got.Images)

	require.ErrorIs(t, repo.UpdateFields(ctx, "missing", map[string]any{"price": int64(1)}), ErrNotFound)
}

func TestCountByCategoryAndDeleteBySeller(t *testing.T) {
	t.Parallel()

	repo := NewMemoryListingRepository()
	ctx := context.Background()
	seedCars(t, repo, 3)
	_, err := repo.Create(ctx, &models.Car{Name: "Audi e-tron", Category: "Electric", Seller: "other@example.com"})
	require.NoError(t, err)

	counts, err := repo.CountByCategory(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, counts["Sedans"])
	require.EqualValues(t, 1, counts["Electric"])

	deleted, err := repo.DeleteBySeller(ctx, "seller@example.com")
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)

	remaining, err := repo.FindBySeller(ctx, "other@example.com")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestRefreshPostedDays(t *testing.T) {
	t.Parallel()

	repo := NewMemoryListingRepository()
	ctx := context.Background()
	now := time.Now()

	id, err := repo.Create(ctx, &models.Car{Name: "Old listing", CreatedAt: now.AddDate(0, 0, -10)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Car{Name: "Fresh listing", CreatedAt: now})
	require.NoError(t, err)

	updated, err := repo.RefreshPostedDays(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, updated)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 10, got.PostedDays)

	// Second run is a no-op
	updated, err = repo.RefreshPostedDays(ctx, now)
	require.NoError(t, err)
	require.Zero(t, updated)
}

func TestAccountRepository(t *testing.T) {
	t.Parallel()

	repo := NewMemoryAccountRepository()
	ctx := context.Background()

	id, err := repo.Create(ctx, &models.User{FullName: "Ali Khan", Email: "ali@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	byEmail, err := repo.FindByEmail(ctx, "ali@example.com")
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.UpdateFields(ctx, id, map[string]any{"fullName": "Ali K.", "passwordHash": "y"}))
	byID, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Ali K.", byID.FullName)
	require.Equal(t, "y", byID.PasswordHash)

	require.NoError(t, repo.Delete(ctx, id))
	require.ErrorIs(t, repo.Delete(ctx, id), ErrNotFound)
}
