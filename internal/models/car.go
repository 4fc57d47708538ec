package models

import "time"

// Categories is the fixed set of listing categories
var Categories = []string{
	"Sedans",
	"SUVs",
	"Hatchbacks",
	"Luxury Cars",
	"Electric",
	"Budget Cars",
}

// ValidCategory reports whether c is one of the listing categories
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Car represents a car listing
type Car struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	Price        int64     `json:"price"`
	Year         int       `json:"year"`
	Mileage      int64     `json:"mileage"`
	Fuel         string    `json:"fuel"`
	Transmission string    `json:"transmission"`
	Category     string    `json:"category"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Description  string    `json:"description"`
	Images       []string  `json:"images"`
	Image        string    `json:"image"` // First image, kept for older clients
	Featured     bool      `json:"featured"`
	Seller       string    `json:"-"` // Not serialized
	PostedDays   int       `json:"postedDays"`
	CreatedAt    time.Time `json:"createdAt"`
}
