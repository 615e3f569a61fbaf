package model

import "time"

// Category is one of the fixed lot categories offered by the create form.
type Category string

const (
	CategoryWarTrophies Category = "Трофеї УВВ"
	CategoryBefore1700  Category = "До 1700"
	CategoryBefore1918  Category = "До 1918"
	CategoryBefore1945  Category = "До 1945"
	CategoryBefore1991  Category = "До 1991"
	CategoryReplicas    Category = "Репліки"
	CategorySouvenirs   Category = "Сувеніри"
	CategoryWeapons     Category = "Зброя"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryWarTrophies,
	CategoryBefore1700,
	CategoryBefore1918,
	CategoryBefore1945,
	CategoryBefore1991,
	CategoryReplicas,
	CategorySouvenirs,
	CategoryWeapons,
}

// Valid reports whether c is one of Categories.  The empty category is
// handled by callers since it means "not chosen".
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Lot is an auctionable item listing owned by a user (`lots` table).
type Lot struct {
	ID          uint64    // lots.id
	Title       string    // lots.title
	Description string    // lots.description
	Price       float64   // lots.price, never negative
	Image       string    // lots.image, filename under static/images
	Category    Category  // lots.category, may be empty
	UserID      uint64    // lots.user_id
	CreatedAt   time.Time // lots.created_at
}

// SavedLot is a bookmark linking a user to a lot (`saved_lots` table).
// (UserID, LotID) is unique.
type SavedLot struct {
	ID        uint64
	UserID    uint64
	LotID     uint64
	CreatedAt time.Time

	// Lot is populated by listing queries that join lots.
	Lot Lot
}
