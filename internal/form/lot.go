package form

import (
	"math"
	"strconv"
	"strings"

	"github.com/iliyamo/lot-auction/internal/model"
)

// LotForm is bound from the multipart POST /create_lot.  Price stays a string
// so that a non-numeric value can be reported instead of silently zeroed.
type LotForm struct {
	Title       string `form:"title" validate:"required,max=150"`
	Description string `form:"description" validate:"required"`
	Price       string `form:"price" validate:"required"`
	Category    string `form:"category" validate:"omitempty,category"`
}

// NewLot is a parsed LotForm.
type NewLot struct {
	Title       string
	Description string
	Price       float64
	Category    model.Category
}

func (f LotForm) Parse() Result[NewLot] {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Price = strings.TrimSpace(f.Price)
	errs := check(f)

	var price float64
	if _, bad := errs["price"]; !bad {
		p, err := strconv.ParseFloat(strings.ReplaceAll(f.Price, ",", "."), 64)
		switch {
		case err != nil || math.IsNaN(p) || math.IsInf(p, 0):
			errs.Add("price", "Not a valid float value.")
		case p < 0:
			errs.Add("price", "Price cannot be negative.")
		default:
			price = p
		}
	}
	if len(errs) > 0 {
		return invalid[NewLot](errs)
	}
	return ok(NewLot{
		Title:       f.Title,
		Description: f.Description,
		Price:       price,
		Category:    model.Category(f.Category),
	})
}
