package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID     int             `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Image  string          `json:"image"`
	Amount int             `json:"amount"`
}

// MarshalJSON writes Price as a JSON number, the shape the catalog API serves.
func (p Product) MarshalJSON() ([]byte, error) {
	type product struct {
		ID     int             `json:"id"`
		Title  string          `json:"title"`
		Price  json.RawMessage `json:"price"`
		Image  string          `json:"image"`
		Amount int             `json:"amount"`
	}
	return json.Marshal(product{
		ID:     p.ID,
		Title:  p.Title,
		Price:  json.RawMessage(p.Price.String()),
		Image:  p.Image,
		Amount: p.Amount,
	})
}

// Stock is the available inventory for a product, owned by the catalog.
type Stock struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}
