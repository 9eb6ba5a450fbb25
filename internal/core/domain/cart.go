package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidCart = errors.New("invalid cart")

// Cart is the ordered list of products held for purchase. Entries are unique by ID.
type Cart []Product

// Snapshot is the persisted form of a Cart.
type Snapshot struct {
	Version int64 // optimistic locking
	Cart    Cart
}

func (c Cart) Index(productID int) int {
	for i, p := range c {
		if p.ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Find(productID int) (Product, bool) {
	i := c.Index(productID)
	if i < 0 {
		return Product{}, false
	}
	return c[i], true
}

// Validate reports the first entry with a non-positive id or amount, or an id
// that appears twice.
func (c Cart) Validate() error {
	seen := make(map[int]struct{}, len(c))
	for i, p := range c {
		if p.ID <= 0 {
			return fmt.Errorf("%w: entry %d has id %d", ErrInvalidCart, i, p.ID)
		}
		if p.Amount <= 0 {
			return fmt.Errorf("%w: product %d has amount %d", ErrInvalidCart, p.ID, p.Amount)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: product %d listed twice", ErrInvalidCart, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Without returns a copy of c with productID filtered out.
func (c Cart) Without(productID int) Cart {
	out := make(Cart, 0, len(c))
	for _, p := range c {
		if p.ID != productID {
			out = append(out, p)
		}
	}
	return out
}

// Size is the number of distinct products.
func (c Cart) Size() int {
	return len(c)
}

func (c Cart) ItemsAmount() map[int]int {
	amounts := make(map[int]int, len(c))
	for _, p := range c {
		amounts[p.ID] = p.Amount
	}
	return amounts
}

func Subtotal(p Product) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Amount)))
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c {
		total = total.Add(Subtotal(p))
	}
	return total
}
