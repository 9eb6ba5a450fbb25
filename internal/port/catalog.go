package port

import (
	"context"

	"github.com/rl1809/rocket-cart/internal/core/domain"
)

type StockGateway interface {
	// GetStock returns the quantity currently available for the product
	GetStock(ctx context.Context, productID int) (domain.Stock, error)
}

type ProductGateway interface {
	// GetProduct returns product details; Amount is left zero
	GetProduct(ctx context.Context, productID int) (domain.Product, error)
}
