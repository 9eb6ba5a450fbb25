package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/rocket-cart/internal/core/domain"
)

// MySQLAdapter reads the catalog straight from the shop database.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetStock(ctx context.Context, productID int) (domain.Stock, error) {
	stock := domain.Stock{ID: productID}
	err := m.db.QueryRowContext(ctx, `
		SELECT stock FROM inventory WHERE product_id = ?`, productID,
	).Scan(&stock.Amount)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stock{}, fmt.Errorf("stock %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID int) (domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, title, price, image
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Title, &p.Price, &p.Image)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
