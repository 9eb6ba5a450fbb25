package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLAdapter_GetStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT stock FROM inventory WHERE product_id = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(5))

	stock, err := NewMySQLAdapter(db).GetStock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stock.ID)
	assert.Equal(t, 5, stock.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLAdapter_GetStock_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT stock FROM inventory").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}))

	_, err = NewMySQLAdapter(db).GetStock(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMySQLAdapter_GetProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, title, price, image").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "price", "image"}).
			AddRow(2, "Tênis VR Caminhada Confortável", "139.90", "vr.jpg"))

	product, err := NewMySQLAdapter(db).GetProduct(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, product.ID)
	assert.Equal(t, "Tênis VR Caminhada Confortável", product.Title)
	assert.Equal(t, "139.9", product.Price.String())
	assert.Equal(t, "vr.jpg", product.Image)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLAdapter_GetProduct_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, title, price, image").
		WithArgs(2).
		WillReturnError(errors.New("connection reset"))

	_, err = NewMySQLAdapter(db).GetProduct(context.Background(), 2)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, ErrNotFound)
}
