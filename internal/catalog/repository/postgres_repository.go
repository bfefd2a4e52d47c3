package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq" // Untuk pq.Error
	"github.com/ridloal/storefront-checkout-service/internal/catalog/domain"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInventoryNotFound = errors.New("inventory entry not found for product")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type CatalogRepository interface {
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)

	// DecrementInventory atomically subtracts qty and reports the remaining
	// quantity. It must never drive the counter below zero; insufficient
	// stock is a distinct failure.
	DecrementInventory(ctx context.Context, productID string, qty int) (remaining int, err error)

	// IncrementInventory restores stock, used by compensating rollbacks and
	// the stale-order sweeper.
	IncrementInventory(ctx context.Context, productID string, qty int) error
}

type postgresCatalogRepository struct {
	db *sql.DB
}

func NewPostgresCatalogRepository(db *sql.DB) CatalogRepository {
	return &postgresCatalogRepository{db: db}
}

func (r *postgresCatalogRepository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT id, name, sku, price, discounted_price, weight_kg, created_at, updated_at
              FROM products WHERE id = $1`
	var p domain.Product
	var discounted sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SKU, &p.Price, &discounted, &p.WeightKg, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		logger.Error("GetProductByID: query failed", err, nil)
		return nil, err
	}
	if discounted.Valid {
		p.DiscountedPrice = &discounted.Float64
	}
	return &p, nil
}

func (r *postgresCatalogRepository) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	query := `SELECT product_id, quantity, low_stock_threshold, updated_at
              FROM inventories WHERE product_id = $1`
	var inv domain.Inventory
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&inv.ProductID, &inv.Quantity, &inv.LowStockThreshold, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInventoryNotFound
		}
		logger.Error("GetInventory: query failed", err, nil)
		return nil, err
	}
	return &inv, nil
}

// DecrementInventory uses a conditional update so the check and the subtract
// happen in one round trip. rowsAffected == 0 means not enough stock.
func (r *postgresCatalogRepository) DecrementInventory(ctx context.Context, productID string, qty int) (int, error) {
	query := `UPDATE inventories SET quantity = quantity - $1, updated_at = NOW()
              WHERE product_id = $2 AND quantity >= $1
              RETURNING quantity`
	var remaining int
	err := r.db.QueryRowContext(ctx, query, qty, productID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInsufficientStock
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" { // check_violation
			logger.Error("DecrementInventory: check violation", err, nil)
			return 0, ErrInsufficientStock
		}
		logger.Error("DecrementInventory: exec failed", err, nil)
		return 0, err
	}
	return remaining, nil
}

func (r *postgresCatalogRepository) IncrementInventory(ctx context.Context, productID string, qty int) error {
	query := `UPDATE inventories SET quantity = quantity + $1, updated_at = NOW()
              WHERE product_id = $2`
	res, err := r.db.ExecContext(ctx, query, qty, productID)
	if err != nil {
		logger.Error("IncrementInventory: exec failed", err, nil)
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrInventoryNotFound
	}
	return nil
}
