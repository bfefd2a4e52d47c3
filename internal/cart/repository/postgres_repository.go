package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ridloal/storefront-checkout-service/internal/cart/domain"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

var ErrCartItemNotFound = errors.New("cart item not found")

// CartRepository keeps a shopper's lines across sessions. The aggregate in
// domain.Cart owns the invariants; this layer only loads and stores lines.
type CartRepository interface {
	GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error)
	UpsertItem(ctx context.Context, userID string, item domain.CartItem) error
	DeleteItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type postgresCartRepository struct {
	db *sql.DB
}

func NewPostgresCartRepository(db *sql.DB) CartRepository {
	return &postgresCartRepository{db: db}
}

func (r *postgresCartRepository) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	query := `SELECT product_id, name, price, discounted_price, quantity, max_stock, weight_kg, added_at
              FROM cart_items WHERE user_id = $1 ORDER BY added_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Error("GetCartItems: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var it domain.CartItem
		var discounted sql.NullFloat64
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Price, &discounted, &it.Quantity, &it.MaxStock, &it.WeightKg, &it.AddedAt); err != nil {
			logger.Error("GetCartItems: scan failed", err, nil)
			return nil, err
		}
		if discounted.Valid {
			it.DiscountedPrice = &discounted.Float64
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresCartRepository) UpsertItem(ctx context.Context, userID string, item domain.CartItem) error {
	query := `
        INSERT INTO cart_items (user_id, product_id, name, price, discounted_price, quantity, max_stock, weight_kg, added_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id, product_id) DO UPDATE SET
        quantity = EXCLUDED.quantity,
        price = EXCLUDED.price,
        discounted_price = EXCLUDED.discounted_price,
        max_stock = EXCLUDED.max_stock`

	var discounted sql.NullFloat64
	if item.DiscountedPrice != nil {
		discounted = sql.NullFloat64{Float64: *item.DiscountedPrice, Valid: true}
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		userID, item.ProductID, item.Name, item.Price, discounted,
		item.Quantity, item.MaxStock, item.WeightKg, item.AddedAt,
	)
	if err != nil {
		logger.Error("UpsertItem: failed to upsert cart item", err, nil)
		return err
	}
	return nil
}

func (r *postgresCartRepository) DeleteItem(ctx context.Context, userID, productID string) error {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
	// No-op delete is fine; removing an absent line is not an error.
	_, err := r.db.ExecContext(ctx, query, userID, productID)
	if err != nil {
		logger.Error("DeleteItem: exec failed", err, nil)
		return err
	}
	return nil
}

func (r *postgresCartRepository) ClearCart(ctx context.Context, userID string) error {
	query := `DELETE FROM cart_items WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		logger.Error("ClearCart: exec failed", err, nil)
		return err
	}
	return nil
}
