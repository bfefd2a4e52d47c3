package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/ridloal/storefront-checkout-service/internal/order/domain"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

type OrderRepository interface {
	// InsertOrder persists the header only. A unique-constraint hit on the
	// order number comes back as ErrDuplicateOrderNumber so the caller can
	// regenerate and retry.
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error

	// DeleteOrder is the compensating delete: items first, then the header.
	DeleteOrder(ctx context.Context, orderID string) error

	UpdateOrderStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) error
	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]domain.Order, error)
	GetPendingOrdersOlderThan(ctx context.Context, duration time.Duration) ([]domain.Order, error)
}

type postgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) OrderRepository {
	return &postgresOrderRepository{db: db}
}

func (r *postgresOrderRepository) InsertOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (order_number, user_id, status, subtotal, delivery_cost, discount, total,
                                  customer_name, customer_email, customer_phone, shipping_address, city, address_id,
                                  created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
              RETURNING id, created_at, updated_at`

	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.StatusPending
	}

	var addressID sql.NullString
	if order.AddressID != nil {
		addressID = sql.NullString{String: *order.AddressID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		order.OrderNumber, order.UserID, order.Status,
		order.Subtotal, order.DeliveryCost, order.Discount, order.Total,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.ShippingAddress, order.City, addressID,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return ErrDuplicateOrderNumber
		}
		logger.Error("InsertOrder: failed to insert order", err, nil)
		return err
	}
	return nil
}

func (r *postgresOrderRepository) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	stmt, err := r.db.PrepareContext(ctx, `INSERT INTO order_items (order_id, product_id, name, sku, quantity, unit_price, line_total, created_at)
                                           VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`)
	if err != nil {
		logger.Error("InsertOrderItems: failed to prepare item statement", err, nil)
		return err
	}
	defer stmt.Close()

	for i := range items {
		items[i].OrderID = orderID
		items[i].CreatedAt = time.Now()
		err = stmt.QueryRowContext(ctx, orderID, items[i].ProductID, items[i].Name, items[i].SKU,
			items[i].Quantity, items[i].UnitPrice, items[i].LineTotal, items[i].CreatedAt).
			Scan(&items[i].ID, &items[i].CreatedAt)
		if err != nil {
			logger.Error("InsertOrderItems: failed to insert order item", err, map[string]interface{}{"item_product_id": items[i].ProductID})
			return err
		}
	}
	return nil
}

func (r *postgresOrderRepository) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		logger.Error("DeleteOrder: failed to delete order items", err, map[string]interface{}{"order_id": orderID})
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		logger.Error("DeleteOrder: failed to delete order header", err, map[string]interface{}{"order_id": orderID})
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresOrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, newStatus, orderID)
	if err != nil {
		logger.Error("UpdateOrderStatus: exec failed", err, map[string]interface{}{"order_id": orderID, "new_status": newStatus})
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

const orderColumns = `id, order_number, user_id, status, subtotal, delivery_cost, discount, total,
                      customer_name, customer_email, customer_phone, shipping_address, city, address_id,
                      created_at, updated_at`

func scanOrder(row interface {
	Scan(dest ...interface{}) error
}, o *domain.Order) error {
	var addressID sql.NullString
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.Subtotal, &o.DeliveryCost, &o.Discount, &o.Total,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.ShippingAddress, &o.City, &addressID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if addressID.Valid {
		o.AddressID = &addressID.String
	}
	return nil
}

func (r *postgresOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	var o domain.Order
	if err := scanOrder(r.db.QueryRowContext(ctx, query, orderID), &o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		logger.Error("GetOrderByID: query failed", err, nil)
		return nil, err
	}

	items, err := r.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *postgresOrderRepository) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `SELECT id, order_id, product_id, name, sku, quantity, unit_price, line_total, created_at
              FROM order_items WHERE order_id = $1`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		logger.Error("GetOrderItemsByOrderID: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.SKU, &it.Quantity, &it.UnitPrice, &it.LineTotal, &it.CreatedAt); err != nil {
			logger.Error("GetOrderItemsByOrderID: scan failed", err, nil)
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresOrderRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Error("ListOrdersByUserID: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			logger.Error("ListOrdersByUserID: scan failed", err, nil)
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *postgresOrderRepository) GetPendingOrdersOlderThan(ctx context.Context, duration time.Duration) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
              WHERE status = $1 AND created_at < $2
              ORDER BY created_at ASC`

	thresholdTime := time.Now().Add(-duration)
	rows, err := r.db.QueryContext(ctx, query, domain.StatusPending, thresholdTime)
	if err != nil {
		logger.Error("GetPendingOrdersOlderThan: query failed", err, nil)
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			logger.Error("GetPendingOrdersOlderThan: scan failed", err, nil)
			// Continue with the remaining orders if one fails to scan
			continue
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
