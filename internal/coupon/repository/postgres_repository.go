package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ridloal/storefront-checkout-service/internal/coupon/domain"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

var (
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrUsageExhausted   = errors.New("coupon usage limit reached")
	ErrNothingToRelease = errors.New("coupon usage count already zero")
)

type CouponRepository interface {
	// GetCouponByCode matches case-insensitively against active coupons.
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// IncrementUsage consumes one usage slot. The check against the limit and
	// the increment happen in a single conditional update so concurrent
	// redemptions cannot overshoot the limit.
	IncrementUsage(ctx context.Context, couponID string) error

	// DecrementUsage releases a slot consumed by IncrementUsage when a later
	// pipeline step fails and the order is rolled back.
	DecrementUsage(ctx context.Context, couponID string) error
}

type postgresCouponRepository struct {
	db *sql.DB
}

func NewPostgresCouponRepository(db *sql.DB) CouponRepository {
	return &postgresCouponRepository{db: db}
}

func (r *postgresCouponRepository) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT id, code, discount_type, discount_value, min_order_amount, max_discount_amount,
                     usage_limit, used_count, start_date, end_date, is_active, created_at, updated_at
              FROM coupons WHERE code = $1 AND is_active = TRUE`

	var c domain.Coupon
	var minOrder, maxDiscount sql.NullFloat64
	var usageLimit sql.NullInt64
	var startDate, endDate sql.NullTime

	err := r.db.QueryRowContext(ctx, query, domain.NormalizeCode(code)).Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &minOrder, &maxDiscount,
		&usageLimit, &c.UsedCount, &startDate, &endDate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		logger.Error("GetCouponByCode: query failed", err, nil)
		return nil, err
	}

	if minOrder.Valid {
		c.MinOrderAmount = &minOrder.Float64
	}
	if maxDiscount.Valid {
		c.MaxDiscountAmount = &maxDiscount.Float64
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		c.UsageLimit = &limit
	}
	if startDate.Valid {
		c.StartDate = &startDate.Time
	}
	if endDate.Valid {
		c.EndDate = &endDate.Time
	}
	return &c, nil
}

func (r *postgresCouponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	query := `UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
              WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`
	res, err := r.db.ExecContext(ctx, query, couponID)
	if err != nil {
		logger.Error("IncrementUsage: exec failed", err, nil)
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrUsageExhausted
	}
	return nil
}

func (r *postgresCouponRepository) DecrementUsage(ctx context.Context, couponID string) error {
	query := `UPDATE coupons SET used_count = used_count - 1, updated_at = NOW()
              WHERE id = $1 AND used_count > 0`
	res, err := r.db.ExecContext(ctx, query, couponID)
	if err != nil {
		logger.Error("DecrementUsage: exec failed", err, nil)
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrNothingToRelease
	}
	return nil
}
