package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ridloal/storefront-checkout-service/internal/coupon/domain"
	"github.com/ridloal/storefront-checkout-service/internal/coupon/repository"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

var (
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrCouponExpired        = errors.New("coupon has expired")
	ErrCouponNotYetValid    = errors.New("coupon is not valid yet")
	ErrCouponUsageExhausted = errors.New("coupon usage limit reached")
	ErrCouponBelowMinimum   = errors.New("order total is below the coupon minimum")
)

const cacheTTL = time.Minute

// Validation is the result of a successful validation: the normalized coupon
// identity plus the discount it grants on the given order total. Validation
// never mutates the usage counter; redemption is a separate explicit step.
type Validation struct {
	CouponID string  `json:"coupon_id"`
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

// Validate applies the coupon rules to an order total at a given instant.
// Pure over its inputs; the caller supplies the clock.
func Validate(c *domain.Coupon, orderTotal float64, now time.Time) (*Validation, error) {
	if c == nil || !c.IsActive {
		return nil, ErrCouponNotFound
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return nil, ErrCouponExpired
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return nil, ErrCouponNotYetValid
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return nil, ErrCouponUsageExhausted
	}
	if c.MinOrderAmount != nil && orderTotal < *c.MinOrderAmount {
		return nil, fmt.Errorf("%w: minimum order amount is %.0f", ErrCouponBelowMinimum, *c.MinOrderAmount)
	}

	var discount float64
	switch c.DiscountType {
	case domain.DiscountPercentage:
		discount = orderTotal * c.DiscountValue / 100
		if c.MaxDiscountAmount != nil && discount > *c.MaxDiscountAmount {
			discount = *c.MaxDiscountAmount
		}
	case domain.DiscountFixed:
		// Applied verbatim, deliberately not capped against the order total;
		// the draft total is clamped at zero downstream.
		discount = c.DiscountValue
	default:
		return nil, ErrCouponNotFound
	}

	return &Validation{CouponID: c.ID, Code: c.Code, Discount: discount}, nil
}

type CouponService interface {
	// ValidateCode fetches a coupon by code and validates it against the
	// order total. Reads may be served from a short-lived cache.
	ValidateCode(ctx context.Context, code string, orderTotal float64, now time.Time) (*Validation, error)

	// Redeem consumes one usage slot, exactly once per committed order.
	Redeem(ctx context.Context, couponID string) error

	// Release returns a slot consumed by Redeem after a rollback.
	Release(ctx context.Context, couponID string) error
}

type cachedCoupon struct {
	coupon    *domain.Coupon
	fetchedAt time.Time
}

type couponServiceImpl struct {
	repo repository.CouponRepository

	mu    sync.RWMutex
	cache map[string]cachedCoupon
}

func NewCouponService(repo repository.CouponRepository) CouponService {
	return &couponServiceImpl{
		repo:  repo,
		cache: make(map[string]cachedCoupon),
	}
}

func (s *couponServiceImpl) getCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	normalized := domain.NormalizeCode(code)

	s.mu.RLock()
	entry, ok := s.cache[normalized]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < cacheTTL {
		return entry.coupon, nil
	}

	c, err := s.repo.GetCouponByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[normalized] = cachedCoupon{coupon: c, fetchedAt: time.Now()}
	s.mu.Unlock()
	return c, nil
}

func (s *couponServiceImpl) ValidateCode(ctx context.Context, code string, orderTotal float64, now time.Time) (*Validation, error) {
	c, err := s.getCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return Validate(c, orderTotal, now)
}

// Redeem relies on the repository's conditional update as the authoritative
// usage-limit gate; the cached count used for validation may be stale.
func (s *couponServiceImpl) Redeem(ctx context.Context, couponID string) error {
	err := s.repo.IncrementUsage(ctx, couponID)
	if err != nil {
		if errors.Is(err, repository.ErrUsageExhausted) {
			return ErrCouponUsageExhausted
		}
		return err
	}
	return nil
}

func (s *couponServiceImpl) Release(ctx context.Context, couponID string) error {
	err := s.repo.DecrementUsage(ctx, couponID)
	if err != nil && !errors.Is(err, repository.ErrNothingToRelease) {
		logger.Error("Release: failed to return coupon usage slot", err, nil)
		return err
	}
	return nil
}
