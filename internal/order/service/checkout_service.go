package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	cartRepo "github.com/ridloal/storefront-checkout-service/internal/cart/repository"
	catalogRepo "github.com/ridloal/storefront-checkout-service/internal/catalog/repository"
	couponService "github.com/ridloal/storefront-checkout-service/internal/coupon/service"
	"github.com/ridloal/storefront-checkout-service/internal/delivery"
	"github.com/ridloal/storefront-checkout-service/internal/order/domain"
	"github.com/ridloal/storefront-checkout-service/internal/order/repository"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
	"github.com/robfig/cron/v3"
)

var (
	ErrEmptyCart                = errors.New("cart is empty")
	ErrOutOfStock               = errors.New("requested quantity exceeds available stock")
	ErrPriceChanged             = errors.New("product price changed since it was added to the cart")
	ErrOrderPersistFailed       = errors.New("failed to persist order")
	ErrItemPersistFailed        = errors.New("failed to persist order items")
	ErrInventoryDecrementFailed = errors.New("failed to decrement inventory")
	ErrInvalidStatusTransition  = errors.New("invalid order status transition")
)

const maxOrderNumberAttempts = 3

// CouponRedeemer is the slice of the coupon service the pipeline needs.
type CouponRedeemer interface {
	ValidateCode(ctx context.Context, code string, orderTotal float64, now time.Time) (*couponService.Validation, error)
	Redeem(ctx context.Context, couponID string) error
	Release(ctx context.Context, couponID string) error
}

type CheckoutService interface {
	// BuildDraft recomputes the order proposal from authoritative catalog
	// prices and current inventory. Read-only; used for the review page.
	BuildDraft(ctx context.Context, req domain.PlaceOrderRequest) (*domain.OrderDraft, error)

	// PlaceOrder runs the commit pipeline: persist header, persist items,
	// decrement inventory, clear cart. Any failure unwinds the steps already
	// applied; a failed checkout leaves the cart intact and no partial order
	// visible.
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error)

	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) (*domain.Order, error)

	// CancelStalePendingOrders restocks and cancels pending orders older than
	// the configured timeout. Also run periodically by the scheduler.
	CancelStalePendingOrders(ctx context.Context)
}

type checkoutServiceImpl struct {
	orderRepo           repository.OrderRepository
	cartRepo            cartRepo.CartRepository
	catalogRepo         catalogRepo.CatalogRepository
	coupons             CouponRedeemer
	scheduler           *cron.Cron
	pendingOrderTimeout time.Duration
}

func NewCheckoutService(or repository.OrderRepository, cr cartRepo.CartRepository, cat catalogRepo.CatalogRepository, coupons CouponRedeemer, pendingTimeout time.Duration) CheckoutService {
	s := &checkoutServiceImpl{
		orderRepo:           or,
		cartRepo:            cr,
		catalogRepo:         cat,
		coupons:             coupons,
		scheduler:           cron.New(),
		pendingOrderTimeout: pendingTimeout,
	}
	s.initScheduler()
	return s
}

func (s *checkoutServiceImpl) initScheduler() {
	spec := "*/5 * * * *" // every 5 minutes
	s.scheduler.AddFunc(spec, func() {
		logger.Info("Scheduler: running CancelStalePendingOrders job...")
		s.CancelStalePendingOrders(context.Background())
	})
	s.scheduler.Start()
	logger.Info(fmt.Sprintf("Stale order scheduler initialized with spec '%s' and timeout %v", spec, s.pendingOrderTimeout))
}

// BuildDraft re-fetches every line's product and inventory. Cart price
// snapshots are advisory only; a shopper never pays a stale price.
func (s *checkoutServiceImpl) BuildDraft(ctx context.Context, req domain.PlaceOrderRequest) (*domain.OrderDraft, error) {
	cartItems, err := s.cartRepo.GetCartItems(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, ErrEmptyCart
	}

	draft := &domain.OrderDraft{
		UserID:          req.UserID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		City:            req.City,
		AddressID:       req.AddressID,
	}

	totalWeight := 0.0
	for _, line := range cartItems {
		product, err := s.catalogRepo.GetProductByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		inv, err := s.catalogRepo.GetInventory(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if line.Quantity > inv.Quantity {
			return nil, fmt.Errorf("%w: product %s (requested %d, available %d)", ErrOutOfStock, line.ProductID, line.Quantity, inv.Quantity)
		}

		unitPrice := product.EffectivePrice()
		if unitPrice != line.EffectivePrice() {
			return nil, fmt.Errorf("%w: product %s", ErrPriceChanged, line.ProductID)
		}

		lineTotal := unitPrice * float64(line.Quantity)
		draft.Items = append(draft.Items, domain.DraftItem{
			ProductID:         product.ID,
			Name:              product.Name,
			SKU:               product.SKU,
			Quantity:          line.Quantity,
			UnitPrice:         unitPrice,
			LineTotal:         lineTotal,
			LowStockThreshold: inv.LowStockThreshold,
		})
		draft.Subtotal += lineTotal
		totalWeight += product.WeightKg * float64(line.Quantity)
	}

	if req.CouponCode != "" {
		validation, err := s.coupons.ValidateCode(ctx, req.CouponCode, draft.Subtotal, time.Now())
		if err != nil {
			return nil, err
		}
		draft.CouponID = validation.CouponID
		draft.CouponCode = validation.Code
		draft.Discount = validation.Discount
	}

	quote := delivery.CalculateCost(req.City, draft.Subtotal, totalWeight)
	draft.DeliveryCost = quote.Total

	draft.Total = draft.Subtotal - draft.Discount + draft.DeliveryCost
	if draft.Total < 0 {
		// A fixed coupon can exceed the subtotal; the order never goes negative.
		draft.Total = 0
	}
	return draft, nil
}

func (s *checkoutServiceImpl) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error) {
	draft, err := s.BuildDraft(ctx, req)
	if err != nil {
		return nil, err
	}

	// Reserve the coupon usage slot first. The conditional increment is the
	// authoritative gate against concurrent redemption; releasing it is the
	// compensating action if any later step fails.
	couponRedeemed := false
	if draft.CouponID != "" {
		if err := s.coupons.Redeem(ctx, draft.CouponID); err != nil {
			return nil, err
		}
		couponRedeemed = true
	}
	releaseCoupon := func() {
		if couponRedeemed {
			if err := s.coupons.Release(context.Background(), draft.CouponID); err != nil {
				logger.Critical("PlaceOrder: failed to release coupon usage after rollback", err, nil)
			}
		}
	}

	order := &domain.Order{
		UserID:          draft.UserID,
		Status:          domain.StatusPending,
		Subtotal:        draft.Subtotal,
		DeliveryCost:    draft.DeliveryCost,
		Discount:        draft.Discount,
		Total:           draft.Total,
		CustomerName:    draft.CustomerName,
		CustomerEmail:   draft.CustomerEmail,
		CustomerPhone:   draft.CustomerPhone,
		ShippingAddress: draft.ShippingAddress,
		City:            draft.City,
		AddressID:       draft.AddressID,
	}

	// Persist the header. An order-number collision is retryable with a
	// fresh suffix; anything else aborts with nothing persisted.
	inserted := false
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = domain.NewOrderNumber(time.Now())
		err = s.orderRepo.InsertOrder(ctx, order)
		if err == nil {
			inserted = true
			break
		}
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			break
		}
		logger.Warn("PlaceOrder: order number collision on %s, retrying", order.OrderNumber)
	}
	if !inserted {
		releaseCoupon()
		return nil, fmt.Errorf("%w: %v", ErrOrderPersistFailed, err)
	}

	orderItems := make([]domain.OrderItem, len(draft.Items))
	for i, di := range draft.Items {
		orderItems[i] = domain.OrderItem{
			ProductID: di.ProductID,
			Name:      di.Name,
			SKU:       di.SKU,
			Quantity:  di.Quantity,
			UnitPrice: di.UnitPrice,
			LineTotal: di.LineTotal,
		}
	}

	// Persist the items. The pipeline must never leave a header with zero
	// items, so a failure here deletes the header before returning.
	if err := s.orderRepo.InsertOrderItems(ctx, order.ID, orderItems); err != nil {
		logger.Error("PlaceOrder: failed to persist order items", err, nil)
		if delErr := s.orderRepo.DeleteOrder(context.Background(), order.ID); delErr != nil {
			logger.Critical("PlaceOrder: compensating delete of order header failed", delErr, map[string]interface{}{"order_id": order.ID})
		}
		releaseCoupon()
		return nil, fmt.Errorf("%w: %v", ErrItemPersistFailed, err)
	}
	order.Items = orderItems

	// Decrement inventory per line. A failure reverses the decrements
	// already applied and deletes the whole order, so persistence and stock
	// never disagree.
	for i, di := range draft.Items {
		remaining, err := s.catalogRepo.DecrementInventory(ctx, di.ProductID, di.Quantity)
		if err != nil {
			logger.Error(fmt.Sprintf("PlaceOrder: inventory decrement failed for product %s", di.ProductID), err, nil)
			for _, done := range draft.Items[:i] {
				if restoreErr := s.catalogRepo.IncrementInventory(context.Background(), done.ProductID, done.Quantity); restoreErr != nil {
					logger.Critical(fmt.Sprintf("PlaceOrder: failed to restore inventory for product %s after rollback", done.ProductID), restoreErr, nil)
				}
			}
			if delErr := s.orderRepo.DeleteOrder(context.Background(), order.ID); delErr != nil {
				logger.Critical("PlaceOrder: compensating delete of order failed", delErr, map[string]interface{}{"order_id": order.ID})
			}
			releaseCoupon()
			return nil, fmt.Errorf("%w: product %s: %v", ErrInventoryDecrementFailed, di.ProductID, err)
		}
		if remaining <= di.LowStockThreshold {
			logger.Warn("PlaceOrder: product %s is low on stock (%d remaining)", di.ProductID, remaining)
		}
	}

	// The order stands from here on. A cart-clear failure is logged, not
	// propagated; the shopper has their order either way.
	if err := s.cartRepo.ClearCart(ctx, draft.UserID); err != nil {
		logger.Warn("PlaceOrder: failed to clear cart for user %s after commit: %v", draft.UserID, err)
	}

	logger.Info("PlaceOrder: order %s committed for user %s, total %.2f", order.OrderNumber, order.UserID, order.Total)
	return &domain.PlaceOrderResponse{Order: *order}, nil
}

func (s *checkoutServiceImpl) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.GetOrderByID(ctx, orderID)
}

func (s *checkoutServiceImpl) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orderRepo.ListOrdersByUserID(ctx, userID)
}

func (s *checkoutServiceImpl) UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, order.Status, newStatus)
	}
	if err := s.orderRepo.UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
		return nil, err
	}
	if newStatus == domain.StatusCancelled {
		// A cancelled order returns its stock; the items were decremented at
		// commit time.
		for _, item := range order.Items {
			if err := s.catalogRepo.IncrementInventory(ctx, item.ProductID, item.Quantity); err != nil {
				logger.Critical(fmt.Sprintf("UpdateStatus: failed to restock product %s for cancelled order %s", item.ProductID, orderID), err, nil)
			}
		}
	}
	order.Status = newStatus
	return order, nil
}

// CancelStalePendingOrders restocks and cancels orders stuck in pending past
// the timeout. Restock failures are logged and the status is still advanced
// so the order is not reprocessed every sweep.
func (s *checkoutServiceImpl) CancelStalePendingOrders(ctx context.Context) {
	orders, err := s.orderRepo.GetPendingOrdersOlderThan(ctx, s.pendingOrderTimeout)
	if err != nil {
		logger.Error("CancelStalePendingOrders: failed to list stale orders", err, nil)
		return
	}
	if len(orders) == 0 {
		return
	}

	logger.Info("CancelStalePendingOrders: found %d stale pending orders", len(orders))

	for _, order := range orders {
		items, err := s.orderRepo.GetOrderItemsByOrderID(ctx, order.ID)
		if err != nil {
			logger.Error(fmt.Sprintf("CancelStalePendingOrders: failed to get items for order %s", order.ID), err, nil)
			continue
		}

		allRestored := true
		for _, item := range items {
			if err := s.catalogRepo.IncrementInventory(ctx, item.ProductID, item.Quantity); err != nil {
				logger.Critical(fmt.Sprintf("CancelStalePendingOrders: failed to restock product %s for order %s", item.ProductID, order.ID), err, nil)
				allRestored = false
			}
		}

		if err := s.orderRepo.UpdateOrderStatus(ctx, order.ID, domain.StatusCancelled); err != nil {
			logger.Error(fmt.Sprintf("CancelStalePendingOrders: failed to cancel order %s", order.ID), err, nil)
			continue
		}
		if allRestored {
			logger.Info("CancelStalePendingOrders: order %s cancelled and stock restored", order.OrderNumber)
		} else {
			logger.Warn("CancelStalePendingOrders: order %s cancelled but some stock was not restored, needs review", order.OrderNumber)
		}
	}
}
