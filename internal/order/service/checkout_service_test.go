package service

import (
	"context"
	"errors"
	"testing"
	"time"

	cartDomain "github.com/ridloal/storefront-checkout-service/internal/cart/domain"
	cartMocks "github.com/ridloal/storefront-checkout-service/internal/cart/repository/mocks"
	catalogDomain "github.com/ridloal/storefront-checkout-service/internal/catalog/domain"
	catalogRepo "github.com/ridloal/storefront-checkout-service/internal/catalog/repository"
	catalogMocks "github.com/ridloal/storefront-checkout-service/internal/catalog/repository/mocks"
	couponService "github.com/ridloal/storefront-checkout-service/internal/coupon/service"
	"github.com/ridloal/storefront-checkout-service/internal/order/domain"
	"github.com/ridloal/storefront-checkout-service/internal/order/repository"
	orderMocks "github.com/ridloal/storefront-checkout-service/internal/order/repository/mocks"
	svcMocks "github.com/ridloal/storefront-checkout-service/internal/order/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type checkoutFixture struct {
	orderRepo *orderMocks.MockOrderRepository
	cartRepo  *cartMocks.MockCartRepository
	catalog   *catalogMocks.MockCatalogRepository
	coupons   *svcMocks.MockCouponRedeemer
	service   CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orderRepo: new(orderMocks.MockOrderRepository),
		cartRepo:  new(cartMocks.MockCartRepository),
		catalog:   new(catalogMocks.MockCatalogRepository),
		coupons:   new(svcMocks.MockCouponRedeemer),
	}
	f.service = NewCheckoutService(f.orderRepo, f.cartRepo, f.catalog, f.coupons, 30*time.Minute)
	return f
}

var (
	testCartItems = []cartDomain.CartItem{
		{ProductID: "prod1", Name: "Mug", Price: 1000, Quantity: 2, MaxStock: 10, WeightKg: 1},
		{ProductID: "prod2", Name: "Plate", Price: 500, Quantity: 1, MaxStock: 5, WeightKg: 2},
	}
	testProduct1 = &catalogDomain.Product{ID: "prod1", Name: "Mug", SKU: "MUG-01", Price: 1000, WeightKg: 1}
	testProduct2 = &catalogDomain.Product{ID: "prod2", Name: "Plate", SKU: "PLT-01", Price: 500, WeightKg: 2}
	testInv1     = &catalogDomain.Inventory{ProductID: "prod1", Quantity: 10, LowStockThreshold: 2}
	testInv2     = &catalogDomain.Inventory{ProductID: "prod2", Quantity: 5, LowStockThreshold: 2}
)

func placeOrderReq() domain.PlaceOrderRequest {
	return domain.PlaceOrderRequest{
		UserID:          "user1",
		CustomerName:    "Ayesha Khan",
		CustomerEmail:   "ayesha@example.com",
		CustomerPhone:   "03001234567",
		ShippingAddress: "House 12, Street 4",
		City:            "Karachi",
	}
}

func (f *checkoutFixture) expectDraftFetches(ctx context.Context) {
	f.cartRepo.On("GetCartItems", ctx, "user1").Return(testCartItems, nil).Once()
	f.catalog.On("GetProductByID", ctx, "prod1").Return(testProduct1, nil).Once()
	f.catalog.On("GetInventory", ctx, "prod1").Return(testInv1, nil).Once()
	f.catalog.On("GetProductByID", ctx, "prod2").Return(testProduct2, nil).Once()
	f.catalog.On("GetInventory", ctx, "prod2").Return(testInv2, nil).Once()
}

func TestCheckoutService_BuildDraft(t *testing.T) {
	ctx := context.TODO()

	t.Run("Computes subtotal, delivery and total from authoritative prices", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)

		draft, err := f.service.BuildDraft(ctx, placeOrderReq())

		assert.NoError(t, err)
		assert.Equal(t, 2500.0, draft.Subtotal) // 2*1000 + 1*500
		assert.Equal(t, 200.0, draft.DeliveryCost)
		assert.Equal(t, 2700.0, draft.Total)
		assert.Len(t, draft.Items, 2)
		assert.Equal(t, "MUG-01", draft.Items[0].SKU)
		f.catalog.AssertExpectations(t)
	})

	t.Run("Empty cart is rejected", func(t *testing.T) {
		f := newCheckoutFixture()
		f.cartRepo.On("GetCartItems", ctx, "user1").Return([]cartDomain.CartItem{}, nil).Once()

		draft, err := f.service.BuildDraft(ctx, placeOrderReq())

		assert.Nil(t, draft)
		assert.ErrorIs(t, err, ErrEmptyCart)
		f.catalog.AssertNotCalled(t, "GetProductByID")
	})

	t.Run("Requested quantity over available stock is rejected", func(t *testing.T) {
		f := newCheckoutFixture()
		f.cartRepo.On("GetCartItems", ctx, "user1").Return(testCartItems, nil).Once()
		f.catalog.On("GetProductByID", ctx, "prod1").Return(testProduct1, nil).Once()
		f.catalog.On("GetInventory", ctx, "prod1").Return(&catalogDomain.Inventory{ProductID: "prod1", Quantity: 1}, nil).Once()

		draft, err := f.service.BuildDraft(ctx, placeOrderReq())

		assert.Nil(t, draft)
		assert.ErrorIs(t, err, ErrOutOfStock)
		assert.Contains(t, err.Error(), "prod1")
	})

	t.Run("Stale cart price is rejected", func(t *testing.T) {
		f := newCheckoutFixture()
		repriced := &catalogDomain.Product{ID: "prod1", Name: "Mug", SKU: "MUG-01", Price: 1200, WeightKg: 1}
		f.cartRepo.On("GetCartItems", ctx, "user1").Return(testCartItems, nil).Once()
		f.catalog.On("GetProductByID", ctx, "prod1").Return(repriced, nil).Once()
		f.catalog.On("GetInventory", ctx, "prod1").Return(testInv1, nil).Once()

		draft, err := f.service.BuildDraft(ctx, placeOrderReq())

		assert.Nil(t, draft)
		assert.ErrorIs(t, err, ErrPriceChanged)
	})

	t.Run("Coupon discount is folded into the total", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.coupons.On("ValidateCode", ctx, "SAVE10", 2500.0, mock.AnythingOfType("time.Time")).
			Return(&couponService.Validation{CouponID: "coupon-1", Code: "SAVE10", Discount: 250}, nil).Once()

		req := placeOrderReq()
		req.CouponCode = "SAVE10"
		draft, err := f.service.BuildDraft(ctx, req)

		assert.NoError(t, err)
		assert.Equal(t, 250.0, draft.Discount)
		assert.Equal(t, 2450.0, draft.Total) // 2500 - 250 + 200
		f.coupons.AssertExpectations(t)
	})

	t.Run("Fixed coupon larger than the order clamps the total at zero", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.coupons.On("ValidateCode", ctx, "MEGA", 2500.0, mock.AnythingOfType("time.Time")).
			Return(&couponService.Validation{CouponID: "coupon-2", Code: "MEGA", Discount: 10000}, nil).Once()

		req := placeOrderReq()
		req.CouponCode = "MEGA"
		draft, err := f.service.BuildDraft(ctx, req)

		assert.NoError(t, err)
		assert.Equal(t, 0.0, draft.Total)
	})

	t.Run("Coupon failure surfaces the specific reason", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.coupons.On("ValidateCode", ctx, "OLD", 2500.0, mock.AnythingOfType("time.Time")).
			Return(nil, couponService.ErrCouponExpired).Once()

		req := placeOrderReq()
		req.CouponCode = "OLD"
		_, err := f.service.BuildDraft(ctx, req)

		assert.ErrorIs(t, err, couponService.ErrCouponExpired)
	})
}

func TestCheckoutService_PlaceOrder(t *testing.T) {
	ctx := context.TODO()

	t.Run("Successful commit clears the cart and returns a pending order", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.orderRepo.On("InsertOrderItems", ctx, "mock-order-id", mock.AnythingOfType("[]domain.OrderItem")).Return(nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod1", 2).Return(8, nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod2", 1).Return(4, nil).Once()
		f.cartRepo.On("ClearCart", ctx, "user1").Return(nil).Once()

		resp, err := f.service.PlaceOrder(ctx, placeOrderReq())

		assert.NoError(t, err)
		assert.NotNil(t, resp)
		assert.Equal(t, "mock-order-id", resp.ID)
		assert.Equal(t, domain.StatusPending, resp.Status)
		assert.Equal(t, 2700.0, resp.Total)
		assert.NotEmpty(t, resp.OrderNumber)
		assert.Len(t, resp.Items, 2)
		f.orderRepo.AssertExpectations(t)
		f.cartRepo.AssertExpectations(t)
		f.catalog.AssertExpectations(t)
	})

	t.Run("Header persist failure aborts with no side effects", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(errors.New("db down")).Once()

		resp, err := f.service.PlaceOrder(ctx, placeOrderReq())

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrOrderPersistFailed)
		f.orderRepo.AssertNotCalled(t, "InsertOrderItems")
		f.orderRepo.AssertNotCalled(t, "DeleteOrder")
		f.cartRepo.AssertNotCalled(t, "ClearCart")
	})

	t.Run("Order number collision is retried with a fresh number", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(repository.ErrDuplicateOrderNumber).Once()
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.orderRepo.On("InsertOrderItems", ctx, "mock-order-id", mock.AnythingOfType("[]domain.OrderItem")).Return(nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod1", 2).Return(8, nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod2", 1).Return(4, nil).Once()
		f.cartRepo.On("ClearCart", ctx, "user1").Return(nil).Once()

		resp, err := f.service.PlaceOrder(ctx, placeOrderReq())

		assert.NoError(t, err)
		assert.NotNil(t, resp)
		f.orderRepo.AssertExpectations(t)
	})

	t.Run("Exhausted collision retries fail the checkout", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(repository.ErrDuplicateOrderNumber).Times(3)

		resp, err := f.service.PlaceOrder(ctx, placeOrderReq())

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrOrderPersistFailed)
		f.orderRepo.AssertExpectations(t)
	})

	t.Run("Item persist failure deletes the header", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.orderRepo.On("InsertOrderItems", ctx, "mock-order-id", mock.AnythingOfType("[]domain.OrderItem")).Return(errors.New("insert failed")).Once()
		f.orderRepo.On("DeleteOrder", context.Background(), "mock-order-id").Return(nil).Once()

		resp, err := f.service.PlaceOrder(ctx, placeOrderReq())

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrItemPersistFailed)
		f.orderRepo.AssertExpectations(t)
		f.cartRepo.AssertNotCalled(t, "ClearCart")
		f.catalog.AssertNotCalled(t, "DecrementInventory")
	})

	t.Run("Inventory failure restores prior decrements and deletes the order", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.orderRepo.On("InsertOrderItems", ctx, "mock-order-id", mock.AnythingOfType("[]domain.OrderItem")).Return(nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod1", 2).Return(8, nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod2", 1).Return(0, catalogRepo.ErrInsufficientStock).Once()
		f.catalog.On("IncrementInventory", context.Background(), "prod1", 2).Return(nil).Once()
		f.orderRepo.On("DeleteOrder", context.Background(), "mock-order-id").Return(nil).Once()

		resp, err := f.service.PlaceOrder(ctx, placeOrderReq())

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrInventoryDecrementFailed)
		assert.Contains(t, err.Error(), "prod2")
		f.catalog.AssertExpectations(t)
		f.orderRepo.AssertExpectations(t)
		f.cartRepo.AssertNotCalled(t, "ClearCart")
	})

	t.Run("Coupon slot is redeemed once on success", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.coupons.On("ValidateCode", ctx, "SAVE10", 2500.0, mock.AnythingOfType("time.Time")).
			Return(&couponService.Validation{CouponID: "coupon-1", Code: "SAVE10", Discount: 250}, nil).Once()
		f.coupons.On("Redeem", ctx, "coupon-1").Return(nil).Once()
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.orderRepo.On("InsertOrderItems", ctx, "mock-order-id", mock.AnythingOfType("[]domain.OrderItem")).Return(nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod1", 2).Return(8, nil).Once()
		f.catalog.On("DecrementInventory", ctx, "prod2", 1).Return(4, nil).Once()
		f.cartRepo.On("ClearCart", ctx, "user1").Return(nil).Once()

		req := placeOrderReq()
		req.CouponCode = "SAVE10"
		resp, err := f.service.PlaceOrder(ctx, req)

		assert.NoError(t, err)
		assert.Equal(t, 250.0, resp.Discount)
		assert.Equal(t, 2450.0, resp.Total)
		f.coupons.AssertExpectations(t)
		f.coupons.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("Concurrent redemption losing the slot aborts before persistence", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.coupons.On("ValidateCode", ctx, "LAST1", 2500.0, mock.AnythingOfType("time.Time")).
			Return(&couponService.Validation{CouponID: "coupon-3", Code: "LAST1", Discount: 100}, nil).Once()
		f.coupons.On("Redeem", ctx, "coupon-3").Return(couponService.ErrCouponUsageExhausted).Once()

		req := placeOrderReq()
		req.CouponCode = "LAST1"
		resp, err := f.service.PlaceOrder(ctx, req)

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, couponService.ErrCouponUsageExhausted)
		f.orderRepo.AssertNotCalled(t, "InsertOrder")
	})

	t.Run("Rollback releases the redeemed coupon slot", func(t *testing.T) {
		f := newCheckoutFixture()
		f.expectDraftFetches(ctx)
		f.coupons.On("ValidateCode", ctx, "SAVE10", 2500.0, mock.AnythingOfType("time.Time")).
			Return(&couponService.Validation{CouponID: "coupon-1", Code: "SAVE10", Discount: 250}, nil).Once()
		f.coupons.On("Redeem", ctx, "coupon-1").Return(nil).Once()
		f.orderRepo.On("InsertOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
		f.orderRepo.On("InsertOrderItems", ctx, "mock-order-id", mock.AnythingOfType("[]domain.OrderItem")).Return(errors.New("insert failed")).Once()
		f.orderRepo.On("DeleteOrder", context.Background(), "mock-order-id").Return(nil).Once()
		f.coupons.On("Release", context.Background(), "coupon-1").Return(nil).Once()

		req := placeOrderReq()
		req.CouponCode = "SAVE10"
		resp, err := f.service.PlaceOrder(ctx, req)

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrItemPersistFailed)
		f.coupons.AssertExpectations(t)
	})
}

func TestCheckoutService_UpdateStatus(t *testing.T) {
	ctx := context.TODO()
	pendingOrder := func() *domain.Order {
		return &domain.Order{
			ID:     "order-1",
			Status: domain.StatusPending,
			Items: []domain.OrderItem{
				{ProductID: "prod1", Quantity: 2},
			},
		}
	}

	t.Run("Valid transition", func(t *testing.T) {
		f := newCheckoutFixture()
		f.orderRepo.On("GetOrderByID", ctx, "order-1").Return(pendingOrder(), nil).Once()
		f.orderRepo.On("UpdateOrderStatus", ctx, "order-1", domain.StatusConfirmed).Return(nil).Once()

		order, err := f.service.UpdateStatus(ctx, "order-1", domain.StatusConfirmed)

		assert.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, order.Status)
	})

	t.Run("Invalid transition", func(t *testing.T) {
		f := newCheckoutFixture()
		f.orderRepo.On("GetOrderByID", ctx, "order-1").Return(pendingOrder(), nil).Once()

		order, err := f.service.UpdateStatus(ctx, "order-1", domain.StatusDelivered)

		assert.Nil(t, order)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
		f.orderRepo.AssertNotCalled(t, "UpdateOrderStatus")
	})

	t.Run("Cancellation restores stock", func(t *testing.T) {
		f := newCheckoutFixture()
		f.orderRepo.On("GetOrderByID", ctx, "order-1").Return(pendingOrder(), nil).Once()
		f.orderRepo.On("UpdateOrderStatus", ctx, "order-1", domain.StatusCancelled).Return(nil).Once()
		f.catalog.On("IncrementInventory", ctx, "prod1", 2).Return(nil).Once()

		order, err := f.service.UpdateStatus(ctx, "order-1", domain.StatusCancelled)

		assert.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, order.Status)
		f.catalog.AssertExpectations(t)
	})
}

func TestCheckoutService_CancelStalePendingOrders(t *testing.T) {
	ctx := context.Background()
	timeout := 30 * time.Minute
	staleOrder := domain.Order{ID: "stale-1", OrderNumber: "ORD-250615-ABCDEF", Status: domain.StatusPending}
	staleItems := []domain.OrderItem{
		{ProductID: "prodX", Quantity: 1},
		{ProductID: "prodY", Quantity: 3},
	}

	t.Run("Restocks and cancels a stale order", func(t *testing.T) {
		f := newCheckoutFixture()
		f.orderRepo.On("GetPendingOrdersOlderThan", ctx, timeout).Return([]domain.Order{staleOrder}, nil).Once()
		f.orderRepo.On("GetOrderItemsByOrderID", ctx, "stale-1").Return(staleItems, nil).Once()
		f.catalog.On("IncrementInventory", ctx, "prodX", 1).Return(nil).Once()
		f.catalog.On("IncrementInventory", ctx, "prodY", 3).Return(nil).Once()
		f.orderRepo.On("UpdateOrderStatus", ctx, "stale-1", domain.StatusCancelled).Return(nil).Once()

		f.service.CancelStalePendingOrders(ctx)

		f.orderRepo.AssertExpectations(t)
		f.catalog.AssertExpectations(t)
	})

	t.Run("No stale orders", func(t *testing.T) {
		f := newCheckoutFixture()
		f.orderRepo.On("GetPendingOrdersOlderThan", ctx, timeout).Return([]domain.Order{}, nil).Once()

		f.service.CancelStalePendingOrders(ctx)

		f.orderRepo.AssertNotCalled(t, "GetOrderItemsByOrderID")
		f.orderRepo.AssertNotCalled(t, "UpdateOrderStatus")
	})

	t.Run("Restock failure still cancels the order", func(t *testing.T) {
		f := newCheckoutFixture()
		f.orderRepo.On("GetPendingOrdersOlderThan", ctx, timeout).Return([]domain.Order{staleOrder}, nil).Once()
		f.orderRepo.On("GetOrderItemsByOrderID", ctx, "stale-1").Return(staleItems, nil).Once()
		f.catalog.On("IncrementInventory", ctx, "prodX", 1).Return(errors.New("restock failed")).Once()
		f.catalog.On("IncrementInventory", ctx, "prodY", 3).Return(nil).Once()
		f.orderRepo.On("UpdateOrderStatus", ctx, "stale-1", domain.StatusCancelled).Return(nil).Once()

		f.service.CancelStalePendingOrders(ctx)

		f.orderRepo.AssertExpectations(t)
		f.catalog.AssertExpectations(t)
	})
}
