package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ridloal/storefront-checkout-service/internal/cart/domain"
	"github.com/ridloal/storefront-checkout-service/internal/cart/repository"
	catalogRepo "github.com/ridloal/storefront-checkout-service/internal/catalog/repository"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

var ErrProductUnavailable = errors.New("product is not available")

// CartSummary is the read model returned to the storefront.
type CartSummary struct {
	UserID      string            `json:"user_id"`
	Items       []domain.CartItem `json:"items"`
	TotalItems  int               `json:"total_items"`
	TotalPrice  float64           `json:"total_price"`
	TotalWeight float64           `json:"total_weight_kg"`
}

type CartService interface {
	GetCart(ctx context.Context, userID string) (*CartSummary, error)
	AddItem(ctx context.Context, userID, productID string) (*CartSummary, error)
	UpdateQuantity(ctx context.Context, userID, productID string, qty int) (*CartSummary, error)
	RemoveItem(ctx context.Context, userID, productID string) (*CartSummary, error)
	ClearCart(ctx context.Context, userID string) error
}

type cartServiceImpl struct {
	cartRepo    repository.CartRepository
	catalogRepo catalogRepo.CatalogRepository
}

func NewCartService(cr repository.CartRepository, catRepo catalogRepo.CatalogRepository) CartService {
	return &cartServiceImpl{cartRepo: cr, catalogRepo: catRepo}
}

func (s *cartServiceImpl) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	items, err := s.cartRepo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.NewCartFromItems(userID, items), nil
}

func summarize(cart *domain.Cart) *CartSummary {
	return &CartSummary{
		UserID:      cart.UserID,
		Items:       cart.Items(),
		TotalItems:  cart.TotalItems(),
		TotalPrice:  cart.TotalPrice(),
		TotalWeight: cart.TotalWeight(),
	}
}

func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (*CartSummary, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summarize(cart), nil
}

// AddItem snapshots the product's current price, name and stock ceiling into
// the line. The snapshot is advisory; checkout re-fetches prices.
func (s *cartServiceImpl) AddItem(ctx context.Context, userID, productID string) (*CartSummary, error) {
	product, err := s.catalogRepo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalogRepo.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
		}
		return nil, err
	}
	inv, err := s.catalogRepo.GetInventory(ctx, productID)
	if err != nil {
		if errors.Is(err, catalogRepo.ErrInventoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
		}
		return nil, err
	}
	if inv.Quantity < 1 {
		return nil, fmt.Errorf("%w: %s is out of stock", ErrProductUnavailable, productID)
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.AddItem(domain.CartItem{
		ProductID:       product.ID,
		Name:            product.Name,
		Price:           product.Price,
		DiscountedPrice: product.DiscountedPrice,
		MaxStock:        inv.Quantity,
		WeightKg:        product.WeightKg,
	})

	line, _ := cart.Item(productID)
	if err := s.cartRepo.UpsertItem(ctx, userID, line); err != nil {
		logger.Error("AddItem: failed to persist cart line", err, nil)
		return nil, err
	}
	return summarize(cart), nil
}

func (s *cartServiceImpl) UpdateQuantity(ctx context.Context, userID, productID string, qty int) (*CartSummary, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.UpdateQuantity(productID, qty)

	if line, ok := cart.Item(productID); ok {
		err = s.cartRepo.UpsertItem(ctx, userID, line)
	} else {
		// qty <= 0 removed the line from the aggregate
		err = s.cartRepo.DeleteItem(ctx, userID, productID)
	}
	if err != nil {
		return nil, err
	}
	return summarize(cart), nil
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, productID string) (*CartSummary, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart.RemoveItem(productID)
	if err := s.cartRepo.DeleteItem(ctx, userID, productID); err != nil {
		return nil, err
	}
	return summarize(cart), nil
}

func (s *cartServiceImpl) ClearCart(ctx context.Context, userID string) error {
	return s.cartRepo.ClearCart(ctx, userID)
}
