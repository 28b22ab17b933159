package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop-service/apperrors"
	"shop-service/models"
	"shop-service/repository"
)

// CartLine is one requested cart addition.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity"`
}

// AddToCartRequest is a tagged variant: exactly one of Item or Items
// must be set. The shape is explicit rather than inferred from the
// payload's runtime type.
type AddToCartRequest struct {
	Item  *CartLine  `json:"item"`
	Items []CartLine `json:"items"`
}

// Lines normalizes the request into a validated slice of cart lines.
func (r *AddToCartRequest) Lines() ([]CartLine, error) {
	if (r.Item == nil) == (len(r.Items) == 0) {
		return nil, apperrors.New(400, "Exactly one of 'item' or 'items' is required", nil)
	}

	lines := r.Items
	if r.Item != nil {
		lines = []CartLine{*r.Item}
	}
	for i := range lines {
		if lines[i].Quantity == 0 {
			lines[i].Quantity = 1
		}
		if lines[i].Quantity < 0 {
			return nil, apperrors.New(400, "Quantity must be positive", nil)
		}
	}
	return lines, nil
}

// CartService manages the user's pending product selections.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, logger *zap.Logger) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo, logger: logger}
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	items, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return items, nil
}

// AddToCart appends the requested lines as new cart rows. Repeated
// additions of the same product create separate rows.
func (s *CartService) AddToCart(ctx context.Context, userID uuid.UUID, req *AddToCartRequest) ([]models.CartItem, error) {
	lines, err := req.Lines()
	if err != nil {
		return nil, err
	}

	items := make([]models.CartItem, 0, len(lines))
	for _, line := range lines {
		product, err := s.productRepo.FindByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrProductNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
		}
		items = append(items, models.CartItem{
			UserID:    userID,
			ProductID: product.ID,
			Product:   *product,
			Quantity:  line.Quantity,
		})
	}

	if err := s.cartRepo.CreateBatch(ctx, items); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return items, nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, cartItemID uuid.UUID) error {
	removed, err := s.cartRepo.DeleteByIDAndUserID(ctx, cartItemID, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	if removed == 0 {
		return apperrors.ErrCartItemNotFound
	}
	return nil
}
