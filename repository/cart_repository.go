package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shop-service/models"
)

// CartRepository defines data access for cart line items.
type CartRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	CreateBatch(ctx context.Context, items []models.CartItem) error
	DeleteByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (int64, error)
}

type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) CartRepository {
	return &GormCartRepository{db: db}
}

func (r *GormCartRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormCartRepository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormCartRepository) CreateBatch(ctx context.Context, items []models.CartItem) error {
	return r.db.WithContext(ctx).Create(&items).Error
}

// DeleteByIDAndUserID removes a single cart line owned by the user.
// Returns the number of rows removed so callers can distinguish a miss.
func (r *GormCartRepository) DeleteByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
