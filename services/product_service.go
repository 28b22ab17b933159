package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shop-service/apperrors"
	"shop-service/models"
	"shop-service/repository"
)

const productListCacheKey = "products:all"

// ProductService serves the read-only catalog with a Redis
// read-through cache. Cache failures degrade to the database.
type ProductService struct {
	productRepo repository.ProductRepository
	cache       *redis.Client
	ttl         time.Duration
	logger      *zap.Logger
}

func NewProductService(productRepo repository.ProductRepository, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		cache:       cache,
		ttl:         ttl,
		logger:      logger,
	}
}

func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	if cached, ok := s.getCachedList(ctx); ok {
		return cached, nil
	}

	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	s.setCachedListAsync(products)
	return products, nil
}

func (s *ProductService) getCachedList(ctx context.Context) ([]models.Product, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, productListCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("product cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var products []models.Product
	if err := json.Unmarshal([]byte(data), &products); err != nil {
		s.logger.Warn("failed to unmarshal cached product list", zap.Error(err))
		return nil, false
	}
	return products, true
}

func (s *ProductService) setCachedListAsync(products []models.Product) {
	if s.cache == nil {
		return
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data, err := json.Marshal(products)
		if err != nil {
			s.logger.Warn("failed to marshal product list for cache", zap.Error(err))
			return
		}
		if err := s.cache.Set(bgCtx, productListCacheKey, data, s.ttl).Err(); err != nil {
			s.logger.Warn("failed to cache product list", zap.Error(err))
		}
	}()
}
