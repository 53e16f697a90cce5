// Package cart keeps the pending selection of each POS session. Carts live
// in MongoDB with a Redis read-through cache that every mutation invalidates.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Catalog resolves names, prices and stock for new lines.
type Catalog interface {
	FetchProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	FetchServices(ctx context.Context, ids []int64) (map[int64]*domain.Service, error)
}

type Service struct {
	repo    Repository
	cache   Cache
	catalog Catalog
	sfg     singleflight.Group
}

func NewService(repo Repository, cache Cache, catalog Catalog) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{repo: repo, cache: cache, catalog: catalog}
}

type AddRequest struct {
	ID       ItemID          `json:"id"`
	Type     domain.ItemType `json:"type"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size"`
}

type RemoveRequest struct {
	ID   ItemID          `json:"id"`
	Type domain.ItemType `json:"type"`
	Size string          `json:"size"`
}

// Snapshot returns the session's cart; a session without one gets an empty
// cart.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		log := logger.FromContext(ctx)

		c, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn("cart cache get failed", zap.String("session_id", sessionID), zap.Error(err))
		}

		c, err = s.repo.GetCart(ctx, sessionID)
		if errors.Is(err, ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{SessionID: sessionID, Items: []domain.CartLine{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, apperr.Upstream(err, "Failed to load cart")
		}
		if c.Items == nil {
			c.Items = []domain.CartLine{}
		}

		setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.cache.Set(setCtx, sessionID, c); err != nil {
			log.Warn("cart cache set failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (s *Service) Add(ctx context.Context, sessionID string, req AddRequest) (*domain.Cart, error) {
	if req.ID == 0 || req.Type == "" {
		return nil, apperr.InvalidInput("Missing id or type")
	}
	if !req.Type.Valid() {
		return nil, apperr.InvalidInput("Invalid type. Must be 'product' or 'service'.")
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, apperr.InvalidInput("Quantity must be a positive integer")
	}

	var (
		line domain.CartLine
		err  error
	)
	if req.Type == domain.ItemProduct {
		line, err = s.productLine(ctx, int64(req.ID), qty)
	} else {
		line, err = s.serviceLine(ctx, int64(req.ID), qty, req.Size)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddLine(ctx, sessionID, line); err != nil {
		return nil, apperr.Upstream(err, "Failed to update cart")
	}
	s.invalidate(ctx, sessionID)
	return s.Snapshot(ctx, sessionID)
}

func (s *Service) productLine(ctx context.Context, id int64, qty int) (domain.CartLine, error) {
	products, err := s.catalog.FetchProducts(ctx, []int64{id})
	if err != nil {
		return domain.CartLine{}, err
	}
	p, ok := products[id]
	if !ok {
		return domain.CartLine{}, apperr.NotFound("Product %d not found", id)
	}
	if p.Stock < qty {
		return domain.CartLine{}, apperr.InsufficientStock(p.Name)
	}
	return domain.CartLine{ID: id, Type: domain.ItemProduct, Quantity: qty, Name: p.Name, UnitPrice: p.Price}, nil
}

func (s *Service) serviceLine(ctx context.Context, id int64, qty int, rawSize string) (domain.CartLine, error) {
	services, err := s.catalog.FetchServices(ctx, []int64{id})
	if err != nil {
		return domain.CartLine{}, err
	}
	svc, ok := services[id]
	if !ok {
		return domain.CartLine{}, apperr.NotFound("Service %d not found", id)
	}

	size, err := domain.ParseSizeTier(rawSize)
	if err != nil {
		return domain.CartLine{}, apperr.InvalidSize(rawSize, svc.Name)
	}
	if size == "" {
		first, ok := svc.FirstPricedSize()
		if !ok {
			return domain.CartLine{}, apperr.NoValidSize(svc.Name)
		}
		size = first
	}
	price, ok := svc.PriceFor(size)
	if !ok {
		return domain.CartLine{}, apperr.InvalidSize(string(size), svc.Name)
	}
	return domain.CartLine{ID: id, Type: domain.ItemService, Quantity: qty, Size: size, Name: svc.Name, UnitPrice: price}, nil
}

func (s *Service) RemoveOne(ctx context.Context, sessionID string, req RemoveRequest) (*domain.Cart, error) {
	if req.ID == 0 || req.Type == "" {
		return nil, apperr.InvalidInput("Missing id or type")
	}
	// sizes only narrow service lines
	var size domain.SizeTier
	if req.Type == domain.ItemService {
		parsed, err := domain.ParseSizeTier(req.Size)
		if err != nil {
			return nil, apperr.NotFound("Item not found in cart")
		}
		size = parsed
	}

	err := s.repo.RemoveOne(ctx, sessionID, int64(req.ID), req.Type, size)
	if errors.Is(err, ErrItemNotFound) {
		return nil, apperr.NotFound("Item not found in cart")
	}
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to update cart")
	}
	s.invalidate(ctx, sessionID)
	return s.Snapshot(ctx, sessionID)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteCart(ctx, sessionID); err != nil {
		return apperr.Upstream(err, "Failed to clear cart")
	}
	s.invalidate(ctx, sessionID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, sessionID string) {
	s.sfg.Forget(sessionID)
	delCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, sessionID); err != nil {
		logger.FromContext(ctx).Warn("cart cache invalidate failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
