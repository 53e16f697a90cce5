// Package catalog is the read side of products and services. Every upstream
// failure leaves as apperr.KindUpstreamUnavailable.
package catalog

import (
	"context"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
)

const unavailableSuffix = " (Unavailable)"

type Service struct {
	repo            repository.InventoryRepository
	productCategory int64
}

// NewService lists products of productCategory only; zero lists all.
func NewService(repo repository.InventoryRepository, productCategory int64) *Service {
	return &Service{repo: repo, productCategory: productCategory}
}

func (s *Service) FetchProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch products")
	}
	return products, nil
}

func (s *Service) FetchServices(ctx context.Context, ids []int64) (map[int64]*domain.Service, error) {
	services, err := s.repo.GetServices(ctx, ids)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch services")
	}
	return services, nil
}

func (s *Service) FetchServiceLinks(ctx context.Context, serviceIDs []int64) ([]domain.ServiceProductLink, error) {
	links, err := s.repo.GetServiceLinks(ctx, serviceIDs)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch service products")
	}
	return links, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, s.productCategory)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch products")
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := s.FetchProducts(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p, ok := products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	return p, nil
}

func (s *Service) ListServices(ctx context.Context) ([]*domain.Service, error) {
	services, err := s.repo.ListServices(ctx)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch services")
	}
	if err := s.markAvailability(ctx, services); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Service) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	services, err := s.FetchServices(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	svc, ok := services[id]
	if !ok {
		return nil, apperr.NotFound("Service not found")
	}
	if err := s.markAvailability(ctx, []*domain.Service{svc}); err != nil {
		return nil, err
	}
	return svc, nil
}

// markAvailability flags a service unavailable when any product it consumes,
// at any size, has less stock than one unit of the service needs.
func (s *Service) markAvailability(ctx context.Context, services []*domain.Service) error {
	if len(services) == 0 {
		return nil
	}
	ids := make([]int64, len(services))
	for i, svc := range services {
		ids[i] = svc.ID
	}
	links, err := s.FetchServiceLinks(ctx, ids)
	if err != nil {
		return err
	}

	productIDs := make([]int64, 0, len(links))
	seen := map[int64]bool{}
	for _, l := range links {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			productIDs = append(productIDs, l.ProductID)
		}
	}
	products, err := s.FetchProducts(ctx, productIDs)
	if err != nil {
		return err
	}

	short := map[int64]bool{}
	for _, l := range links {
		p, ok := products[l.ProductID]
		if !ok || p.Stock < l.QuantityPerUnit {
			short[l.ServiceID] = true
		}
	}
	for _, svc := range services {
		svc.Active = !short[svc.ID]
		if !svc.Active {
			svc.Name += unavailableSuffix
		}
	}
	return nil
}
