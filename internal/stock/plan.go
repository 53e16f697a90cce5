// Package stock validates a set of sale lines against current stock and
// deducts what they consume, including products linked to services.
package stock

import (
	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
)

// Requirement is the total quantity of one product a plan consumes.
type Requirement struct {
	ProductID int64
	Name      string
	Quantity  int
}

// Plan is a validated set of lines together with the catalog rows they were
// validated against.
type Plan struct {
	Lines        []domain.CartLine
	Products     map[int64]*domain.Product
	Services     map[int64]*domain.Service
	Requirements []Requirement
}

// Validate checks every line before anything is written. Requirements are
// summed per product across product lines and service-linked consumption, in
// order of first appearance, so one product used twice is checked against
// its stock once.
func Validate(lines []domain.CartLine, products map[int64]*domain.Product, services map[int64]*domain.Service, links []domain.ServiceProductLink) (*Plan, error) {
	plan := &Plan{Lines: lines, Products: products, Services: services}
	index := map[int64]int{}
	need := func(p *domain.Product, qty int) {
		if i, ok := index[p.ID]; ok {
			plan.Requirements[i].Quantity += qty
			return
		}
		index[p.ID] = len(plan.Requirements)
		plan.Requirements = append(plan.Requirements, Requirement{ProductID: p.ID, Name: p.Name, Quantity: qty})
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, apperr.InvalidInput("Quantity must be a positive integer")
		}
		switch line.Type {
		case domain.ItemProduct:
			p, ok := products[line.ID]
			if !ok {
				return nil, apperr.NotFound("Product %d not found", line.ID)
			}
			need(p, line.Quantity)

		case domain.ItemService:
			svc, ok := services[line.ID]
			if !ok {
				return nil, apperr.NotFound("Service %d not found", line.ID)
			}
			if _, priced := svc.PriceFor(line.Size); !priced {
				return nil, apperr.InvalidSize(string(line.Size), svc.Name)
			}
			matched := 0
			for _, l := range links {
				if l.ServiceID != line.ID || l.Variant != line.Size {
					continue
				}
				matched++
				p, ok := products[l.ProductID]
				if !ok {
					return nil, apperr.NotFound("Product %d not found", l.ProductID)
				}
				need(p, l.QuantityPerUnit*line.Quantity)
			}
			if matched == 0 {
				return nil, apperr.NoProductConfiguration(string(line.Size))
			}

		default:
			return nil, apperr.InvalidInput("Invalid type. Must be 'product' or 'service'.")
		}
	}

	for _, r := range plan.Requirements {
		if products[r.ProductID].Stock < r.Quantity {
			return nil, apperr.InsufficientStock(r.Name)
		}
	}
	return plan, nil
}
