package bootstrap

import (
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository/memory"
)

// Demo catalog for the memory backend. Category 3 is the one GET /products
// lists by default.
var demoProducts = []domain.Product{
	{ID: 1, Name: "Car Shampoo", Price: 180, Stock: 40, CategoryID: 3},
	{ID: 2, Name: "Tire Black", Price: 220, Stock: 25, CategoryID: 3},
	{ID: 3, Name: "Carnauba Wax", Price: 450, Stock: 12, CategoryID: 3},
	{ID: 4, Name: "Microfiber Towel", Price: 95, Stock: 60, CategoryID: 3},
}

var demoServices = []domain.Service{
	{ID: 1, Name: "Basic Wash", Pricing: map[domain.SizeTier]float64{
		domain.SizeSmall: 150, domain.SizeMedium: 200, domain.SizeLarge: 250, domain.SizeXLarge: 300,
	}},
	{ID: 2, Name: "Wash and Wax", Pricing: map[domain.SizeTier]float64{
		domain.SizeMedium: 500, domain.SizeLarge: 600,
	}},
}

func seedDemo(s *memory.Store) {
	for _, p := range demoProducts {
		s.SetProduct(p)
	}
	for _, svc := range demoServices {
		s.SetService(svc)
		for size := range svc.Pricing {
			s.AddLink(domain.ServiceProductLink{ServiceID: svc.ID, ProductID: 1, QuantityPerUnit: 1, Variant: size})
			s.AddLink(domain.ServiceProductLink{ServiceID: svc.ID, ProductID: 4, QuantityPerUnit: 1, Variant: size})
		}
	}
	for size := range demoServices[1].Pricing {
		s.AddLink(domain.ServiceProductLink{ServiceID: 2, ProductID: 3, QuantityPerUnit: 1, Variant: size})
	}
	s.SetWorkingHour(1, "9:00 AM")
	s.SetWorkingHour(2, "1:00 PM")
}
