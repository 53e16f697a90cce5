package domain

// ItemType distinguishes the two kinds of sellable line.
type ItemType string

const (
	ItemProduct ItemType = "product"
	ItemService ItemType = "service"
)

func (t ItemType) Valid() bool {
	return t == ItemProduct || t == ItemService
}

type Product struct {
	ID         int64   `json:"product_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Stock      int     `json:"stock"`
	CategoryID int64   `json:"category_id,omitempty"`
}

type Service struct {
	ID       int64                `json:"service_id"`
	Name     string               `json:"service_name"`
	Pricing  map[SizeTier]float64 `json:"pricing"`
	Category string               `json:"category,omitempty"`
	Active   bool                 `json:"active"`
}

// PriceFor reports the price of the tier and whether the tier is offered.
// A stored price of zero means the tier is not offered.
func (s *Service) PriceFor(size SizeTier) (float64, bool) {
	p, ok := s.Pricing[size]
	return p, ok && p > 0
}

// FirstPricedSize walks the tiers in ascending order and returns the first
// one with a price.
func (s *Service) FirstPricedSize() (SizeTier, bool) {
	for _, t := range sizeOrder {
		if _, ok := s.PriceFor(t); ok {
			return t, true
		}
	}
	return "", false
}

// ServiceProductLink says that performing one unit of a service at Variant
// consumes QuantityPerUnit units of the product.
type ServiceProductLink struct {
	ServiceID       int64    `json:"service_id"`
	ProductID       int64    `json:"product_id"`
	QuantityPerUnit int      `json:"quantity"`
	Variant         SizeTier `json:"variant"`
}
