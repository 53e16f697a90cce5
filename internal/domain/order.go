package domain

import "time"

const DefaultPaymentMethod = "cash"

type Order struct {
	ID              int64       `json:"order_id"`
	OrderDate       time.Time   `json:"order_date"`
	ReferenceNumber string      `json:"reference_number,omitempty"`
	TotalQuantity   int         `json:"total_quantity"`
	TotalAmount     float64     `json:"total_amount"`
	ItemsText       string      `json:"items"`
	ItemDetails     []OrderItem `json:"item_details"`
	PaymentMethod   string      `json:"payment_method"`
	PaymentProofURL *string     `json:"payment_proof"`
}

// OrderItem is the priced snapshot of a cart line at checkout time.
type OrderItem struct {
	ID        int64    `json:"id"`
	Type      ItemType `json:"type"`
	Name      string   `json:"name"`
	Size      SizeTier `json:"size,omitempty"`
	Quantity  int      `json:"quantity"`
	UnitPrice float64  `json:"price"`
}

func (i OrderItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}
