package domain

import (
	"fmt"
	"time"
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	SessionID string     `bson:"session_id" json:"session_id"`
	Items     []CartLine `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartLine is one pending selection. Lines are identified by (ID, Type, Size).
type CartLine struct {
	ID        int64     `bson:"id" json:"id"`
	Type      ItemType  `bson:"type" json:"type"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Size      SizeTier  `bson:"size,omitempty" json:"size,omitempty"`
	Name      string    `bson:"name" json:"name"`
	UnitPrice float64   `bson:"price" json:"price"`
	AddedAt   time.Time `bson:"added_at" json:"-"`
}

func (l CartLine) SameKey(o CartLine) bool {
	return l.ID == o.ID && l.Type == o.Type && l.Size == o.Size
}

// Text renders the line the way receipts and the cart view show it,
// e.g. "2x Wax [service - large]".
func (l CartLine) Text() string {
	if l.Size != "" {
		return fmt.Sprintf("%dx %s [%s - %s]", l.Quantity, l.Name, l.Type, l.Size)
	}
	return fmt.Sprintf("%dx %s [%s]", l.Quantity, l.Name, l.Type)
}

func (c *Cart) Text() []string {
	out := make([]string, 0, len(c.Items))
	for _, l := range c.Items {
		out = append(out, l.Text())
	}
	return out
}

func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }

// Split partitions the ids of the cart lines by type, without duplicates.
func Split(lines []CartLine) (productIDs, serviceIDs []int64) {
	seenP := map[int64]bool{}
	seenS := map[int64]bool{}
	for _, l := range lines {
		switch l.Type {
		case ItemProduct:
			if !seenP[l.ID] {
				seenP[l.ID] = true
				productIDs = append(productIDs, l.ID)
			}
		case ItemService:
			if !seenS[l.ID] {
				seenS[l.ID] = true
				serviceIDs = append(serviceIDs, l.ID)
			}
		}
	}
	return productIDs, serviceIDs
}
