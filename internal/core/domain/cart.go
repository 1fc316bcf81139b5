package domain

import "time"

// CartItem is one (user, product, quantity) pairing, unique per
// (UserID, ProductID). Cart items are deleted wholesale when a
// checkout transaction commits, never before.
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// CartSnapshot is a priced read of a user's cart. Its total reflects
// the catalog at read time and may differ from the frozen total of an
// order placed earlier.
type CartSnapshot struct {
	Items []CartItem `json:"items"`
	Total int64      `json:"total"`
}

func (s CartSnapshot) Empty() bool {
	return len(s.Items) == 0
}
