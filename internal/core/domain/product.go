package domain

import (
	"database/sql"
	"time"
)

// Product prices are minor units (cents). Stock is the single
// contended counter in the system; it is mutated only through the
// stock ledger's reservation.
type Product struct {
	ID          int64          `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	Price       int64          `db:"price" json:"price"`
	Stock       int            `db:"stock" json:"stock"`
	CategoryID  int64          `db:"category_id" json:"category_id"`
	ImageURL    sql.NullString `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`

	Category *Category `db:"-" json:"category,omitempty"`
}

type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
