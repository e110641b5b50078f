package catalog

import "time"

const (
	ProductStatusActive  = "active"
	ProductStatusDisable = "disable"
)

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Stock      int       `json:"stock"`
	Status     string    `json:"status"`
	CategoryID *string   `json:"category_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *Product) Active() bool {
	return p.Status == "" || p.Status == ProductStatusActive
}

type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ParentID *string `json:"parent_id,omitempty"`
}
