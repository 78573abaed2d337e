package backend

import "time"

// Product is a catalog entry as the storefront API returns it.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	InStock     bool     `json:"in_stock"`
	Categories  []string `json:"categories,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is the storefront's view of a customer order.
type Order struct {
	ID            string      `json:"id"`
	CustomerPhone string      `json:"customer_phone"`
	Status        string      `json:"status"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`
	Currency      string      `json:"currency,omitempty"`
	AWB           string      `json:"awb,omitempty"`
	PlacedAt      time.Time   `json:"placed_at"`
}

// TrackingCheckpoint is one scan event on a shipment's journey.
type TrackingCheckpoint struct {
	Status   string    `json:"status"`
	Location string    `json:"location,omitempty"`
	At       time.Time `json:"at"`
}

// TrackingInfo is the shipment tracker's response for an AWB.
type TrackingInfo struct {
	AWB            string               `json:"awb"`
	Courier        string               `json:"courier,omitempty"`
	CurrentStatus  string               `json:"current_status"`
	ExpectedByDate string               `json:"expected_by,omitempty"`
	Checkpoints    []TrackingCheckpoint `json:"checkpoints,omitempty"`
}

// FAQAnswer is one result from the FAQ lookup service.
type FAQAnswer struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score,omitempty"`
}
