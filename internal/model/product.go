package model

import "github.com/shopspring/decimal"

// Product is the client's cached view of a catalogue product. Stock is the
// last value the server reported and may be stale.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category,omitempty"`
	UnitWeight  string          `json:"unitWeight,omitempty"`
	PieceCount  int             `json:"pieceCount,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Category groups products for browsing.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}
