package model

import "github.com/shopspring/decimal"

// DeliverySettings are the store-wide delivery rules fetched from the server.
type DeliverySettings struct {
	Enabled               bool            `json:"enabled"`
	DeliveryFee           decimal.Decimal `json:"deliveryFee"`
	FreeDeliveryThreshold decimal.Decimal `json:"freeDeliveryThreshold"`
	MinOrderSubtotal      decimal.Decimal `json:"minOrderSubtotal"`
	Cities                []string        `json:"cities"`
}
