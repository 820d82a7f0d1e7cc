// Package model contains domain models passed between layers.
package model

import "time"

// WasteType classifies what a bin collects.
type WasteType string

// Waste types known to the platform.
const (
	WasteOrganic    WasteType = "organic"
	WasteRecyclable WasteType = "recyclable"
	WasteGeneral    WasteType = "general"
	WasteHazardous  WasteType = "hazardous"
)

// BinStatus is the platform's coarse view of a bin's fill state.
type BinStatus string

// Bin statuses.
const (
	BinEmpty       BinStatus = "empty"
	BinPartial     BinStatus = "partial"
	BinFull        BinStatus = "full"
	BinOverflowing BinStatus = "overflowing"
	BinMaintenance BinStatus = "maintenance"
)

// Bin is a waste bin registered on the platform.
type Bin struct {
	ID                 string     `json:"id"`
	OwnerID            int        `json:"owner_id"`
	OwnerName          string     `json:"owner_name,omitempty"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	Address            string     `json:"address"`
	WasteType          WasteType  `json:"waste_type"`
	FillLevel          int        `json:"fill_level"`
	Status             BinStatus  `json:"status"`
	Capacity           int        `json:"capacity"`
	LastCollectionDate *time.Time `json:"last_collection_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NeedsPickup reports whether the bin's fill level reached threshold percent.
func (b Bin) NeedsPickup(threshold int) bool {
	return b.Status != BinMaintenance && b.FillLevel >= threshold
}

// BinForm is the payload for creating a bin.
type BinForm struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address"`
	WasteType WasteType `json:"waste_type"`
	Capacity  int       `json:"capacity"`
}

// BinUpdate is a partial bin update; nil fields are left unchanged.
type BinUpdate struct {
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Address   *string    `json:"address,omitempty"`
	WasteType *WasteType `json:"waste_type,omitempty"`
	Capacity  *int       `json:"capacity,omitempty"`
	FillLevel *int       `json:"fill_level,omitempty"`
	Status    *BinStatus `json:"status,omitempty"`
}

// BinFilter narrows a bin listing. Zero fields are not sent.
type BinFilter struct {
	Page      int
	Limit     int
	WasteType WasteType
	Status    BinStatus
	OwnerID   int
}

// Location is a point with a search radius in kilometres.
type Location struct {
	Latitude  float64
	Longitude float64
	RadiusKM  float64
}

// Page is a paginated listing.
type Page[T any] struct {
	Results  []T    `json:"results"`
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}
