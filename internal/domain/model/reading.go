package model

import (
	"errors"
	"fmt"
	"time"
)

// FillReading is a fill-level measurement reported by a bin sensor.
type FillReading struct {
	ReadingID string    `json:"reading_id" yaml:"reading_id"` // unique id for idempotency
	BinID     string    `json:"bin_id" yaml:"bin_id"`
	FillLevel int       `json:"fill_level" yaml:"fill_level"` // percent, 0..100
	TS        time.Time `json:"ts" yaml:"ts"`
}

// ErrInvalidReading is returned by Validate.
var ErrInvalidReading = errors.New("invalid reading")

// Validate checks the fields a reading cannot be applied without.
func (r FillReading) Validate() error {
	switch {
	case r.ReadingID == "":
		return fmt.Errorf("%w: reading_id is required", ErrInvalidReading)
	case r.BinID == "":
		return fmt.Errorf("%w: bin_id is required", ErrInvalidReading)
	case r.FillLevel < 0 || r.FillLevel > 100:
		return fmt.Errorf("%w: fill_level must be within 0..100, got %d", ErrInvalidReading, r.FillLevel)
	case r.TS.IsZero():
		return fmt.Errorf("%w: ts is required", ErrInvalidReading)
	}
	return nil
}
