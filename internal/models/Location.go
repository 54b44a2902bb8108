package models

import (
	"fmt"
	"math"
	"time"
)

// HistoryCapacity is the number of past locations kept per member.
const HistoryCapacity = 50

// Location is the most recent position reported by a member's device.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters
	Altitude  *float64  `json:"altitude,omitempty"` // meters
	Bearing   *float64  `json:"bearing,omitempty"`  // degrees
	Speed     *float64  `json:"speed,omitempty"`    // m/s
	Timestamp time.Time `json:"timestamp"`
}

// ValidateCoordinates rejects NaN and out-of-range latitude/longitude pairs.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: coordinates (%v, %v) out of range", ErrInvalidArgument, lat, lng)
	}
	return nil
}

// Validate checks the coordinates of l.
func (l Location) Validate() error {
	return ValidateCoordinates(l.Lat, l.Lng)
}
