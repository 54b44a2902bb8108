package models

import (
	"fmt"
	"strings"
	"time"
)

// Destination is an ad hoc point a leader assigns to a single member.
type Destination struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Label      string    `json:"label,omitempty"`
	AssignedBy string    `json:"assignedBy,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
}

// DestinationPoint is one waypoint of the shared destination path.
// Order always equals the point's position in the path.
type DestinationPoint struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Note      string     `json:"note,omitempty"`
	Color     string     `json:"color,omitempty"`
	Size      string     `json:"size,omitempty"`
	AddedAt   time.Time  `json:"addedAt"`
	Order     int        `json:"order"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// PointInput is the caller-supplied part of a new path point.
type PointInput struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Note  string  `json:"note,omitempty"`
	Color string  `json:"color,omitempty"`
	Size  string  `json:"size,omitempty"`
}

// Validate checks coordinates and field lengths.
func (p PointInput) Validate() error {
	if err := ValidateCoordinates(p.Lat, p.Lng); err != nil {
		return err
	}
	if len(p.Note) > 500 {
		return fmt.Errorf("%w: note too long", ErrInvalidArgument)
	}
	return nil
}

// PointPatch lists the fields of a path point that may be edited in place.
// Nil fields are left untouched.
type PointPatch struct {
	Note  *string `json:"note,omitempty"`
	Color *string `json:"color,omitempty"`
	Size  *string `json:"size,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p PointPatch) Empty() bool {
	return p.Note == nil && p.Color == nil && p.Size == nil
}

func (p PointPatch) applyTo(dp *DestinationPoint, now time.Time) {
	if p.Note != nil {
		dp.Note = strings.TrimSpace(*p.Note)
	}
	if p.Color != nil {
		dp.Color = *p.Color
	}
	if p.Size != nil {
		dp.Size = *p.Size
	}
	dp.UpdatedAt = &now
}

// PathState is the shared path together with its active pointer.
type PathState struct {
	DestinationPath         []DestinationPoint `json:"destinationPath"`
	CurrentDestinationIndex int                `json:"currentDestinationIndex"`
	CurrentDestination      *DestinationPoint  `json:"currentDestination,omitempty"`
}
