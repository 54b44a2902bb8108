package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultColor  = "#667eea"
	DefaultIcon   = "👤"
	MaxNameLength = 50
)

// MemberProfile is the display data supplied when someone joins.
type MemberProfile struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Normalize trims the name, applies default color and icon, and validates.
func (p MemberProfile) Normalize() (MemberProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(p.Name) > MaxNameLength {
		return p, fmt.Errorf("%w: name longer than %d characters", ErrInvalidArgument, MaxNameLength)
	}
	if p.Color == "" {
		p.Color = DefaultColor
	}
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	return p, nil
}

// Member is a participant of a room. Leadership is not stored here.
type Member struct {
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Icon     string    `json:"icon"`
	Online   bool      `json:"online"`
	JoinedAt time.Time `json:"joinedAt"`
	LastSeen time.Time `json:"lastSeen"`
}

// MemberView is a member as sent to clients.
type MemberView struct {
	ID string `json:"id"`
	Member
	IsLeader    bool         `json:"isLeader"`
	Location    *Location    `json:"location,omitempty"`
	Destination *Destination `json:"destination,omitempty"`
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
