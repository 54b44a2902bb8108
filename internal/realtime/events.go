package realtime

import (
	"encoding/json"
	"fmt"

	"convoy_tracker/internal/models"
)

// Inbound events.
const (
	EventJoinRoom                   = "join-room"
	EventLocationUpdate             = "location-update"
	EventSetDestination             = "set-destination"
	EventRemoveDestination          = "remove-destination"
	EventGetLocationHistory         = "get-location-history"
	EventAddDestinationToPath       = "add-destination-to-path"
	EventUpdateDestinationInPath    = "update-destination-in-path"
	EventRemoveDestinationFromPath  = "remove-destination-from-path"
	EventClearDestinationPath       = "clear-destination-path"
	EventSetCurrentDestinationIndex = "set-current-destination-index"
	EventAssignLeader               = "assign-leader"
	EventRemoveLeader               = "remove-leader"
)

// Outbound events.
const (
	EventRoomState                 = "room-state"
	EventUserJoined                = "user-joined"
	EventUserReconnected           = "user-reconnected"
	EventUserOffline               = "user-offline"
	EventUserLeft                  = "user-left"
	EventLocationUpdated           = "location-updated"
	EventDestinationSet            = "destination-set"
	EventDestinationAssigned       = "destination-assigned"
	EventDestinationRemoved        = "destination-removed"
	EventLocationHistory           = "location-history"
	EventDestinationPathUpdated    = "destination-path-updated"
	EventCurrentDestinationUpdated = "current-destination-updated"
	EventLeaderRoleUpdated         = "leader-role-updated"
	EventRoomDeleted               = "room-deleted"
	EventError                     = "error"
)

// codeRateLimited is reported when a connection sends faster than allowed.
const codeRateLimited = "RATE_LIMITED"

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Encode builds a frame for event with payload data.
func Encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

type joinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

type locationUpdatePayload struct {
	UserID   string          `json:"userId"`
	Location models.Location `json:"location"`
}

type setDestinationPayload struct {
	TargetUserID string             `json:"targetUserId"`
	Destination  models.Destination `json:"destination"`
}

type targetPayload struct {
	TargetUserID string `json:"targetUserId"`
}

type historyPayload struct {
	UserID    string `json:"userId"`
	TimeRange int64  `json:"timeRange"` // milliseconds
}

type addPointPayload struct {
	Destination models.PointInput `json:"destination"`
}

type updatePointPayload struct {
	Index   *int              `json:"index"`
	Updates models.PointPatch `json:"updates"`
}

type indexPayload struct {
	Index *int `json:"index"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// UserPayload announces a member joining or reconnecting.
type UserPayload struct {
	UserID string            `json:"userId"`
	User   models.MemberView `json:"user"`
}

// PresencePayload announces a member going offline or leaving.
type PresencePayload struct {
	UserID  string `json:"userId"`
	Name    string `json:"name,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// PathPayload carries the full path after any path mutation.
type PathPayload struct {
	RoomCode string `json:"roomCode"`
	models.PathState
	Message string `json:"message"`
}

// LeaderPayload reports a change in leadership.
type LeaderPayload struct {
	UserID    string   `json:"userId"`
	IsLeader  bool     `json:"isLeader"`
	LeaderIDs []string `json:"leaderIds"`
}

// RoomDeletedPayload tells clients the room is gone.
type RoomDeletedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", models.ErrInvalidArgument, err)
	}
	return nil
}

// permissionError names the action a non-leader attempted.
type permissionError struct{ action string }

func (e *permissionError) Error() string { return "only leaders can " + e.action }

func (e *permissionError) Is(target error) bool { return target == models.ErrNotLeader }

func notLeader(action string) error { return &permissionError{action: action} }
