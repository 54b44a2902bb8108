package realtime

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"convoy_tracker/internal/metrics"
	"convoy_tracker/internal/models"
)

type handlerFunc func(h *Hub, c *Client, data json.RawMessage) error

var handlers = map[string]handlerFunc{
	EventJoinRoom:                   (*Hub).handleJoinRoom,
	EventLocationUpdate:             (*Hub).handleLocationUpdate,
	EventSetDestination:             (*Hub).handleSetDestination,
	EventRemoveDestination:          (*Hub).handleRemoveDestination,
	EventGetLocationHistory:         (*Hub).handleGetLocationHistory,
	EventAddDestinationToPath:       (*Hub).handleAddDestinationToPath,
	EventUpdateDestinationInPath:    (*Hub).handleUpdateDestinationInPath,
	EventRemoveDestinationFromPath:  (*Hub).handleRemoveDestinationFromPath,
	EventClearDestinationPath:       (*Hub).handleClearDestinationPath,
	EventSetCurrentDestinationIndex: (*Hub).handleSetCurrentDestinationIndex,
	EventAssignLeader:               (*Hub).handleAssignLeader,
	EventRemoveLeader:               (*Hub).handleRemoveLeader,
}

// HandleMessage decodes one inbound frame and applies it. Failures are
// reported to c alone.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		c.emitError(fmt.Errorf("%w: malformed message", models.ErrInvalidArgument))
		return
	}
	handle, ok := handlers[env.Event]
	if !ok {
		c.emitError(fmt.Errorf("%w: unknown event %q", models.ErrInvalidArgument, env.Event))
		return
	}
	err := handle(h, c, env.Data)
	metrics.TrackEvent(env.Event, err)
	if err != nil {
		code, userID := c.Identity()
		logrus.WithError(err).WithFields(logrus.Fields{
			"event":     env.Event,
			"room_code": code,
			"user_id":   userID,
		}).Warn("Real-time event rejected")
		c.emitError(err)
	}
}

func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) error {
	var p joinRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	code := strings.ToUpper(strings.TrimSpace(p.RoomCode))
	if code == "" || p.UserID == "" {
		return fmt.Errorf("%w: roomCode and userId are required", models.ErrInvalidArgument)
	}
	room, err := h.store.Get(code)
	if err != nil {
		return err
	}

	boundCode, boundUser := c.Identity()
	if boundCode == code && boundUser == p.UserID {
		c.emit(EventRoomState, H{"room": room.Snapshot()})
		return nil
	}
	if boundCode != "" {
		h.unbind(c)
	}

	h.Exclusive(code, func() {
		h.mu.Lock()
		prior := h.userConnCountLocked(code, p.UserID)
		h.subscribeLocked(c, code, p.UserID)
		h.mu.Unlock()

		member, known := room.GetUser(p.UserID)
		log := logrus.WithFields(logrus.Fields{"room_code": code, "user_id": p.UserID})
		switch {
		case !known:
			log.Info("Connection joined room before membership exists")
		case prior > 0:
			log.Debug("Additional connection for member")
		case !member.Online:
			room.Reconnect(p.UserID)
			_ = h.store.MapUserToRoom(p.UserID, code)
			view, _ := room.MemberView(p.UserID)
			h.broadcast(code, EventUserReconnected, UserPayload{UserID: p.UserID, User: view}, c)
			log.Info("Member reconnected")
		default:
			_ = h.store.MapUserToRoom(p.UserID, code)
			view, _ := room.MemberView(p.UserID)
			h.broadcast(code, EventUserJoined, UserPayload{UserID: p.UserID, User: view}, c)
			log.Info("Member joined channel")
		}
		c.emit(EventRoomState, H{"room": room.Snapshot()})
	})
	return nil
}

// H is a short alias for ad hoc payload maps.
type H = map[string]interface{}

func (h *Hub) handleLocationUpdate(c *Client, data json.RawMessage) error {
	var p locationUpdatePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, userID := c.Identity()
	if userID == "" {
		return fmt.Errorf("%w: join a room first", models.ErrInvalidArgument)
	}
	if p.UserID != "" && p.UserID != userID {
		logrus.WithFields(logrus.Fields{
			"connection_user_id": userID,
			"payload_user_id":    p.UserID,
		}).Warn("Location update for a different user denied")
		return fmt.Errorf("%w: cannot update another member's location", models.ErrUnauthorized)
	}
	if err := p.Location.Validate(); err != nil {
		return err
	}
	room, err := h.store.RoomForUser(userID)
	if err != nil {
		return err
	}
	loc := p.Location
	loc.Timestamp = time.Time{}

	var updateErr error
	h.Exclusive(room.Code(), func() {
		if updateErr = room.UpdateLocation(userID, loc); updateErr != nil {
			return
		}
		stored, _ := room.GetLocation(userID)
		h.broadcast(room.Code(), EventLocationUpdated, H{"userId": userID, "location": stored}, nil)
	})
	return updateErr
}

// leaderAction runs fn on the caller's room under its session lock after
// checking that the caller leads the room.
func (h *Hub) leaderAction(c *Client, action string, fn func(room *models.Room, code, userID string) error) error {
	code, userID := c.Identity()
	if code == "" {
		return fmt.Errorf("%w: join a room first", models.ErrInvalidArgument)
	}
	room, err := h.store.Get(code)
	if err != nil {
		return err
	}
	var actionErr error
	h.Exclusive(code, func() {
		if !room.IsLeader(userID) {
			actionErr = notLeader(action)
			return
		}
		actionErr = fn(room, code, userID)
	})
	return actionErr
}

func (h *Hub) handleSetDestination(c *Client, data json.RawMessage) error {
	var p setDestinationPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.TargetUserID == "" {
		return fmt.Errorf("%w: targetUserId is required", models.ErrInvalidArgument)
	}
	if err := models.ValidateCoordinates(p.Destination.Lat, p.Destination.Lng); err != nil {
		return err
	}
	return h.leaderAction(c, "set destinations", func(room *models.Room, code, userID string) error {
		d := p.Destination
		d.AssignedBy = userID
		d.AssignedAt = time.Time{}
		if err := room.SetDestination(p.TargetUserID, d); err != nil {
			return err
		}
		view, _ := room.MemberView(p.TargetUserID)
		h.broadcast(code, EventDestinationSet, H{"targetUserId": p.TargetUserID, "destination": view.Destination}, nil)
		h.SendToUser(code, p.TargetUserID, EventDestinationAssigned, H{
			"targetUserId": p.TargetUserID,
			"destination":  view.Destination,
			"message":      "Leader assigned you a destination",
		})
		return nil
	})
}

func (h *Hub) handleRemoveDestination(c *Client, data json.RawMessage) error {
	var p targetPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.TargetUserID == "" {
		return fmt.Errorf("%w: targetUserId is required", models.ErrInvalidArgument)
	}
	return h.leaderAction(c, "remove destinations", func(room *models.Room, code, _ string) error {
		room.RemoveDestination(p.TargetUserID)
		h.broadcast(code, EventDestinationRemoved, H{"targetUserId": p.TargetUserID}, nil)
		return nil
	})
}

// maxTimeRangeMs is the largest history window that fits a time.Duration.
const maxTimeRangeMs = int64(math.MaxInt64 / int64(time.Millisecond))

func (h *Hub) handleGetLocationHistory(c *Client, data json.RawMessage) error {
	var p historyPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	code, userID := c.Identity()
	if code == "" {
		return fmt.Errorf("%w: join a room first", models.ErrInvalidArgument)
	}
	room, err := h.store.Get(code)
	if err != nil {
		return err
	}
	target := p.UserID
	if target == "" {
		target = userID
	}
	window := h.cfg.HistoryWindow
	if p.TimeRange > 0 {
		window = time.Duration(min(p.TimeRange, maxTimeRangeMs)) * time.Millisecond
	}
	c.emit(EventLocationHistory, H{"userId": target, "history": room.LocationHistory(target, window)})
	return nil
}

func (h *Hub) broadcastPath(room *models.Room, code, message string) {
	h.broadcast(code, EventDestinationPathUpdated, PathPayload{
		RoomCode:  code,
		PathState: room.Path(),
		Message:   message,
	}, nil)
}

func (h *Hub) handleAddDestinationToPath(c *Client, data json.RawMessage) error {
	var p addPointPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := p.Destination.Validate(); err != nil {
		return err
	}
	return h.leaderAction(c, "add destinations to path", func(room *models.Room, code, _ string) error {
		room.AddDestinationToPath(p.Destination)
		h.broadcastPath(room, code, "New destination added to path")
		return nil
	})
}

func requireIndex(index *int) (int, error) {
	if index == nil {
		return 0, fmt.Errorf("%w: index is required", models.ErrInvalidArgument)
	}
	return *index, nil
}

func (h *Hub) handleUpdateDestinationInPath(c *Client, data json.RawMessage) error {
	var p updatePointPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	index, err := requireIndex(p.Index)
	if err != nil {
		return err
	}
	if p.Updates.Empty() {
		return fmt.Errorf("%w: no fields to update", models.ErrInvalidArgument)
	}
	return h.leaderAction(c, "update destinations in path", func(room *models.Room, code, _ string) error {
		if err := room.UpdateDestinationInPath(index, p.Updates); err != nil {
			return err
		}
		h.broadcastPath(room, code, fmt.Sprintf("Destination %d updated", index+1))
		return nil
	})
}

func (h *Hub) handleRemoveDestinationFromPath(c *Client, data json.RawMessage) error {
	var p indexPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	index, err := requireIndex(p.Index)
	if err != nil {
		return err
	}
	return h.leaderAction(c, "remove destinations from path", func(room *models.Room, code, _ string) error {
		if err := room.RemoveDestinationFromPath(index); err != nil {
			return err
		}
		h.broadcastPath(room, code, "Destination removed from path")
		return nil
	})
}

func (h *Hub) handleClearDestinationPath(c *Client, _ json.RawMessage) error {
	return h.leaderAction(c, "clear destination path", func(room *models.Room, code, _ string) error {
		room.ClearDestinationPath()
		h.broadcastPath(room, code, "Destination path cleared")
		return nil
	})
}

func (h *Hub) handleSetCurrentDestinationIndex(c *Client, data json.RawMessage) error {
	var p indexPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	index, err := requireIndex(p.Index)
	if err != nil {
		return err
	}
	return h.leaderAction(c, "set current destination", func(room *models.Room, code, _ string) error {
		if err := room.SetCurrentDestinationIndex(index); err != nil {
			return err
		}
		ps := room.Path()
		h.broadcast(code, EventCurrentDestinationUpdated, H{
			"roomCode":                code,
			"currentDestinationIndex": ps.CurrentDestinationIndex,
			"currentDestination":      ps.CurrentDestination,
			"message":                 fmt.Sprintf("Now navigating to destination %d", index+1),
		}, nil)
		return nil
	})
}

func (h *Hub) handleAssignLeader(c *Client, data json.RawMessage) error {
	var p targetPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return h.leaderAction(c, "assign leaders", func(room *models.Room, code, _ string) error {
		if err := room.AddLeader(p.TargetUserID); err != nil {
			return err
		}
		h.broadcast(code, EventLeaderRoleUpdated, LeaderPayload{
			UserID: p.TargetUserID, IsLeader: true, LeaderIDs: room.LeaderIDs(),
		}, nil)
		return nil
	})
}

func (h *Hub) handleRemoveLeader(c *Client, data json.RawMessage) error {
	var p targetPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return h.leaderAction(c, "remove leaders", func(room *models.Room, code, _ string) error {
		if !room.IsLeader(p.TargetUserID) {
			if _, ok := room.GetUser(p.TargetUserID); !ok {
				return fmt.Errorf("%w: %s", models.ErrUserNotFound, p.TargetUserID)
			}
			return fmt.Errorf("%w: %s is not a leader", models.ErrInvalidArgument, p.TargetUserID)
		}
		if err := room.RemoveLeader(p.TargetUserID); err != nil {
			return err
		}
		h.broadcast(code, EventLeaderRoleUpdated, LeaderPayload{
			UserID: p.TargetUserID, IsLeader: false, LeaderIDs: room.LeaderIDs(),
		}, nil)
		return nil
	})
}
