package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"convoy_tracker/internal/export"
	"convoy_tracker/internal/models"
	"convoy_tracker/internal/realtime"
	"convoy_tracker/internal/store"
)

// JoinResult is returned by room creation and joining.
type JoinResult struct {
	Room        models.RoomView `json:"room"`
	UserID      string          `json:"userId"`
	Reconnected bool            `json:"reconnected,omitempty"`
}

// RoomService implements the participant-facing room operations.
type RoomService struct {
	store *store.RoomStore
	hub   Broadcaster
	now   func() time.Time
	newID func() string
}

func NewRoomService(st *store.RoomStore, hub Broadcaster) *RoomService {
	return &RoomService{store: st, hub: hub, now: time.Now, newID: uuid.NewString}
}

// NormalizeCode upper-cases and trims a user-entered room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateRoom opens a new room led by the caller.
func (s *RoomService) CreateRoom(profile models.MemberProfile) (*JoinResult, error) {
	profile, err := profile.Normalize()
	if err != nil {
		return nil, err
	}
	userID := s.newID()
	room, err := createWithUniqueCode(s.store, models.RoomOptions{LeaderID: userID, Leader: profile})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"room_code": room.Code(),
		"user_id":   userID,
		"name":      profile.Name,
	}).Info("Room created")
	return &JoinResult{Room: room.Snapshot(), UserID: userID}, nil
}

// JoinRoom adds the caller to a room. A name held by an offline member
// resumes that member's identity; a name held by an online member is
// rejected.
func (s *RoomService) JoinRoom(code string, profile models.MemberProfile) (*JoinResult, error) {
	profile, err := profile.Normalize()
	if err != nil {
		return nil, err
	}
	code = NormalizeCode(code)
	room, err := s.store.Get(code)
	if err != nil {
		return nil, err
	}

	var (
		result *JoinResult
		opErr  error
	)
	s.hub.Exclusive(code, func() {
		if id, member, found := room.FindByName(profile.Name); found {
			if member.Online {
				opErr = fmt.Errorf("%w: %q", models.ErrNameTaken, profile.Name)
				return
			}
			if opErr = s.store.MapUserToRoom(id, code); opErr != nil {
				return
			}
			result = &JoinResult{Room: room.Snapshot(), UserID: id, Reconnected: true}
			logrus.WithFields(logrus.Fields{"room_code": code, "user_id": id}).Info("Member rejoining by name")
			return
		}

		userID := s.newID()
		if opErr = room.AddUser(userID, profile); opErr != nil {
			return
		}
		if opErr = s.store.MapUserToRoom(userID, code); opErr != nil {
			room.RemoveUser(userID)
			return
		}
		if room.LeaderCount() == 0 {
			if opErr = room.AddLeader(userID); opErr != nil {
				return
			}
			s.hub.Broadcast(code, realtime.EventLeaderRoleUpdated, realtime.LeaderPayload{
				UserID: userID, IsLeader: true, LeaderIDs: room.LeaderIDs(),
			})
			logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).Info("First joiner promoted to leader")
		}
		result = &JoinResult{Room: room.Snapshot(), UserID: userID}
		logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID, "name": profile.Name}).Info("Member joined room")
	})
	if opErr != nil {
		return nil, opErr
	}
	return result, nil
}

// GetRoom returns a snapshot of the room.
func (s *RoomService) GetRoom(code string) (models.RoomView, error) {
	room, err := s.store.Get(NormalizeCode(code))
	if err != nil {
		return models.RoomView{}, err
	}
	return room.Snapshot(), nil
}

// LeaveRoom removes a member for good. A non-admin room is deleted when
// its last member leaves.
func (s *RoomService) LeaveRoom(code, userID string) error {
	code = NormalizeCode(code)
	if userID == "" {
		return fmt.Errorf("%w: userId is required", models.ErrInvalidArgument)
	}
	room, err := s.store.Get(code)
	if err != nil {
		return err
	}
	var (
		opErr      error
		deleteRoom bool
	)
	s.hub.Exclusive(code, func() {
		member, ok := room.GetUser(userID)
		if !ok {
			opErr = fmt.Errorf("%w: %s", models.ErrUserNotFound, userID)
			return
		}
		_, promoted := room.RemoveUser(userID)
		s.store.UnmapUser(userID)
		s.hub.Broadcast(code, realtime.EventUserLeft, realtime.PresencePayload{UserID: userID, Name: member.Name})
		if promoted != "" {
			s.hub.Broadcast(code, realtime.EventLeaderRoleUpdated, realtime.LeaderPayload{
				UserID: promoted, IsLeader: true, LeaderIDs: room.LeaderIDs(),
			})
		}
		deleteRoom = room.MemberCount() == 0 && !room.IsAdminCreated()
		logrus.WithFields(logrus.Fields{
			"room_code": code,
			"user_id":   userID,
			"promoted":  promoted,
		}).Info("Member left room")
	})
	if opErr != nil {
		return opErr
	}
	s.hub.DisconnectUser(code, userID)
	if deleteRoom && s.store.Delete(code) {
		recordRoomCount(s.store)
		s.hub.CloseRoom(code, "Room closed: last member left")
		logrus.WithField("room_code", code).Info("Empty room deleted")
	}
	return nil
}

// ExportPath renders the room's destination path.
func (s *RoomService) ExportPath(code string, format export.Format) (*export.Document, error) {
	room, err := s.store.Get(NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	return export.Render(room.Snapshot(), format, s.now())
}
