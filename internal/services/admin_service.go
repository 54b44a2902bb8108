package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"convoy_tracker/internal/gpxio"
	"convoy_tracker/internal/models"
	"convoy_tracker/internal/realtime"
	"convoy_tracker/internal/store"
)

// AdminService implements the administrator operations.
type AdminService struct {
	store *store.RoomStore
	hub   Broadcaster
	newID func() string
}

func NewAdminService(st *store.RoomStore, hub Broadcaster) *AdminService {
	return &AdminService{store: st, hub: hub, newID: uuid.NewString}
}

// CreateRoom opens a leaderless room. The first joiner becomes leader.
// isPublic defaults to true.
func (s *AdminService) CreateRoom(roomName string, isPublic *bool) (models.RoomView, error) {
	public := true
	if isPublic != nil {
		public = *isPublic
	}
	room, err := createWithUniqueCode(s.store, models.RoomOptions{
		RoomName:       roomName,
		IsPublic:       public,
		IsAdminCreated: true,
	})
	if err != nil {
		return models.RoomView{}, err
	}
	logrus.WithFields(logrus.Fields{"room_code": room.Code(), "public": public}).Info("Admin room created")
	return room.Snapshot(), nil
}

// ListRooms summarizes every room.
func (s *AdminService) ListRooms() []models.RoomSummary {
	return summaries(s.store.List(nil))
}

// PublicRooms summarizes the admin-created rooms marked public.
func (s *AdminService) PublicRooms() []models.RoomSummary {
	return summaries(s.store.List(func(r *models.Room) bool {
		return r.IsPublic() && r.IsAdminCreated()
	}))
}

func summaries(rooms []*models.Room) []models.RoomSummary {
	out := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out
}

func (s *AdminService) GetRoom(code string) (models.RoomView, error) {
	room, err := s.store.Get(NormalizeCode(code))
	if err != nil {
		return models.RoomView{}, err
	}
	return room.Snapshot(), nil
}

// adminRoom fetches a room that an administrator created. Other rooms are
// reported as not found.
func (s *AdminService) adminRoom(code string) (*models.Room, error) {
	room, err := s.store.Get(code)
	if err != nil {
		return nil, err
	}
	if !room.IsAdminCreated() {
		return nil, fmt.Errorf("%w: %s is not an admin room", models.ErrRoomNotFound, code)
	}
	return room, nil
}

// UpdateRoom changes the name or visibility of an admin room.
func (s *AdminService) UpdateRoom(code string, roomName *string, isPublic *bool) (models.RoomView, error) {
	code = NormalizeCode(code)
	room, err := s.adminRoom(code)
	if err != nil {
		return models.RoomView{}, err
	}
	s.hub.Exclusive(code, func() {
		room.UpdateMetadata(roomName, isPublic)
	})
	return room.Snapshot(), nil
}

// DeleteRoom removes an admin room and tells connected clients.
func (s *AdminService) DeleteRoom(code string) error {
	code = NormalizeCode(code)
	if _, err := s.adminRoom(code); err != nil {
		return err
	}
	if !s.store.Delete(code) {
		return fmt.Errorf("%w: %s", models.ErrRoomNotFound, code)
	}
	recordRoomCount(s.store)
	s.hub.CloseRoom(code, "Room deleted by administrator")
	logrus.WithField("room_code", code).Info("Admin deleted room")
	return nil
}

// LeaderResult describes the member made leader by an administrator.
type LeaderResult struct {
	UserID string          `json:"userId"`
	Room   models.RoomView `json:"room"`
}

// AssignLeader makes the member with profile.Name a leader, creating an
// offline member when nobody has that name yet.
func (s *AdminService) AssignLeader(code string, profile models.MemberProfile) (*LeaderResult, error) {
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
		userID string
		opErr  error
	)
	s.hub.Exclusive(code, func() {
		id, _, found := room.FindByName(profile.Name)
		if !found {
			id = s.newID()
			if opErr = room.AddUser(id, profile); opErr != nil {
				return
			}
			room.MarkOffline(id)
			if opErr = s.store.MapUserToRoom(id, code); opErr != nil {
				return
			}
			view, _ := room.MemberView(id)
			s.hub.Broadcast(code, realtime.EventUserJoined, realtime.UserPayload{UserID: id, User: view})
		}
		if opErr = room.AddLeader(id); opErr != nil {
			return
		}
		userID = id
		s.hub.Broadcast(code, realtime.EventLeaderRoleUpdated, realtime.LeaderPayload{
			UserID: id, IsLeader: true, LeaderIDs: room.LeaderIDs(),
		})
	})
	if opErr != nil {
		return nil, opErr
	}
	logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).Info("Admin assigned leader")
	return &LeaderResult{UserID: userID, Room: room.Snapshot()}, nil
}

// RemoveLeader revokes leadership. Removing the last leader fails with
// models.ErrLastLeader.
func (s *AdminService) RemoveLeader(code, userID string) error {
	code = NormalizeCode(code)
	room, err := s.store.Get(code)
	if err != nil {
		return err
	}
	var opErr error
	s.hub.Exclusive(code, func() {
		if !room.IsLeader(userID) {
			if _, ok := room.GetUser(userID); !ok {
				opErr = fmt.Errorf("%w: %s", models.ErrUserNotFound, userID)
			} else {
				opErr = fmt.Errorf("%w: %s is not a leader", models.ErrInvalidArgument, userID)
			}
			return
		}
		if opErr = room.RemoveLeader(userID); opErr != nil {
			return
		}
		s.hub.Broadcast(code, realtime.EventLeaderRoleUpdated, realtime.LeaderPayload{
			UserID: userID, IsLeader: false, LeaderIDs: room.LeaderIDs(),
		})
	})
	return opErr
}

// RemoveUser expels a member. Its connections receive the user-left notice
// and are then closed. A non-admin room left empty is deleted.
func (s *AdminService) RemoveUser(code, userID string) error {
	code = NormalizeCode(code)
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
		s.hub.Broadcast(code, realtime.EventUserLeft, realtime.PresencePayload{
			UserID: userID, Name: member.Name, Removed: true,
		})
		if promoted != "" {
			s.hub.Broadcast(code, realtime.EventLeaderRoleUpdated, realtime.LeaderPayload{
				UserID: promoted, IsLeader: true, LeaderIDs: room.LeaderIDs(),
			})
		}
		deleteRoom = room.MemberCount() == 0 && !room.IsAdminCreated()
	})
	if opErr != nil {
		return opErr
	}
	s.hub.DisconnectUser(code, userID)
	logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).Info("Admin removed member")
	if deleteRoom && s.store.Delete(code) {
		recordRoomCount(s.store)
		s.hub.CloseRoom(code, "Room closed: last member removed")
		logrus.WithField("room_code", code).Info("Empty room deleted")
	}
	return nil
}

// ImportGPX replaces the room's path with the points of a GPX document.
// On any parse failure the existing path is left untouched.
func (s *AdminService) ImportGPX(code string, raw []byte) (models.PathState, error) {
	code = NormalizeCode(code)
	room, err := s.store.Get(code)
	if err != nil {
		return models.PathState{}, err
	}
	points, err := gpxio.Parse(raw)
	if err != nil {
		return models.PathState{}, err
	}
	var ps models.PathState
	s.hub.Exclusive(code, func() {
		room.ReplacePath(points)
		ps = room.Path()
		s.hub.Broadcast(code, realtime.EventDestinationPathUpdated, realtime.PathPayload{
			RoomCode:  code,
			PathState: ps,
			Message:   fmt.Sprintf("Route imported (%d destinations)", len(points)),
		})
	})
	logrus.WithFields(logrus.Fields{"room_code": code, "points": len(points)}).Info("GPX route imported")
	return ps, nil
}

// IsInvalidGPX reports whether err came from GPX validation.
func IsInvalidGPX(err error) bool {
	return errors.Is(err, gpxio.ErrInvalidGPX)
}
