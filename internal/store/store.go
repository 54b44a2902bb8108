// Package store keeps every live room in process memory, together with an
// index from user id to the room the user belongs to.
package store

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"convoy_tracker/internal/models"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// RoomStore is the process-wide room registry.
type RoomStore struct {
	mu        sync.RWMutex
	rooms     map[string]*models.Room
	userRooms map[string]string
	clock     func() time.Time
}

// Option configures a RoomStore.
type Option func(*RoomStore)

// WithClock makes rooms created by the store use clock instead of time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *RoomStore) { s.clock = clock }
}

func New(opts ...Option) *RoomStore {
	s := &RoomStore{
		rooms:     make(map[string]*models.Room),
		userRooms: make(map[string]string),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCode returns a random room code such as "K3X9QA".
func GenerateCode() (string, error) {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Create registers a new room under code. The initial leader, if any, is
// indexed to the room.
func (s *RoomStore) Create(code string, opts models.RoomOptions) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[code]; exists {
		return nil, fmt.Errorf("%w: %s", models.ErrDuplicateCode, code)
	}
	if opts.Clock == nil {
		opts.Clock = s.clock
	}
	room := models.NewRoom(code, opts)
	s.rooms[code] = room
	if opts.LeaderID != "" {
		s.userRooms[opts.LeaderID] = code
	}
	return room, nil
}

// Get looks a room up by code.
func (s *RoomStore) Get(code string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRoomNotFound, code)
	}
	return room, nil
}

// Delete removes the room and every index entry pointing at it. It reports
// whether the room existed.
func (s *RoomStore) Delete(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return false
	}
	delete(s.rooms, code)
	for userID, roomCode := range s.userRooms {
		if roomCode == code {
			delete(s.userRooms, userID)
		}
	}
	return true
}

// MapUserToRoom records that userID belongs to the room with code.
func (s *RoomStore) MapUserToRoom(userID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return fmt.Errorf("%w: %s", models.ErrRoomNotFound, code)
	}
	s.userRooms[userID] = code
	return nil
}

func (s *RoomStore) UnmapUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userRooms, userID)
}

// RoomForUser finds the room a user currently belongs to.
func (s *RoomStore) RoomForUser(userID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.userRooms[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not in any room", models.ErrUserNotFound, userID)
	}
	room, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRoomNotFound, code)
	}
	return room, nil
}

// Codes returns a sorted snapshot of all room codes.
func (s *RoomStore) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// List returns the rooms accepted by keep, ordered by code. A nil keep
// accepts every room.
func (s *RoomStore) List(keep func(*models.Room) bool) []*models.Room {
	s.mu.RLock()
	rooms := make([]*models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.RUnlock()

	out := rooms[:0]
	for _, room := range rooms {
		if keep == nil || keep(room) {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

func (s *RoomStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
