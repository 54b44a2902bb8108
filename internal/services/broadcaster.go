// Package services holds the session gateway: room creation, joining,
// leaving and administration on top of the room store, announcing every
// change on the room's real-time channel.
package services

import (
	"errors"
	"fmt"

	"convoy_tracker/internal/metrics"
	"convoy_tracker/internal/models"
	"convoy_tracker/internal/store"
)

// Broadcaster is the part of the real-time hub the gateway needs.
type Broadcaster interface {
	Exclusive(code string, fn func())
	Broadcast(code, event string, payload interface{})
	CloseRoom(code, reason string)
	DisconnectUser(code, userID string)
}

const maxCodeAttempts = 10

// createWithUniqueCode retries code generation until the store accepts one.
func createWithUniqueCode(st *store.RoomStore, opts models.RoomOptions) (*models.Room, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := store.GenerateCode()
		if err != nil {
			return nil, err
		}
		room, err := st.Create(code, opts)
		if errors.Is(err, models.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recordRoomCount(st)
		return room, nil
	}
	return nil, fmt.Errorf("could not allocate a unique room code after %d attempts", maxCodeAttempts)
}

func recordRoomCount(st *store.RoomStore) {
	metrics.ActiveRooms.Set(float64(st.Count()))
}
