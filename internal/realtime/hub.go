// Package realtime implements the per-room event channel over WebSockets.
package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"convoy_tracker/internal/metrics"
	"convoy_tracker/internal/store"
)

// Config tunes connection limits and defaults of the hub.
type Config struct {
	HistoryWindow   time.Duration
	MaxMessageBytes int64
	RatePerSecond   float64
	RateBurst       int
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = time.Hour
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 20
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 40
	}
	return c
}

// Hub tracks every connection and which room channel it is subscribed to.
// Mutations of one room and the broadcasts they cause run under that room's
// session lock, so every subscriber sees events in mutation order.
type Hub struct {
	store *store.RoomStore
	cfg   Config

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	locksMu sync.Mutex
	locks   map[string]*roomLock
}

// roomLock is a per-room session lock, dropped once nobody holds or waits
// for it.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewHub(s *store.RoomStore, cfg Config) *Hub {
	return &Hub{
		store:   s,
		cfg:     cfg.withDefaults(),
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		locks:   make(map[string]*roomLock),
	}
}

// Attach registers a freshly upgraded connection and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, addr string) *Client {
	c := newClient(h, conn, addr)
	h.register(c)
	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.ActiveConnections.Inc()
	c.logger().Info("Client connected")
}

// Unregister forgets a closed connection. If it was the user's last
// connection to the room, the member is marked offline and the room told.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()
	metrics.ActiveConnections.Dec()

	h.unbind(c)
	c.closeSend()
	c.logger().Info("Client disconnected")
}

// unbind detaches c from its room and handles the user going offline.
func (h *Hub) unbind(c *Client) {
	code, userID := c.Identity()
	if code == "" {
		return
	}
	h.Exclusive(code, func() {
		h.mu.Lock()
		h.unsubscribeLocked(c)
		remaining := h.userConnCountLocked(code, userID)
		h.mu.Unlock()
		if remaining > 0 {
			return
		}
		room, err := h.store.Get(code)
		if err != nil {
			return
		}
		member, ok := room.GetUser(userID)
		if !ok || !room.MarkOffline(userID) {
			return
		}
		h.broadcast(code, EventUserOffline, PresencePayload{UserID: userID, Name: member.Name}, nil)
		logrus.WithFields(logrus.Fields{
			"room_code": code,
			"user_id":   userID,
		}).Info("Member went offline")
	})
}

func (h *Hub) subscribeLocked(c *Client, code, userID string) {
	subs, ok := h.rooms[code]
	if !ok {
		subs = make(map[*Client]struct{})
		h.rooms[code] = subs
	}
	subs[c] = struct{}{}
	c.roomCode = code
	c.userID = userID
}

func (h *Hub) unsubscribeLocked(c *Client) {
	if subs, ok := h.rooms[c.roomCode]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, c.roomCode)
		}
	}
	c.roomCode = ""
	c.userID = ""
}

func (h *Hub) userConnCountLocked(code, userID string) int {
	n := 0
	for c := range h.rooms[code] {
		if c.userID == userID {
			n++
		}
	}
	return n
}

func (h *Hub) acquire(code string) *roomLock {
	h.locksMu.Lock()
	l, ok := h.locks[code]
	if !ok {
		l = &roomLock{}
		h.locks[code] = l
	}
	l.refs++
	h.locksMu.Unlock()
	l.mu.Lock()
	return l
}

func (h *Hub) release(code string, l *roomLock) {
	l.mu.Unlock()
	h.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(h.locks, code)
	}
	h.locksMu.Unlock()
}

// Exclusive runs fn while holding the session lock of room code. fn must
// not call Exclusive for the same room.
func (h *Hub) Exclusive(code string, fn func()) {
	l := h.acquire(code)
	defer h.release(code, l)
	fn()
}

// Broadcast sends an event to every connection subscribed to room code.
func (h *Hub) Broadcast(code, event string, payload interface{}) {
	h.broadcast(code, event, payload, nil)
}

func (h *Hub) broadcast(code, event string, payload interface{}, except *Client) {
	msg, err := Encode(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode broadcast")
		return
	}
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[code] {
		if c == except {
			continue
		}
		if !c.trySend(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
}

// SendToUser sends an event to every connection of one member.
func (h *Hub) SendToUser(code, userID, event string, payload interface{}) {
	msg, err := Encode(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode message")
		return
	}
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[code] {
		if c.userID == userID && !c.trySend(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
}

func (h *Hub) dropSlow(slow []*Client) {
	for _, c := range slow {
		metrics.DroppedMessages.Inc()
		c.logger().Warn("Client too slow, closing connection")
		c.closeSend()
	}
}

// CloseRoom tells all subscribers the room is gone and drops the channel.
// Connections stay open so clients can join another room.
func (h *Hub) CloseRoom(code, reason string) {
	h.broadcast(code, EventRoomDeleted, RoomDeletedPayload{RoomCode: code, Reason: reason}, nil)
	h.mu.Lock()
	for c := range h.rooms[code] {
		c.roomCode = ""
		c.userID = ""
	}
	delete(h.rooms, code)
	h.mu.Unlock()
	logrus.WithFields(logrus.Fields{"room_code": code, "reason": reason}).Info("Room channel closed")
}

// DisconnectUser closes every connection of a member who was removed from
// the room. No offline notice is sent.
func (h *Hub) DisconnectUser(code, userID string) {
	var conns []*Client
	h.mu.Lock()
	for c := range h.rooms[code] {
		if c.userID == userID {
			conns = append(conns, c)
		}
	}
	for _, c := range conns {
		h.unsubscribeLocked(c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.closeSend()
	}
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers returns the number of connections in room code.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}
