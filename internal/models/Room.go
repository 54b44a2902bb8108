package models

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// RoomOptions configures a new Room. LeaderID may be empty for rooms
// created by an administrator.
type RoomOptions struct {
	RoomName       string
	IsPublic       bool
	IsAdminCreated bool
	LeaderID       string
	Leader         MemberProfile
	Clock          func() time.Time
}

// Room is the authoritative state of one session: membership, leadership,
// live locations and the shared destination path. All methods are safe
// for concurrent use; each call is atomic with respect to the others.
type Room struct {
	mu sync.Mutex

	code           string
	roomName       string
	isPublic       bool
	isAdminCreated bool

	leaderIDs    map[string]struct{}
	users        map[string]*Member
	joinOrder    []string
	locations    map[string]Location
	history      map[string][]Location
	destinations map[string]Destination

	path         []DestinationPoint
	currentIndex int

	createdAt    time.Time
	lastActivity time.Time
	now          func() time.Time
}

// NewRoom builds a room. When opts.LeaderID is set the leader is added as
// an online member.
func NewRoom(code string, opts RoomOptions) *Room {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	name := strings.TrimSpace(opts.RoomName)
	if name == "" {
		name = "Room " + code
	}
	r := &Room{
		code:           code,
		roomName:       name,
		isPublic:       opts.IsPublic,
		isAdminCreated: opts.IsAdminCreated,
		leaderIDs:      make(map[string]struct{}),
		users:          make(map[string]*Member),
		locations:      make(map[string]Location),
		history:        make(map[string][]Location),
		destinations:   make(map[string]Destination),
		createdAt:      now,
		lastActivity:   now,
		now:            clock,
	}
	if opts.LeaderID != "" {
		r.insertUser(opts.LeaderID, opts.Leader, now)
		r.leaderIDs[opts.LeaderID] = struct{}{}
	}
	return r
}

// Code returns the room's join code.
func (r *Room) Code() string { return r.code }

func (r *Room) IsAdminCreated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isAdminCreated
}

func (r *Room) IsPublic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isPublic
}

// UpdateMetadata changes the room name and visibility. Nil values are kept.
func (r *Room) UpdateMetadata(roomName *string, isPublic *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if roomName != nil && strings.TrimSpace(*roomName) != "" {
		r.roomName = strings.TrimSpace(*roomName)
	}
	if isPublic != nil {
		r.isPublic = *isPublic
	}
	r.touch()
}

func (r *Room) touch() {
	r.lastActivity = r.now()
}

func (r *Room) insertUser(id string, p MemberProfile, now time.Time) {
	r.users[id] = &Member{
		Name:     p.Name,
		Color:    p.Color,
		Icon:     p.Icon,
		Online:   true,
		JoinedAt: now,
		LastSeen: now,
	}
	r.joinOrder = append(r.joinOrder, id)
	r.history[id] = nil
}

// AddUser inserts an online member.
func (r *Room) AddUser(id string, p MemberProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; ok {
		return fmt.Errorf("%w: %s", ErrUserExists, id)
	}
	now := r.now()
	r.insertUser(id, p, now)
	r.lastActivity = now
	return nil
}

// RemoveUser deletes a member and all data keyed by it. If the member was
// the only leader and others remain, the earliest-joined remaining member
// is promoted and its id returned as promoted.
func (r *Room) RemoveUser(id string) (removed bool, promoted string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false, ""
	}
	delete(r.users, id)
	delete(r.locations, id)
	delete(r.history, id)
	delete(r.destinations, id)
	for i, uid := range r.joinOrder {
		if uid == id {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
	if _, wasLeader := r.leaderIDs[id]; wasLeader {
		delete(r.leaderIDs, id)
		if len(r.leaderIDs) == 0 && len(r.joinOrder) > 0 {
			promoted = r.joinOrder[0]
			r.leaderIDs[promoted] = struct{}{}
		}
	}
	r.touch()
	return true, promoted
}

// MarkOffline flags a member as disconnected, keeping all its data.
func (r *Room) MarkOffline(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.users[id]
	if !ok {
		return false
	}
	now := r.now()
	m.Online = false
	m.LastSeen = now
	r.lastActivity = now
	return true
}

// Reconnect flags a known member as online again.
func (r *Room) Reconnect(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.users[id]
	if !ok {
		return false
	}
	now := r.now()
	m.Online = true
	m.LastSeen = now
	r.lastActivity = now
	return true
}

// GetUser returns a copy of the member record.
func (r *Room) GetUser(id string) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.users[id]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// FindByName returns the member whose display name matches name,
// ignoring case and surrounding whitespace.
func (r *Room) FindByName(name string) (string, Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.joinOrder {
		if m := r.users[id]; sameName(m.Name, name) {
			return id, *m, true
		}
	}
	return "", Member{}, false
}

func (r *Room) IsLeader(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.leaderIDs[id]
	return ok
}

func (r *Room) LeaderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leaderIDs)
}

// AddLeader grants leadership to an existing member.
func (r *Room) AddLeader(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	r.leaderIDs[id] = struct{}{}
	r.touch()
	return nil
}

// RemoveLeader revokes leadership. The last leader cannot be removed.
func (r *Room) RemoveLeader(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leaderIDs[id]; !ok {
		if _, member := r.users[id]; !member {
			return fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return nil
	}
	if len(r.leaderIDs) == 1 {
		return ErrLastLeader
	}
	delete(r.leaderIDs, id)
	r.touch()
	return nil
}

// LeaderIDs returns the leaders in join order.
func (r *Room) LeaderIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaderList()
}

func (r *Room) leaderList() []string {
	ids := make([]string, 0, len(r.leaderIDs))
	for _, id := range r.joinOrder {
		if _, ok := r.leaderIDs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// MemberIDs returns every member id in join order.
func (r *Room) MemberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.joinOrder...)
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Room) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineCount()
}

func (r *Room) onlineCount() int {
	n := 0
	for _, m := range r.users {
		if m.Online {
			n++
		}
	}
	return n
}

// UpdateLocation records loc as the member's current position and appends
// it to the bounded history. It does not count as room activity.
func (r *Room) UpdateLocation(id string, loc Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.users[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = r.now()
	}
	r.locations[id] = loc
	h := append(r.history[id], loc)
	if len(h) > HistoryCapacity {
		h = append([]Location(nil), h[len(h)-HistoryCapacity:]...)
	}
	r.history[id] = h
	m.LastSeen = loc.Timestamp
	return nil
}

// GetLocation returns the member's latest location.
func (r *Room) GetLocation(id string) (Location, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	return loc, ok
}

// LocationHistory returns the member's locations newer than now-window,
// oldest first.
func (r *Room) LocationHistory(id string, window time.Duration) []Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-window)
	h := r.history[id]
	for i, loc := range h {
		if loc.Timestamp.After(cutoff) {
			return append([]Location(nil), h[i:]...)
		}
	}
	return []Location{}
}

// SetDestination assigns an ad hoc destination to a member.
func (r *Room) SetDestination(id string, d Destination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if d.AssignedAt.IsZero() {
		d.AssignedAt = r.now()
	}
	r.destinations[id] = d
	r.touch()
	return nil
}

// RemoveDestination clears a member's ad hoc destination.
func (r *Room) RemoveDestination(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.destinations[id]; !ok {
		return false
	}
	delete(r.destinations, id)
	r.touch()
	return true
}

// AddDestinationToPath appends a point and makes it the current one.
// It returns the new point's index.
func (r *Room) AddDestinationToPath(p PointInput) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.path = append(r.path, newPoint(p, len(r.path), now))
	r.currentIndex = len(r.path) - 1
	r.lastActivity = now
	return r.currentIndex
}

// ReplacePath clears the path, appends points in order and points the
// current index at the first one.
func (r *Room) ReplacePath(points []PointInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.path = make([]DestinationPoint, 0, len(points))
	for i, p := range points {
		r.path = append(r.path, newPoint(p, i, now))
	}
	r.currentIndex = 0
	r.lastActivity = now
}

func newPoint(p PointInput, order int, now time.Time) DestinationPoint {
	return DestinationPoint{
		Lat:     p.Lat,
		Lng:     p.Lng,
		Note:    strings.TrimSpace(p.Note),
		Color:   p.Color,
		Size:    p.Size,
		AddedAt: now,
		Order:   order,
	}
}

func (r *Room) checkIndex(index int) error {
	if index < 0 || index >= len(r.path) {
		return fmt.Errorf("%w: destination index %d out of range", ErrInvalidArgument, index)
	}
	return nil
}

// UpdateDestinationInPath merges patch into the point at index.
func (r *Room) UpdateDestinationInPath(index int, patch PointPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIndex(index); err != nil {
		return err
	}
	now := r.now()
	patch.applyTo(&r.path[index], now)
	r.lastActivity = now
	return nil
}

// RemoveDestinationFromPath deletes the point at index, renumbers the
// following points and clamps the current index.
func (r *Room) RemoveDestinationFromPath(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIndex(index); err != nil {
		return err
	}
	r.path = append(r.path[:index], r.path[index+1:]...)
	for i := index; i < len(r.path); i++ {
		r.path[i].Order = i
	}
	r.clampIndex()
	r.touch()
	return nil
}

func (r *Room) clampIndex() {
	switch {
	case len(r.path) == 0:
		r.currentIndex = 0
	case r.currentIndex > len(r.path)-1:
		r.currentIndex = len(r.path) - 1
	case r.currentIndex < 0:
		r.currentIndex = 0
	}
}

// ClearDestinationPath empties the path and resets the current index.
func (r *Room) ClearDestinationPath() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = nil
	r.currentIndex = 0
	r.touch()
}

// SetCurrentDestinationIndex moves the active pointer.
func (r *Room) SetCurrentDestinationIndex(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIndex(index); err != nil {
		return err
	}
	r.currentIndex = index
	r.touch()
	return nil
}

// Path returns a copy of the path and its pointer.
func (r *Room) Path() PathState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pathState()
}

func (r *Room) pathState() PathState {
	ps := PathState{
		DestinationPath:         append([]DestinationPoint{}, r.path...),
		CurrentDestinationIndex: r.currentIndex,
	}
	if r.currentIndex < len(ps.DestinationPath) {
		cur := ps.DestinationPath[r.currentIndex]
		ps.CurrentDestination = &cur
	}
	return ps
}

// LastActivity returns the time of the last non-location mutation.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// ShouldReap reports whether nobody is online and the room has been idle
// for longer than inactivity.
func (r *Room) ShouldReap(inactivity time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineCount() == 0 && r.now().Sub(r.lastActivity) > inactivity
}

// RoomView is the full room snapshot sent to clients.
type RoomView struct {
	Code                    string             `json:"code"`
	RoomName                string             `json:"roomName"`
	IsPublic                bool               `json:"isPublic"`
	IsAdminCreated          bool               `json:"isAdminCreated"`
	LeaderIDs               []string           `json:"leaderIds"`
	Users                   []MemberView       `json:"users"`
	DestinationPath         []DestinationPoint `json:"destinationPath"`
	CurrentDestinationIndex int                `json:"currentDestinationIndex"`
	CreatedAt               time.Time          `json:"createdAt"`
	LastActivity            time.Time          `json:"lastActivity"`
}

// Snapshot copies the whole room state. isLeader is derived from the
// leader set here and nowhere else.
func (r *Room) Snapshot() RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]MemberView, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		users = append(users, r.memberView(id))
	}
	ps := r.pathState()
	return RoomView{
		Code:                    r.code,
		RoomName:                r.roomName,
		IsPublic:                r.isPublic,
		IsAdminCreated:          r.isAdminCreated,
		LeaderIDs:               r.leaderList(),
		Users:                   users,
		DestinationPath:         ps.DestinationPath,
		CurrentDestinationIndex: ps.CurrentDestinationIndex,
		CreatedAt:               r.createdAt,
		LastActivity:            r.lastActivity,
	}
}

// MemberView returns the client view of one member.
func (r *Room) MemberView(id string) (MemberView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return MemberView{}, false
	}
	return r.memberView(id), true
}

func (r *Room) memberView(id string) MemberView {
	_, leader := r.leaderIDs[id]
	v := MemberView{ID: id, Member: *r.users[id], IsLeader: leader}
	if loc, ok := r.locations[id]; ok {
		v.Location = &loc
	}
	if d, ok := r.destinations[id]; ok {
		v.Destination = &d
	}
	return v
}

// RoomSummary is the short listing form of a room.
type RoomSummary struct {
	Code           string    `json:"code"`
	RoomName       string    `json:"roomName"`
	IsPublic       bool      `json:"isPublic"`
	IsAdminCreated bool      `json:"isAdminCreated"`
	MemberCount    int       `json:"memberCount"`
	OnlineCount    int       `json:"onlineCount"`
	LeaderCount    int       `json:"leaderCount"`
	PathLength     int       `json:"pathLength"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivity   time.Time `json:"lastActivity"`
}

func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomSummary{
		Code:           r.code,
		RoomName:       r.roomName,
		IsPublic:       r.isPublic,
		IsAdminCreated: r.isAdminCreated,
		MemberCount:    len(r.users),
		OnlineCount:    r.onlineCount(),
		LeaderCount:    len(r.leaderIDs),
		PathLength:     len(r.path),
		CreatedAt:      r.createdAt,
		LastActivity:   r.lastActivity,
	}
}
