package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"convoy_tracker/internal/export"
	"convoy_tracker/internal/models"
	"convoy_tracker/internal/realtime"
	"convoy_tracker/internal/store"
)

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Exclusive(code string, fn func()) {
	fn()
}

func (m *mockBroadcaster) Broadcast(code, event string, payload interface{}) {
	m.Called(code, event, payload)
}

func (m *mockBroadcaster) CloseRoom(code, reason string) {
	m.Called(code, reason)
}

func (m *mockBroadcaster) DisconnectUser(code, userID string) {
	m.Called(code, userID)
}

// events returns the broadcast event names in call order.
func (m *mockBroadcaster) events() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "Broadcast" {
			out = append(out, c.Arguments.String(1))
		}
	}
	return out
}

func newFixture() (*store.RoomStore, *mockBroadcaster, *RoomService, *AdminService) {
	st := store.New()
	hub := &mockBroadcaster{}
	hub.On("Broadcast", mock.Anything, mock.Anything, mock.Anything).Return()
	hub.On("CloseRoom", mock.Anything, mock.Anything).Return()
	hub.On("DisconnectUser", mock.Anything, mock.Anything).Return()
	return st, hub, NewRoomService(st, hub), NewAdminService(st, hub)
}

func TestCreateRoom_CreatorLeads(t *testing.T) {
	st, _, rooms, _ := newFixture()

	res, err := rooms.CreateRoom(models.MemberProfile{Name: "  Alice "})
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, res.Room.Code)
	assert.Equal(t, []string{res.UserID}, res.Room.LeaderIDs)
	assert.Equal(t, "Alice", res.Room.Users[0].Name)
	assert.True(t, res.Room.Users[0].IsLeader)

	room, err := st.RoomForUser(res.UserID)
	require.NoError(t, err)
	assert.Equal(t, res.Room.Code, room.Code())
}

func TestCreateRoom_RejectsBlankName(t *testing.T) {
	_, _, rooms, _ := newFixture()
	_, err := rooms.CreateRoom(models.MemberProfile{Name: "   "})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestJoinRoom(t *testing.T) {
	st, _, rooms, _ := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	res, err := rooms.JoinRoom(" "+strings.ToLower(created.Room.Code)+" ", models.MemberProfile{Name: "Bob"})
	require.NoError(t, err)
	assert.False(t, res.Reconnected)
	assert.Len(t, res.Room.Users, 2)
	assert.NotContains(t, res.Room.LeaderIDs, res.UserID)

	room, err := st.RoomForUser(res.UserID)
	require.NoError(t, err)
	assert.Equal(t, created.Room.Code, room.Code())
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	_, _, rooms, _ := newFixture()
	_, err := rooms.JoinRoom("NOPE00", models.MemberProfile{Name: "Bob"})
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestJoinRoom_NameHeldByOnlineMember(t *testing.T) {
	_, _, rooms, _ := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	_, err = rooms.JoinRoom(created.Room.Code, models.MemberProfile{Name: "ALICE"})
	assert.ErrorIs(t, err, models.ErrNameTaken)
	assert.Equal(t, models.KindConflict, models.Kind(err))
}

func TestJoinRoom_NameHeldByOfflineMemberResumesIdentity(t *testing.T) {
	st, _, rooms, _ := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	room, err := st.Get(created.Room.Code)
	require.NoError(t, err)
	room.MarkOffline(created.UserID)

	res, err := rooms.JoinRoom(created.Room.Code, models.MemberProfile{Name: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Reconnected)
	assert.Equal(t, created.UserID, res.UserID)
	assert.Equal(t, 1, room.MemberCount())
}

func TestJoinRoom_FirstJoinerOfAdminRoomLeads(t *testing.T) {
	_, hub, rooms, admin := newFixture()
	view, err := admin.CreateRoom("Convoy", nil)
	require.NoError(t, err)
	assert.True(t, view.IsPublic)
	assert.Empty(t, view.LeaderIDs)

	first, err := rooms.JoinRoom(view.Code, models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{first.UserID}, first.Room.LeaderIDs)
	hub.AssertCalled(t, "Broadcast", view.Code, realtime.EventLeaderRoleUpdated, realtime.LeaderPayload{
		UserID: first.UserID, IsLeader: true, LeaderIDs: []string{first.UserID},
	})

	second, err := rooms.JoinRoom(view.Code, models.MemberProfile{Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{first.UserID}, second.Room.LeaderIDs)
}

func TestLeaveRoom_PromotesSuccessor(t *testing.T) {
	_, hub, rooms, _ := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	bob, err := rooms.JoinRoom(created.Room.Code, models.MemberProfile{Name: "Bob"})
	require.NoError(t, err)

	require.NoError(t, rooms.LeaveRoom(created.Room.Code, created.UserID))

	assert.Equal(t, []string{realtime.EventUserLeft, realtime.EventLeaderRoleUpdated}, hub.events())
	hub.AssertCalled(t, "DisconnectUser", created.Room.Code, created.UserID)
	hub.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)

	view, err := rooms.GetRoom(created.Room.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.UserID}, view.LeaderIDs)
}

func TestLeaveRoom_LastMemberDeletesRoom(t *testing.T) {
	st, hub, rooms, _ := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, rooms.LeaveRoom(created.Room.Code, created.UserID))

	hub.AssertCalled(t, "CloseRoom", created.Room.Code, "Room closed: last member left")
	_, err = st.Get(created.Room.Code)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	_, err = st.RoomForUser(created.UserID)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestLeaveRoom_AdminRoomSurvivesEmpty(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	view, err := admin.CreateRoom("Convoy", nil)
	require.NoError(t, err)
	joined, err := rooms.JoinRoom(view.Code, models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, rooms.LeaveRoom(view.Code, joined.UserID))

	hub.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
	_, err = st.Get(view.Code)
	assert.NoError(t, err)
}

func TestLeaveRoom_Errors(t *testing.T) {
	_, _, rooms, _ := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	assert.ErrorIs(t, rooms.LeaveRoom(created.Room.Code, ""), models.ErrInvalidArgument)
	assert.ErrorIs(t, rooms.LeaveRoom(created.Room.Code, "ghost"), models.ErrUserNotFound)
	assert.ErrorIs(t, rooms.LeaveRoom("NOPE00", created.UserID), models.ErrRoomNotFound)
}

func TestExportPath(t *testing.T) {
	st, _, rooms, _ := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	room, err := st.Get(created.Room.Code)
	require.NoError(t, err)
	room.AddDestinationToPath(models.PointInput{Lat: 1, Lng: 2, Note: "A"})

	doc, err := rooms.ExportPath(created.Room.Code, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "route-"+created.Room.Code+".csv", doc.Filename)
	assert.Contains(t, string(doc.Body), "A")

	_, err = rooms.ExportPath("NOPE00", export.FormatJSON)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestAdmin_ListAndPublicRooms(t *testing.T) {
	_, _, rooms, admin := newFixture()
	private := false
	_, err := admin.CreateRoom("Hidden", &private)
	require.NoError(t, err)
	public, err := admin.CreateRoom("Open", nil)
	require.NoError(t, err)
	_, err = rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	assert.Len(t, admin.ListRooms(), 3)
	listed := admin.PublicRooms()
	require.Len(t, listed, 1)
	assert.Equal(t, public.Code, listed[0].Code)
	assert.Equal(t, "Open", listed[0].RoomName)
}

func TestAdmin_UpdateAndDeleteOnlyAdminRooms(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	userRoom, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	name := "Renamed"

	_, err = admin.UpdateRoom(userRoom.Room.Code, &name, nil)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	assert.ErrorIs(t, admin.DeleteRoom(userRoom.Room.Code), models.ErrRoomNotFound)

	view, err := admin.CreateRoom("Convoy", nil)
	require.NoError(t, err)
	hidden := false
	updated, err := admin.UpdateRoom(view.Code, &name, &hidden)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.RoomName)
	assert.False(t, updated.IsPublic)

	require.NoError(t, admin.DeleteRoom(view.Code))
	hub.AssertCalled(t, "CloseRoom", view.Code, "Room deleted by administrator")
	_, err = st.Get(view.Code)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestAdmin_AssignLeader(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	view, err := admin.CreateRoom("Convoy", nil)
	require.NoError(t, err)

	res, err := admin.AssignLeader(view.Code, models.MemberProfile{Name: "Guide"})
	require.NoError(t, err)
	assert.Equal(t, []string{res.UserID}, res.Room.LeaderIDs)
	assert.Equal(t, []string{realtime.EventUserJoined, realtime.EventLeaderRoleUpdated}, hub.events())

	room, err := st.Get(view.Code)
	require.NoError(t, err)
	member, ok := room.GetUser(res.UserID)
	require.True(t, ok)
	assert.False(t, member.Online)

	// The guide later joins by name and resumes the leader identity.
	joined, err := rooms.JoinRoom(view.Code, models.MemberProfile{Name: "guide"})
	require.NoError(t, err)
	assert.True(t, joined.Reconnected)
	assert.Equal(t, res.UserID, joined.UserID)
}

func TestAdmin_AssignLeaderPromotesExistingMember(t *testing.T) {
	_, _, rooms, admin := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	bob, err := rooms.JoinRoom(created.Room.Code, models.MemberProfile{Name: "Bob"})
	require.NoError(t, err)

	res, err := admin.AssignLeader(created.Room.Code, models.MemberProfile{Name: "bob"})
	require.NoError(t, err)
	assert.Equal(t, bob.UserID, res.UserID)
	assert.Equal(t, []string{created.UserID, bob.UserID}, res.Room.LeaderIDs)
	assert.Len(t, res.Room.Users, 2)
}

func TestAdmin_RemoveLeader(t *testing.T) {
	_, _, rooms, admin := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	bob, err := rooms.JoinRoom(created.Room.Code, models.MemberProfile{Name: "Bob"})
	require.NoError(t, err)

	err = admin.RemoveLeader(created.Room.Code, created.UserID)
	assert.ErrorIs(t, err, models.ErrLastLeader)
	assert.ErrorIs(t, admin.RemoveLeader(created.Room.Code, bob.UserID), models.ErrInvalidArgument)
	assert.ErrorIs(t, admin.RemoveLeader(created.Room.Code, "ghost"), models.ErrUserNotFound)

	_, err = admin.AssignLeader(created.Room.Code, models.MemberProfile{Name: "Bob"})
	require.NoError(t, err)
	require.NoError(t, admin.RemoveLeader(created.Room.Code, created.UserID))

	view, err := admin.GetRoom(created.Room.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.UserID}, view.LeaderIDs)
}

func TestAdmin_RemoveUser(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	bob, err := rooms.JoinRoom(created.Room.Code, models.MemberProfile{Name: "Bob"})
	require.NoError(t, err)

	require.NoError(t, admin.RemoveUser(created.Room.Code, created.UserID))

	hub.AssertCalled(t, "Broadcast", created.Room.Code, realtime.EventUserLeft, realtime.PresencePayload{
		UserID: created.UserID, Name: "Alice", Removed: true,
	})
	hub.AssertCalled(t, "DisconnectUser", created.Room.Code, created.UserID)
	view, err := admin.GetRoom(created.Room.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.UserID}, view.LeaderIDs)
	_, err = st.RoomForUser(created.UserID)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	assert.ErrorIs(t, admin.RemoveUser(created.Room.Code, "ghost"), models.ErrUserNotFound)
}

func TestAdmin_RemoveLastMemberDeletesUserRoom(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, admin.RemoveUser(created.Room.Code, created.UserID))

	hub.AssertCalled(t, "CloseRoom", created.Room.Code, "Room closed: last member removed")
	_, err = st.Get(created.Room.Code)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	assert.Zero(t, st.Count())
}

func TestAdmin_RemoveLastMemberKeepsAdminRoom(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	view, err := admin.CreateRoom("Convoy", nil)
	require.NoError(t, err)
	joined, err := rooms.JoinRoom(view.Code, models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, admin.RemoveUser(view.Code, joined.UserID))

	hub.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
	_, err = st.Get(view.Code)
	assert.NoError(t, err)
}

const importDoc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <rte>
    <rtept lat="1" lon="2"><name>Start</name></rtept>
    <rtept lat="3" lon="4"></rtept>
  </rte>
</gpx>`

func TestAdmin_ImportGPX(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	room, err := st.Get(created.Room.Code)
	require.NoError(t, err)
	room.AddDestinationToPath(models.PointInput{Lat: 50, Lng: 50})
	room.AddDestinationToPath(models.PointInput{Lat: 51, Lng: 51})
	require.NoError(t, room.SetCurrentDestinationIndex(1))

	ps, err := admin.ImportGPX(created.Room.Code, []byte(importDoc))
	require.NoError(t, err)
	require.Len(t, ps.DestinationPath, 2)
	assert.Equal(t, "Start", ps.DestinationPath[0].Note)
	assert.Equal(t, 0, ps.CurrentDestinationIndex)
	hub.AssertCalled(t, "Broadcast", created.Room.Code, realtime.EventDestinationPathUpdated, realtime.PathPayload{
		RoomCode:  created.Room.Code,
		PathState: ps,
		Message:   "Route imported (2 destinations)",
	})
}

func TestAdmin_ImportGPXKeepsPathOnError(t *testing.T) {
	st, hub, rooms, admin := newFixture()
	created, err := rooms.CreateRoom(models.MemberProfile{Name: "Alice"})
	require.NoError(t, err)
	room, err := st.Get(created.Room.Code)
	require.NoError(t, err)
	room.AddDestinationToPath(models.PointInput{Lat: 50, Lng: 50})

	_, err = admin.ImportGPX(created.Room.Code, []byte("<kml/>"))
	assert.True(t, IsInvalidGPX(err))
	assert.Len(t, room.Path().DestinationPath, 1)
	assert.Empty(t, hub.events())
}
