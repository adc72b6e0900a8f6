package room

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagetimer/internal/models"
)

// mockBroadcaster records emissions. Like the real hub it serializes event
// data immediately, so assertions see the state as it was at emission time.
type mockBroadcaster struct {
	mu         sync.Mutex
	roomEvents []recordedEvent
	connEvents []recordedEvent
	joined     []string
	left       []string
	closed     []string
}

type recordedEvent struct {
	target string // room id or connection id
	name   string
	data   []byte
}

func (m *mockBroadcaster) JoinRoom(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = append(m.joined, connID)
}

func (m *mockBroadcaster) LeaveRoom(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.left = append(m.left, connID)
}

func (m *mockBroadcaster) CloseRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, roomID)
}

func (m *mockBroadcaster) ToRoom(roomID string, e Event) {
	data, _ := json.Marshal(e.Data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomEvents = append(m.roomEvents, recordedEvent{target: roomID, name: e.Name, data: data})
}

func (m *mockBroadcaster) ToConnection(connID string, e Event) {
	data, _ := json.Marshal(e.Data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connEvents = append(m.connEvents, recordedEvent{target: connID, name: e.Name, data: data})
}

func (m *mockBroadcaster) roomEventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roomEvents)
}

func (m *mockBroadcaster) lastRoomEvent(t *testing.T) recordedEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.roomEvents)
	return m.roomEvents[len(m.roomEvents)-1]
}

func (m *mockBroadcaster) lastConnEvent(t *testing.T) recordedEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.connEvents)
	return m.connEvents[len(m.connEvents)-1]
}

func decodeSnapshot(t *testing.T, e recordedEvent) *models.RoomState {
	t.Helper()
	require.Equal(t, models.EventRoomState, e.name)
	var payload models.RoomStatePayload
	require.NoError(t, json.Unmarshal(e.data, &payload))
	return payload.RoomState
}

func newTestService(t *testing.T) (*Service, *mockBroadcaster, *clockwork.FakeClock) {
	t.Helper()
	bc := &mockBroadcaster{}
	clock := clockwork.NewFakeClock()
	svc := NewService(NewRegistry(), bc, clock)
	require.NoError(t, svc.CreateRoom("room1", "admin1"))
	return svc, bc, clock
}

func addedTimerID(t *testing.T, bc *mockBroadcaster) string {
	t.Helper()
	e := bc.lastRoomEvent(t)
	require.Equal(t, models.EventTimerAdded, e.name)
	var payload models.TimerAddedPayload
	require.NoError(t, json.Unmarshal(e.data, &payload))
	return payload.Timer.ID
}

func TestCreateRoomAlreadyExists(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.CreateRoom("room1", "someone-else")
	require.ErrorIs(t, err, ErrRoomExists)
}

func TestViewerCannotMutate(t *testing.T) {
	svc, bc, _ := newTestService(t)

	err := svc.AddTimer("room1", models.RoleViewer, "Round 1", 600, nil)
	require.ErrorIs(t, err, ErrForbidden)

	// failed command produces no broadcast and no state change
	assert.Zero(t, bc.roomEventCount())
	rm, getErr := svc.registry.Get("room1")
	require.NoError(t, getErr)
	assert.Empty(t, rm.state.Timers)
}

func TestCommandOnUnknownRoom(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.AddTimer("ghost", models.RoleAdmin, "Round 1", 600, nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, svc.RoomExists("ghost"))
}

func TestCommandOnClosedRoomReportsNotFound(t *testing.T) {
	svc, bc, _ := newTestService(t)
	svc.CloseRoom("room1")

	// NotFound wins over the role gate, so stale viewers get evicted too
	err := svc.AddTimer("room1", models.RoleViewer, "Round 1", 600, nil)
	require.ErrorIs(t, err, ErrNotFound)
	err = svc.AddTimer("room1", models.RoleAdmin, "Round 1", 600, nil)
	require.ErrorIs(t, err, ErrNotFound)

	// teardown also cleared the broadcaster's room index
	assert.Equal(t, []string{"room1"}, bc.closed)
}

func TestJoinAdminIdentityCheck(t *testing.T) {
	svc, bc, _ := newTestService(t)

	err := svc.Join("c1", "room1", models.RoleAdmin, "impostor", "")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, bc.roomEventCount())

	err = svc.Join("c1", "room1", models.RoleAdmin, "", "")
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Join("c1", "room1", models.RoleAdmin, "admin1", ""))
	snap := decodeSnapshot(t, bc.lastConnEvent(t))
	assert.True(t, snap.AdminOnline)
	assert.Zero(t, snap.ClientCount)
}

func TestViewerJoinPresence(t *testing.T) {
	svc, bc, _ := newTestService(t)
	require.NoError(t, svc.Join("admin-conn", "room1", models.RoleAdmin, "admin1", ""))

	require.NoError(t, svc.Join("viewer-conn", "room1", models.RoleViewer, "", "Alice"))

	// the viewer count excludes the admin connection
	snap := decodeSnapshot(t, bc.lastConnEvent(t))
	assert.Equal(t, "viewer-conn", bc.lastConnEvent(t).target)
	assert.Equal(t, 1, snap.ClientCount)
	require.Len(t, snap.ConnectedClients, 1)
	assert.Equal(t, "Alice", snap.ConnectedClients[0].DisplayName)
	assert.True(t, snap.AdminOnline)

	// everyone already in the room saw a presence broadcast
	presence := decodeSnapshot(t, bc.lastRoomEvent(t))
	assert.Equal(t, 1, presence.ClientCount)
}

func TestJoinReceivesFullSnapshot(t *testing.T) {
	svc, bc, _ := newTestService(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AddTimer("room1", models.RoleAdmin, "Round", 600, nil))
	}
	require.NoError(t, svc.CreateMessage("room1", models.RoleAdmin))
	require.NoError(t, svc.CreateMessage("room1", models.RoleAdmin))

	e := bc.lastRoomEvent(t)
	var msgPayload models.MessagesUpdatedPayload
	require.NoError(t, json.Unmarshal(e.data, &msgPayload))
	msgID := msgPayload.Messages[0].ID

	require.NoError(t, svc.UpdateMessage("room1", models.RoleAdmin, msgID, "hello", models.MessageStyles{Color: "#00FF00"}))
	require.NoError(t, svc.ToggleActive("room1", models.RoleAdmin, msgID))
	require.NoError(t, svc.ToggleFlicker("room1", models.RoleAdmin, true))

	// a late joiner sees the result of all ten commands, never a partial view
	require.NoError(t, svc.Join("late", "room1", models.RoleViewer, "", ""))
	snap := decodeSnapshot(t, bc.lastConnEvent(t))
	assert.Len(t, snap.Timers, 5)
	assert.Len(t, snap.Messages, 2)
	require.NotNil(t, snap.ActiveMessageID)
	assert.Equal(t, msgID, *snap.ActiveMessageID)
	assert.Equal(t, "hello", snap.Messages[0].Text)
	assert.True(t, snap.Flickering)
}

func TestRejoinDoesNotDuplicatePresence(t *testing.T) {
	svc, bc, _ := newTestService(t)
	require.NoError(t, svc.Join("v1", "room1", models.RoleViewer, "", "Alice"))

	// re-joining the same room is a snapshot refresh, not a second member
	require.NoError(t, svc.Join("v1", "room1", models.RoleViewer, "", "Alice"))
	snap := decodeSnapshot(t, bc.lastConnEvent(t))
	assert.Equal(t, 1, snap.ClientCount)
	require.Len(t, snap.ConnectedClients, 1)

	// a rejoin may carry a new display name; the entry is replaced
	require.NoError(t, svc.Join("v1", "room1", models.RoleViewer, "", "Alicia"))
	snap = decodeSnapshot(t, bc.lastConnEvent(t))
	require.Len(t, snap.ConnectedClients, 1)
	assert.Equal(t, "Alicia", snap.ConnectedClients[0].DisplayName)

	require.NoError(t, svc.Join("a1", "room1", models.RoleAdmin, "admin1", ""))
	require.NoError(t, svc.Join("a1", "room1", models.RoleAdmin, "admin1", ""))
	snap = decodeSnapshot(t, bc.lastConnEvent(t))
	assert.True(t, snap.AdminOnline)
	assert.Equal(t, 1, snap.ClientCount)

	// one leave per connection is enough after any number of rejoins
	svc.Leave("v1", "room1")
	svc.Leave("a1", "room1")
	rm, err := svc.registry.Get("room1")
	require.NoError(t, err)
	assert.Empty(t, rm.state.ConnectedClients)
	assert.False(t, rm.state.AdminOnline)
}

func TestLeaveIsIdempotent(t *testing.T) {
	svc, bc, _ := newTestService(t)
	require.NoError(t, svc.Join("v1", "room1", models.RoleViewer, "", "Bob"))
	before := bc.roomEventCount()

	svc.Leave("v1", "room1")
	afterFirst := bc.roomEventCount()
	assert.Equal(t, before+1, afterFirst)

	snap := decodeSnapshot(t, bc.lastRoomEvent(t))
	assert.Zero(t, snap.ClientCount)
	assert.Empty(t, snap.ConnectedClients)

	// second leave: no broadcast, no error
	svc.Leave("v1", "room1")
	assert.Equal(t, afterFirst, bc.roomEventCount())

	// leaving a deleted room is safe too
	svc.CloseRoom("room1")
	svc.Leave("v1", "room1")
}

func TestAdminOnlineTracksAdminConnections(t *testing.T) {
	svc, _, _ := newTestService(t)
	require.NoError(t, svc.Join("a1", "room1", models.RoleAdmin, "admin1", ""))
	require.NoError(t, svc.Join("a2", "room1", models.RoleAdmin, "admin1", ""))

	rm, err := svc.registry.Get("room1")
	require.NoError(t, err)

	svc.Leave("a1", "room1")
	assert.True(t, rm.state.AdminOnline)

	svc.Leave("a2", "room1")
	assert.False(t, rm.state.AdminOnline)
}

func TestFlickerAutoRevert(t *testing.T) {
	svc, _, clock := newTestService(t)
	rm, err := svc.registry.Get("room1")
	require.NoError(t, err)

	require.NoError(t, svc.ToggleFlicker("room1", models.RoleAdmin, true))
	assert.True(t, roomFlickering(rm))

	clock.Advance(flickerWindow - time.Second)
	assert.True(t, roomFlickering(rm))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return !roomFlickering(rm) }, time.Second, time.Millisecond)
}

func TestFlickerDoubleToggleSingleRevert(t *testing.T) {
	svc, _, clock := newTestService(t)
	rm, err := svc.registry.Get("room1")
	require.NoError(t, err)

	require.NoError(t, svc.ToggleFlicker("room1", models.RoleAdmin, true))
	clock.Advance(3 * time.Second)

	// second toggle inside the window supersedes the pending revert
	require.NoError(t, svc.ToggleFlicker("room1", models.RoleAdmin, true))

	// five seconds after the *first* toggle: still flickering
	clock.Advance(2 * time.Second)
	assert.True(t, roomFlickering(rm))

	// five seconds after the second toggle: reverted
	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return !roomFlickering(rm) }, time.Second, time.Millisecond)
}

func TestFlickerExplicitOffCancelsRevert(t *testing.T) {
	svc, bc, clock := newTestService(t)
	rm, err := svc.registry.Get("room1")
	require.NoError(t, err)

	require.NoError(t, svc.ToggleFlicker("room1", models.RoleAdmin, true))
	require.NoError(t, svc.ToggleFlicker("room1", models.RoleAdmin, false))
	count := bc.roomEventCount()

	// no stale revert fires later
	clock.Advance(2 * flickerWindow)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, roomFlickering(rm))
	assert.Equal(t, count, bc.roomEventCount())
}

func TestScrubThenTickLastWriterWins(t *testing.T) {
	svc, bc, _ := newTestService(t)
	require.NoError(t, svc.AddTimer("room1", models.RoleAdmin, "Round", 600, nil))
	timerID := addedTimerID(t, bc)
	require.NoError(t, svc.StartTimer("room1", models.RoleAdmin, timerID))

	svc.tickAll()
	require.NoError(t, svc.SetTimerTime("room1", models.RoleAdmin, timerID, 42))
	svc.tickAll()

	rm, err := svc.registry.Get("room1")
	require.NoError(t, err)
	assert.Equal(t, 41, rm.state.Timers[0].Remaining)
	assert.True(t, rm.state.Timers[0].IsRunning)
}

func roomFlickering(rm *Room) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.state.Flickering
}
