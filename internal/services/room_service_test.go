package services

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagetimer/internal/models"
	"stagetimer/internal/room"
)

type fakeRoomDB struct {
	rooms      map[string]*models.Room
	createErr  error
	deleteErr  error
	deletedIDs []string
}

func newFakeRoomDB() *fakeRoomDB {
	return &fakeRoomDB{rooms: make(map[string]*models.Room)}
}

func (db *fakeRoomDB) CreateRoom(ctx context.Context, roomID, adminID string) (*models.Room, error) {
	if db.createErr != nil {
		return nil, db.createErr
	}
	rec := &models.Room{ID: roomID, AdminID: adminID}
	db.rooms[roomID] = rec
	return rec, nil
}

func (db *fakeRoomDB) GetRoomByID(ctx context.Context, roomID string) (*models.Room, error) {
	rec, ok := db.rooms[roomID]
	if !ok {
		return nil, assert.AnError
	}
	return rec, nil
}

func (db *fakeRoomDB) ListRoomsByAdmin(ctx context.Context, adminID string) ([]*models.Room, error) {
	var out []*models.Room
	for _, rec := range db.rooms {
		if rec.AdminID == adminID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (db *fakeRoomDB) ListRooms(ctx context.Context) ([]*models.Room, error) {
	var out []*models.Room
	for _, rec := range db.rooms {
		out = append(out, rec)
	}
	return out, nil
}

func (db *fakeRoomDB) DeleteRoom(ctx context.Context, roomID string) error {
	if db.deleteErr != nil {
		return db.deleteErr
	}
	delete(db.rooms, roomID)
	db.deletedIDs = append(db.deletedIDs, roomID)
	return nil
}

func (db *fakeRoomDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, assert.AnError
}
func (db *fakeRoomDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	return nil, assert.AnError
}
func (db *fakeRoomDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, assert.AnError
}
func (db *fakeRoomDB) Close() error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) JoinRoom(connID, roomID string)           {}
func (nopBroadcaster) LeaveRoom(connID, roomID string)          {}
func (nopBroadcaster) CloseRoom(roomID string)                  {}
func (nopBroadcaster) ToRoom(roomID string, e room.Event)       {}
func (nopBroadcaster) ToConnection(connID string, e room.Event) {}

func newTestRoomService() (*RoomService, *fakeRoomDB, *room.Service) {
	db := newFakeRoomDB()
	core := room.NewService(room.NewRegistry(), nopBroadcaster{}, clockwork.NewFakeClock())
	return NewRoomService(db, core), db, core
}

func TestCreateRoomPersistsAndRegisters(t *testing.T) {
	svc, db, core := newTestRoomService()

	rec, err := svc.CreateRoom(context.Background(), "admin1")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "admin1", rec.AdminID)
	assert.Contains(t, db.rooms, rec.ID)
	assert.True(t, core.RoomExists(rec.ID))
}

func TestCreateRoomPersistFailure(t *testing.T) {
	svc, db, _ := newTestRoomService()
	db.createErr = assert.AnError

	_, err := svc.CreateRoom(context.Background(), "admin1")
	require.Error(t, err)
	assert.Empty(t, db.rooms)
}

func TestDeleteRoomAuthorization(t *testing.T) {
	svc, db, core := newTestRoomService()
	rec, err := svc.CreateRoom(context.Background(), "admin1")
	require.NoError(t, err)

	err = svc.DeleteRoom(context.Background(), rec.ID, "someone-else")
	require.ErrorIs(t, err, room.ErrForbidden)
	assert.True(t, core.RoomExists(rec.ID))

	err = svc.DeleteRoom(context.Background(), rec.ID, "admin1")
	require.NoError(t, err)
	assert.False(t, core.RoomExists(rec.ID))
	assert.NotContains(t, db.rooms, rec.ID)

	err = svc.DeleteRoom(context.Background(), rec.ID, "admin1")
	require.ErrorIs(t, err, room.ErrNotFound)
}

func TestRestoreRooms(t *testing.T) {
	svc, db, core := newTestRoomService()
	db.rooms["r1"] = &models.Room{ID: "r1", AdminID: "admin1"}
	db.rooms["r2"] = &models.Room{ID: "r2", AdminID: "admin2"}

	require.NoError(t, svc.RestoreRooms(context.Background()))
	assert.True(t, core.RoomExists("r1"))
	assert.True(t, core.RoomExists("r2"))

	// restoring again over a live registry is non-fatal
	require.NoError(t, svc.RestoreRooms(context.Background()))
}
