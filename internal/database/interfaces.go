package database

import (
	"context"

	"stagetimer/internal/models"
)

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type RoomRepository interface {
	CreateRoom(ctx context.Context, roomID, adminID string) (*models.Room, error)
	GetRoomByID(ctx context.Context, roomID string) (*models.Room, error)
	ListRoomsByAdmin(ctx context.Context, adminID string) ([]*models.Room, error)
	ListRooms(ctx context.Context) ([]*models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

type Database interface {
	UserRepository
	RoomRepository
	Close() error
}
