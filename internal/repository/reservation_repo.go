package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	FindByIDWithRoom(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	List(ctx context.Context, status string, page, limit int) ([]model.Reservation, int64, error)
	Update(ctx context.Context, reservation *model.Reservation) error
	FindRoomByID(ctx context.Context, id uuid.UUID) (*model.Room, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	CreateRoom(ctx context.Context, room *model.Room) error
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return GetDB(ctx, r.db).Create(reservation).Error
}

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := GetDB(ctx, r.db).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByIDWithRoom(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := GetDB(ctx, r.db).Preload("Room").Preload("Guest").First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) List(ctx context.Context, status string, page, limit int) ([]model.Reservation, int64, error) {
	var reservations []model.Reservation
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Reservation{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Guest").Preload("Room")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Order("check_in desc").Offset(offset).Limit(limit).Find(&reservations).Error; err != nil {
		return nil, 0, err
	}

	return reservations, total, nil
}

func (r *reservationRepository) Update(ctx context.Context, reservation *model.Reservation) error {
	return GetDB(ctx, r.db).Save(reservation).Error
}

func (r *reservationRepository) FindRoomByID(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	var room model.Room
	if err := GetDB(ctx, r.db).First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *reservationRepository) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := GetDB(ctx, r.db).Order("room_number asc").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *reservationRepository) CreateRoom(ctx context.Context, room *model.Room) error {
	return GetDB(ctx, r.db).Create(room).Error
}
