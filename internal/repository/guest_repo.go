package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GuestRepository interface {
	Create(ctx context.Context, guest *model.Guest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Guest, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Guest, int64, error)
	Update(ctx context.Context, guest *model.Guest) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type guestRepository struct {
	db *gorm.DB
}

func NewGuestRepository(db *gorm.DB) GuestRepository {
	return &guestRepository{db: db}
}

func (r *guestRepository) Create(ctx context.Context, guest *model.Guest) error {
	return GetDB(ctx, r.db).Create(guest).Error
}

func (r *guestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Guest, error) {
	var guest model.Guest
	if err := GetDB(ctx, r.db).First(&guest, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &guest, nil
}

func (r *guestRepository) List(ctx context.Context, search string, page, limit int) ([]model.Guest, int64, error) {
	var guests []model.Guest
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Guest{})
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?", pattern, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&guests).Error; err != nil {
		return nil, 0, err
	}

	return guests, total, nil
}

func (r *guestRepository) Update(ctx context.Context, guest *model.Guest) error {
	return GetDB(ctx, r.db).Save(guest).Error
}

func (r *guestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.Guest{}, "id = ?", id).Error
}
