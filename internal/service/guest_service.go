package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateGuestRequest struct {
	FirstName   string `json:"first_name" binding:"required,max=100"`
	LastName    string `json:"last_name" binding:"required,max=100"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone" binding:"max=50"`
	Address     string `json:"address"`
	Nationality string `json:"nationality" binding:"max=50"`
	IDNumber    string `json:"id_number" binding:"max=50"`
}

type UpdateGuestRequest struct {
	FirstName   string `json:"first_name" binding:"max=100"`
	LastName    string `json:"last_name" binding:"max=100"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone" binding:"max=50"`
	Address     string `json:"address"`
	Nationality string `json:"nationality" binding:"max=50"`
	IDNumber    string `json:"id_number" binding:"max=50"`
}

type CreateReservationRequest struct {
	GuestID  string `json:"guest_id" binding:"required,uuid"`
	RoomID   string `json:"room_id" binding:"omitempty,uuid"`
	CheckIn  string `json:"check_in" binding:"required"`  // YYYY-MM-DD
	CheckOut string `json:"check_out" binding:"required"` // YYYY-MM-DD
}

type UpdateReservationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=BOOKED CHECKED_IN CHECKED_OUT CANCELLED"`
}

type GuestFilter struct {
	Search string
	Page   int
	Limit  int
}

// --- Interface ---

type GuestService interface {
	CreateGuest(ctx context.Context, req CreateGuestRequest) (*model.Guest, error)
	GetGuest(ctx context.Context, id string) (*model.Guest, error)
	ListGuests(ctx context.Context, filter GuestFilter) ([]model.Guest, int64, error)
	UpdateGuest(ctx context.Context, id string, req UpdateGuestRequest) (*model.Guest, error)
	DeleteGuest(ctx context.Context, id string) error
	CreateReservation(ctx context.Context, req CreateReservationRequest) (*model.Reservation, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListReservations(ctx context.Context, status string, page, limit int) ([]model.Reservation, int64, error)
	UpdateReservationStatus(ctx context.Context, id string, req UpdateReservationStatusRequest) (*model.Reservation, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
}

type guestService struct {
	guestRepo repository.GuestRepository
	resvRepo  repository.ReservationRepository
}

func NewGuestService(guestRepo repository.GuestRepository, resvRepo repository.ReservationRepository) GuestService {
	return &guestService{guestRepo: guestRepo, resvRepo: resvRepo}
}

// --- Implementation ---

func (s *guestService) CreateGuest(ctx context.Context, req CreateGuestRequest) (*model.Guest, error) {
	guest := &model.Guest{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Nationality: req.Nationality,
		IDNumber:    req.IDNumber,
	}
	if err := s.guestRepo.Create(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to create guest: %w", err)
	}
	return guest, nil
}

func (s *guestService) GetGuest(ctx context.Context, id string) (*model.Guest, error) {
	guestID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid guest id: %w", err)
	}
	guest, err := s.guestRepo.FindByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("guest not found")
		}
		return nil, fmt.Errorf("failed to fetch guest: %w", err)
	}
	return guest, nil
}

func (s *guestService) ListGuests(ctx context.Context, filter GuestFilter) ([]model.Guest, int64, error) {
	return s.guestRepo.List(ctx, filter.Search, filter.Page, filter.Limit)
}

func (s *guestService) UpdateGuest(ctx context.Context, id string, req UpdateGuestRequest) (*model.Guest, error) {
	guest, err := s.GetGuest(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != "" {
		guest.FirstName = req.FirstName
	}
	if req.LastName != "" {
		guest.LastName = req.LastName
	}
	if req.Email != "" {
		guest.Email = req.Email
	}
	if req.Phone != "" {
		guest.Phone = req.Phone
	}
	if req.Address != "" {
		guest.Address = req.Address
	}
	if req.Nationality != "" {
		guest.Nationality = req.Nationality
	}
	if req.IDNumber != "" {
		guest.IDNumber = req.IDNumber
	}

	if err := s.guestRepo.Update(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to update guest: %w", err)
	}
	return guest, nil
}

func (s *guestService) DeleteGuest(ctx context.Context, id string) error {
	guest, err := s.GetGuest(ctx, id)
	if err != nil {
		return err
	}
	return s.guestRepo.Delete(ctx, guest.ID)
}

func (s *guestService) CreateReservation(ctx context.Context, req CreateReservationRequest) (*model.Reservation, error) {
	guestID, err := uuid.Parse(req.GuestID)
	if err != nil {
		return nil, fmt.Errorf("invalid guest id: %w", err)
	}
	if _, err := s.guestRepo.FindByID(ctx, guestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("guest not found")
		}
		return nil, fmt.Errorf("failed to fetch guest: %w", err)
	}

	checkIn, err := time.Parse("2006-01-02", req.CheckIn)
	if err != nil {
		return nil, fmt.Errorf("invalid check_in date format (expected YYYY-MM-DD): %w", err)
	}
	checkOut, err := time.Parse("2006-01-02", req.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("invalid check_out date format (expected YYYY-MM-DD): %w", err)
	}
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("check_out must be after check_in")
	}

	reservation := &model.Reservation{
		GuestID:  guestID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Status:   model.ReservationStatusBooked,
	}
	if req.RoomID != "" {
		roomID, parseErr := uuid.Parse(req.RoomID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid room id: %w", parseErr)
		}
		if _, roomErr := s.resvRepo.FindRoomByID(ctx, roomID); roomErr != nil {
			if errors.Is(roomErr, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("room not found")
			}
			return nil, fmt.Errorf("failed to fetch room: %w", roomErr)
		}
		reservation.RoomID = &roomID
	}

	if err := s.resvRepo.Create(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	return reservation, nil
}

func (s *guestService) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	resvID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid reservation id: %w", err)
	}
	reservation, err := s.resvRepo.FindByIDWithRoom(ctx, resvID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation not found")
		}
		return nil, fmt.Errorf("failed to fetch reservation: %w", err)
	}
	return reservation, nil
}

func (s *guestService) ListReservations(ctx context.Context, status string, page, limit int) ([]model.Reservation, int64, error) {
	return s.resvRepo.List(ctx, status, page, limit)
}

func (s *guestService) UpdateReservationStatus(ctx context.Context, id string, req UpdateReservationStatusRequest) (*model.Reservation, error) {
	reservation, err := s.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if reservation.Status == model.ReservationStatusCheckedOut || reservation.Status == model.ReservationStatusCancelled {
		return nil, fmt.Errorf("cannot change status of a %s reservation", reservation.Status)
	}

	reservation.Status = req.Status
	if err := s.resvRepo.Update(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	return reservation, nil
}

func (s *guestService) ListRooms(ctx context.Context) ([]model.Room, error) {
	return s.resvRepo.ListRooms(ctx)
}
