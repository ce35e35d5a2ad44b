package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReservationStatus enum constants
const (
	ReservationStatusBooked     = "BOOKED"
	ReservationStatusCheckedIn  = "CHECKED_IN"
	ReservationStatusCheckedOut = "CHECKED_OUT"
	ReservationStatusCancelled  = "CANCELLED"
)

// Guest is a collaborator record: looked up by id to populate invoice
// display fields, never consulted in financial computation.
type Guest struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName   string         `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName    string         `gorm:"type:varchar(100);not null" json:"last_name"`
	Email       string         `gorm:"type:varchar(255);index" json:"email"`
	Phone       string         `gorm:"type:varchar(50)" json:"phone"`
	Address     string         `gorm:"type:text" json:"address"`
	Nationality string         `gorm:"type:varchar(50)" json:"nationality"`
	IDNumber    string         `gorm:"type:varchar(50)" json:"id_number"` // passport or national id
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (g *Guest) BeforeCreate(_ *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name for display fields.
func (g *Guest) FullName() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

// Room is a collaborator record used for display only.
type Room struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"room_number"`
	RoomType   string    `gorm:"type:varchar(50)" json:"room_type"`
	Floor      int       `gorm:"default:0" json:"floor"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *Room) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Reservation links a guest to a stay; folios reference it so invoices can
// resolve room numbers for display.
type Reservation struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GuestID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"guest_id"`
	Guest     *Guest     `gorm:"foreignKey:GuestID" json:"guest,omitempty"`
	RoomID    *uuid.UUID `gorm:"type:uuid;index" json:"room_id"`
	Room      *Room      `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	CheckIn   time.Time  `gorm:"not null" json:"check_in"`
	CheckOut  time.Time  `gorm:"not null" json:"check_out"`
	Status    string     `gorm:"type:varchar(20);not null;default:'BOOKED';index" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (r *Reservation) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
