package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Blocking reports whether an appointment in this status occupies the
// owner's calendar. Cancelled appointments never block a slot.
func (s AppointmentStatus) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          uuid.UUID         `bun:"id,pk,type:uuid"`
	RequesterID uuid.UUID         `bun:"requester_id,notnull,type:uuid"`
	OwnerID     uuid.UUID         `bun:"owner_id,notnull,type:uuid"`
	ApartmentID uuid.UUID         `bun:"apartment_id,notnull,type:uuid"`
	StartTime   time.Time         `bun:"start_time,notnull"`
	EndTime     time.Time         `bun:"end_time,notnull"`
	Status      AppointmentStatus `bun:"status,notnull"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
	DeletedAt   time.Time         `bun:"deleted_at,soft_delete,nullzero"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// User is the directory record for both requesters and owners.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Apartment is the property shown during an appointment. Appointments
// reference it by id only; ownership is checked through the directory.
type Apartment struct {
	bun.BaseModel `bun:"table:apartments"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	OwnerID     uuid.UUID `bun:"owner_id,notnull,type:uuid"`
	FullAddress string    `bun:"full_address,notnull"`
	City        string    `bun:"city"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}
