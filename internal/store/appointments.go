package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rentoffice/backend/internal/domain"
)

// PageQuery carries pagination and optional free-text filtering for list
// operations. Page numbering starts at 1.
type PageQuery struct {
	Page   int
	Size   int
	Search string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps the query to sane bounds.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size < 1 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	return q
}

func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Size
}

// Page is one page of results plus the metadata the back office UI pages
// with.
type Page[T any] struct {
	Items    []T
	Page     int
	PageSize int
	Total    int
	HasNext  bool
	HasPrev  bool
}

// NewPage computes page metadata from the total row count.
func NewPage[T any](items []T, q PageQuery, total int) Page[T] {
	return Page[T]{
		Items:    items,
		Page:     q.Page,
		PageSize: q.Size,
		Total:    total,
		HasNext:  q.Offset()+len(items) < total,
		HasPrev:  q.Page > 1,
	}
}

type AppointmentRepository interface {
	// Create persists a new appointment, atomically rejecting it with
	// ErrConflict when its buffered interval collides with another
	// blocking appointment of the same owner.
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)

	// GetByIDForParticipant loads the appointment only when userID is its
	// requester or its owner, ErrNotFound otherwise.
	GetByIDForParticipant(ctx context.Context, id, userID uuid.UUID) (domain.Appointment, error)

	// ListByOwnerInRange returns the owner's appointments intersecting
	// [from, to) whose status is one of statuses, ordered by start time.
	ListByOwnerInRange(ctx context.Context, ownerID uuid.UUID, from, to time.Time, statuses []domain.AppointmentStatus) ([]domain.Appointment, error)

	// UpdateStatus re-reads the appointment and sets its status inside one
	// transaction; no blind overwrites.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)

	List(ctx context.Context, q PageQuery) (Page[domain.Appointment], error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, q PageQuery) (Page[domain.Appointment], error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, q PageQuery) (Page[domain.Appointment], error)
}
