package appointments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentoffice/backend/internal/domain"
	"rentoffice/backend/internal/notify"
	"rentoffice/backend/internal/store"
)

// CancelLeadTimeDays is the minimum number of whole days between a
// cancellation and the appointment it cancels.
const CancelLeadTimeDays = 2

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationError(msg string) error {
	return &ValidationError{Msg: msg}
}

// PolicyError marks a request that is well-formed but rejected by a
// booking rule, like cancelling too close to the start time.
type PolicyError struct {
	Msg string
}

func (e *PolicyError) Error() string {
	return e.Msg
}

func policyError(msg string) error {
	return &PolicyError{Msg: msg}
}

var blockingStatuses = []domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed}

type Service struct {
	repo      store.AppointmentRepository
	directory store.DirectoryRepository
	mailer    notify.Sender
	log       *slog.Logger

	now func() time.Time
}

func NewService(repo store.AppointmentRepository, directory store.DirectoryRepository, mailer notify.Sender, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		directory: directory,
		mailer:    mailer,
		log:       log.With(slog.String("component", "service.appointments")),
		now:       time.Now,
	}
}

type CreateInput struct {
	RequesterID uuid.UUID
	OwnerID     uuid.UUID
	ApartmentID uuid.UUID
	StartTime   time.Time
}

// Create books a viewing of an apartment on its owner's calendar. The new
// appointment starts Pending and occupies a 30 minute slot; the repository
// rejects it atomically if the buffered interval collides with another
// booking, so two concurrent requests for the same slot cannot both land.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.RequesterID == uuid.Nil {
		return domain.Appointment{}, validationError("requester_id is required")
	}
	if in.OwnerID == uuid.Nil {
		return domain.Appointment{}, validationError("owner_id is required")
	}
	if in.ApartmentID == uuid.Nil {
		return domain.Appointment{}, validationError("apartment_id is required")
	}
	if in.StartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time is required")
	}

	start := in.StartTime.UTC()
	if start.Before(s.now().UTC()) {
		return domain.Appointment{}, validationError("start_time must not be in the past")
	}
	end := start.Add(domain.SlotDuration)

	requester, err := s.directory.GetUser(ctx, in.RequesterID)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("load requester: %w", err)
	}
	owner, err := s.directory.GetUser(ctx, in.OwnerID)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("load owner: %w", err)
	}
	apartment, err := s.directory.GetApartmentOwnedBy(ctx, in.ApartmentID, in.OwnerID)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("load apartment: %w", err)
	}

	existing, err := s.repo.ListByOwnerInRange(
		ctx, owner.ID,
		start.Add(-domain.ConflictBuffer),
		end.Add(domain.ConflictBuffer),
		blockingStatuses,
	)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("list owner appointments: %w", err)
	}
	if domain.HasConflict(start, end, existing, domain.ConflictBuffer) {
		return domain.Appointment{}, store.ErrConflict
	}

	created, err := s.repo.Create(ctx, domain.Appointment{
		RequesterID: requester.ID,
		OwnerID:     owner.ID,
		ApartmentID: apartment.ID,
		StartTime:   start,
		EndTime:     end,
		Status:      domain.StatusPending,
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.sendMail(requester.Email, "Appointment request received",
		fmt.Sprintf("Your viewing request for the property at %s has been submitted.", apartment.FullAddress))
	s.sendMail(owner.Email, "New appointment request",
		fmt.Sprintf("A new viewing has been requested for your property at %s.", apartment.FullAddress))

	s.log.Info("appointment created",
		slog.String("appointment_id", created.ID.String()),
		slog.String("owner_id", owner.ID.String()),
		slog.Time("start_time", created.StartTime),
	)

	return created, nil
}

// AvailableSlots computes the owner's free slot start times over the
// booking horizon, using a single range query for the whole window.
func (s *Service) AvailableSlots(ctx context.Context, ownerID uuid.UUID) ([]time.Time, error) {
	if ownerID == uuid.Nil {
		return nil, validationError("owner_id is required")
	}
	if _, err := s.directory.GetUser(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}

	now := s.now().UTC()
	from, to := domain.HorizonBounds(now)
	existing, err := s.repo.ListByOwnerInRange(ctx, ownerID, from, to, blockingStatuses)
	if err != nil {
		return nil, fmt.Errorf("list owner appointments: %w", err)
	}

	return domain.AvailableSlots(now, existing), nil
}

// UpdateStatus moves an appointment to Confirmed or Cancelled. Cancelled is
// terminal; further updates are rejected.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	if status != domain.StatusConfirmed && status != domain.StatusCancelled {
		return domain.Appointment{}, validationError("status must be confirmed or cancelled")
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status == domain.StatusCancelled {
		return domain.Appointment{}, policyError("appointment is already cancelled")
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("update status: %w", err)
	}

	if requester, err := s.directory.GetUser(ctx, appt.RequesterID); err != nil {
		s.log.Warn("skipping status notification", slog.String("appointment_id", id.String()), slog.Any("err", err))
	} else {
		s.sendMail(requester.Email, "Appointment status updated",
			fmt.Sprintf("Your appointment has been %s.", status))
	}

	s.log.Info("appointment status updated",
		slog.String("appointment_id", id.String()),
		slog.String("status", string(status)),
	)

	return updated, nil
}

// Cancel cancels an appointment on behalf of its requester or owner.
// Cancellations are only accepted at least CancelLeadTimeDays whole days
// before the start time.
func (s *Service) Cancel(ctx context.Context, id, actingUserID uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("id is required")
	}
	if actingUserID == uuid.Nil {
		return validationError("acting user id is required")
	}

	appt, err := s.repo.GetByIDForParticipant(ctx, id, actingUserID)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status == domain.StatusCancelled {
		return policyError("appointment is already cancelled")
	}

	daysUntil := int(appt.StartTime.Sub(s.now().UTC()).Hours() / 24)
	if daysUntil < CancelLeadTimeDays {
		return policyError("appointments can only be cancelled at least two days in advance")
	}

	if _, err := s.repo.UpdateStatus(ctx, id, domain.StatusCancelled); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	s.sendCancellationNotifications(ctx, appt)

	s.log.Info("appointment cancelled",
		slog.String("appointment_id", id.String()),
		slog.String("acting_user_id", actingUserID.String()),
	)

	return nil
}

func (s *Service) List(ctx context.Context, q store.PageQuery) (store.Page[domain.Appointment], error) {
	return s.repo.List(ctx, q)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID uuid.UUID, q store.PageQuery) (store.Page[domain.Appointment], error) {
	if requesterID == uuid.Nil {
		return store.Page[domain.Appointment]{}, validationError("requester_id is required")
	}
	return s.repo.ListByRequester(ctx, requesterID, q)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, q store.PageQuery) (store.Page[domain.Appointment], error) {
	if ownerID == uuid.Nil {
		return store.Page[domain.Appointment]{}, validationError("owner_id is required")
	}
	return s.repo.ListByOwner(ctx, ownerID, q)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) sendCancellationNotifications(ctx context.Context, appt domain.Appointment) {
	address := "the property"
	if apartment, err := s.directory.GetApartmentOwnedBy(ctx, appt.ApartmentID, appt.OwnerID); err == nil {
		address = fmt.Sprintf("the property at %s", apartment.FullAddress)
	}

	if requester, err := s.directory.GetUser(ctx, appt.RequesterID); err != nil {
		s.log.Warn("skipping cancellation notification", slog.String("appointment_id", appt.ID.String()), slog.Any("err", err))
	} else {
		s.sendMail(requester.Email, "Appointment cancelled",
			fmt.Sprintf("Your viewing of %s has been cancelled.", address))
	}

	if owner, err := s.directory.GetUser(ctx, appt.OwnerID); err != nil {
		s.log.Warn("skipping cancellation notification", slog.String("appointment_id", appt.ID.String()), slog.Any("err", err))
	} else {
		s.sendMail(owner.Email, "Appointment cancelled",
			fmt.Sprintf("The viewing of %s has been cancelled.", address))
	}
}

// sendMail delivers a notification best-effort. Failures are logged and
// never surfaced to the caller.
func (s *Service) sendMail(to, subject, body string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(to, subject, body); err != nil {
		s.log.Warn("notification send failed",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.Any("err", err),
		)
	}
}
