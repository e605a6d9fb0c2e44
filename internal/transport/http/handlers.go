package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rentoffice/backend/internal/domain"
	"rentoffice/backend/internal/service/appointments"
	"rentoffice/backend/internal/store"
)

// bookingService is the slice of the appointments service the transport
// needs.
type bookingService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	AvailableSlots(ctx context.Context, ownerID uuid.UUID) ([]time.Time, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	Cancel(ctx context.Context, id, actingUserID uuid.UUID) error
	List(ctx context.Context, q store.PageQuery) (store.Page[domain.Appointment], error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, q store.PageQuery) (store.Page[domain.Appointment], error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, q store.PageQuery) (store.Page[domain.Appointment], error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}

// actingUserID reads the authenticated user id set by the auth layer in
// front of this service. Authentication itself is out of scope here.
func actingUserID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func pageQuery(r *http.Request) store.PageQuery {
	q := store.PageQuery{Search: r.URL.Query().Get("search")}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		q.Page = page
	}
	if take, err := strconv.Atoi(r.URL.Query().Get("take")); err == nil {
		q.Size = take
	}
	return q.Normalize()
}

func createAppointmentHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requesterID, ok := actingUserID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "missing_user", "X-User-ID header must be a valid UUID")
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_owner_id", "owner_id must be a valid UUID")
			return
		}
		apartmentID, err := uuid.Parse(req.ApartmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_apartment_id", "apartment_id must be a valid UUID")
			return
		}

		appt, err := svc.Create(r.Context(), appointments.CreateInput{
			RequesterID: requesterID,
			OwnerID:     ownerID,
			ApartmentID: apartmentID,
			StartTime:   req.StartTime,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, domain.AppointmentStatus(req.Status))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := actingUserID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "missing_user", "X-User-ID header must be a valid UUID")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), id, userID); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func availableTimesHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_owner_id", "ownerID must be a valid UUID")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		times := make([]string, 0, len(slots))
		for _, s := range slots {
			times = append(times, s.Format(time.RFC3339))
		}

		writeJSON(w, http.StatusOK, AvailableTimesResponse{AvailableTimes: times})
	}
}

func listAppointmentsHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.List(r.Context(), pageQuery(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaginatedResponse(page))
	}
}

func listByRequesterHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requesterID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "userID must be a valid UUID")
			return
		}

		page, err := svc.ListByRequester(r.Context(), requesterID, pageQuery(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaginatedResponse(page))
	}
}

func listByOwnerHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_owner_id", "ownerID must be a valid UUID")
			return
		}

		page, err := svc.ListByOwner(r.Context(), ownerID, pageQuery(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaginatedResponse(page))
	}
}

func getAppointmentHandler(svc bookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}
