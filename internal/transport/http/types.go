package http

import (
	"time"

	"github.com/google/uuid"

	"rentoffice/backend/internal/domain"
	"rentoffice/backend/internal/store"
)

type CreateAppointmentRequest struct {
	StartTime   time.Time `json:"start_time"`
	ApartmentID string    `json:"apartment_id"`
	OwnerID     string    `json:"owner_id"`
}

type UpdateStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	RequesterID uuid.UUID `json:"requester_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	ApartmentID uuid.UUID `json:"apartment_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAppointmentResponse(a domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		RequesterID: a.RequesterID,
		OwnerID:     a.OwnerID,
		ApartmentID: a.ApartmentID,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type PageMetadata struct {
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
	CurrentPage  int `json:"current_page"`
}

type PaginatedResponse struct {
	Rows     []AppointmentResponse `json:"rows"`
	Metadata PageMetadata          `json:"metadata"`
}

func toPaginatedResponse(page store.Page[domain.Appointment]) PaginatedResponse {
	rows := make([]AppointmentResponse, 0, len(page.Items))
	for _, a := range page.Items {
		rows = append(rows, toAppointmentResponse(a))
	}

	totalPages := 0
	if page.PageSize > 0 {
		totalPages = (page.Total + page.PageSize - 1) / page.PageSize
	}

	return PaginatedResponse{
		Rows: rows,
		Metadata: PageMetadata{
			TotalPages:   totalPages,
			TotalItems:   page.Total,
			ItemsPerPage: page.PageSize,
			CurrentPage:  page.Page,
		},
	}
}

type AvailableTimesResponse struct {
	AvailableTimes []string `json:"available_times"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
