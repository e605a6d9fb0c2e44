package store

import (
	"context"

	"github.com/google/uuid"

	"rentoffice/backend/internal/domain"
)

// DirectoryRepository resolves users and validates property ownership. User
// and apartment CRUD live elsewhere in the back office; the booking engine
// only reads.
type DirectoryRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)

	// GetApartmentOwnedBy returns ErrNotFound when the apartment does not
	// exist or belongs to a different owner.
	GetApartmentOwnedBy(ctx context.Context, apartmentID, ownerID uuid.UUID) (domain.Apartment, error)
}
