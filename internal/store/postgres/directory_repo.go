package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"rentoffice/backend/internal/domain"
	"rentoffice/backend/internal/store"
)

// DirectoryRepo reads user and apartment records maintained by the rest of
// the back office.
type DirectoryRepo struct {
	db *bun.DB
}

func NewDirectoryRepo(db *bun.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var user domain.User
	err := r.db.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (r *DirectoryRepo) GetApartmentOwnedBy(ctx context.Context, apartmentID, ownerID uuid.UUID) (domain.Apartment, error) {
	var apartment domain.Apartment
	err := r.db.NewSelect().
		Model(&apartment).
		Where("id = ?", apartmentID).
		Where("owner_id = ?", ownerID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Apartment{}, store.ErrNotFound
		}
		return domain.Apartment{}, err
	}
	return apartment, nil
}
