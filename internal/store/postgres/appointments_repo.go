package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"rentoffice/backend/internal/domain"
	"rentoffice/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Create inserts the appointment inside a per-owner transaction. The
// advisory lock serializes all writers for one owner's calendar, so the
// in-transaction conflict re-check cannot race another insert. The
// appointments_no_overlap exclusion constraint backs this up at the
// database level; a violation surfaces as store.ErrConflict either way.
func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inOwnerTransaction(ctx, appt.OwnerID, func(ctx context.Context, tx bun.Tx) error {
		created, err := createAppointment(ctx, tx, appt)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func createAppointment(ctx context.Context, db bun.IDB, appt domain.Appointment) (domain.Appointment, error) {
	existing, err := listByOwnerInRange(
		ctx, db, appt.OwnerID,
		appt.StartTime.Add(-domain.ConflictBuffer),
		appt.EndTime.Add(domain.ConflictBuffer),
		[]domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed},
	)
	if err != nil {
		return domain.Appointment{}, err
	}
	if domain.HasConflict(appt.StartTime, appt.EndTime, existing, domain.ConflictBuffer) {
		return domain.Appointment{}, store.ErrConflict
	}

	m := appt
	if _, err := db.NewInsert().Model(&m).Exec(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) GetByIDForParticipant(ctx context.Context, id, userID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("requester_id = ?", userID).
				WhereOr("owner_id = ?", userID)
		}).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) ListByOwnerInRange(ctx context.Context, ownerID uuid.UUID, from, to time.Time, statuses []domain.AppointmentStatus) ([]domain.Appointment, error) {
	return listByOwnerInRange(ctx, r.db, ownerID, from, to, statuses)
}

// UpdateStatus re-reads the row inside the owner transaction before
// mutating it, so concurrent status changes serialize with bookings for
// the same calendar.
func (r *AppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = r.inOwnerTransaction(ctx, current.OwnerID, func(ctx context.Context, tx bun.Tx) error {
		var appt domain.Appointment
		err := tx.NewSelect().
			Model(&appt).
			Where("id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		// Cancelled is terminal. The service checks before calling, but a
		// concurrent cancellation can land between its read and this one.
		if appt.Status == domain.StatusCancelled && status != domain.StatusCancelled {
			return store.ErrConflict
		}

		appt.Status = status
		res, err := tx.NewUpdate().
			Model(&appt).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) List(ctx context.Context, q store.PageQuery) (store.Page[domain.Appointment], error) {
	q = q.Normalize()

	query := r.db.NewSelect().Model((*domain.Appointment)(nil))
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := searchPattern(search)
		query = query.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("start_time::date::text = ?", search).
				WhereOr("requester_id IN (SELECT id FROM users WHERE LOWER(name) LIKE ?)", pattern).
				WhereOr("apartment_id IN (SELECT id FROM apartments WHERE LOWER(full_address) LIKE ?)", pattern)
		})
	}

	return scanPage(ctx, query, q)
}

func (r *AppointmentRepo) ListByRequester(ctx context.Context, requesterID uuid.UUID, q store.PageQuery) (store.Page[domain.Appointment], error) {
	q = q.Normalize()
	query := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("requester_id = ?", requesterID)
	return scanPage(ctx, query, q)
}

func (r *AppointmentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, q store.PageQuery) (store.Page[domain.Appointment], error) {
	q = q.Normalize()
	query := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("owner_id = ?", ownerID)
	return scanPage(ctx, query, q)
}

func (r *AppointmentRepo) inOwnerTransaction(ctx context.Context, ownerID uuid.UUID, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockOwnerCalendar(ctx, tx, ownerID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func lockOwnerCalendar(ctx context.Context, tx bun.Tx, ownerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", ownerID.String()).Exec(ctx)
	return err
}

func listByOwnerInRange(ctx context.Context, db bun.IDB, ownerID uuid.UUID, from, to time.Time, statuses []domain.AppointmentStatus) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	query := db.NewSelect().
		Model(&rows).
		Where("owner_id = ?", ownerID).
		Where("start_time < ?", to).
		Where("end_time > ?", from).
		OrderExpr("start_time ASC")
	if len(statuses) > 0 {
		query = query.Where("status IN (?)", bun.In(statuses))
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func scanPage(ctx context.Context, query *bun.SelectQuery, q store.PageQuery) (store.Page[domain.Appointment], error) {
	var rows []domain.Appointment
	total, err := query.
		OrderExpr("start_time ASC").
		Limit(q.Size).
		Offset(q.Offset()).
		ScanAndCount(ctx, &rows)
	if err != nil {
		return store.Page[domain.Appointment]{}, err
	}
	return store.NewPage(rows, q, total), nil
}

func searchPattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}
