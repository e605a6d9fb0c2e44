package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"rentoffice/backend/internal/domain"
	"rentoffice/backend/internal/store"
)

func TestPostgresIntegration_AppointmentCreateListAndConflicts(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("RENTOFFICE_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("RENTOFFICE_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "rentoffice_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		requesterID := uuid.MustParse("00000000-0000-0000-0000-000000000101")
		ownerID := uuid.MustParse("00000000-0000-0000-0000-000000000102")
		apartmentID := uuid.MustParse("00000000-0000-0000-0000-000000000201")
		if err := seedDirectory(ctx, tx, requesterID, ownerID, apartmentID); err != nil {
			return err
		}

		start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

		a1, err := createAppointment(ctx, tx, domain.Appointment{
			RequesterID: requesterID,
			OwnerID:     ownerID,
			ApartmentID: apartmentID,
			StartTime:   start,
			EndTime:     start.Add(domain.SlotDuration),
			Status:      domain.StatusPending,
		})
		if err != nil {
			return err
		}
		if a1.ID == uuid.Nil {
			return fmt.Errorf("expected generated id")
		}

		rows, err := listByOwnerInRange(ctx, tx, ownerID, start.Add(-time.Minute), start.Add(time.Hour), nil)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return fmt.Errorf("len(rows) = %d, want 1", len(rows))
		}
		if rows[0].ID != a1.ID {
			return fmt.Errorf("listed id = %s, want %s", rows[0].ID, a1.ID)
		}

		// Overlapping the booked slot.
		_, err = createAppointment(ctx, tx, domain.Appointment{
			RequesterID: requesterID,
			OwnerID:     ownerID,
			ApartmentID: apartmentID,
			StartTime:   start.Add(20 * time.Minute),
			EndTime:     start.Add(50 * time.Minute),
			Status:      domain.StatusPending,
		})
		if err != store.ErrConflict {
			return fmt.Errorf("overlap err = %v, want %v", err, store.ErrConflict)
		}

		// Inside the 15-minute buffer after the booked slot.
		_, err = createAppointment(ctx, tx, domain.Appointment{
			RequesterID: requesterID,
			OwnerID:     ownerID,
			ApartmentID: apartmentID,
			StartTime:   start.Add(40 * time.Minute),
			EndTime:     start.Add(70 * time.Minute),
			Status:      domain.StatusPending,
		})
		if err != store.ErrConflict {
			return fmt.Errorf("buffer err = %v, want %v", err, store.ErrConflict)
		}

		// One hour later clears both the slot and the buffer.
		a2, err := createAppointment(ctx, tx, domain.Appointment{
			RequesterID: requesterID,
			OwnerID:     ownerID,
			ApartmentID: apartmentID,
			StartTime:   start.Add(time.Hour),
			EndTime:     start.Add(time.Hour + domain.SlotDuration),
			Status:      domain.StatusPending,
		})
		if err != nil {
			return err
		}

		// The exclusion constraint itself must also reject a raw insert
		// that skips the pre-check.
		if _, err := tx.NewRaw("SAVEPOINT before_raw").Exec(ctx); err != nil {
			return err
		}
		raw := domain.Appointment{
			RequesterID: requesterID,
			OwnerID:     ownerID,
			ApartmentID: apartmentID,
			StartTime:   start.Add(10 * time.Minute),
			EndTime:     start.Add(40 * time.Minute),
			Status:      domain.StatusPending,
		}
		if _, err := tx.NewInsert().Model(&raw).Exec(ctx); err == nil {
			return fmt.Errorf("raw overlapping insert succeeded, want exclusion violation")
		}
		if _, err := tx.NewRaw("ROLLBACK TO SAVEPOINT before_raw").Exec(ctx); err != nil {
			return err
		}

		// A cancelled appointment frees its slot for rebooking.
		if _, err := tx.NewUpdate().
			Model((*domain.Appointment)(nil)).
			Set("status = ?", domain.StatusCancelled).
			Where("id = ?", a2.ID).
			Exec(ctx); err != nil {
			return err
		}
		_, err = createAppointment(ctx, tx, domain.Appointment{
			RequesterID: requesterID,
			OwnerID:     ownerID,
			ApartmentID: apartmentID,
			StartTime:   a2.StartTime,
			EndTime:     a2.EndTime,
			Status:      domain.StatusPending,
		})
		if err != nil {
			return fmt.Errorf("rebooking cancelled slot: %v", err)
		}

		blocking, err := listByOwnerInRange(
			ctx, tx, ownerID,
			start.Add(-time.Hour), start.Add(3*time.Hour),
			[]domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed},
		)
		if err != nil {
			return err
		}
		if len(blocking) != 2 {
			return fmt.Errorf("len(blocking) = %d, want 2", len(blocking))
		}

		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}
}

func seedDirectory(ctx context.Context, tx bun.Tx, requesterID, ownerID, apartmentID uuid.UUID) error {
	now := time.Now().UTC()
	users := []domain.User{
		{ID: requesterID, Name: "Renter One", Email: "renter@example.com", CreatedAt: now, UpdatedAt: now},
		{ID: ownerID, Name: "Owner One", Email: "owner@example.com", CreatedAt: now, UpdatedAt: now},
	}
	if _, err := tx.NewInsert().Model(&users).Exec(ctx); err != nil {
		return err
	}
	apartment := domain.Apartment{
		ID:          apartmentID,
		OwnerID:     ownerID,
		FullAddress: "12 Test Street",
		City:        "Testville",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := tx.NewInsert().Model(&apartment).Exec(ctx); err != nil {
		return err
	}
	return nil
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if normalized, ok := normalizeExtensionStatement(stmt); ok {
				stmt = normalized
			}
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

// btree_gist must land in a schema that stays on the search_path, or the
// exclusion constraint cannot find its operator classes.
func normalizeExtensionStatement(stmt string) (string, bool) {
	s := strings.TrimSpace(stmt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE EXTENSION") {
		return "", false
	}
	if !strings.Contains(upper, "BTREE_GIST") {
		return "", false
	}
	if strings.Contains(upper, " SCHEMA ") {
		return "", false
	}
	return s + " SCHEMA public", true
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
