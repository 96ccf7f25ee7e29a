package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/resource-booking/internal/model"
)

// ResourceRepo provides CRUD operations for bookable resources. All
// timestamps are stored in UTC.
type ResourceRepo struct {
	db *sql.DB
}

func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

// DB exposes the handle so callers can open transactions that span
// several repositories.
func (r *ResourceRepo) DB() *sql.DB { return r.db }

const resourceColumns = `id, owner_id, name, category, location, price_per_hour_cents,
       available_start, available_end, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*model.Resource, error) {
	var res model.Resource
	err := row.Scan(&res.ID, &res.OwnerID, &res.Name, &res.Category, &res.Location,
		&res.PricePerHourCents, &res.AvailableStart, &res.AvailableEnd, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// List returns every resource ordered by id.
func (r *ResourceRepo) List(ctx context.Context) ([]model.Resource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// GetByID returns ErrResourceNotFound when no row matches.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	return scanResource(r.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id))
}

// LockTx reads the resource with SELECT ... FOR UPDATE. The row lock is held
// until tx ends, which serializes every booking writer for the resource.
func (r *ResourceRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Resource, error) {
	return scanResource(tx.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ? FOR UPDATE`, id))
}

// Create inserts res and fills in its generated ID and timestamps.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	const q = `INSERT INTO resources (owner_id, name, category, location, price_per_hour_cents, available_start, available_end)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, res.OwnerID, res.Name, res.Category, res.Location,
		res.PricePerHourCents, res.AvailableStart.UTC(), res.AvailableEnd.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*res = *created
	return nil
}

// Update overwrites the mutable fields of a resource owned by ownerID.
func (r *ResourceRepo) Update(ctx context.Context, ownerID uint64, res *model.Resource) error {
	current, err := r.GetByID(ctx, res.ID)
	if err != nil {
		return err
	}
	if current.OwnerID != ownerID {
		return ErrForbidden
	}
	const q = `UPDATE resources SET name = ?, category = ?, location = ?, price_per_hour_cents = ?,
               available_start = ?, available_end = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, res.Name, res.Category, res.Location, res.PricePerHourCents,
		res.AvailableStart.UTC(), res.AvailableEnd.UTC(), res.ID); err != nil {
		return err
	}
	updated, err := r.GetByID(ctx, res.ID)
	if err != nil {
		return err
	}
	*res = *updated
	return nil
}

// Delete removes a resource owned by ownerID together with its booking
// history. It refuses with ErrConflict while confirmed bookings that have
// not ended yet exist.
func (r *ResourceRepo) Delete(ctx context.Context, ownerID, id uint64, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := r.LockTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if res.OwnerID != ownerID {
		return ErrForbidden
	}
	var upcoming int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE resource_id = ? AND status = ? AND end_time > ?`,
		id, model.BookingConfirmed, now.UTC()).Scan(&upcoming); err != nil {
		return err
	}
	if upcoming > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE resource_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
