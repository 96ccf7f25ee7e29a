package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/resource-booking/internal/model"
)

// BookingRepo reads and writes the bookings table. Overlap checks and
// inserts that must be atomic take an explicit *sql.Tx; the caller owns
// commit and rollback.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, resource_id, user_id, start_time, end_time, status, created_at, cancelled_at`

// overlapWhere matches confirmed bookings intersecting the half-open range
// given as (resource_id, end, start).
const overlapWhere = `resource_id = ? AND status = 'CONFIRMED' AND start_time < ? AND end_time > ?`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b           model.Booking
		cancelledAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.ResourceID, &b.UserID, &b.Start, &b.End, &b.Status, &b.CreatedAt, &cancelledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

func listBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func countOverlapping(ctx context.Context, q querier, resourceID uint64, start, end time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE `+overlapWhere,
		resourceID, end.UTC(), start.UTC()).Scan(&n)
	return n, err
}

// CountOverlapping counts confirmed bookings of the resource that intersect
// [start, end). It takes no locks and is only advisory.
func (r *BookingRepo) CountOverlapping(ctx context.Context, resourceID uint64, start, end time.Time) (int, error) {
	return countOverlapping(ctx, r.db, resourceID, start, end)
}

// CountOverlappingTx is CountOverlapping inside tx. Combined with
// ResourceRepo.LockTx on the same tx it is authoritative.
func (r *BookingRepo) CountOverlappingTx(ctx context.Context, tx *sql.Tx, resourceID uint64, start, end time.Time) (int, error) {
	return countOverlapping(ctx, tx, resourceID, start, end)
}

// CreateTx inserts a confirmed booking and reads the row back so that ID
// and CreatedAt are populated.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (resource_id, user_id, start_time, end_time, status) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, b.ResourceID, b.UserID, b.Start.UTC(), b.End.UTC(), model.BookingConfirmed)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*b = *created
	return nil
}

// ListByResourceBetween returns confirmed bookings of the resource that
// intersect [from, to), ordered by start.
func (r *BookingRepo) ListByResourceBetween(ctx context.Context, resourceID uint64, from, to time.Time) ([]model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+overlapWhere+` ORDER BY start_time`,
		resourceID, to.UTC(), from.UTC())
}

// ListByUser returns all bookings of a user, newest start first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY start_time DESC`, userID)
}

func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
}

// GetForUpdateTx reads and row-locks a booking.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
}

// CancelTx marks a confirmed booking as cancelled. It returns
// ErrBookingNotFound if the booking was not in CONFIRMED state.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
		model.BookingCancelled, at.UTC(), id, model.BookingConfirmed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}
