// Package repository holds the SQL access layer. Sentinel errors below let
// the service and handler layers distinguish failure scenarios without
// inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a row
// owned by someone else. Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot proceed because of
// dependent state, such as deleting a resource with upcoming bookings.
var ErrConflict = errors.New("conflict")

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrEmailExists      = errors.New("email already exists")
	ErrInvalidRefresh   = errors.New("refresh token invalid, expired or revoked")
)

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
