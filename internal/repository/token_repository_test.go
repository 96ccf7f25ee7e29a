package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"
)

func newAuthMock(t *testing.T) (sqlmock.Sqlmock, *UserRepo, *TokenRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewUserRepo(db), NewTokenRepo(db)
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	mock, users, _ := newAuthMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("ada@example.com", sqlmock.AnyArg(), "CUSTOMER").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := users.Create(context.Background(), "ADA@example.com", "correct horse", "CUSTOMER", bcrypt.MinCost)
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTokenRepo_RotateRevokesOldAndStoresNew(t *testing.T) {
	mock, _, tokens := newAuthMock(t)
	exp := time.Now().Add(24 * time.Hour).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE")).
		WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(7, time.Now().Add(time.Hour).UTC(), nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=?")).
		WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(uint64(7), "new", exp).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	uid, err := tokens.Rotate(context.Background(), "old", "new", exp)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if uid != 7 {
		t.Fatalf("uid = %d", uid)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTokenRepo_ValidateRejectsRevokedAndExpired(t *testing.T) {
	cols := []string{"user_id", "expires_at", "revoked_at"}
	cases := map[string]*sqlmock.Rows{
		"revoked": sqlmock.NewRows(cols).AddRow(7, time.Now().Add(time.Hour).UTC(), time.Now().UTC()),
		"expired": sqlmock.NewRows(cols).AddRow(7, time.Now().Add(-time.Minute).UTC(), nil),
		"missing": sqlmock.NewRows(cols),
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			mock, _, tokens := newAuthMock(t)
			mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
				WithArgs("h").
				WillReturnRows(rows)
			if _, err := tokens.ValidateRefresh(context.Background(), "h"); !errors.Is(err, ErrInvalidRefresh) {
				t.Fatalf("got %v", err)
			}
		})
	}
}
