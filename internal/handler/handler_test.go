package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-booking/internal/middleware"
	"github.com/iliyamo/resource-booking/internal/model"
	"github.com/iliyamo/resource-booking/internal/repository"
	"github.com/iliyamo/resource-booking/internal/service"
	"github.com/iliyamo/resource-booking/internal/utils"
)

const secret = "handler-test-secret"

var (
	resourceCols = []string{"id", "owner_id", "name", "category", "location", "price_per_hour_cents",
		"available_start", "available_end", "created_at", "updated_at"}
	bookingCols = []string{"id", "resource_id", "user_id", "start_time", "end_time", "status", "created_at", "cancelled_at"}
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 14, h, m, 0, 0, time.UTC)
}

func resourceRow() *sqlmock.Rows {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(resourceCols).
		AddRow(5, 1, "Studio B", "studio", "Riverside", 2500, at(18, 0), at(22, 0), created, created)
}

type fixture struct {
	e    *echo.Echo
	mock sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	resources := repository.NewResourceRepo(db)
	svc := service.NewBookingService(resources, repository.NewBookingRepo(db), nil)
	rh := NewResourceHandler(resources, svc, 30*time.Minute, nil)
	bh := NewBookingHandler(svc)

	e := echo.New()
	v1 := e.Group("/v1")
	v1.GET("/resources/:id", rh.Get)
	v1.GET("/resources/:id/bookings", rh.DayBookings)
	v1.GET("/resources/:id/slots", rh.Slots)
	v1.GET("/resources/:id/availability", rh.Availability)
	v1.POST("/bookings", bh.Create, middleware.JWTAuth(secret))
	return &fixture{e: e, mock: mock}
}

func (f *fixture) do(t *testing.T, method, target, body string, uid uint64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if uid != 0 {
		tok, err := utils.NewAccessToken(secret, uid, model.RoleCustomer, 5)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) verify(t *testing.T) {
	t.Helper()
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCreateBooking_EndBeforeStartIs422WithoutQueries(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"resourceId":5,"userId":9,"start":"2026-03-14T20:00:00Z","end":"2026-03-14T19:00:00Z"}`, 9)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	f.verify(t)
}

func TestCreateBooking_MalformedTimestampIs400(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"resourceId":5,"start":"14/03/2026 19:00","end":"2026-03-14T20:00:00Z"}`, 9)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d", rec.Code)
	}
	f.verify(t)
}

func TestCreateBooking_ForeignUserIs403(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"resourceId":5,"userId":10,"start":"2026-03-14T19:00:00Z","end":"2026-03-14T20:00:00Z"}`, 9)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d", rec.Code)
	}
	f.verify(t)
}

func TestCreateBooking_RequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"resourceId":5,"start":"2026-03-14T19:00:00Z","end":"2026-03-14T20:00:00Z"}`, 0)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestCreateBooking_OverlapIs409(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(resourceRow())
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings")).
		WithArgs(uint64(5), at(20, 0), at(19, 0)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectRollback()

	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"resourceId":5,"start":"2026-03-14T19:00:00Z","end":"2026-03-14T20:00:00Z"}`, 9)
	if rec.Code != http.StatusConflict {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	f.verify(t)
}

func TestCreateBooking_FractionalSecondsTruncated(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(resourceRow())
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings")).
		WithArgs(uint64(5), at(20, 0), at(19, 0)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectRollback()

	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"resourceId":5,"start":"2026-03-14T19:00:00.999Z","end":"2026-03-14T20:00:00.400Z"}`, 9)
	if rec.Code != http.StatusConflict {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	f.verify(t)
}

func TestParseTimestamp_DropsSubSecond(t *testing.T) {
	got, err := parseTimestamp(" 2026-03-14T21:00:00.75+02:00 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(at(19, 0)) || got.Location() != time.UTC {
		t.Fatalf("got %v", got)
	}
}

func TestCreateBooking_Created(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ? FOR UPDATE")).
		WillReturnRows(resourceRow())
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(uint64(5), uint64(9), at(19, 0), at(20, 0), model.BookingConfirmed).
		WillReturnResult(sqlmock.NewResult(77, 1))
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(77, 5, 9, at(19, 0), at(20, 0), model.BookingConfirmed, created, nil))
	f.mock.ExpectCommit()

	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"resourceId":5,"userId":9,"start":"2026-03-14T21:00:00+02:00","end":"2026-03-14T20:00:00Z"}`, 9)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var b model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ID != 77 || b.Status != model.BookingConfirmed {
		t.Fatalf("unexpected booking %+v", b)
	}
	f.verify(t)
}

func TestSlots_ListsStartCandidates(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WithArgs(uint64(5)).
		WillReturnRows(resourceRow())

	rec := f.do(t, http.MethodGet, "/v1/resources/5/slots?step=60", "", 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var got []time.Time
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []time.Time{at(18, 0), at(19, 0), at(20, 0), at(21, 0), at(22, 0)}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("slot %d = %v, want %v", i, got[i], want[i])
		}
	}
	f.verify(t)
}

func TestSlots_EndCandidatesAfterStart(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WillReturnRows(resourceRow())

	rec := f.do(t, http.MethodGet, "/v1/resources/5/slots?after=2026-03-14T21:00:00Z", "", 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	var got []time.Time
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(at(21, 30)) || !got[1].Equal(at(22, 0)) {
		t.Fatalf("got %v", got)
	}
}

func TestSlots_AfterBeforeWindowStaysInside(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WillReturnRows(resourceRow())

	rec := f.do(t, http.MethodGet, "/v1/resources/5/slots?after=2026-03-14T16:15:00Z&step=60", "", 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var got []time.Time
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []time.Time{at(18, 15), at(19, 15), at(20, 15), at(21, 15)}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("slot %d = %v, want %v", i, got[i], want[i])
		}
	}
	f.verify(t)
}

func TestSlots_NonPositiveStepIs400(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"step=0", "step=-15", "step=abc"} {
		if rec := f.do(t, http.MethodGet, "/v1/resources/5/slots?"+q, "", 0); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: got %d", q, rec.Code)
		}
	}
	f.verify(t)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WillReturnRows(resourceRow())
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings")).
		WithArgs(uint64(5), at(20, 0), at(19, 0)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	rec := f.do(t, http.MethodGet, "/v1/resources/5/availability?start=2026-03-14T19:00:00Z&end=2026-03-14T20:00:00Z", "", 0)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"available":true}` {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	f.verify(t)
}

func TestGetResource_NotFound(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows(resourceCols))

	if rec := f.do(t, http.MethodGet, "/v1/resources/404", "", 0); rec.Code != http.StatusNotFound {
		t.Fatalf("got %d", rec.Code)
	}
	f.verify(t)
}

func TestDayBookings_BadInput(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"", "?date=14-03-2026", "?date=2026-03-14&tz=Mars/Olympus"} {
		if rec := f.do(t, http.MethodGet, "/v1/resources/5/bookings"+q, "", 0); rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: got %d", q, rec.Code)
		}
	}
	f.verify(t)
}

func TestDayBookings_ListsDay(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WillReturnRows(resourceRow())
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(1, 5, 9, at(19, 0), at(20, 0), model.BookingConfirmed, created, nil))

	rec := f.do(t, http.MethodGet, "/v1/resources/5/bookings?date=2026-03-14", "", 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var list []model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("decode: %v %v", err, list)
	}
	f.verify(t)
}

func newOwnerFixture(t *testing.T, purged *int) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	resources := repository.NewResourceRepo(db)
	svc := service.NewBookingService(resources, repository.NewBookingRepo(db), nil)
	rh := NewResourceHandler(resources, svc, 30*time.Minute, func(context.Context) error {
		*purged++
		return nil
	})

	e := echo.New()
	g := e.Group("/v1", middleware.JWTAuth(secret))
	g.POST("/resources", rh.Create)
	g.PUT("/resources/:id", rh.Update)
	return &fixture{e: e, mock: mock}
}

const studioBody = `{"name":"Studio B","category":"studio","location":"Riverside","pricePerHourCents":2500,` +
	`"availableStart":"2026-03-14T18:00:00Z","availableEnd":"2026-03-14T22:00:00Z"}`

func TestCreateResource_PurgesCache(t *testing.T) {
	var purged int
	f := newOwnerFixture(t, &purged)
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resources")).
		WithArgs(uint64(1), "Studio B", "studio", "Riverside", uint32(2500), at(18, 0), at(22, 0)).
		WillReturnResult(sqlmock.NewResult(5, 1))
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WithArgs(uint64(5)).
		WillReturnRows(resourceRow())

	rec := f.do(t, http.MethodPost, "/v1/resources", studioBody, 1)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if purged != 1 {
		t.Fatalf("purged %d times", purged)
	}
	f.verify(t)
}

func TestCreateResource_InvertedWindowIs422(t *testing.T) {
	var purged int
	f := newOwnerFixture(t, &purged)
	body := strings.Replace(studioBody, "22:00:00Z", "17:00:00Z", 1)
	rec := f.do(t, http.MethodPost, "/v1/resources", body, 1)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if purged != 0 {
		t.Fatal("rejected write must not purge")
	}
	f.verify(t)
}

func TestUpdateResource_OtherOwnerIs403(t *testing.T) {
	var purged int
	f := newOwnerFixture(t, &purged)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = ?")).
		WithArgs(uint64(5)).
		WillReturnRows(resourceRow())

	rec := f.do(t, http.MethodPut, "/v1/resources/5", studioBody, 2)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	f.verify(t)
}
