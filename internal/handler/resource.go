package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/resource-booking/internal/middleware"
	"github.com/iliyamo/resource-booking/internal/model"
	"github.com/iliyamo/resource-booking/internal/repository"
	"github.com/iliyamo/resource-booking/internal/service"
)

// ResourceHandler serves resource reads, availability queries and the
// owner's resource management.
type ResourceHandler struct {
	Resources   *repository.ResourceRepo
	Bookings    *service.BookingService
	DefaultStep time.Duration
	// Purge drops cached resource responses after an owner write. Optional.
	Purge func(ctx context.Context) error
}

func NewResourceHandler(res *repository.ResourceRepo, svc *service.BookingService, step time.Duration, purge func(context.Context) error) *ResourceHandler {
	if res == nil || svc == nil {
		panic("nil dependency passed to NewResourceHandler")
	}
	return &ResourceHandler{Resources: res, Bookings: svc, DefaultStep: step, Purge: purge}
}

func (h *ResourceHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	list, err := h.Resources.List(ctx)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ResourceHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	res, err := h.Resources.GetByID(ctx, id)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// DayBookings lists confirmed bookings intersecting one calendar day. The day
// is taken in the tz location when given and in UTC otherwise.
func (h *ResourceHandler) DayBookings(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	loc := time.UTC
	if tz := strings.TrimSpace(c.QueryParam("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return badRequest(c, "unknown tz")
		}
		loc = l
	}
	day, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), loc)
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	list, err := h.Bookings.ListForResourceDay(ctx, id, day)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Slots lists start candidates, or end candidates when after is given.
func (h *ResourceHandler) Slots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	step := h.DefaultStep
	if raw := c.QueryParam("step"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "step must be a positive number of minutes")
		}
		step = time.Duration(n) * time.Minute
	}
	after, has, err := queryTimestamp(c, "after")
	if err != nil {
		return badRequest(c, "after must be an RFC 3339 timestamp")
	}
	var afterPtr *time.Time
	if has {
		afterPtr = &after
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	list, err := h.Bookings.CandidateSlots(ctx, id, step, afterPtr)
	if err != nil {
		return failure(c, err)
	}
	for i := range list {
		list[i] = list[i].UTC()
	}
	return c.JSON(http.StatusOK, list)
}

// FreeSlots lists slot-sized unbooked intervals of [start, end). slot is in
// seconds.
func (h *ResourceHandler) FreeSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	start, hasStart, err1 := queryTimestamp(c, "start")
	end, hasEnd, err2 := queryTimestamp(c, "end")
	if !hasStart || !hasEnd || err1 != nil || err2 != nil {
		return badRequest(c, "start and end must be RFC 3339 timestamps")
	}
	secs, err := strconv.Atoi(c.QueryParam("slot"))
	if err != nil || secs <= 0 {
		return badRequest(c, "slot must be a positive number of seconds")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	list, err := h.Bookings.FreeSlots(ctx, id, start, end, time.Duration(secs)*time.Second)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Availability answers whether [start, end) is currently free.
func (h *ResourceHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	start, hasStart, err1 := queryTimestamp(c, "start")
	end, hasEnd, err2 := queryTimestamp(c, "end")
	if !hasStart || !hasEnd || err1 != nil || err2 != nil {
		return badRequest(c, "start and end must be RFC 3339 timestamps")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	free, err := h.Bookings.CheckAvailable(ctx, id, start, end)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": free})
}

type resourceReq struct {
	Name              string `json:"name"`
	Category          string `json:"category"`
	Location          string `json:"location"`
	PricePerHourCents uint32 `json:"pricePerHourCents"`
	AvailableStart    string `json:"availableStart"`
	AvailableEnd      string `json:"availableEnd"`
}

func (h *ResourceHandler) bindResource(c echo.Context) (*model.Resource, error) {
	var req resourceReq
	if err := c.Bind(&req); err != nil {
		return nil, badRequest(c, "invalid body")
	}
	start, err1 := parseTimestamp(req.AvailableStart)
	end, err2 := parseTimestamp(req.AvailableEnd)
	if err1 != nil || err2 != nil {
		return nil, badRequest(c, "availableStart and availableEnd must be RFC 3339 timestamps")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, failure(c, &service.ValidationError{Reason: "name is required"})
	}
	if !start.Before(end) {
		return nil, failure(c, &service.ValidationError{Reason: "availableStart must be before availableEnd"})
	}
	return &model.Resource{
		Name:              name,
		Category:          strings.TrimSpace(req.Category),
		Location:          strings.TrimSpace(req.Location),
		PricePerHourCents: req.PricePerHourCents,
		AvailableStart:    start,
		AvailableEnd:      end,
	}, nil
}

func (h *ResourceHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	res, err := h.bindResource(c)
	if res == nil {
		return err
	}
	res.OwnerID = uid

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Resources.Create(ctx, res); err != nil {
		return failure(c, err)
	}
	h.purge(c)
	middleware.Logger(c).Info("resource created", zap.Uint64("resource_id", res.ID), zap.Uint64("owner_id", uid))
	return c.JSON(http.StatusCreated, res)
}

func (h *ResourceHandler) Update(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	res, err := h.bindResource(c)
	if res == nil {
		return err
	}
	res.ID = id

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Resources.Update(ctx, uid, res); err != nil {
		return failure(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, res)
}

func (h *ResourceHandler) Delete(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Resources.Delete(ctx, uid, id, time.Now()); err != nil {
		return failure(c, err)
	}
	h.purge(c)
	middleware.Logger(c).Info("resource deleted", zap.Uint64("resource_id", id), zap.Uint64("owner_id", uid))
	return c.NoContent(http.StatusNoContent)
}

func (h *ResourceHandler) purge(c echo.Context) {
	if h.Purge == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
	defer cancel()
	if err := h.Purge(ctx); err != nil {
		middleware.Logger(c).Warn("cache purge failed", zap.Error(err))
	}
}
