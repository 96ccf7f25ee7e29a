package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-booking/internal/middleware"
	"github.com/iliyamo/resource-booking/internal/service"
)

// BookingHandler serves the customer booking endpoints.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	if svc == nil {
		panic("nil BookingService passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: svc}
}

type createBookingReq struct {
	ResourceID uint64 `json:"resourceId"`
	UserID     uint64 `json:"userId"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// Create books [start, end) on a resource for the authenticated user.
// userId in the body is optional; when present it must match the token.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.UserID != 0 && req.UserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "userId does not match the authenticated user"})
	}
	start, err := parseTimestamp(req.Start)
	if err != nil {
		return badRequest(c, "start must be an RFC 3339 timestamp")
	}
	end, err := parseTimestamp(req.End)
	if err != nil {
		return badRequest(c, "end must be an RFC 3339 timestamp")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	b, err := h.Bookings.Submit(ctx, service.SubmitRequest{
		ResourceID: req.ResourceID,
		UserID:     uid,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	list, err := h.Bookings.ListForUser(ctx, uid)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) Get(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	b, err := h.Bookings.GetForUser(ctx, id, uid)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel releases the caller's booking before it starts.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	b, err := h.Bookings.Cancel(ctx, id, uid)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
