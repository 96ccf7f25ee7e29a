// Package client is a typed HTTP client for the booking API. Every non-2xx
// response is mapped onto the error values in errors.go.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/resource-booking/internal/model"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

type Option func(*Client)

// WithToken attaches token as a bearer credential to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential, e.g. after Login.
func (c *Client) SetToken(token string) { c.token = strings.TrimSpace(token) }

// CreateBookingRequest is the body of POST /v1/bookings.
type CreateBookingRequest struct {
	ResourceID uint64    `json:"resourceId"`
	UserID     uint64    `json:"userId,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

func (c *Client) GetResource(ctx context.Context, id uint64) (*model.Resource, error) {
	var res model.Resource
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/resources/%d", id), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListBookings returns the confirmed bookings of the resource on day's
// calendar date. The date is interpreted in day's location when that is a
// named IANA zone; local and fixed-offset times are queried by their UTC date.
func (c *Client) ListBookings(ctx context.Context, resourceID uint64, day time.Time) ([]model.Booking, error) {
	q := dayQuery(day)
	var out []model.Booking
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/resources/%d/bookings", resourceID), q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func dayQuery(day time.Time) url.Values {
	q := url.Values{}
	name := day.Location().String()
	switch name {
	case "", "UTC", "Local":
		q.Set("date", day.UTC().Format("2006-01-02"))
		return q
	}
	if _, err := time.LoadLocation(name); err != nil {
		q.Set("date", day.UTC().Format("2006-01-02"))
		return q
	}
	q.Set("date", day.Format("2006-01-02"))
	q.Set("tz", name)
	return q
}

// Slots returns start candidates, or end candidates after *after. A zero
// step uses the server default.
func (c *Client) Slots(ctx context.Context, resourceID uint64, step time.Duration, after *time.Time) ([]time.Time, error) {
	q := url.Values{}
	if step > 0 {
		q.Set("step", strconv.Itoa(int(step/time.Minute)))
	}
	if after != nil {
		q.Set("after", after.UTC().Format(time.RFC3339))
	}
	var out []time.Time
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/resources/%d/slots", resourceID), q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckAvailable asks the server whether [start, end) is free.
func (c *Client) CheckAvailable(ctx context.Context, resourceID uint64, start, end time.Time) (bool, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/resources/%d/availability", resourceID), q, nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	req.Start = req.Start.UTC()
	req.End = req.End.UTC()
	var b model.Booking
	if err := c.do(ctx, http.MethodPost, "/v1/bookings", nil, req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Login exchanges credentials for an access token and keeps it for later
// calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, body, &out); err != nil {
		return "", err
	}
	c.SetToken(out.Access.Token)
	return out.Access.Token, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, out)
	}

	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	switch resp.StatusCode {
	case http.StatusConflict:
		return ErrConflict
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnprocessableEntity:
		reason := eb.Reason
		if reason == "" {
			reason = eb.Error
		}
		return &ValidationError{Reason: reason}
	}
	msg := eb.Error
	if eb.Message != "" {
		msg = eb.Message
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
