package queue

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/resource-booking/internal/model"
)

func sampleEvent() BookingEvent {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	b := model.Booking{ID: 7, ResourceID: 5, UserID: 9, Start: day.Add(19 * time.Hour), End: day.Add(20 * time.Hour)}
	res := model.Resource{ID: 5, Name: "Studio B", Location: "Riverside"}
	return NewBookingEvent(TypeBookingConfirmed, b, res, day.Add(12*time.Hour))
}

func TestNewBookingEvent(t *testing.T) {
	ev := sampleEvent()
	if ev.StartTime != "2026-03-14T19:00:00Z" || ev.EndTime != "2026-03-14T20:00:00Z" {
		t.Fatalf("unexpected times %s %s", ev.StartTime, ev.EndTime)
	}
	if ev.ResourceName != "Studio B" || ev.Type != TypeBookingConfirmed {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestBookingLog_Handle(t *testing.T) {
	dir := t.TempDir()
	sink := NewBookingLog(dir)

	body, _ := json.Marshal(sampleEvent())
	if err := sink.Handle(body); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := sink.Handle(body); err != nil {
		t.Fatalf("Handle again: %v", err)
	}

	data, err := os.ReadFile(sink.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "booking.confirmed | booking_id=7") || !strings.Contains(lines[0], `resource="Studio B"`) {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestBookingLog_RejectsMalformed(t *testing.T) {
	sink := NewBookingLog(t.TempDir())
	for _, body := range []string{"not json", `{"type":""}`} {
		if err := sink.Handle([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
	if _, err := os.Stat(sink.Path()); !os.IsNotExist(err) {
		t.Fatalf("malformed messages should not create the log file")
	}
}
