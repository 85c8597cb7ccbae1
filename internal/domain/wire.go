package domain

import (
	"fmt"
	"strings"
	"time"
)

// Wire shapes of the landing/registration backend. Field names are part of
// the contract.

type EventData struct {
	ID                string   `json:"id,omitempty"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	StartTime         string   `json:"startTime"`
	EndTime           string   `json:"endTime"`
	RegistrationStart string   `json:"registrationStart"`
	RegistrationEnd   string   `json:"registrationEnd"`
	Capacity          int      `json:"capacity"`
	AvailableSpots    int      `json:"availableSpots"`
	Images            []string `json:"images"`
}

type EventResponse struct {
	Success bool       `json:"success"`
	Data    *EventData `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
}

type EventBuckets struct {
	Upcoming []EventData `json:"upcoming"`
	Ongoing  []EventData `json:"ongoing"`
	Past     []EventData `json:"past"`
}

type EventListResponse struct {
	Success bool          `json:"success"`
	Data    *EventBuckets `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone"`
}

type VerifyPhoneResponse struct {
	Success    bool      `json:"success"`
	UserExists bool      `json:"userExists"`
	Data       *Identity `json:"data,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// RegisterRequest omits name and email for known identities.
type RegisterRequest struct {
	Phone   string `json:"phone"`
	EventID string `json:"eventId"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseInstant accepts RFC 3339 with or without fractional seconds, and the
// zone-less forms some backends emit (read as UTC).
func ParseInstant(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
}

// FormatInstant renders t the way the backend emits it.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// EventFromWire converts a wire event, failing on any missing or malformed
// instant or a violated window invariant.
func EventFromWire(d EventData) (Event, error) {
	ev := Event{
		ID:             d.ID,
		Name:           d.Name,
		Description:    d.Description,
		Capacity:       d.Capacity,
		AvailableSpots: d.AvailableSpots,
		Images:         append([]string(nil), d.Images...),
	}
	fields := []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"startTime", d.StartTime, &ev.StartTime},
		{"endTime", d.EndTime, &ev.EndTime},
		{"registrationStart", d.RegistrationStart, &ev.RegistrationStart},
		{"registrationEnd", d.RegistrationEnd, &ev.RegistrationEnd},
	}
	for _, f := range fields {
		t, err := ParseInstant(f.raw)
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = t
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func EventToWire(ev Event) EventData {
	images := ev.Images
	if images == nil {
		images = []string{}
	}
	return EventData{
		ID:                ev.ID,
		Name:              ev.Name,
		Description:       ev.Description,
		StartTime:         FormatInstant(ev.StartTime),
		EndTime:           FormatInstant(ev.EndTime),
		RegistrationStart: FormatInstant(ev.RegistrationStart),
		RegistrationEnd:   FormatInstant(ev.RegistrationEnd),
		Capacity:          ev.Capacity,
		AvailableSpots:    ev.AvailableSpots,
		Images:            images,
	}
}
