package domain

import (
	"errors"
	"time"
)

// Event is the read-only view of a venue event. Only the four instants drive
// behaviour; the rest is carried for display.
type Event struct {
	ID                string
	Name              string
	Description       string
	StartTime         time.Time
	EndTime           time.Time
	RegistrationStart time.Time
	RegistrationEnd   time.Time
	Capacity          int
	AvailableSpots    int
	Images            []string
}

var (
	ErrMissingTimestamp   = errors.New("event timestamp missing")
	ErrRegistrationWindow = errors.New("registration start is after registration end")
	ErrEventWindow        = errors.New("event start is after event end")
)

// Validate checks the window invariants. Registration ending after the event
// starts is tolerated.
func (e Event) Validate() error {
	if e.StartTime.IsZero() || e.EndTime.IsZero() || e.RegistrationStart.IsZero() || e.RegistrationEnd.IsZero() {
		return ErrMissingTimestamp
	}
	if e.RegistrationStart.After(e.RegistrationEnd) {
		return ErrRegistrationWindow
	}
	if e.StartTime.After(e.EndTime) {
		return ErrEventWindow
	}
	return nil
}

// Identity is a profile already known to the backend, keyed by phone.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ContactDetails are collected from new identities only.
type ContactDetails struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type User struct {
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Registration struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Activity struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
