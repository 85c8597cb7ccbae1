// Package wizard implements the phone-verified registration flow as an
// explicit state machine. Transition is pure; Wizard runs the commands it
// returns against a Backend and feeds the results back in.
package wizard

import (
	"github.com/google/uuid"

	"venuepass/internal/domain"
)

type Step int

const (
	PhoneEntry Step = iota
	DetailsCollection
	Success
)

func (s Step) String() string {
	switch s {
	case PhoneEntry:
		return "phone_entry"
	case DetailsCollection:
		return "details_collection"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// Pending is the single in-flight request of a session.
type Pending int

const (
	None Pending = iota
	Verifying
	Submitting
)

func (p Pending) String() string {
	switch p {
	case None:
		return "none"
	case Verifying:
		return "verifying"
	case Submitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Outcome holds the last user-visible result. At most one field is set.
type Outcome struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Session is one registration attempt for one event page visit.
type Session struct {
	ID            string                `json:"id"`
	EventID       string                `json:"event_id"`
	Step          Step                  `json:"step"`
	Pending       Pending               `json:"pending"`
	Phone         string                `json:"phone,omitempty"`
	KnownIdentity *domain.Identity      `json:"known_identity,omitempty"`
	Contact       domain.ContactDetails `json:"contact"`
	Outcome       Outcome               `json:"outcome"`
}

func NewSession(eventID string) Session {
	return Session{
		ID:      uuid.NewString(),
		EventID: eventID,
		Step:    PhoneEntry,
	}
}

// Busy reports whether a request is in flight.
func (s Session) Busy() bool { return s.Pending != None }

func (s Session) clone() Session {
	if s.KnownIdentity != nil {
		id := *s.KnownIdentity
		s.KnownIdentity = &id
	}
	return s
}
