// Package status derives the presentation state of an event page from the
// current instant and the event's four time windows.
package status

import (
	"time"

	"venuepass/internal/domain"
)

type Status string

const (
	Past                   Status = "past"
	Ongoing                Status = "ongoing"
	Upcoming               Status = "upcoming"
	RegistrationNotStarted Status = "registration_not_started"
	RegistrationClosed     Status = "registration_closed"
	Checking               Status = "checking"
)

// All lists every status in evaluation order, placeholder last.
var All = []Status{Past, Ongoing, Upcoming, RegistrationNotStarted, RegistrationClosed, Checking}

// Resolve maps (now, event) to exactly one status. A nil event, or one with
// missing or inconsistent instants, resolves to Checking.
func Resolve(now time.Time, ev *domain.Event) Status {
	if ev == nil || ev.Validate() != nil {
		return Checking
	}
	switch {
	case now.After(ev.EndTime):
		return Past
	case !now.Before(ev.StartTime):
		return Ongoing
	case !now.Before(ev.RegistrationStart) && !now.After(ev.RegistrationEnd):
		return Upcoming
	case now.Before(ev.RegistrationStart):
		return RegistrationNotStarted
	default:
		return RegistrationClosed
	}
}

// RegistrationOpen reports whether the wizard may be entered.
func (s Status) RegistrationOpen() bool {
	return s == Upcoming
}

// Headline is the title of the read-only view shown instead of the wizard.
func (s Status) Headline() string {
	switch s {
	case Past:
		return "Event Has Ended"
	case Ongoing:
		return "Event is Live Now!"
	case RegistrationClosed:
		return "Registration Closed"
	case RegistrationNotStarted:
		return "Registration Opens Soon"
	case Upcoming:
		return "Register Now"
	default:
		return "Loading event details..."
	}
}

func (s Status) String() string { return string(s) }
