package wizard

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"venuepass/internal/domain"
)

var (
	ErrInvalidPhone       = errors.New("phone must be exactly 10 digits")
	ErrInvalidDetails     = errors.New("name and email are required")
	ErrBusy               = errors.New("a request is already in flight")
	ErrStale              = errors.New("result does not match the pending request")
	ErrWrongStep          = errors.New("action not allowed in current step")
	ErrClosed             = errors.New("registration session closed")
	ErrVerificationFailed = errors.New("phone verification failed")
	ErrRegistrationFailed = errors.New("registration failed")
)

// User-visible messages.
const (
	MsgInvalidPhone       = "Please enter a valid 10-digit phone number"
	MsgInvalidDetails     = "Please enter your name and email"
	MsgCannotConnect      = "Cannot connect to server"
	MsgVerificationFailed = "Phone verification failed"
	MsgRegistrationFailed = "Registration failed"
)

var contactValidator = validator.New()

// Msg is an input to the state machine.
type Msg interface{ isMsg() }

type SubmitPhone struct{ Input string }

type PhoneVerified struct {
	UserExists bool
	Identity   *domain.Identity
}

type PhoneVerificationFailed struct{ Reason string }

type SubmitDetails struct{ Name, Email string }

type Registered struct{ Message string }

type RegistrationFailed struct{ Reason string }

// Dismiss acknowledges Success and starts over.
type Dismiss struct{}

func (SubmitPhone) isMsg()             {}
func (PhoneVerified) isMsg()           {}
func (PhoneVerificationFailed) isMsg() {}
func (SubmitDetails) isMsg()           {}
func (Registered) isMsg()              {}
func (RegistrationFailed) isMsg()      {}
func (Dismiss) isMsg()                 {}

// Cmd is a side effect requested by a transition.
type Cmd interface{ isCmd() }

type VerifyPhone struct{ Request domain.VerifyPhoneRequest }

type SubmitRegistration struct{ Request domain.RegisterRequest }

func (VerifyPhone) isCmd()        {}
func (SubmitRegistration) isCmd() {}

// Transition is the only place a Session changes. Rejected inputs return the
// session with Outcome.Error set (when user-visible) and a non-nil error;
// ErrBusy and ErrStale leave the session untouched.
func Transition(s Session, msg Msg) (Session, Cmd, error) {
	switch m := msg.(type) {
	case SubmitPhone:
		return submitPhone(s, m)
	case PhoneVerified:
		return phoneVerified(s, m)
	case PhoneVerificationFailed:
		if s.Pending != Verifying {
			return s, nil, ErrStale
		}
		s.Pending = None
		s.Outcome = Outcome{Error: m.Reason}
		return s, nil, fmt.Errorf("%w: %s", ErrVerificationFailed, m.Reason)
	case SubmitDetails:
		return submitDetails(s, m)
	case Registered:
		if s.Pending != Submitting {
			return s, nil, ErrStale
		}
		s.Pending = None
		s.Step = Success
		s.Outcome = Outcome{Message: m.Message}
		return s, nil, nil
	case RegistrationFailed:
		if s.Pending != Submitting {
			return s, nil, ErrStale
		}
		s.Pending = None
		s.Outcome = Outcome{Error: m.Reason}
		return s, nil, fmt.Errorf("%w: %s", ErrRegistrationFailed, m.Reason)
	case Dismiss:
		if s.Step != Success || s.Busy() {
			return s, nil, ErrWrongStep
		}
		return NewSession(s.EventID), nil, nil
	default:
		return s, nil, fmt.Errorf("unknown message %T", msg)
	}
}

func submitPhone(s Session, m SubmitPhone) (Session, Cmd, error) {
	if s.Busy() {
		return s, nil, ErrBusy
	}
	if s.Step != PhoneEntry {
		return s, nil, ErrWrongStep
	}
	phone, err := NormalizePhone(m.Input)
	if err != nil {
		s.Outcome = Outcome{Error: MsgInvalidPhone}
		return s, nil, err
	}
	s.Phone = phone
	s.KnownIdentity = nil
	s.Pending = Verifying
	s.Outcome = Outcome{}
	return s, VerifyPhone{Request: domain.VerifyPhoneRequest{Phone: phone}}, nil
}

func phoneVerified(s Session, m PhoneVerified) (Session, Cmd, error) {
	if s.Pending != Verifying {
		return s, nil, ErrStale
	}
	if !m.UserExists {
		s.Pending = None
		s.Step = DetailsCollection
		return s, nil, nil
	}
	// Known identities never re-enter contact details.
	identity := domain.Identity{Phone: s.Phone}
	if m.Identity != nil {
		identity = *m.Identity
	}
	s.KnownIdentity = &identity
	s.Pending = Submitting
	return s, SubmitRegistration{Request: domain.RegisterRequest{
		Phone:   s.Phone,
		EventID: s.EventID,
	}}, nil
}

func submitDetails(s Session, m SubmitDetails) (Session, Cmd, error) {
	if s.Busy() {
		return s, nil, ErrBusy
	}
	if s.Step != DetailsCollection {
		return s, nil, ErrWrongStep
	}
	name, email := trimContact(m.Name, m.Email)
	contact := domain.ContactDetails{Name: name, Email: email}
	if err := contactValidator.Struct(contact); err != nil {
		s.Outcome = Outcome{Error: MsgInvalidDetails}
		return s, nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	s.Contact = contact
	s.Pending = Submitting
	s.Outcome = Outcome{}
	return s, SubmitRegistration{Request: domain.RegisterRequest{
		Phone:   s.Phone,
		EventID: s.EventID,
		Name:    contact.Name,
		Email:   contact.Email,
	}}, nil
}
