// Package engine holds the registration rules of the local backend:
// event lookup, phone verification and capacity-checked registration.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"venuepass/internal/activity"
	"venuepass/internal/domain"
	"venuepass/internal/eventpage"
	"venuepass/internal/repo"
	"venuepass/internal/wizard"
)

var (
	ErrEventFull           = errors.New("event full")
	ErrAlreadyRegistered   = errors.New("already registered")
	ErrRegistrationNotOpen = errors.New("registration is not open")
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrIdentityRequired    = errors.New("name and email required for new users")
)

// Client-facing messages carried in response envelopes.
const (
	MsgEventNotFound       = "Event not found"
	MsgRegistrationNotOpen = "Registration is not open"
	MsgAlreadyRegistered   = "You are already registered for this event"
	MsgEventFull           = "Event full"
	MsgInvalidPhone        = "Invalid phone number"
	MsgIdentityRequired    = "Name and a valid email are required for new users"
	MsgRegistered          = "Registration successful"
)

// Message maps an engine error to the envelope message clients display.
func Message(err error) string {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return MsgEventNotFound
	case errors.Is(err, ErrRegistrationNotOpen):
		return MsgRegistrationNotOpen
	case errors.Is(err, ErrAlreadyRegistered):
		return MsgAlreadyRegistered
	case errors.Is(err, ErrEventFull):
		return MsgEventFull
	case errors.Is(err, ErrInvalidPhone):
		return MsgInvalidPhone
	case errors.Is(err, ErrIdentityRequired):
		return MsgIdentityRequired
	}
	return ""
}

var identityValidator = validator.New()

type newIdentity struct {
	Name  string `validate:"required,max=200"`
	Email string `validate:"required,email"`
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Now      func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{Now: time.Now},
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339Nano)
}

// journal keeps activity timestamps on the engine clock.
func (e Engine) journal() activity.Writer {
	w := e.Activity
	w.Now = e.now
	return w
}

func (e Engine) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Event{}, repo.ErrNotFound
	}
	return e.Repo.GetEvent(ctx, id)
}

// ListEvents buckets every event by its event window at the current time.
func (e Engine) ListEvents(ctx context.Context) (eventpage.Buckets, error) {
	events, err := e.Repo.ListEvents(ctx)
	if err != nil {
		return eventpage.Buckets{}, err
	}
	return eventpage.Categorize(e.now(), events), nil
}

// VerifyPhone returns the stored user for phone, or nil when the phone is
// unknown.
func (e Engine) VerifyPhone(ctx context.Context, phone string) (*domain.User, error) {
	normalized, err := wizard.NormalizePhone(phone)
	if err != nil {
		return nil, ErrInvalidPhone
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var user *domain.User
	u, err := e.Repo.GetUserTx(ctx, tx, normalized)
	switch {
	case err == nil:
		user = &u
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}
	if err := e.journal().Append(ctx, tx, activity.TypePhoneVerified, "user", normalized, activity.Payload{"exists": user != nil}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterOptions are the parameters of a registration. Name and Email are
// only read when the phone is unknown.
type RegisterOptions struct {
	EventID string
	Phone   string
	Name    string
	Email   string
}

// Register books a spot for the phone's user, creating the user first when
// the phone is unknown. The capacity check and insert share one transaction.
func (e Engine) Register(ctx context.Context, opts RegisterOptions) (domain.Registration, error) {
	phone, err := wizard.NormalizePhone(opts.Phone)
	if err != nil {
		return domain.Registration{}, ErrInvalidPhone
	}
	reg, err := e.register(ctx, phone, opts)
	if err != nil && Message(err) != "" {
		if jerr := e.journalRejection(ctx, opts.EventID, phone, err); jerr != nil {
			return domain.Registration{}, errors.Join(err, jerr)
		}
	}
	return reg, err
}

func (e Engine) register(ctx context.Context, phone string, opts RegisterOptions) (domain.Registration, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Registration{}, err
	}
	defer tx.Rollback()

	ev, err := e.Repo.GetEventTx(ctx, tx, opts.EventID)
	if err != nil {
		return domain.Registration{}, err
	}
	now := e.now()
	if now.Before(ev.RegistrationStart) || now.After(ev.RegistrationEnd) {
		return domain.Registration{}, ErrRegistrationNotOpen
	}

	j := e.journal()
	if _, err := e.Repo.GetUserTx(ctx, tx, phone); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return domain.Registration{}, err
		}
		id := newIdentity{Name: strings.TrimSpace(opts.Name), Email: strings.TrimSpace(opts.Email)}
		if err := identityValidator.Struct(id); err != nil {
			return domain.Registration{}, fmt.Errorf("%w: %v", ErrIdentityRequired, err)
		}
		user := domain.User{Phone: phone, Name: id.Name, Email: id.Email, CreatedAt: e.stamp()}
		if err := e.Repo.UpsertUserTx(ctx, tx, user); err != nil {
			return domain.Registration{}, fmt.Errorf("insert user: %w", err)
		}
		if err := j.Append(ctx, tx, activity.TypeUserCreated, "user", phone, activity.Payload{"name": user.Name}); err != nil {
			return domain.Registration{}, err
		}
	}

	exists, err := e.Repo.HasRegistrationTx(ctx, tx, ev.ID, phone)
	if err != nil {
		return domain.Registration{}, err
	}
	if exists {
		return domain.Registration{}, ErrAlreadyRegistered
	}
	if ev.AvailableSpots <= 0 {
		return domain.Registration{}, ErrEventFull
	}

	reg := domain.Registration{
		ID:        uuid.NewString(),
		EventID:   ev.ID,
		Phone:     phone,
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertRegistrationTx(ctx, tx, reg); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.Registration{}, ErrAlreadyRegistered
		}
		return domain.Registration{}, fmt.Errorf("insert registration: %w", err)
	}
	if err := j.Append(ctx, tx, activity.TypeRegistrationAdded, "event", ev.ID, activity.Payload{
		"registration_id": reg.ID,
		"phone":           wizard.MaskPhone(phone),
		"remaining":       ev.AvailableSpots - 1,
	}); err != nil {
		return domain.Registration{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

func (e Engine) journalRejection(ctx context.Context, eventID, phone string, cause error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.journal().Append(ctx, tx, activity.TypeRegistrationDenied, "event", eventID, activity.Payload{
		"phone":  wizard.MaskPhone(phone),
		"reason": Message(cause),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// ActivityLog returns the newest journal rows.
func (e Engine) ActivityLog(ctx context.Context, limit int, cursor int64, entityKind, entityID string) ([]domain.Activity, error) {
	return e.Repo.LatestActivity(ctx, limit, cursor, entityKind, entityID)
}
