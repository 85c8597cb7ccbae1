package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"venuepass/internal/domain"
)

// Backend is the part of the registration backend the wizard talks to.
type Backend interface {
	VerifyPhone(ctx context.Context, req domain.VerifyPhoneRequest) (domain.VerifyPhoneResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error)
}

// Wizard owns one Session. The lock is never held across a backend call;
// Session.Pending keeps a second submission out while one is in flight.
type Wizard struct {
	backend  Backend
	logger   *slog.Logger
	observer func(Session)

	mu      sync.Mutex
	session Session
	closed  bool
}

type Option func(*Wizard)

func WithLogger(l *slog.Logger) Option {
	return func(w *Wizard) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithObserver registers fn to receive every session change.
func WithObserver(fn func(Session)) Option {
	return func(w *Wizard) { w.observer = fn }
}

func New(eventID string, backend Backend, opts ...Option) *Wizard {
	w := &Wizard{
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		session: NewSession(eventID),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("event_id", eventID)
	return w
}

func (w *Wizard) Session() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.clone()
}

func (w *Wizard) SubmitPhone(ctx context.Context, input string) (Session, error) {
	return w.Dispatch(ctx, SubmitPhone{Input: input})
}

func (w *Wizard) SubmitDetails(ctx context.Context, name, email string) (Session, error) {
	return w.Dispatch(ctx, SubmitDetails{Name: name, Email: email})
}

func (w *Wizard) Dismiss(ctx context.Context) (Session, error) {
	return w.Dispatch(ctx, Dismiss{})
}

// Close tears the session down. Results of calls still in flight are
// discarded.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.logger.Debug("registration session closed", "session_id", w.session.ID)
}

// Dispatch applies msg and runs the resulting commands until the session
// settles. It blocks for the duration of any backend call.
func (w *Wizard) Dispatch(ctx context.Context, msg Msg) (Session, error) {
	s, cmd, err := w.apply(msg)
	for cmd != nil {
		s, cmd, err = w.apply(w.execute(ctx, cmd))
	}
	return s, err
}

func (w *Wizard) apply(msg Msg) (Session, Cmd, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Debug("dropping message for closed session", "msg", fmt.Sprintf("%T", msg))
		return Session{}, nil, ErrClosed
	}
	prev := w.session
	next, cmd, err := Transition(prev, msg)
	w.session = next
	observer := w.observer
	w.mu.Unlock()

	attrs := []any{
		"session_id", next.ID,
		"msg", fmt.Sprintf("%T", msg),
		"step", next.Step.String(),
		"pending", next.Pending.String(),
	}
	if err != nil {
		w.logger.Info("registration transition rejected", append(attrs, "error", err)...)
	} else {
		w.logger.Debug("registration transition", attrs...)
	}
	if observer != nil && (prev.ID != next.ID || prev.Step != next.Step || prev.Pending != next.Pending || prev.Outcome != next.Outcome) {
		observer(next.clone())
	}
	return next.clone(), cmd, err
}

func (w *Wizard) execute(ctx context.Context, cmd Cmd) Msg {
	switch c := cmd.(type) {
	case VerifyPhone:
		resp, err := w.backend.VerifyPhone(ctx, c.Request)
		if err != nil {
			w.logger.Warn("verify phone request failed", "phone", MaskPhone(c.Request.Phone), "error", err)
			return PhoneVerificationFailed{Reason: MsgCannotConnect}
		}
		if !resp.Success {
			return PhoneVerificationFailed{Reason: orDefault(resp.Message, MsgVerificationFailed)}
		}
		return PhoneVerified{UserExists: resp.UserExists, Identity: resp.Data}
	case SubmitRegistration:
		resp, err := w.backend.Register(ctx, c.Request)
		if err != nil {
			w.logger.Warn("register request failed", "phone", MaskPhone(c.Request.Phone), "error", err)
			return RegistrationFailed{Reason: MsgRegistrationFailed}
		}
		if !resp.Success {
			return RegistrationFailed{Reason: orDefault(resp.Message, MsgRegistrationFailed)}
		}
		return Registered{Message: resp.Message}
	default:
		panic(fmt.Sprintf("wizard: unknown command %T", cmd))
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
