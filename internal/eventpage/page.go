// Package eventpage coordinates one visit to an event page: it loads the
// event, keeps the countdown ticking, and only hands out the registration
// wizard while registration is open.
package eventpage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"venuepass/internal/domain"
	"venuepass/internal/status"
	"venuepass/internal/wizard"
)

var (
	ErrEventNotLoaded          = errors.New("event not loaded")
	ErrRegistrationUnavailable = errors.New("registration unavailable")
	ErrClosed                  = errors.New("event page closed")
)

const (
	MsgLoadFailed    = "Failed to load event details"
	MsgConnectFailed = "Failed to connect to server"
)

// Client is everything a page needs from the backend.
type Client interface {
	GetEvent(ctx context.Context, eventID string) (domain.EventResponse, error)
	wizard.Backend
}

type Page struct {
	eventID  string
	client   Client
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu        sync.Mutex
	event     *domain.Event
	loadErr   string
	stopTicks context.CancelFunc
	wiz       *wizard.Wizard
	closed    bool
}

type Option func(*Page)

func WithClock(now func() time.Time) Option {
	return func(p *Page) { p.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTickInterval overrides the one-second countdown period.
func WithTickInterval(d time.Duration) Option {
	return func(p *Page) {
		if d > 0 {
			p.interval = d
		}
	}
}

func New(eventID string, client Client, opts ...Option) *Page {
	p := &Page{
		eventID:  eventID,
		client:   client,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// View is a snapshot of what the page shows.
type View struct {
	EventID   string        `json:"event_id"`
	Event     *domain.Event `json:"-"`
	Status    status.Status `json:"status"`
	Headline  string        `json:"headline"`
	Countdown string        `json:"countdown,omitempty"`
	LoadError string        `json:"load_error,omitempty"`
}

// Load fetches the event. Any failure leaves the page without an event, so
// status stays checking. A running countdown is superseded and stopped.
func (p *Page) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()
	p.StopCountdown()

	resp, err := p.client.GetEvent(ctx, p.eventID)
	var (
		ev      *domain.Event
		loadErr string
		result  error
	)
	switch {
	case err != nil:
		loadErr = MsgConnectFailed
		result = fmt.Errorf("%w: %v", ErrEventNotLoaded, err)
	case !resp.Success || resp.Data == nil:
		loadErr = MsgLoadFailed
		result = fmt.Errorf("%w: %s", ErrEventNotLoaded, resp.Message)
	default:
		parsed, perr := domain.EventFromWire(*resp.Data)
		if perr != nil {
			loadErr = MsgLoadFailed
			result = fmt.Errorf("%w: %v", ErrEventNotLoaded, perr)
			break
		}
		if parsed.ID == "" {
			parsed.ID = p.eventID
		}
		ev = &parsed
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.event = ev
	p.loadErr = loadErr
	p.mu.Unlock()
	if result != nil {
		p.logger.Warn("event load failed", "event_id", p.eventID, "error", result)
	} else {
		p.logger.Debug("event loaded", "event_id", p.eventID, "status", p.Status())
	}
	return result
}

func (p *Page) Status() status.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return status.Resolve(p.now(), p.event)
}

// Countdown is empty until the event is loaded.
func (p *Page) Countdown() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.event == nil {
		return ""
	}
	return status.Countdown(p.now(), p.event.RegistrationEnd)
}

func (p *Page) LoadError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	st := status.Resolve(now, p.event)
	v := View{
		EventID:   p.eventID,
		Status:    st,
		Headline:  st.Headline(),
		LoadError: p.loadErr,
	}
	if p.event != nil {
		ev := *p.event
		v.Event = &ev
		v.Countdown = status.Countdown(now, ev.RegistrationEnd)
	}
	return v
}

// StartCountdown calls fn immediately and then once per interval until ctx
// ends, StopCountdown or Close is called, or a new Load supersedes it. fn
// runs on the ticker goroutine and must not call back into StopCountdown,
// Load or Close.
func (p *Page) StartCountdown(ctx context.Context, fn func(Tick)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.event == nil {
		p.mu.Unlock()
		return ErrEventNotLoaded
	}
	if p.stopTicks != nil {
		p.stopTicks()
	}
	tctx, cancel := context.WithCancel(ctx)
	p.stopTicks = cancel
	ev := *p.event
	p.mu.Unlock()

	go runCountdown(tctx, p.interval, p.now, &ev, fn)
	return nil
}

func (p *Page) StopCountdown() {
	p.mu.Lock()
	cancel := p.stopTicks
	p.stopTicks = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Registration returns the page's wizard, created on first use. It fails
// unless the event is currently upcoming.
func (p *Page) Registration() (*wizard.Wizard, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	st := status.Resolve(p.now(), p.event)
	if !st.RegistrationOpen() {
		return nil, fmt.Errorf("%w: %s", ErrRegistrationUnavailable, st.Headline())
	}
	if p.wiz == nil {
		p.wiz = wizard.New(p.eventID, p.client, wizard.WithLogger(p.logger))
	}
	return p.wiz, nil
}

// Close stops the countdown and discards the registration session.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancel := p.stopTicks
	p.stopTicks = nil
	wiz := p.wiz
	p.wiz = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if wiz != nil {
		wiz.Close()
	}
}
