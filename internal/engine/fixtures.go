package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"venuepass/internal/activity"
	"venuepass/internal/domain"
	"venuepass/internal/wizard"
)

// Fixtures is the YAML seed format for the local backend. Instants are
// absolute RFC 3339 values or offsets from now such as "+48h" or "-2h".
type Fixtures struct {
	Events []EventFixture `yaml:"events"`
	Users  []UserFixture  `yaml:"users"`
}

type EventFixture struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	StartTime         string   `yaml:"start_time"`
	EndTime           string   `yaml:"end_time"`
	RegistrationStart string   `yaml:"registration_start"`
	RegistrationEnd   string   `yaml:"registration_end"`
	Capacity          int      `yaml:"capacity"`
	Images            []string `yaml:"images"`
}

type UserFixture struct {
	Phone string `yaml:"phone"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type SeedResult struct {
	Events int `json:"events"`
	Users  int `json:"users"`
}

func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("invalid fixtures yaml: %w", err)
	}
	return f, nil
}

// Seed upserts every fixture in one transaction.
func (e Engine) Seed(ctx context.Context, f Fixtures) (SeedResult, error) {
	now := e.now()
	events := make([]domain.Event, 0, len(f.Events))
	for i, fx := range f.Events {
		ev, err := fx.resolve(now)
		if err != nil {
			return SeedResult{}, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, ev)
	}
	users := make([]domain.User, 0, len(f.Users))
	for i, fx := range f.Users {
		phone, err := wizard.NormalizePhone(fx.Phone)
		if err != nil {
			return SeedResult{}, fmt.Errorf("users[%d]: %w", i, err)
		}
		id := newIdentity{Name: strings.TrimSpace(fx.Name), Email: strings.TrimSpace(fx.Email)}
		if err := identityValidator.Struct(id); err != nil {
			return SeedResult{}, fmt.Errorf("users[%d]: %w", i, err)
		}
		users = append(users, domain.User{Phone: phone, Name: id.Name, Email: id.Email, CreatedAt: e.stamp()})
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return SeedResult{}, err
	}
	defer tx.Rollback()
	j := e.journal()
	for _, ev := range events {
		if err := e.Repo.UpsertEventTx(ctx, tx, ev, e.stamp()); err != nil {
			return SeedResult{}, fmt.Errorf("upsert event %s: %w", ev.ID, err)
		}
		if err := j.Append(ctx, tx, activity.TypeEventSeeded, "event", ev.ID, activity.Payload{"capacity": ev.Capacity}); err != nil {
			return SeedResult{}, err
		}
	}
	for _, u := range users {
		if err := e.Repo.UpsertUserTx(ctx, tx, u); err != nil {
			return SeedResult{}, fmt.Errorf("upsert user %s: %w", wizard.MaskPhone(u.Phone), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return SeedResult{}, err
	}
	return SeedResult{Events: len(events), Users: len(users)}, nil
}

func (fx EventFixture) resolve(now time.Time) (domain.Event, error) {
	if strings.TrimSpace(fx.ID) == "" {
		return domain.Event{}, fmt.Errorf("id is required")
	}
	if fx.Capacity < 0 {
		return domain.Event{}, fmt.Errorf("event %s: capacity must not be negative", fx.ID)
	}
	ev := domain.Event{
		ID:          fx.ID,
		Name:        fx.Name,
		Description: fx.Description,
		Capacity:    fx.Capacity,
		Images:      fx.Images,
	}
	var err error
	if ev.StartTime, err = fixtureInstant(now, fx.StartTime); err != nil {
		return ev, fmt.Errorf("event %s start_time: %w", fx.ID, err)
	}
	if ev.EndTime, err = fixtureInstant(now, fx.EndTime); err != nil {
		return ev, fmt.Errorf("event %s end_time: %w", fx.ID, err)
	}
	if ev.RegistrationStart, err = fixtureInstant(now, fx.RegistrationStart); err != nil {
		return ev, fmt.Errorf("event %s registration_start: %w", fx.ID, err)
	}
	if ev.RegistrationEnd, err = fixtureInstant(now, fx.RegistrationEnd); err != nil {
		return ev, fmt.Errorf("event %s registration_end: %w", fx.ID, err)
	}
	if err := ev.Validate(); err != nil {
		return ev, fmt.Errorf("event %s: %w", fx.ID, err)
	}
	return ev, nil
}

func fixtureInstant(now time.Time, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "+") || strings.HasPrefix(v, "-") {
		d, err := time.ParseDuration(v)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d).UTC().Truncate(time.Second), nil
	}
	return domain.ParseInstant(v)
}
