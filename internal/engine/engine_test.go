package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"venuepass/internal/db"
	"venuepass/internal/engine"
	"venuepass/internal/migrate"
	"venuepass/internal/repo"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

const seedYAML = `events:
  - id: open
    name: Friday Night
    start_time: "+8h"
    end_time: "+12h"
    registration_start: "-24h"
    registration_end: "+2h"
    capacity: 2
    images: [a.jpg]
  - id: later
    name: Next Month
    start_time: 2025-04-01T20:00:00Z
    end_time: 2025-04-02T02:00:00Z
    registration_start: 2025-03-20T00:00:00Z
    registration_end: 2025-04-01T18:00:00Z
    capacity: 50
  - id: done
    name: Last Week
    start_time: "-170h"
    end_time: "-166h"
    registration_start: "-400h"
    registration_end: "-180h"
    capacity: 10
users:
  - phone: "(555) 123-4567"
    name: Jane Doe
    email: jane@example.com
`

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn)
	eng.Now = func() time.Time { return testNow }
	fixtures, err := engine.ParseFixtures([]byte(seedYAML))
	if err != nil {
		t.Fatalf("parse fixtures: %v", err)
	}
	res, err := eng.Seed(ctx, fixtures)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Events != 3 || res.Users != 1 {
		t.Fatalf("unexpected seed result %+v", res)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func TestGetEvent(t *testing.T) {
	env := newTestEnv(t)
	ev, err := env.Engine.GetEvent(env.Ctx, "open")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if !ev.RegistrationEnd.Equal(testNow.Add(2*time.Hour)) || ev.AvailableSpots != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(ev.Images) != 1 || ev.Images[0] != "a.jpg" {
		t.Fatalf("images not stored: %v", ev.Images)
	}
	if _, err := env.Engine.GetEvent(env.Ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if engine.Message(repo.ErrNotFound) != engine.MsgEventNotFound {
		t.Fatalf("not found should map to %q", engine.MsgEventNotFound)
	}
}

func TestListEventsBuckets(t *testing.T) {
	env := newTestEnv(t)
	b, err := env.Engine.ListEvents(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Upcoming) != 2 || len(b.Ongoing) != 0 || len(b.Past) != 1 {
		t.Fatalf("unexpected buckets up=%d on=%d past=%d", len(b.Upcoming), len(b.Ongoing), len(b.Past))
	}
	if b.Upcoming[0].ID != "open" || b.Past[0].ID != "done" {
		t.Fatalf("unexpected order %s %s", b.Upcoming[0].ID, b.Past[0].ID)
	}
}

func TestVerifyPhone(t *testing.T) {
	env := newTestEnv(t)
	user, err := env.Engine.VerifyPhone(env.Ctx, "555.123.4567")
	if err != nil {
		t.Fatalf("verify known: %v", err)
	}
	if user == nil || user.Name != "Jane Doe" || user.Email != "jane@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	user, err = env.Engine.VerifyPhone(env.Ctx, "5559876543")
	if err != nil || user != nil {
		t.Fatalf("expected unknown phone, got %+v %v", user, err)
	}
	if _, err := env.Engine.VerifyPhone(env.Ctx, "12345"); !errors.Is(err, engine.ErrInvalidPhone) {
		t.Fatalf("expected invalid phone, got %v", err)
	}
	log, err := env.Engine.ActivityLog(env.Ctx, 10, 0, "user", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 || log[0].EntityID != "5559876543" {
		t.Fatalf("unexpected activity %+v", log)
	}
}

func TestRegisterKnownAndNewUsers(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{EventID: "open", Phone: "5551234567"})
	if err != nil {
		t.Fatalf("register known: %v", err)
	}
	if reg.ID == "" || reg.EventID != "open" {
		t.Fatalf("unexpected registration %+v", reg)
	}

	_, err = env.Engine.Register(env.Ctx, engine.RegisterOptions{EventID: "open", Phone: "5559876543"})
	if !errors.Is(err, engine.ErrIdentityRequired) {
		t.Fatalf("expected identity required, got %v", err)
	}
	_, err = env.Engine.Register(env.Ctx, engine.RegisterOptions{EventID: "open", Phone: "5559876543", Name: "Sam", Email: "not-an-email"})
	if !errors.Is(err, engine.ErrIdentityRequired) {
		t.Fatalf("expected invalid email rejection, got %v", err)
	}
	if _, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{EventID: "open", Phone: "5559876543", Name: "Sam", Email: "sam@example.com"}); err != nil {
		t.Fatalf("register new: %v", err)
	}
	user, err := env.Engine.VerifyPhone(env.Ctx, "5559876543")
	if err != nil || user == nil || user.Name != "Sam" {
		t.Fatalf("new user not stored: %+v %v", user, err)
	}

	ev, err := env.Engine.GetEvent(env.Ctx, "open")
	if err != nil {
		t.Fatal(err)
	}
	if ev.AvailableSpots != 0 {
		t.Fatalf("expected event to be full, spots=%d", ev.AvailableSpots)
	}
	regs, err := env.Engine.Repo.ListRegistrations(env.Ctx, "open")
	if err != nil || len(regs) != 2 {
		t.Fatalf("expected 2 registrations, got %d %v", len(regs), err)
	}
}

func TestRegisterRules(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{EventID: "open", Phone: "5551234567"}); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		opts engine.RegisterOptions
		want error
		msg  string
	}{
		{"duplicate", engine.RegisterOptions{EventID: "open", Phone: "555-123-4567"}, engine.ErrAlreadyRegistered, engine.MsgAlreadyRegistered},
		{"not started", engine.RegisterOptions{EventID: "later", Phone: "5551234567"}, engine.ErrRegistrationNotOpen, engine.MsgRegistrationNotOpen},
		{"closed", engine.RegisterOptions{EventID: "done", Phone: "5551234567"}, engine.ErrRegistrationNotOpen, engine.MsgRegistrationNotOpen},
		{"unknown event", engine.RegisterOptions{EventID: "nope", Phone: "5551234567"}, repo.ErrNotFound, engine.MsgEventNotFound},
		{"bad phone", engine.RegisterOptions{EventID: "open", Phone: "555"}, engine.ErrInvalidPhone, engine.MsgInvalidPhone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.Register(env.Ctx, tc.opts)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := engine.Message(err); got != tc.msg {
				t.Fatalf("message %q, want %q", got, tc.msg)
			}
		})
	}
}

func TestRegisterEventFull(t *testing.T) {
	env := newTestEnv(t)
	for _, opts := range []engine.RegisterOptions{
		{EventID: "open", Phone: "5551234567"},
		{EventID: "open", Phone: "5550000001", Name: "A", Email: "a@example.com"},
	} {
		if _, err := env.Engine.Register(env.Ctx, opts); err != nil {
			t.Fatalf("register %s: %v", opts.Phone, err)
		}
	}
	_, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{EventID: "open", Phone: "5550000002", Name: "B", Email: "b@example.com"})
	if !errors.Is(err, engine.ErrEventFull) {
		t.Fatalf("expected event full, got %v", err)
	}
	log, err := env.Engine.ActivityLog(env.Ctx, 1, 0, "event", "open")
	if err != nil || len(log) != 1 || log[0].Type != "registration.rejected" {
		t.Fatalf("expected rejection journal entry, got %+v %v", log, err)
	}
}

func TestSeedRejectsBadFixtures(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]string{
		"missing id":      "events:\n  - name: x\n    start_time: +1h\n    end_time: +2h\n    registration_start: -1h\n    registration_end: +1h\n",
		"inverted window": "events:\n  - id: x\n    start_time: +3h\n    end_time: +2h\n    registration_start: -1h\n    registration_end: +1h\n",
		"bad user phone":  "users:\n  - phone: \"12\"\n    name: A\n    email: a@example.com\n",
		"bad user email":  "users:\n  - phone: \"5550001111\"\n    name: A\n    email: nope\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := engine.ParseFixtures([]byte(doc))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := env.Engine.Seed(env.Ctx, f); err == nil {
				t.Fatalf("expected seed error")
			}
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	first, err := migrate.Migrate(context.Background(), conn)
	if err != nil {
		t.Fatal(err)
	}
	second, err := migrate.Migrate(context.Background(), conn)
	if err != nil {
		t.Fatal(err)
	}
	if first != 1 || second != 1 {
		t.Fatalf("unexpected schema versions %d %d", first, second)
	}
}
