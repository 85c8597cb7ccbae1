package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"venuepass/internal/backend"
	"venuepass/internal/db"
	"venuepass/internal/domain"
	"venuepass/internal/engine"
	"venuepass/internal/eventpage"
	"venuepass/internal/migrate"
	"venuepass/internal/status"
	"venuepass/internal/wizard"
)

const fixtures = `events:
  - id: open
    name: Friday Night
    start_time: "+8h"
    end_time: "+12h"
    registration_start: "-24h"
    registration_end: "+2h"
    capacity: 5
  - id: soon
    name: Next Week
    start_time: "+170h"
    end_time: "+174h"
    registration_start: "+24h"
    registration_end: "+160h"
    capacity: 5
users:
  - phone: "5551234567"
    name: Jane Doe
    email: jane@example.com
`

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn)
	f, err := engine.ParseFixtures([]byte(fixtures))
	if err != nil {
		t.Fatalf("parse fixtures: %v", err)
	}
	if _, err := e.Seed(context.Background(), f); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/api"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestGetEventThroughClient(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	c := backend.New(srv.URL + "/api")

	resp, err := c.GetEvent(context.Background(), "open")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if !resp.Success || resp.Data == nil || resp.Data.AvailableSpots != 5 || resp.Data.Name != "Friday Night" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, err := domain.EventFromWire(*resp.Data); err != nil {
		t.Fatalf("served event does not parse: %v", err)
	}

	resp, err = c.GetEvent(context.Background(), "missing")
	if err != nil {
		t.Fatalf("missing event should decode as envelope: %v", err)
	}
	if resp.Success || resp.Message != engine.MsgEventNotFound {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestListEventsThroughClient(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := backend.New(srv.URL+"/api").ListEvents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Data == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Data.Upcoming) != 2 || len(resp.Data.Ongoing) != 0 || len(resp.Data.Past) != 0 {
		t.Fatalf("unexpected buckets %+v", resp.Data)
	}
	events, skipped := eventpage.DecodeEvents(*resp.Data)
	if skipped != 0 || len(events) != 2 {
		t.Fatalf("decode: %d events, %d skipped", len(events), skipped)
	}
}

func TestRegistrationFlowNewThenKnown(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()

	page := eventpage.New("open", backend.New(srv.URL+"/api"))
	defer page.Close()
	if err := page.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if page.Status() != status.Upcoming {
		t.Fatalf("expected upcoming, got %s", page.Status())
	}
	w, err := page.Registration()
	if err != nil {
		t.Fatalf("registration: %v", err)
	}

	s, err := w.SubmitPhone(ctx, "(555) 000-1111")
	if err != nil {
		t.Fatalf("submit phone: %v", err)
	}
	if s.Step != wizard.DetailsCollection {
		t.Fatalf("expected details step, got %s", s.Step)
	}
	s, err = w.SubmitDetails(ctx, "Sam", "sam@example.com")
	if err != nil {
		t.Fatalf("submit details: %v", err)
	}
	if s.Step != wizard.Success || s.Outcome.Message != engine.MsgRegistered {
		t.Fatalf("unexpected session %+v", s)
	}

	// The phone is now known, so a second attempt auto-registers and hits
	// the duplicate rule.
	if _, err := w.Dismiss(ctx); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	s, err = w.SubmitPhone(ctx, "5550001111")
	if err == nil {
		t.Fatalf("expected duplicate registration failure")
	}
	if s.Step != wizard.PhoneEntry || s.KnownIdentity == nil || s.KnownIdentity.Name != "Sam" {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.Outcome.Error != engine.MsgAlreadyRegistered {
		t.Fatalf("unexpected error %q", s.Outcome.Error)
	}

	if err := page.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if v := page.View(); v.Event == nil || v.Event.AvailableSpots != 4 {
		t.Fatalf("expected 4 spots left, got %+v", v.Event)
	}
}

func TestKnownIdentityAutoRegisters(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	w := wizard.New("open", backend.New(srv.URL+"/api"))
	s, err := w.SubmitPhone(context.Background(), "555-123-4567")
	if err != nil {
		t.Fatalf("submit phone: %v", err)
	}
	if s.Step != wizard.Success || s.KnownIdentity == nil || s.KnownIdentity.Email != "jane@example.com" {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestRegistrationNotOpen(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	page := eventpage.New("soon", backend.New(srv.URL+"/api"))
	defer page.Close()
	if err := page.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if page.Status() != status.RegistrationNotStarted {
		t.Fatalf("expected registration_not_started, got %s", page.Status())
	}
	if _, err := page.Registration(); err == nil {
		t.Fatalf("expected registration to be unavailable")
	}

	// The backend enforces the window on its own as well.
	resp, err := backend.New(srv.URL+"/api").Register(context.Background(), domain.RegisterRequest{Phone: "5551234567", EventID: "soon"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Message != engine.MsgRegistrationNotOpen {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMalformedBodyReturnsEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/web/landing/registration/verify-phone", map[string]any{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, data)
	}
	var env struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Success == nil || *env.Success || env.Message == "" {
		t.Fatalf("expected failure envelope, got %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/web/landing/registration/verify-phone", map[string]any{"phone": "123"})
	if res.StatusCode != http.StatusBadRequest || !strings.Contains(string(data), engine.MsgInvalidPhone) {
		t.Fatalf("expected invalid phone envelope, got %d: %s", res.StatusCode, data)
	}
}

func TestActivityAndOpenAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	if _, err := backend.New(srv.URL+"/api").VerifyPhone(context.Background(), domain.VerifyPhoneRequest{Phone: "5551234567"}); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/activity?entity_kind=user&limit=1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity status %d: %s", res.StatusCode, data)
	}
	var page paginatedActivity
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Type != "phone.verified" || page.Items[0].Payload["exists"] != true {
		t.Fatalf("unexpected activity %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/activity?cursor=abc", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad cursor to fail, got %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/openapi.json", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/api/web/landing/registration/register") {
		t.Fatalf("openapi not served: %d", res.StatusCode)
	}
}
