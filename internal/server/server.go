// Package server exposes the engine over the landing/registration HTTP
// contract so the client can run against a local backend.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"venuepass/internal/domain"
	"venuepass/internal/engine"
	"venuepass/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *slog.Logger
}

// apiError is the envelope for failures huma raises itself (bad JSON,
// schema violations) and for internal errors, so clients can always read
// success and message.
type apiError struct {
	status  int
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	ae := &apiError{status: status, Message: message}
	for _, err := range errs {
		if err != nil {
			ae.Errors = append(ae.Errors, err.Error())
		}
	}
	return ae
}

// New returns an HTTP handler exposing the landing API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, errs...)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg, errs...)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))

	hcfg := huma.DefaultConfig("Venuepass Landing API", "0.1.0")
	hcfg.OpenAPIPath = path.Join(basePath, "openapi")
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerEvents(group, cfg.Engine, logger)
	registerRegistration(group, cfg.Engine, logger)
	registerActivity(group, cfg.Engine)
	return router, nil
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	if logger != nil {
		logger.Info("backend listening", "addr", ln.Addr().String())
	}
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// statusFor maps engine errors that carry a client message onto an HTTP
// status; anything else is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidPhone), errors.Is(err, engine.ErrIdentityRequired):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrRegistrationNotOpen),
		errors.Is(err, engine.ErrAlreadyRegistered),
		errors.Is(err, engine.ErrEventFull):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func handleError(logger *slog.Logger, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	logger.Error("request failed", "error", err)
	return newAPIError(http.StatusInternalServerError, "internal error")
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine, logger *slog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/web/landing/registration/event/{id}",
		Summary:     "Get one event with its registration window",
		Tags:        []string{"landing"},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*eventOutput, error) {
		ev, err := e.GetEvent(ctx, input.ID)
		if err != nil {
			if msg := engine.Message(err); msg != "" {
				return &eventOutput{Status: statusFor(err), Body: domain.EventResponse{Message: msg}}, nil
			}
			return nil, handleError(logger, err)
		}
		data := domain.EventToWire(ev)
		return &eventOutput{Status: http.StatusOK, Body: domain.EventResponse{Success: true, Data: &data}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/web/landing/events/all",
		Summary:     "List events bucketed into upcoming, ongoing and past",
		Tags:        []string{"landing"},
	}, func(ctx context.Context, _ *struct{}) (*eventListOutput, error) {
		buckets, err := e.ListEvents(ctx)
		if err != nil {
			return nil, handleError(logger, err)
		}
		data := bucketsToWire(buckets)
		return &eventListOutput{Body: domain.EventListResponse{Success: true, Data: &data}}, nil
	})
}

func registerRegistration(api huma.API, e engine.Engine, logger *slog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "verify-phone",
		Method:      http.MethodPost,
		Path:        "/web/landing/registration/verify-phone",
		Summary:     "Look up a phone number",
		Tags:        []string{"registration"},
	}, func(ctx context.Context, input *struct {
		Body domain.VerifyPhoneRequest
	}) (*verifyPhoneOutput, error) {
		user, err := e.VerifyPhone(ctx, input.Body.Phone)
		if err != nil {
			if msg := engine.Message(err); msg != "" {
				return &verifyPhoneOutput{Status: statusFor(err), Body: domain.VerifyPhoneResponse{Message: msg}}, nil
			}
			return nil, handleError(logger, err)
		}
		out := &verifyPhoneOutput{Status: http.StatusOK, Body: domain.VerifyPhoneResponse{Success: true}}
		if user != nil {
			out.Body.UserExists = true
			out.Body.Data = &domain.Identity{Name: user.Name, Email: user.Email, Phone: user.Phone}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/web/landing/registration/register",
		Summary:     "Register a phone for an event",
		Description: "Name and email are read only when the phone is not known yet.",
		Tags:        []string{"registration"},
	}, func(ctx context.Context, input *struct {
		Body domain.RegisterRequest
	}) (*registerOutput, error) {
		reg, err := e.Register(ctx, engine.RegisterOptions{
			EventID: input.Body.EventID,
			Phone:   input.Body.Phone,
			Name:    input.Body.Name,
			Email:   input.Body.Email,
		})
		if err != nil {
			if msg := engine.Message(err); msg != "" {
				return &registerOutput{Status: statusFor(err), Body: domain.RegisterResponse{Message: msg}}, nil
			}
			return nil, handleError(logger, err)
		}
		logger.Info("registration created", "event_id", reg.EventID, "registration_id", reg.ID)
		return &registerOutput{Status: http.StatusOK, Body: domain.RegisterResponse{Success: true, Message: engine.MsgRegistered}}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "List recent backend activity",
		Tags:        []string{"admin"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:"event,user"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedActivity `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "invalid cursor")
			}
			cursorID = parsed
		}
		items, err := e.ActivityLog(ctx, limit+1, cursorID, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal error", err)
		}
		resp := paginatedActivity{Items: []ActivityResponse{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		for _, a := range items {
			resp.Items = append(resp.Items, activityResponse(a))
		}
		return &struct {
			Body paginatedActivity `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
