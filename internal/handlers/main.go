package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	mentorwebui "github.com/career-mentor/mentor-web-ui"
	"github.com/career-mentor/mentor-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Backend is the remote mentor service. Implementations never fail outright: upload problems come back
// in UploadResult.Error, query problems as the reply text, and reset problems only as a loggable error.
type Backend interface {
	UploadResume(ctx context.Context, name string, data []byte) models.UploadResult
	Query(ctx context.Context, prompt string) string
	Reset(ctx context.Context) error
}

// Store keeps sessions between requests. Session must return a fresh empty session for an unknown id.
type Store interface {
	Session(ctx context.Context, id string) (models.Session, error)
	SaveSession(ctx context.Context, session models.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// Main serves the mentor page and its form actions. Every mutating handler runs one synchronous backend
// call at most, saves the session, then projects the new session view to the browser: directly in the
// response, and through server-sent events to any other tab open on the same session.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	backend Backend
	store   Store

	secureCookies bool

	logger *slog.Logger
}

// Option customizes Main.
type Option func(*Main)

// WithSecureCookies marks the session cookie Secure, for deployments served over HTTPS.
func WithSecureCookies(secure bool) Option {
	return func(m *Main) {
		m.secureCookies = secure
	}
}

const errLoggerKey = "err"

var sessionSSEType = sse.Type("session")

// NewMain creates a new Main with the provided Backend and Store. It parses the HTML templates from the
// embedded filesystem and configures the SSE server so each client subscribes to its own session topic.
func NewMain(backend Backend, store Store, logger *slog.Logger, opts ...Option) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		mentorwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	m := Main{
		templates: tmpl,
		backend:   backend,
		store:     store,
		logger:    logger.With(slog.String("module", "main")),
	}
	for _, opt := range opts {
		opt(&m)
	}

	m.sseSrv = &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			c, err := s.Req.Cookie(sessionCookieName)
			if err != nil || !validSessionID(c.Value) {
				return sse.Subscription{}, false
			}

			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      []string{sse.DefaultTopic, sessionTopic(c.Value)},
			}, true
		},
	}

	return m, nil
}

func sessionTopic(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// HandleSSE streams session view updates to the browser.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// HandleHealth reports that the server is up. It does not probe the backend.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeSession")}
	// An SSE event without data is never dispatched by browsers
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
