package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/career-mentor/mentor-web-ui/internal/models"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

const (
	sessionCookieName = "mentor_session"
	// tabHeader identifies the browser tab that sent a script-driven request.
	tabHeader = "X-Tab-ID"
)

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// originTab returns the tab id of the request, or an empty string when it has none or an invalid one.
func originTab(r *http.Request) string {
	id := r.Header.Get(tabHeader)
	if !validSessionID(id) {
		return ""
	}
	return id
}

// loadSession resolves the browser's session from its cookie, issuing a new cookie when the request
// carries none or an invalid one.
func (m Main) loadSession(w http.ResponseWriter, r *http.Request) (models.Session, error) {
	id := ""
	if c, err := r.Cookie(sessionCookieName); err == nil && validSessionID(c.Value) {
		id = c.Value
	}

	if id == "" {
		id = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   m.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
		m.logger.Debug("New session", slog.String("sessionID", id))
	}

	session, err := m.store.Session(r.Context(), id)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// finish saves the session, publishes the new view to the session topic and answers the request: with
// the rendered app partial for script-driven requests, with a redirect to the page otherwise.
func (m Main) finish(w http.ResponseWriter, r *http.Request, session models.Session) {
	if err := m.store.SaveSession(r.Context(), session); err != nil {
		m.logger.Error("Failed to save session",
			slog.String("sessionID", session.ID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	m.respond(w, r, session)
}

func (m Main) respond(w http.ResponseWriter, r *http.Request, session models.Session) {
	m.publish(session, originTab(r))

	if r.Header.Get("HX-Request") != "true" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	notice := session.TakeNotice()
	if notice != nil {
		if err := m.store.SaveSession(r.Context(), session); err != nil {
			m.logger.Error("Failed to save session",
				slog.String("sessionID", session.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	data, err := newPageData(session, notice)
	if err != nil {
		m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "app", data); err != nil {
		m.logger.Error("Failed to execute app template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// publish pushes the session view, without its pending notice, to every client subscribed to the
// session. The event id is the originating tab, which already renders the view from its own response
// and skips the event; other sources get a fresh id. Failures only cost other tabs a refresh, so they
// are logged and dropped.
func (m Main) publish(session models.Session, tab string) {
	data, err := newPageData(session, nil)
	if err != nil {
		m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
		return
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "app", data); err != nil {
		m.logger.Error("Failed to execute app template", slog.String(errLoggerKey, err.Error()))
		return
	}

	if tab == "" {
		tab = uuid.New().String()
	}
	msg := sse.Message{
		ID:   sse.ID(tab),
		Type: sessionSSEType,
	}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, sessionTopic(session.ID)); err != nil {
		m.logger.Error("Failed to publish session",
			slog.String("sessionID", session.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}
