package handlers

import (
	"log/slog"
	"net/http"
)

// HandleReset starts over: it asks the backend to forget the resume, then drops the local session no
// matter how the backend answered.
func (m Main) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := m.loadSession(w, r)
	if err != nil {
		// Keep going, the stored session is dropped below anyway.
		m.logger.Error("Failed to load session", slog.String(errLoggerKey, err.Error()))
	}

	if err := m.backend.Reset(r.Context()); err != nil {
		m.logger.Warn("Backend reset failed, clearing local session anyway", slog.String(errLoggerKey, err.Error()))
	}

	if session.ID == "" {
		c, cerr := r.Cookie(sessionCookieName)
		if cerr != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		session.ID = c.Value
	}

	if err := m.store.DeleteSession(r.Context(), session.ID); err != nil {
		m.logger.Error("Failed to delete session",
			slog.String("sessionID", session.ID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	session.Clear()
	m.respond(w, r, session)
}
