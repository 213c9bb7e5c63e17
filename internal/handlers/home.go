package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/models"
)

type message struct {
	Role      string
	Content   template.HTML
	Timestamp time.Time
}

type homePageData struct {
	ResumeUploaded bool
	Filename       string
	Messages       []message
	Notice         *models.Notice
}

func newPageData(session models.Session, notice *models.Notice) (homePageData, error) {
	msgs := make([]message, len(session.Messages))
	for i, msg := range session.Messages {
		content, err := models.RenderContent(msg.Content)
		if err != nil {
			return homePageData{}, fmt.Errorf("failed to render message %d: %w", i, err)
		}
		msgs[i] = message{
			Role:      string(msg.Role),
			Content:   content,
			Timestamp: msg.Timestamp,
		}
	}

	return homePageData{
		ResumeUploaded: session.ResumeUploaded,
		Filename:       session.Filename,
		Messages:       msgs,
		Notice:         notice,
	}, nil
}

// HandleHome renders the page for the caller's session: the sidebar with the upload control and the
// reset button, and the chat panel with the transcript. A pending notice is shown once and dropped.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := m.loadSession(w, r)
	if err != nil {
		m.logger.Error("Failed to load session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
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

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
