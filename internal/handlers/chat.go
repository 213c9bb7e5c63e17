package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/career-mentor/mentor-web-ui/internal/models"
)

// NoResumeWarning is shown when the user chats before a resume has been accepted.
const NoResumeWarning = "Please upload your resume in the sidebar first."

// HandleChats processes a chat submission from the "message" form field.
//
// Without an uploaded resume the submission is refused with a warning and the backend is not called.
// Otherwise the prompt is appended to the transcript, sent to the backend, and the reply (or the error
// text that replaced it) is appended as the assistant's message.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	prompt := strings.TrimSpace(r.FormValue("message"))
	if prompt == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	session, err := m.loadSession(w, r)
	if err != nil {
		m.logger.Error("Failed to load session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !session.ResumeUploaded {
		session.SetNotice(models.NoticeWarning, NoResumeWarning)
		m.finish(w, r, session)
		return
	}

	session.AppendMessage(models.RoleUser, prompt)

	reply := m.backend.Query(r.Context(), prompt)
	session.AppendMessage(models.RoleAssistant, reply)

	m.logger.Debug("Answered prompt",
		slog.String("sessionID", session.ID),
		slog.Int("transcriptLength", len(session.Messages)))

	m.finish(w, r, session)
}
