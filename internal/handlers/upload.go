package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/career-mentor/mentor-web-ui/internal/models"
)

const (
	uploadFieldName = "resume"
	maxUploadBytes  = 20 << 20

	missingFileError = "Please choose a PDF file to upload."
	notPDFError      = "Only PDF resumes are supported."
	tooLargeError    = "The resume is too large to upload."
)

// HandleUpload accepts a resume from the "resume" multipart field and forwards it to the backend.
//
// While a resume is loaded the handler is inert: nothing is read and the backend is not called. A
// rejected or failed upload leaves the session without a resume and shows the error text.
func (m Main) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
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

	if session.ResumeUploaded {
		m.logger.Debug("Ignoring upload while a resume is loaded", slog.String("sessionID", session.ID))
		m.respond(w, r, session)
		return
	}

	name, data, errText := readResume(w, r)
	if errText != "" {
		session.SetNotice(models.NoticeError, errText)
		m.finish(w, r, session)
		return
	}

	res := m.backend.UploadResume(r.Context(), name, data)
	if res.Failed() {
		session.SetNotice(models.NoticeError, res.Error)
		m.finish(w, r, session)
		return
	}

	if err := session.MarkUploaded(res.Filename); err != nil {
		m.logger.Error("Failed to mark upload", slog.String(errLoggerKey, err.Error()))
		session.SetNotice(models.NoticeError, err.Error())
	}

	m.finish(w, r, session)
}

// readResume returns the uploaded file, or the text to show when there is no usable file.
func readResume(w http.ResponseWriter, r *http.Request) (string, []byte, string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, tooLargeError
		}
		return "", nil, missingFileError
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", nil, notPDFError
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, tooLargeError
	}
	if len(data) == 0 {
		return "", nil, missingFileError
	}

	return name, data, ""
}
