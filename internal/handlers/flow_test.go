package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/career-mentor/mentor-web-ui/internal/models"
	"github.com/career-mentor/mentor-web-ui/internal/services"
)

type fakeMentor struct {
	uploads atomic.Int32
	queries atomic.Int32
	resets  atomic.Int32
}

func (f *fakeMentor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/upload-resume":
		f.uploads.Add(1)
		_, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"filename": header.Filename})
	case "/query":
		f.queries.Add(1)
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": "Question: " + body.Prompt + "\n...scratchpad text...\nYour Answer: The real answer",
		})
	case "/reset":
		f.resets.Add(1)
		_, _ = io.WriteString(w, `{"message": "ok"}`)
	default:
		http.NotFound(w, r)
	}
}

func TestMentorFlow(t *testing.T) {
	mentor := &fakeMentor{}
	srv := httptest.NewServer(mentor)
	defer srv.Close()

	backend, err := services.NewBackend(services.BackendConfig{URL: srv.URL}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	store := services.NewMemoryStore(0)
	defer store.Close()

	c := newClient(t, backend, store)

	c.chat("too early")
	if mentor.queries.Load() != 0 {
		t.Fatalf("backend queried before upload")
	}

	c.upload("resume.pdf", []byte("%PDF-1.7"))
	c.upload("again.pdf", []byte("%PDF-1.7"))
	if mentor.uploads.Load() != 1 {
		t.Fatalf("backend uploads = %d, want 1", mentor.uploads.Load())
	}

	c.chat("What are my strongest skills?")

	s, err := store.Session(context.Background(), c.cookie.Value)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Messages) != 3 {
		t.Fatalf("len(transcript) = %d, want 3: %+v", len(s.Messages), s.Messages)
	}
	if got := s.Messages[2].Content; got != "The real answer" {
		t.Errorf("assistant reply = %q, want %q", got, "The real answer")
	}

	page := c.home().Body.String()
	if !strings.Contains(page, "The real answer") || strings.Contains(page, "scratchpad") {
		t.Error("page should show only the trimmed answer")
	}

	c.reset()
	if mentor.resets.Load() != 1 {
		t.Errorf("backend resets = %d, want 1", mentor.resets.Load())
	}
	s, err = store.Session(context.Background(), c.cookie.Value)
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != models.StateNoResume || len(s.Messages) != 0 {
		t.Errorf("session after reset = %+v, want empty", s)
	}
}

func TestMentorFlowBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	backend, err := services.NewBackend(services.BackendConfig{URL: url}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	store := services.NewMemoryStore(0)
	defer store.Close()

	c := newClient(t, backend, store)
	c.upload("resume.pdf", []byte("%PDF-1.7"))

	s, err := store.Session(context.Background(), c.cookie.Value)
	if err != nil {
		t.Fatal(err)
	}
	if s.ResumeUploaded {
		t.Fatal("upload against an unreachable backend should not load a resume")
	}
	if s.Notice == nil || !strings.HasPrefix(s.Notice.Text, services.UploadErrorPrefix) {
		t.Errorf("notice = %+v, want upload error", s.Notice)
	}

	if w := c.reset(); w.Code != http.StatusSeeOther {
		t.Errorf("HandleReset() status = %v, want %v", w.Code, http.StatusSeeOther)
	}
}
