package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/models"
	"github.com/career-mentor/mentor-web-ui/internal/services"
)

func TestBoltDBSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	db, err := services.NewBoltDB(path, time.Hour)
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}

	s, err := db.Session(ctx, "a")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if s.ID != "a" || len(s.Messages) != 0 {
		t.Fatalf("Session() for unknown id = %+v, want fresh session", s)
	}

	if err := s.MarkUploaded("cv.pdf"); err != nil {
		t.Fatal(err)
	}
	s.AppendMessage(models.RoleUser, "What should I learn next?")
	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen to make sure the session survives within its ttl.
	db, err = services.NewBoltDB(path, time.Hour)
	if err != nil {
		t.Fatalf("NewBoltDB() reopen error = %v", err)
	}
	defer db.Close()

	got, err := db.Session(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !got.ResumeUploaded || got.Filename != "cv.pdf" || len(got.Messages) != 2 {
		t.Errorf("Session() = %+v, want stored session", got)
	}
	if got.Messages[1].Role != models.RoleUser {
		t.Errorf("second message role = %v, want user", got.Messages[1].Role)
	}

	if err := db.DeleteSession(ctx, "a"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	got, err = db.Session(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.ResumeUploaded || len(got.Messages) != 0 {
		t.Errorf("Session() after delete = %+v, want fresh", got)
	}

	if err := db.DeleteSession(ctx, "missing"); err != nil {
		t.Errorf("DeleteSession() on unknown id error = %v", err)
	}
}

func TestBoltDBExpiredSessionsArePurged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	db, err := services.NewBoltDB(path, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	s := models.NewSession("old")
	s.AppendMessage(models.RoleUser, "hi")
	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	got, err := db.Session(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 0 {
		t.Errorf("Session() of expired entry = %+v, want fresh", got)
	}

	if err := db.Purge(ctx); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
}
