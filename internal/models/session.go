package models

import (
	"fmt"
	"time"
)

// Session holds everything the presentation layer renders for one browser session: the transcript,
// whether a resume has been accepted by the backend, and the name the backend registered it under.
//
// ResumeUploaded is true if and only if Filename is non-empty and an upload succeeded since the last
// Clear. The mutators below are the only code paths that touch those two fields.
type Session struct {
	ID             string    `json:"id"`
	Messages       []Message `json:"messages"`
	ResumeUploaded bool      `json:"resumeUploaded"`
	Filename       string    `json:"filename,omitempty"`
	Notice         *Notice   `json:"notice,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Notice is a one-shot banner shown on the next render and then discarded.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
}

// NoticeLevel selects the banner style.
type NoticeLevel string

const (
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
	NoticeSuccess NoticeLevel = "success"
)

// State is the presentation state derived from a session.
type State string

const (
	StateNoResume     State = "no_resume"
	StateResumeLoaded State = "resume_loaded"
)

// NewSession returns an empty session with the given id.
func NewSession(id string) Session {
	return Session{
		ID:        id,
		Messages:  []Message{},
		UpdatedAt: time.Now(),
	}
}

// State reports which of the two UI states the session is in.
func (s *Session) State() State {
	if s.ResumeUploaded {
		return StateResumeLoaded
	}
	return StateNoResume
}

// AppendMessage adds a message to the end of the transcript.
func (s *Session) AppendMessage(role Role, content string) Message {
	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.Timestamp
	return msg
}

// MarkUploaded records a successful upload and greets the user with the registered filename. An empty
// filename is rejected since it would break the upload invariant.
func (s *Session) MarkUploaded(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename is required")
	}
	s.ResumeUploaded = true
	s.Filename = filename
	s.AppendMessage(RoleAssistant, Greeting(filename))
	return nil
}

// Clear drops the transcript and upload status. The session keeps its id.
func (s *Session) Clear() {
	s.Messages = []Message{}
	s.ResumeUploaded = false
	s.Filename = ""
	s.Notice = nil
	s.UpdatedAt = time.Now()
}

// SetNotice replaces the pending notice.
func (s *Session) SetNotice(level NoticeLevel, text string) {
	s.Notice = &Notice{Level: level, Text: text}
}

// TakeNotice returns the pending notice, if any, and removes it from the session.
func (s *Session) TakeNotice() *Notice {
	n := s.Notice
	s.Notice = nil
	return n
}

// Greeting is the assistant message appended after the backend accepts a resume.
func Greeting(filename string) string {
	return fmt.Sprintf("I've finished analyzing **%s**. What would you like to know?", filename)
}
