// Package services implements the collaborators of the web handlers: the client of the remote mentor
// backend and the session stores.
package services

import (
	"encoding/json"
	"fmt"

	"github.com/career-mentor/mentor-web-ui/internal/models"
)

const errLoggerKey = "err"

// decodeSession unmarshals a stored session and rejects transcripts with unknown roles.
func decodeSession(data []byte) (models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return models.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	for i, msg := range session.Messages {
		if !msg.Role.Valid() {
			return models.Session{}, fmt.Errorf("message %d has unknown role %q", i, msg.Role)
		}
	}
	return session, nil
}
