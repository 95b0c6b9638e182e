package utility

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RunID identifies a fitted model or a cross-validation run.
type RunID = uuid.UUID

var (
	sessionID     RunID
	sessionIDOnce sync.Once
)

// SessionID is fixed for the lifetime of the process and tags every log line
// of a CLI invocation.
func SessionID() RunID {
	sessionIDOnce.Do(func() {
		sessionID = uuid.Must(uuid.NewV7())
	})
	return sessionID
}

// NewRunID returns a time-ordered identifier, so ids sort by creation time.
func NewRunID() RunID {
	return uuid.Must(uuid.NewV7())
}

func ParseRunID(s string) (RunID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run id %q: %w", s, err)
	}
	return id, nil
}
