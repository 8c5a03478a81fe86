package store

// Store defines the interface for session persistence operations.
// Implementations must be thread-safe and handle concurrent access
// gracefully.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if a session doesn't exist (for Load/Delete)
//   - Return descriptive errors for I/O, serialization, or validation failures
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveSession atomically saves a session. If a session already
	// exists under this ID, it is overwritten. Implementations should
	// use atomic write strategies (temp file + rename) to prevent
	// corruption on failure.
	SaveSession(id string, session *Session) error

	// LoadSession retrieves the session for the given ID.
	// Returns ErrNotFound if no session exists.
	LoadSession(id string) (*Session, error)

	// ListSessions returns metadata for all available sessions. The
	// returned slice may be empty.
	ListSessions() ([]SessionInfo, error)

	// DeleteSession removes the session and all associated artifacts,
	// including session.json and the trace in either form.
	// Returns ErrNotFound if no session exists.
	DeleteSession(id string) error
}

// ErrNotFound is returned when a requested session does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing session error.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "session not found: " + e.ID
	}
	return "session not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
