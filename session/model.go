package session

import "time"

// Session is one authenticated client context. The role is a snapshot taken when the
// session was created and is not refreshed from the directory.
type Session struct {
	SessionID string
	UserID    string
	Email     string
	Role      string

	IP        string
	UserAgent string

	CreatedAt    time.Time
	LastActivity time.Time
}

// Data is the caller-supplied part of a new session.
type Data struct {
	UserID    string
	Email     string
	Role      string
	IP        string
	UserAgent string
}
