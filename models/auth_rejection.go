package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxRejectionReasonLength bounds the reason text stored with a rejection
const MaxRejectionReasonLength = 64

// AuthRejection records one request turned away by the authentication
// stage. It never carries the presented token or key material.
type AuthRejection struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Reason     string    `json:"reason" db:"reason"`
	RequestID  string    `json:"request_id" db:"request_id"`
	Method     string    `json:"method" db:"method"`
	Path       string    `json:"path" db:"path"`
	RemoteAddr string    `json:"remote_addr" db:"remote_addr"`
	UserAgent  string    `json:"user_agent" db:"user_agent"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuthRejection model
func (AuthRejection) TableName() string {
	return "auth_rejections"
}

// NewAuthRejection creates a rejection record stamped with the given time
func NewAuthRejection(reason string, at time.Time) *AuthRejection {
	return &AuthRejection{
		ID:        uuid.New(),
		Reason:    truncate(reason, MaxRejectionReasonLength),
		Timestamp: at.UTC(),
	}
}

// WithRequest sets request metadata
func (a *AuthRejection) WithRequest(requestID, method, path, remoteAddr, userAgent string) *AuthRejection {
	a.RequestID = requestID
	a.Method = method
	a.Path = truncate(path, 512)
	a.RemoteAddr = remoteAddr
	a.UserAgent = truncate(userAgent, 256)
	return a
}

// truncate cuts s to at most max runes
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
