package domain

import (
	"fmt"
	"strings"
	"time"
)

// LogStatus represents the delivery state of a single channel attempt lineage.
type LogStatus string

const (
	StatusPending           LogStatus = "PENDING"
	StatusSent              LogStatus = "SENT"
	StatusFailed            LogStatus = "FAILED"
	StatusPermanentlyFailed LogStatus = "PERMANENTLY_FAILED"
)

func (s LogStatus) String() string { return string(s) }

func (s LogStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusPermanentlyFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s LogStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusPermanentlyFailed
}

func ParseLogStatusFromString(s string) (LogStatus, error) {
	st := LogStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid log status %q", ErrValidation, s)
	}
	return st, nil
}

// NotificationLog is the mutable attempt tracker for one channel of one
// notification: a single row per channel, not a row per attempt.
type NotificationLog struct {
	ID             string
	NotificationID string
	Channel        Channel
	Recipient      string
	TemplateName   string
	Parameters     map[string]string
	Content        string
	Subject        string
	Status         LogStatus
	RetryCount     int
	NextRetryAt    *time.Time
	Error          *string
	MessageID      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
