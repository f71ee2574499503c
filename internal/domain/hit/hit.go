// Package hit holds the records produced when a document matches a stored
// alert: immediate hits handed to the dispatcher, and scheduled hits parked
// until the next digest run.
package hit

import (
	"time"

	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// Document is one matched document as rendered for notification, field
// values with highlight markup already applied.
type Document struct {
	ID         string
	Fields     map[string]string
	ChildDocs  []Document
	ChildCount int
}

// Hit pairs an alert with the documents that triggered it during one
// percolation pass.
type Hit struct {
	AlertID    string
	UserID     string
	AlertName  string
	SearchType searchtype.Type
	Documents  []Document
}

// Status of a scheduled hit.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
)

// UserRateAlert groups every scheduled hit a user accrues at one cadence,
// so a digest run can send a single email per user and rate.
type UserRateAlert struct {
	ID        string
	UserID    string
	Rate      string
	CreatedAt time.Time
}

// ParentAlert ties one alert's scheduled hits to a UserRateAlert container.
type ParentAlert struct {
	ID         string
	AlertID    string
	UserRateID string
	CreatedAt  time.Time
}

// ScheduledHit is a single matched document parked for a future digest.
type ScheduledHit struct {
	ID         string
	ParentID   string
	DocumentID string
	SearchType searchtype.Type
	Document   Document
	Status     Status
	CreatedAt  time.Time
	SentAt     time.Time
}
