package domain

import "errors"

var (
	// ErrValidation signals rejected search criteria.
	ErrValidation = errors.New("invalid search criteria")
	// ErrAlertNotFound signals a missing alert.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrUserNotFound signals a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidDigestDate signals a digest run on a date the rate forbids.
	ErrInvalidDigestDate = errors.New("invalid digest date")
	// ErrWebhookNotFound signals a missing webhook subscription.
	ErrWebhookNotFound = errors.New("webhook not found")
)

// KeyPrefix namespaces every Redis key and index the service owns.
const KeyPrefix = "lexalert:"
