// Package alert holds the saved-search alert aggregate: a named criteria
// string owned by a user, notified at a chosen rate.
package alert

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caselens/lexalert/internal/domain"
	"github.com/caselens/lexalert/internal/domain/search/criteria"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// Rate is the notification cadence of an alert.
type Rate string

const (
	RateRealTime Rate = "rt"
	RateDaily    Rate = "dly"
	RateWeekly   Rate = "wly"
	RateMonthly  Rate = "mly"
	RateOff      Rate = "off"
)

func (r Rate) IsValid() bool {
	switch r {
	case RateRealTime, RateDaily, RateWeekly, RateMonthly, RateOff:
		return true
	}
	return false
}

// IsScheduled reports whether hits for this rate are batched into digests
// rather than delivered immediately.
func (r Rate) IsScheduled() bool {
	switch r {
	case RateDaily, RateWeekly, RateMonthly:
		return true
	}
	return false
}

// ScheduledRates lists the digest cadences in dispatch order.
func ScheduledRates() []Rate {
	return []Rate{RateDaily, RateWeekly, RateMonthly}
}

// MaxNameLength bounds an alert's display name.
const MaxNameLength = 75

// Alert is a stored search that matches incoming documents.
type Alert struct {
	id        string
	userID    string
	name      string
	query     string
	criteria  criteria.CleanData
	alertType searchtype.Type
	rate      Rate
	secretKey string
	valid     bool
	createdAt time.Time
	lastHitAt time.Time
}

// New validates the inputs and mints a fresh alert. The search type is
// derived from the criteria string, and a secret key for one-click
// unsubscribe links is generated.
func New(userID, name, rawQuery string, rate Rate) (Alert, error) {
	cd, err := validate(userID, name, rawQuery, rate)
	if err != nil {
		return Alert{}, err
	}
	return Alert{
		id:        uuid.NewString(),
		userID:    userID,
		name:      name,
		query:     cd.Encode(),
		criteria:  cd,
		alertType: cd.SearchType(),
		rate:      rate,
		secretKey: newSecretKey(),
		valid:     true,
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds an alert from stored fields without minting new
// identifiers. The criteria string is re-parsed so a record stored before a
// grammar change surfaces as a validation error here.
func Reconstruct(id, userID, name, rawQuery string, rate Rate, secretKey string, valid bool, createdAt, lastHitAt time.Time) (Alert, error) {
	cd, err := validate(userID, name, rawQuery, rate)
	if err != nil {
		return Alert{}, err
	}
	return Alert{
		id:        id,
		userID:    userID,
		name:      name,
		query:     rawQuery,
		criteria:  cd,
		alertType: cd.SearchType(),
		rate:      rate,
		secretKey: secretKey,
		valid:     valid,
		createdAt: createdAt,
		lastHitAt: lastHitAt,
	}, nil
}

func validate(userID, name, rawQuery string, rate Rate) (criteria.CleanData, error) {
	if userID == "" {
		return criteria.CleanData{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if name == "" {
		return criteria.CleanData{}, fmt.Errorf("%w: alert name is required", domain.ErrValidation)
	}
	if len(name) > MaxNameLength {
		return criteria.CleanData{}, fmt.Errorf("%w: alert name exceeds %d characters", domain.ErrValidation, MaxNameLength)
	}
	if !rate.IsValid() {
		return criteria.CleanData{}, fmt.Errorf("%w: %q is not an alert rate", domain.ErrValidation, string(rate))
	}
	return criteria.Parse(rawQuery)
}

func (a Alert) ID() string                   { return a.id }
func (a Alert) UserID() string               { return a.userID }
func (a Alert) Name() string                 { return a.name }
func (a Alert) Query() string                { return a.query }
func (a Alert) Criteria() criteria.CleanData { return a.criteria }
func (a Alert) Type() searchtype.Type        { return a.alertType }
func (a Alert) Rate() Rate                   { return a.rate }
func (a Alert) SecretKey() string            { return a.secretKey }
func (a Alert) Valid() bool                  { return a.valid }
func (a Alert) CreatedAt() time.Time         { return a.createdAt }
func (a Alert) LastHitAt() time.Time         { return a.lastHitAt }

// Update revalidates and applies new user-editable fields.
func (a Alert) Update(name, rawQuery string, rate Rate) (Alert, error) {
	cd, err := validate(a.userID, name, rawQuery, rate)
	if err != nil {
		return Alert{}, err
	}
	a.name = name
	a.query = cd.Encode()
	a.criteria = cd
	a.alertType = cd.SearchType()
	a.rate = rate
	a.valid = true
	return a, nil
}

// MarkInvalid flags an alert whose stored criteria no longer parses.
func (a Alert) MarkInvalid() Alert {
	a.valid = false
	return a
}

// TouchLastHit records the moment the alert last matched a document.
func (a Alert) TouchLastHit(at time.Time) Alert {
	a.lastHitAt = at.UTC()
	return a
}

const keyCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newSecretKey returns a 40 character random key.
func newSecretKey() string {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	for i, b := range buf {
		buf[i] = keyCharset[int(b)%len(keyCharset)]
	}
	return string(buf)
}
