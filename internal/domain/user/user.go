// Package user holds the minimal account record alert delivery needs.
package user

import (
	"fmt"
	"strings"

	"github.com/caselens/lexalert/internal/domain"
)

// User is an alert recipient. RealTimeEnabled gates the rt rate, which is a
// membership perk.
type User struct {
	id              string
	email           string
	realTimeEnabled bool
}

// New validates and constructs a user.
func New(id, email string, realTimeEnabled bool) (User, error) {
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: %q is not an email address", domain.ErrValidation, email)
	}
	return User{id: id, email: email, realTimeEnabled: realTimeEnabled}, nil
}

func (u User) ID() string            { return u.id }
func (u User) Email() string         { return u.email }
func (u User) RealTimeEnabled() bool { return u.realTimeEnabled }
