// Package models defines the records exchanged between the service layers.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/usersvc/internal/common"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// UserFields are the user attributes owned by the identity service. They are
// embedded both in the create payload and in the stored projection.
type UserFields struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Avatar    string `json:"avatar" validate:"required,url"`
}

// NewUserFields trims and validates the attributes. Validation failures wrap
// common.ErrValidation.
func NewUserFields(email, firstName, lastName, avatar string) (UserFields, error) {
	f := UserFields{
		Email:     strings.TrimSpace(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Avatar:    strings.TrimSpace(avatar),
	}
	if err := f.Validate(); err != nil {
		return UserFields{}, err
	}
	return f, nil
}

func (f UserFields) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

// NewUser is the payload sent to the identity service to create a user.
type NewUser struct {
	UserFields
}

// User is the local projection of a user held by the identity service.
// ID is assigned by the identity service.
type User struct {
	ID int64 `json:"id"`
	UserFields
	CreatedAt time.Time `json:"-"`
}
