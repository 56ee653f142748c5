package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateAccountRequest represents the request body for creating an account.
// A nil ParentAccountID creates a top-level account.
type CreateAccountRequest struct {
	Description     string  `json:"description" validate:"required,min=1,max=200"`
	ParentAccountID *string `json:"parentAccountId,omitempty" validate:"omitempty,min=1"`
}

// UpdateAccountRequest represents the request body for renaming an account
type UpdateAccountRequest struct {
	Description string `json:"description" validate:"required,min=1,max=200"`
}

// StatusUpdateRequest represents a bulk status change over a resource
type StatusUpdateRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
	Status string   `json:"status" validate:"required,max=50"`
}

// StatusOutcome is the result of one item of a bulk status update
type StatusOutcome struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Validate validates the create account request
func (r *CreateAccountRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the update account request
func (r *UpdateAccountRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the status update request
func (r *StatusUpdateRequest) Validate() error {
	return validate.Struct(r)
}
