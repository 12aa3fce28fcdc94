package domain

import "time"

// Account is a registered identity. Email is immutable after creation and
// PasswordHash never leaves the process.
type Account struct {
	AccountID    string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	FirstName    string    `json:"first_name" dynamodbav:"first_name"`
	LastName     string    `json:"last_name" dynamodbav:"last_name"`
	Verified     bool      `json:"-" dynamodbav:"verified"`
	CreatedAt    time.Time `json:"account_created" dynamodbav:"account_created"`
	UpdatedAt    time.Time `json:"account_updated" dynamodbav:"account_updated"`
}

// Public returns a copy of the account with the password digest cleared.
func (a *Account) Public() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.PasswordHash = ""
	return &cp
}

type CreateAccountRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// UpdateAccountRequest carries the optional profile fields. Email is decoded
// only so that an attempt to change it can be rejected.
type UpdateAccountRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password" validate:"omitempty,min=1"`
	FirstName *string `json:"first_name" validate:"omitempty,min=1"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1"`
}

// Empty reports whether no updatable field is present.
func (r UpdateAccountRequest) Empty() bool {
	return r.Password == nil && r.FirstName == nil && r.LastName == nil
}
