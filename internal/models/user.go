package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account on the server.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's email address (unique). Used for login.
	Email string

	// DisplayName is the user's chosen name. May be empty.
	DisplayName string

	// PasswordHash is the bcrypt hash of the password.
	// Empty for accounts created through federated sign-in.
	PasswordHash string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Identity returns the client-visible identity of the account.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// Identity is the signed-in user as seen by the client.
// It is replaced wholesale on every session change and never partially mutated.
type Identity struct {
	ID    string
	Email string
	// DisplayName is empty when the provider has no name for the user.
	DisplayName string
}

// Name returns the display name, falling back to the email address.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}
