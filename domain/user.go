package domain

import (
	"strings"
	"time"
)

// UserRole defines the authorization role of a user account.
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// User represents a user account. Accounts are created either by local
// registration (PasswordHash set) or by a first federated login
// (ExternalID set, PasswordHash empty). Email is globally unique,
// case-insensitive, and never changes through this subsystem.
type User struct {
	ID            string     `bson:"_id,omitempty"`
	Email         string     `bson:"email"`
	Username      string     `bson:"username,omitempty"`
	PasswordHash  string     `bson:"password_hash,omitempty"`
	FirstName     string     `bson:"first_name,omitempty"`
	LastName      string     `bson:"last_name,omitempty"`
	AvatarURL     string     `bson:"avatar_url,omitempty"`
	ExternalID    string     `bson:"external_id,omitempty"`
	EmailVerified bool       `bson:"email_verified"`
	Role          UserRole   `bson:"role"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
	LastLoginAt   *time.Time `bson:"last_login_at,omitempty"`
}

// HasPassword reports whether the account can be used for password login.
// Pure federated accounts carry no password hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// DisplayName returns the user's presentable name: first and last name
// joined, falling back to the username, falling back to the raw email.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
