package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Placeholder profile values used when the identity provider omits them.
const (
	UnknownDisplayName = "Unknown User"
	unknownEmailDomain = "example.com"
)

// User is a local identity record referenced by memberships, tasks, and comments.
type User struct {
	ID          string
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
	JobTitle    string
	Department  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput holds input values for user creation.
type UserInput struct {
	ID          string
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
	JobTitle    string
	Department  string
}

// NewUser constructs a normalized user. Subject may be empty for invited users
// that have not signed in yet.
func NewUser(in UserInput, now time.Time) (User, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return User{}, ErrInvalidID
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = EmailLocalPart(email)
	}
	return User{
		ID:          in.ID,
		Subject:     strings.TrimSpace(in.Subject),
		Email:       email,
		DisplayName: name,
		AvatarURL:   strings.TrimSpace(in.AvatarURL),
		JobTitle:    strings.TrimSpace(in.JobTitle),
		Department:  strings.TrimSpace(in.Department),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Link attaches an external subject to a user created from an invitation.
func (u *User) Link(subject string, now time.Time) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ErrInvalidSubject
	}
	u.Subject = subject
	u.UpdatedAt = now.UTC()
	return nil
}

// Identity is a verified caller identity supplied by the authentication layer.
type Identity struct {
	Subject     string
	Email       string
	DisplayName string
}

// Normalize fills missing profile fields with placeholder values so a user
// record can always be created for an authenticated subject.
func (i Identity) Normalize() (Identity, error) {
	i.Subject = strings.TrimSpace(i.Subject)
	if i.Subject == "" {
		return Identity{}, ErrInvalidSubject
	}
	i.Email = strings.TrimSpace(i.Email)
	if _, err := NormalizeEmail(i.Email); err != nil {
		i.Email = "unknown+" + normalizeSlug(i.Subject) + "@" + unknownEmailDomain
	}
	i.DisplayName = strings.TrimSpace(i.DisplayName)
	if i.DisplayName == "" {
		i.DisplayName = UnknownDisplayName
	}
	return i, nil
}

// NormalizeEmail lowercases and validates one email address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// EmailLocalPart returns the part of an address before '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// UserRef is the compact user shape embedded in read models.
type UserRef struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Ref returns the compact reference for u.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}
