package ledger

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const bcryptPrefix = "$2"

// Role is the closed set of session roles.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleCustomer Role = "Customer"
)

// ParseRole validates a stored role.
func ParseRole(raw string) (Role, error) {
	switch {
	case strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)):
		return RoleAdmin, nil
	case strings.EqualFold(strings.TrimSpace(raw), string(RoleCustomer)):
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the role label.
func (role Role) String() string {
	return string(role)
}

// User is a directory entry.
type User struct {
	username     string
	role         Role
	passwordHash string
}

// Username returns the login name.
func (user User) Username() string { return user.username }

// Role returns the session role.
func (user User) Role() Role { return user.role }

// PasswordHash returns the stored bcrypt hash.
func (user User) PasswordHash() string { return user.passwordHash }

// Directory holds users by username in insertion order.
type Directory struct {
	users []User
	cost  int
}

// NewDirectory returns an empty directory hashing with the given bcrypt cost.
func NewDirectory(cost int) *Directory {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Directory{cost: cost}
}

// Register hashes the password and adds a user.
func (directory *Directory) Register(username string, password string, role Role) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), directory.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return directory.add(username, string(hash), role)
}

// Authenticate verifies credentials. Legacy plaintext entries are compared
// exactly once and replaced by a bcrypt hash on success. When that hash cannot
// be generated the matched user is returned with an ErrPasswordRehash error and
// the plaintext entry is kept.
func (directory *Directory) Authenticate(username string, password string) (User, bool, error) {
	trimmed := strings.TrimSpace(username)
	for index, user := range directory.users {
		if user.username != trimmed {
			continue
		}
		if !strings.HasPrefix(user.passwordHash, bcryptPrefix) {
			if user.passwordHash != password {
				return User{}, false, ErrInvalidCredentials
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), directory.cost)
			if err != nil {
				return user, false, fmt.Errorf("%w: %s: %v", ErrPasswordRehash, trimmed, err)
			}
			directory.users[index].passwordHash = string(hash)
			return directory.users[index], true, nil
		}
		err := bcrypt.CompareHashAndPassword([]byte(user.passwordHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, false, ErrInvalidCredentials
		}
		if err != nil {
			return User{}, false, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return user, false, nil
	}
	return User{}, false, ErrInvalidCredentials
}

// All lists users in insertion order.
func (directory *Directory) All() []User {
	return append([]User(nil), directory.users...)
}

// Len returns the number of users.
func (directory *Directory) Len() int {
	return len(directory.users)
}

func (directory *Directory) add(username string, passwordHash string, role Role) (User, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t") {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if _, err := ParseRole(role.String()); err != nil {
		return User{}, err
	}
	for _, existing := range directory.users {
		if existing.username == trimmed {
			return User{}, fmt.Errorf("%w: %q already registered", ErrInvalidUsername, trimmed)
		}
	}
	user := User{username: trimmed, role: role, passwordHash: passwordHash}
	directory.users = append(directory.users, user)
	return user, nil
}
