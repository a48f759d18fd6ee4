// Package account provides player account creation and credential checks.
package account

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/louisbranch/agicosmic/internal/platform/errors"
	"github.com/louisbranch/agicosmic/internal/platform/id"
)

const (
	// DefaultRole is the leader role used when registration omits one.
	DefaultRole = "President"

	minPasswordLength = 6
	// bcrypt ignores bytes past 72, so longer passwords are rejected outright.
	maxPasswordBytes = 72
	maxRoleLength    = 64
)

var (
	// ErrEmptyUsername indicates a missing username.
	ErrEmptyUsername = apperrors.New(apperrors.CodeUsernameInvalid, "username is required")
	// ErrInvalidUsername indicates a username that does not match the required format.
	ErrInvalidUsername = apperrors.New(apperrors.CodeUsernameInvalid, "username must be 3-32 lowercase alphanumeric, dot, dash, or underscore characters")
	// ErrInvalidPassword indicates a password outside the accepted length range.
	ErrInvalidPassword = apperrors.New(apperrors.CodePasswordInvalid, "password must be between 6 and 72 bytes")
	// ErrInvalidRole indicates a role that is too long to display.
	ErrInvalidRole = apperrors.New(apperrors.CodeRoleInvalid, "role must be at most 64 characters")
	// ErrInvalidCredentials is returned for any login mismatch.
	ErrInvalidCredentials = apperrors.New(apperrors.CodeCredentialsInvalid, "incorrect username or password")

	usernamePattern = regexp.MustCompile(`^[a-z0-9_.\-]{3,32}$`)
)

// User is a registered player.
type User struct {
	ID           string
	Username     string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

// RegisterInput is the untrusted registration payload.
type RegisterInput struct {
	Username string
	Password string
	Role     string
}

// Hasher hashes and verifies passwords with bcrypt at a fixed cost.
type Hasher struct {
	Cost int
}

// Hash returns the bcrypt hash of password.
func (h Hasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports ErrInvalidCredentials when password does not match hash.
func (h Hasher) Verify(hash, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// ValidateUsername enforces the canonical username format.
func ValidateUsername(s string) error {
	if !usernamePattern.MatchString(s) {
		return ErrInvalidUsername
	}
	return nil
}

// NormalizeUsername trims and lowercases a username so lookups match registration.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeRegisterInput trims and validates registration input. The role is
// an opaque display string; only its length is checked.
func NormalizeRegisterInput(input RegisterInput) (RegisterInput, error) {
	input.Username = NormalizeUsername(input.Username)
	if input.Username == "" {
		return RegisterInput{}, ErrEmptyUsername
	}
	if err := ValidateUsername(input.Username); err != nil {
		return RegisterInput{}, err
	}
	if len(input.Password) < minPasswordLength || len(input.Password) > maxPasswordBytes {
		return RegisterInput{}, ErrInvalidPassword
	}
	input.Role = strings.TrimSpace(input.Role)
	if input.Role == "" {
		input.Role = DefaultRole
	}
	if utf8.RuneCountInString(input.Role) > maxRoleLength {
		return RegisterInput{}, ErrInvalidRole
	}
	return input, nil
}

// CreateUser validates input and builds a user with a hashed password.
func CreateUser(input RegisterInput, hasher Hasher, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeRegisterInput(input)
	if err != nil {
		return User{}, err
	}

	hash, err := hasher.Hash(normalized.Password)
	if err != nil {
		return User{}, err
	}
	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	return User{
		ID:           userID,
		Username:     normalized.Username,
		Role:         normalized.Role,
		PasswordHash: hash,
		CreatedAt:    now().UTC(),
	}, nil
}
