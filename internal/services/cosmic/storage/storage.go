// Package storage defines persistence contracts for accounts, countries,
// and command history.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/agicosmic/internal/platform/errors"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/account"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
	"github.com/louisbranch/agicosmic/internal/telemetry"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = apperrors.New(apperrors.CodeUsernameTaken, "username already taken")
	// ErrStateConflict indicates the country changed since it was read.
	ErrStateConflict = apperrors.New(apperrors.CodeStateConflict, "country state changed concurrently")
)

// Country is a persisted country document with its version counter.
type Country struct {
	ID            string
	OwnerUserID   string
	SchemaVersion int
	Version       int64
	State         country.State
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HistoryEntry records one accepted command.
type HistoryEntry struct {
	ID        string
	CountryID string
	Command   string
	Message   string
	Source    string
	Diff      []country.Change
	Events    []map[string]any
	CreatedAt time.Time
}

// CommandCommit is the atomic write produced by one accepted command.
type CommandCommit struct {
	CountryID       string
	ExpectedVersion int64
	State           country.State
	UpdatedAt       time.Time
	Entry           HistoryEntry
	// HistoryLimit trims older entries in the same transaction; zero keeps all.
	HistoryLimit int
}

// UserStore persists player accounts.
type UserStore interface {
	// CreateUserWithCountry inserts a user and its initial country atomically.
	CreateUserWithCountry(ctx context.Context, u account.User, c Country) error
	GetUser(ctx context.Context, userID string) (account.User, error)
	GetUserByUsername(ctx context.Context, username string) (account.User, error)
}

// CountryStore persists country documents and their command history.
type CountryStore interface {
	GetCountryByOwner(ctx context.Context, userID string) (Country, error)
	// CommitCommand writes the new state if the stored version still equals
	// ExpectedVersion, appends the history entry, and trims history. It
	// returns ErrStateConflict when the version moved.
	CommitCommand(ctx context.Context, commit CommandCommit) (Country, error)
	// ListHistory returns up to limit most recent entries, oldest first.
	ListHistory(ctx context.Context, countryID string, limit int) ([]HistoryEntry, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	UserStore
	CountryStore
	telemetry.Store
}
