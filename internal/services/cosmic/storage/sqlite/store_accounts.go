package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/account"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/storage"
)

const userColumns = `id, username, password_hash, role, created_at`

// CreateUserWithCountry inserts the user and its initial country in one
// transaction so no account exists without a country.
func (s *Store) CreateUserWithCountry(ctx context.Context, u account.User, c storage.Country) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("country id is required")
	}
	stateJSON, err := country.Marshal(c.State)
	if err != nil {
		return err
	}
	schemaVersion := c.SchemaVersion
	if schemaVersion == 0 {
		schemaVersion = country.SchemaVersion
	}
	version := c.Version
	if version == 0 {
		version = 1
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = u.CreatedAt
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Username, u.PasswordHash, u.Role, toMillis(u.CreatedAt),
		); err != nil {
			if isUniqueViolation(err, "users.username") {
				return storage.ErrUsernameTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO countries (id, owner_user_id, schema_version, version, state_json, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, u.ID, schemaVersion, version, string(stateJSON), toMillis(createdAt), toMillis(updatedAt),
		); err != nil {
			return fmt.Errorf("insert country: %w", err)
		}
		return nil
	})
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (account.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return account.User{}, fmt.Errorf("user id is required")
	}
	return s.scanUser(s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
}

// GetUserByUsername loads a user by its normalized username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (account.User, error) {
	username = account.NormalizeUsername(username)
	if username == "" {
		return account.User{}, storage.ErrNotFound
	}
	return s.scanUser(s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (s *Store) scanUser(row *sql.Row) (account.User, error) {
	var u account.User
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.User{}, storage.ErrNotFound
		}
		return account.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}
