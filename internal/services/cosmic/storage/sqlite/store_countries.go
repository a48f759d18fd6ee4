package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/storage"
)

const countryColumns = `id, owner_user_id, schema_version, version, state_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetCountryByOwner loads the country owned by userID.
func (s *Store) GetCountryByOwner(ctx context.Context, userID string) (storage.Country, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.Country{}, fmt.Errorf("user id is required")
	}
	return scanCountry(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+countryColumns+` FROM countries WHERE owner_user_id = ?`, userID))
}

// CommitCommand applies one accepted command atomically: compare-and-swap on
// version, history append, and history trim.
func (s *Store) CommitCommand(ctx context.Context, commit storage.CommandCommit) (storage.Country, error) {
	if strings.TrimSpace(commit.CountryID) == "" {
		return storage.Country{}, fmt.Errorf("country id is required")
	}
	if strings.TrimSpace(commit.Entry.ID) == "" {
		return storage.Country{}, fmt.Errorf("history entry id is required")
	}
	stateJSON, err := country.Marshal(commit.State)
	if err != nil {
		return storage.Country{}, err
	}
	diffJSON, err := marshalJSON(commit.Entry.Diff, "[]")
	if err != nil {
		return storage.Country{}, fmt.Errorf("marshal diff: %w", err)
	}
	eventsJSON, err := marshalJSON(commit.Entry.Events, "[]")
	if err != nil {
		return storage.Country{}, fmt.Errorf("marshal events: %w", err)
	}

	var updated storage.Country
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE countries
			 SET state_json = ?, schema_version = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ?`,
			string(stateJSON), country.SchemaVersion, toMillis(commit.UpdatedAt),
			commit.CountryID, commit.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update country: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update country rows: %w", err)
		}
		if affected == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM countries WHERE id = ?`, commit.CountryID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("check country: %w", err)
			}
			return storage.ErrStateConflict
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO command_history (id, country_id, command, message, source, diff_json, events_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			commit.Entry.ID, commit.CountryID, commit.Entry.Command, commit.Entry.Message,
			commit.Entry.Source, diffJSON, eventsJSON, toMillis(commit.Entry.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}

		if commit.HistoryLimit > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM command_history
				 WHERE country_id = ?1 AND seq NOT IN (
				     SELECT seq FROM command_history WHERE country_id = ?1 ORDER BY seq DESC LIMIT ?2
				 )`,
				commit.CountryID, commit.HistoryLimit,
			); err != nil {
				return fmt.Errorf("trim history: %w", err)
			}
		}

		updated, err = scanCountry(tx.QueryRowContext(ctx,
			`SELECT `+countryColumns+` FROM countries WHERE id = ?`, commit.CountryID))
		return err
	})
	if err != nil {
		return storage.Country{}, err
	}
	return updated, nil
}

// ListHistory returns up to limit most recent entries, oldest first. A
// non-positive limit returns every entry.
func (s *Store) ListHistory(ctx context.Context, countryID string, limit int) ([]storage.HistoryEntry, error) {
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return nil, fmt.Errorf("country id is required")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, country_id, command, message, source, diff_json, events_json, created_at
		 FROM command_history WHERE country_id = ? ORDER BY seq DESC LIMIT ?`,
		countryID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []storage.HistoryEntry{}
	for rows.Next() {
		var entry storage.HistoryEntry
		var diffJSON, eventsJSON string
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.CountryID, &entry.Command, &entry.Message,
			&entry.Source, &diffJSON, &eventsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(diffJSON), &entry.Diff); err != nil {
			return nil, fmt.Errorf("decode history diff: %w", err)
		}
		if err := json.Unmarshal([]byte(eventsJSON), &entry.Events); err != nil {
			return nil, fmt.Errorf("decode history events: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	slices.Reverse(entries)
	return entries, nil
}

func scanCountry(row rowScanner) (storage.Country, error) {
	var c storage.Country
	var stateJSON string
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.OwnerUserID, &c.SchemaVersion, &c.Version, &stateJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Country{}, storage.ErrNotFound
		}
		return storage.Country{}, fmt.Errorf("get country: %w", err)
	}
	state, err := country.Unmarshal([]byte(stateJSON))
	if err != nil {
		return storage.Country{}, err
	}
	c.State = state
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func marshalJSON(value any, empty string) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}
