package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/agicosmic/internal/telemetry"
)

// AppendTelemetryEvent records an operational event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt telemetry.Event) error {
	if strings.TrimSpace(evt.Name) == "" {
		return fmt.Errorf("event name is required")
	}
	attributes, err := marshalJSON(evt.Attributes, "{}")
	if err != nil {
		return fmt.Errorf("marshal telemetry attributes: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO telemetry_events (event_name, severity, user_id, attributes_json, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		evt.Name, string(evt.Severity), evt.UserID, attributes, toMillis(evt.Timestamp),
	); err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

// ListTelemetryEvents returns up to limit most recent events named name,
// newest first. An empty name matches every event.
func (s *Store) ListTelemetryEvents(ctx context.Context, name string, limit int) ([]telemetry.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, event_name, severity, user_id, attributes_json, timestamp
		 FROM telemetry_events
		 WHERE (?1 = '' OR event_name = ?1)
		 ORDER BY id DESC LIMIT ?2`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list telemetry events: %w", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var evt telemetry.Event
		var severity, attributes string
		var timestamp int64
		if err := rows.Scan(&evt.ID, &evt.Name, &severity, &evt.UserID, &attributes, &timestamp); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		evt.Severity = telemetry.Severity(severity)
		if err := json.Unmarshal([]byte(attributes), &evt.Attributes); err != nil {
			return nil, fmt.Errorf("decode telemetry attributes: %w", err)
		}
		evt.Timestamp = fromMillis(timestamp)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list telemetry events: %w", err)
	}
	return events, nil
}
