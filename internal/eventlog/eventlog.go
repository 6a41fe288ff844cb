// Package eventlog appends domain events to the event_log table. Callers
// pass the transaction that performs the state change so the event commits
// or rolls back with it.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quizd/quizd/internal/db"
)

const (
	TestStarted   = "TestStarted"
	TestCompleted = "TestCompleted"
)

type Event struct {
	ID        int64
	Type      string
	Key       string
	DataJSON  string
	CreatedAt time.Time
}

// Append writes an event whose data is the JSON encoding of payload.
func Append(ctx context.Context, q db.Queryer, typ, key string, payload any, at time.Time) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventlog: encode %s: %w", typ, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(b), db.Millis(at))
	if err != nil {
		return fmt.Errorf("eventlog: append %s: %w", typ, err)
	}
	return nil
}

// List returns events for key in insertion order.
func List(ctx context.Context, q db.Queryer, key string) ([]Event, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var at int64
		if err := rows.Scan(&e.ID, &e.Type, &e.Key, &e.DataJSON, &at); err != nil {
			return nil, err
		}
		e.CreatedAt = db.FromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// TestKey is the event key for a test id.
func TestKey(testID int64) string { return fmt.Sprintf("test:%d", testID) }
