// Package syncx is the append-only audit log. Writers pass the Execer they
// are already using so an event commits or rolls back with its record.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Batpurev0828/qbtusul/internal/db"
)

const (
	TypeAttemptSubmitted = "AttemptSubmitted"
	TypeTestCreated      = "TestCreated"
	TypeTestUpdated      = "TestUpdated"
	TypeTestDeleted      = "TestDeleted"
)

const DefaultSiteID = "local"

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"siteId"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(sqldb *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = DefaultSiteID
	}
	return &EventRepo{db: sqldb, siteID: siteID, now: time.Now}
}

// NewEvent marshals payload into an Event of the given type.
func NewEvent(typ, key string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", typ, err)
	}
	return Event{Type: typ, Key: key, Data: raw}, nil
}

// Append writes e through ex; pass a *sql.Tx to make it part of a larger
// write. A nil ex uses the repo's own DB.
func (r *EventRepo) Append(ctx context.Context, ex db.Execer, e Event) error {
	if ex == nil {
		ex = r.db
	}
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	data := string(e.Data)
	if data == "" {
		data = "{}"
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, data, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// List returns up to limit events with seq greater than after, oldest first.
func (r *EventRepo) List(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e       Event
			data    string
			created int64
		)
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &data, &created); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
