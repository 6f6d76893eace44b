package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Batpurev0828/qbtusul/internal/db"
	syncx "github.com/Batpurev0828/qbtusul/internal/sync"
)

// SQLRepository keeps each record as a JSON document. Every insert appends
// an AttemptSubmitted event in the same transaction.
type SQLRepository struct {
	db     *sql.DB
	events *syncx.EventRepo
	now    func() time.Time
}

func NewSQLRepository(sqldb *sql.DB, events *syncx.EventRepo) *SQLRepository {
	return &SQLRepository{db: sqldb, events: events, now: func() time.Time { return time.Now().UTC() }}
}

type submittedEvent struct {
	AttemptID     string  `json:"attemptId"`
	UserID        string  `json:"userId"`
	TestID        string  `json:"testId"`
	TotalScore    float64 `json:"totalScore"`
	TotalPossible float64 `json:"totalPossible"`
}

func (s *SQLRepository) Create(ctx context.Context, r Record) (Record, error) {
	r.ID = uuid.NewString()
	r.SubmittedAt = s.now()
	doc, err := json.Marshal(r)
	if err != nil {
		return Record{}, fmt.Errorf("encode attempt: %w", err)
	}

	err = db.WithinTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO attempts
			(id,user_id,test_id,total_score,total_possible,record_json,started_at,submitted_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			r.ID, r.UserID, r.TestID, r.TotalScore, r.TotalPossible, string(doc),
			r.StartedAt.UnixMilli(), r.SubmittedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if s.events == nil {
			return nil
		}
		ev, err := syncx.NewEvent(syncx.TypeAttemptSubmitted, r.ID, submittedEvent{
			AttemptID:     r.ID,
			UserID:        r.UserID,
			TestID:        r.TestID,
			TotalScore:    r.TotalScore,
			TotalPossible: r.TotalPossible,
		})
		if err != nil {
			return err
		}
		return s.events.Append(ctx, tx, ev)
	})
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *SQLRepository) FindByID(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,user_id,test_id,record_json,started_at,submitted_at
		FROM attempts WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

func (s *SQLRepository) FindByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,user_id,test_id,record_json,started_at,submitted_at
		FROM attempts WHERE user_id=$1 ORDER BY submitted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r                  Record
		id, user, test     string
		doc                string
		started, submitted int64
	)
	if err := sc.Scan(&id, &user, &test, &doc, &started, &submitted); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return Record{}, fmt.Errorf("decode attempt %s: %w", id, err)
	}
	r.ID, r.UserID, r.TestID = id, user, test
	r.StartedAt = time.UnixMilli(started).UTC()
	r.SubmittedAt = time.UnixMilli(submitted).UTC()
	return r, nil
}
