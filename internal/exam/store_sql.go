package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore keeps each Test as a JSON document next to the columns used for
// filtering and ordering.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,doc_json,created_at,updated_at FROM tests WHERE id=$1`, id)
	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, ErrNotFound
	}
	return t, err
}

func (s *SQLStore) FindPublished(ctx context.Context) ([]Test, error) {
	return s.query(ctx, `SELECT id,doc_json,created_at,updated_at FROM tests WHERE published=$1 ORDER BY tag DESC, created_at DESC`, true)
}

func (s *SQLStore) FindAll(ctx context.Context) ([]Test, error) {
	return s.query(ctx, `SELECT id,doc_json,created_at,updated_at FROM tests ORDER BY created_at DESC`)
}

func (s *SQLStore) Create(ctx context.Context, t Test) (Test, error) {
	now := s.now()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	SortQuestions(&t)
	doc, err := EncodeDocument(t)
	if err != nil {
		return Test{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests (id,tag,title,published,doc_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.Tag, t.Title, t.Published, string(doc), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Test{}, fmt.Errorf("insert test: %w", err)
	}
	return t, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, t Test) (Test, error) {
	prev, err := s.FindByID(ctx, id)
	if err != nil {
		return Test{}, err
	}
	t.ID = id
	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = s.now()
	SortQuestions(&t)
	doc, err := EncodeDocument(t)
	if err != nil {
		return Test{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tests SET tag=$1, title=$2, published=$3, doc_json=$4, updated_at=$5 WHERE id=$6`,
		t.Tag, t.Title, t.Published, string(doc), t.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return Test{}, fmt.Errorf("update test: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Test{}, ErrNotFound
	}
	return t, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tests WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]Test, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTest(sc scanner) (Test, error) {
	var (
		id               string
		doc              string
		created, updated int64
	)
	if err := sc.Scan(&id, &doc, &created, &updated); err != nil {
		return Test{}, err
	}
	t, err := DecodeDocument([]byte(doc))
	if err != nil {
		return Test{}, fmt.Errorf("decode test %s: %w", id, err)
	}
	// columns are authoritative over whatever the document carries
	t.ID = id
	t.CreatedAt = time.UnixMilli(created).UTC()
	t.UpdatedAt = time.UnixMilli(updated).UTC()
	return t, nil
}
