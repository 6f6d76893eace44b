package syncx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Batpurev0828/qbtusul/internal/db"
)

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	sqldb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer sqldb.Close()
	repo := NewEventRepo(sqldb, "")

	for _, key := range []string{"a1", "a2", "a3"} {
		ev, err := NewEvent(TypeAttemptSubmitted, key, map[string]string{"attemptId": key})
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Append(ctx, nil, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := repo.List(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Key != "a1" || all[0].SiteID != DefaultSiteID {
		t.Fatalf("List = %+v", all)
	}
	if string(all[1].Data) != `{"attemptId":"a2"}` {
		t.Fatalf("data = %s", all[1].Data)
	}

	rest, err := repo.List(ctx, all[0].Seq, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 || rest[0].Key != "a2" {
		t.Fatalf("List after first = %+v", rest)
	}
}

func TestAppendRollsBackWithTx(t *testing.T) {
	ctx := context.Background()
	sqldb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer sqldb.Close()
	repo := NewEventRepo(sqldb, "site-a")

	boom := errors.New("boom")
	err = db.WithinTx(ctx, sqldb, func(ctx context.Context, tx *sql.Tx) error {
		if err := repo.Append(ctx, tx, Event{Type: TypeTestCreated, Key: "t1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx = %v", err)
	}
	evs, err := repo.List(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Fatalf("rolled back event persisted: %+v", evs)
	}
}
