package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	api "github.com/Batpurev0828/qbtusul/internal/api/http"
	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/attempt"
	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/db"
	"github.com/Batpurev0828/qbtusul/internal/exam"
	"github.com/Batpurev0828/qbtusul/internal/session"
)

func newServer(t *testing.T) (*httptest.Server, exam.Test) {
	t.Helper()
	ctx := context.Background()
	sqldb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })

	authSvc := auth.NewService(auth.NewSQLUsers(sqldb), "test-secret", auth.WithBcryptCost(bcrypt.MinCost))
	if _, err := authSvc.Signup(ctx, auth.SignupInput{Name: "Alice", Email: "alice@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	tests := exam.NewMemoryStore()
	one, key := 1, "42"
	tt, err := tests.Create(ctx, exam.Test{
		Tag: "2024", Subject: "Math", Title: "Mock", TimeLimitMinutes: 30, Published: true,
		MCQuestions: []exam.MCQuestion{{QuestionText: "a", Options: []string{"x", "y"}, CorrectAnswer: &one, Points: 1}},
		FRQuestions: []exam.FRQuestion{{QuestionText: "6*7", CorrectAnswer: &key, Points: 5}},
	})
	if err != nil {
		t.Fatal(err)
	}

	h := api.NewRouter(api.Deps{
		Auth:     authSvc,
		Tests:    tests,
		Attempts: attempt.NewService(tests, attempt.NewMemoryRepository(), nil),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, tt
}

func TestClientEndToEnd(t *testing.T) {
	srv, tt := newServer(t)
	ctx := context.Background()
	c := New(srv.URL + "/")

	if _, err := c.GetAttempt(ctx, "x"); apierr.KindOf(err) != apierr.Unauthorized || IsRetryable(err) {
		t.Fatalf("anonymous GetAttempt: %v", err)
	}

	u, err := c.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Email != "alice@example.com" || c.Token() == "" {
		t.Fatalf("login user = %+v", u)
	}

	list, err := c.ListTests(ctx)
	if err != nil || len(list) != 1 || list[0].ID != tt.ID {
		t.Fatalf("ListTests = %+v, %v", list, err)
	}

	got, err := c.GetTest(ctx, tt.ID)
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if got.MCQuestions[0].CorrectAnswer != nil || got.FRQuestions[0].CorrectAnswer != nil {
		t.Fatalf("student copy carries keys: %+v", got)
	}

	s := session.New(got, time.Now().Add(-time.Minute), c)
	if err := s.SelectOption(0, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFreeResponse(0, "42"); err != nil {
		t.Fatal(err)
	}
	id, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.Phase() != session.Submitted || id == "" {
		t.Fatalf("phase = %v id = %q", s.Phase(), id)
	}

	rec, err := c.GetAttempt(ctx, id)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if rec.TotalScore != 6 || rec.TotalPossible != 6 {
		t.Fatalf("record = %+v", rec)
	}

	_, err = c.GetTest(ctx, "missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound || se.Message != "test not found" || se.Retryable() {
		t.Fatalf("missing test: %v", err)
	}
	if apierr.Status(err) != http.StatusNotFound {
		t.Fatalf("status mapping: %v", err)
	}
}

func TestSubmitFailureClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
		phase     session.Phase
	}{
		{"server error", http.StatusInternalServerError, true, session.Active},
		{"bad gateway", http.StatusBadGateway, true, session.Active},
		{"throttled", http.StatusTooManyRequests, true, session.Active},
		{"expired session", http.StatusUnauthorized, true, session.Active},
		{"forbidden", http.StatusForbidden, true, session.Active},
		{"test removed", http.StatusNotFound, false, session.Failed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				apierr.WriteStatus(w, c.status, "nope")
			}))
			defer srv.Close()

			s := session.New(exam.Test{ID: "t1", MCQuestions: []exam.MCQuestion{{Options: []string{"a", "b"}}}}, time.Now(), New(srv.URL))
			_, err := s.Submit(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRetryable(err) != c.retryable {
				t.Fatalf("IsRetryable = %v, want %v (%v)", IsRetryable(err), c.retryable, err)
			}
			if s.Phase() != c.phase {
				t.Fatalf("phase = %v, want %v", s.Phase(), c.phase)
			}
		})
	}
}

func TestResubmitAfterExpiredLogin(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			apierr.WriteStatus(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		apierr.JSON(w, http.StatusCreated, map[string]string{"attemptId": "a9"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("stale")
	s := session.New(exam.Test{ID: "t1"}, time.Now(), c)
	if _, err := s.Submit(context.Background()); apierr.KindOf(err) != apierr.Unauthorized {
		t.Fatalf("first submit: %v", err)
	}
	if s.Phase() != session.Active {
		t.Fatalf("phase after 401 = %v", s.Phase())
	}

	c.SetToken("fresh")
	id, err := s.Submit(context.Background())
	if err != nil || id != "a9" || s.Phase() != session.Submitted {
		t.Fatalf("resubmit: %q %v %v", id, err, s.Phase())
	}
	if n := posts.Load(); n != 2 {
		t.Fatalf("posts = %d, want 2", n)
	}
}

func TestTransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url)
	_, err := c.Submit(context.Background(), session.Submission{TestID: "t1"})
	var te *TransportError
	if !errors.As(err, &te) || !IsRetryable(err) {
		t.Fatalf("closed server: %v", err)
	}
}
