package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/attempt"
	"github.com/Batpurev0828/qbtusul/internal/client"
	"github.com/Batpurev0828/qbtusul/internal/exam"
	"github.com/Batpurev0828/qbtusul/internal/grading"
	"github.com/Batpurev0828/qbtusul/internal/session"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeAPI accepts submissions and serves them back as a graded record.
// While fail is set every POST is answered with that status.
type fakeAPI struct {
	mu    sync.Mutex
	got   *session.Submission
	posts int
	fail  int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/attempts", func(w http.ResponseWriter, r *http.Request) {
		var sub session.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			apierr.WriteStatus(w, http.StatusBadRequest, "bad json")
			return
		}
		f.mu.Lock()
		f.posts++
		fail := f.fail
		if fail == 0 {
			f.got = &sub
		}
		f.mu.Unlock()
		if fail != 0 {
			apierr.WriteStatus(w, fail, "upstream unavailable")
			return
		}
		apierr.JSON(w, http.StatusCreated, map[string]string{"attemptId": "a1"})
	})
	mux.HandleFunc("GET /api/attempts/a1", func(w http.ResponseWriter, r *http.Request) {
		apierr.JSON(w, http.StatusOK, attempt.Record{
			ID: "a1",
			Result: grading.Result{
				MC:            []grading.MCResult{{QuestionIndex: 0, UserAnswer: 1, CorrectAnswer: 1, IsCorrect: true, Points: 1, EarnedPoints: 1}},
				FR:            []grading.FRResult{{QuestionIndex: 0, UserAnswer: "42", CorrectAnswer: "42", IsCorrect: true, Points: 5, EarnedPoints: 5}},
				MCScore:       1,
				TotalMCPoints: 1,
				TotalFRPoints: 5,
				TotalScore:    6,
				TotalPossible: 6,
			},
		})
	})
	return mux
}

func (f *fakeAPI) submission() *session.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

func (f *fakeAPI) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func (f *fakeAPI) failWith(status int) {
	f.mu.Lock()
	f.fail = status
	f.mu.Unlock()
}

func waitFor(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q:\n%s", want, out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newRunner(t *testing.T, out io.Writer, started time.Time) (*runner, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	c := client.New(srv.URL)
	tt := exam.Test{
		ID:          "t1",
		Title:       "Mock",
		MCQuestions: []exam.MCQuestion{{QuestionText: "pick y", Options: []string{"x", "y"}, Points: 1}},
		FRQuestions: []exam.FRQuestion{{QuestionText: "6*7", Points: 5}},
	}
	return &runner{out: out, c: c, log: zap.NewNop(), sess: session.New(tt, started, c)}, api
}

func TestRunnerInteractiveSubmit(t *testing.T) {
	out := &syncBuffer{}
	r, api := newRunner(t, out, time.Now())

	in := strings.NewReader("a B\nbogus\nn\na 42\nstatus\nsubmit\n")
	if err := r.run(context.Background(), in, clock.NewMock(), 0); err != nil {
		t.Fatalf("run: %v", err)
	}

	sub := api.submission()
	if sub == nil || sub.TestID != "t1" || len(sub.MCAnswers) != 1 || sub.MCAnswers[0] != 1 || sub.FRAnswers[0] != "42" {
		t.Fatalf("submission = %+v", sub)
	}
	text := out.String()
	for _, want := range []string{`unknown command "bogus"`, "answered 2 of 2, no time limit", "attempt a1: 6 / 6"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunnerSubmitsWhenTimeRunsOut(t *testing.T) {
	out := &syncBuffer{}
	mock := clock.NewMock()
	r, api := newRunner(t, out, mock.Now())

	inR, inW := io.Pipe()
	defer inW.Close()

	done := make(chan error, 1)
	go func() { done <- r.run(context.Background(), inR, mock, 1) }()

	if _, err := io.WriteString(inW, "a 2\n"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !r.sess.IsAnswered(session.SectionMC, 0) {
		if time.Now().After(deadline) {
			t.Fatal("answer was not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
	mock.Add(61 * time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not submit on time-up")
	}
	if sub := api.submission(); sub == nil || sub.MCAnswers[0] != 1 || sub.FRAnswers[0] != "" {
		t.Fatalf("auto submission = %+v", sub)
	}
	if !strings.Contains(out.String(), "time is up") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestTimeUpFailureIsNotRetriedAutomatically(t *testing.T) {
	out := &syncBuffer{}
	mock := clock.NewMock()
	r, api := newRunner(t, out, mock.Now())
	api.failWith(http.StatusBadGateway)

	inR, inW := io.Pipe()
	defer inW.Close()

	done := make(chan error, 1)
	go func() { done <- r.run(context.Background(), inR, mock, 1) }()
	mock.Add(61 * time.Second)

	waitFor(t, out, "type submit to send them again")
	if n := api.postCount(); n != 1 {
		t.Fatalf("POST count after time-up = %d, want 1", n)
	}

	if _, err := io.WriteString(inW, "a 1\n"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, out, "only submit, login, status and help are accepted")
	if r.sess.IsAnswered(session.SectionMC, 0) {
		t.Fatal("answers must stay frozen after time-up")
	}

	api.failWith(0)
	if _, err := io.WriteString(inW, "submit\n"); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manual resubmit did not finish the run")
	}
	if n := api.postCount(); n != 2 {
		t.Fatalf("POST count after manual resubmit = %d, want 2", n)
	}
	if sub := api.submission(); sub == nil || sub.MCAnswers[0] != -1 {
		t.Fatalf("resubmitted = %+v", sub)
	}
}

func TestOptionIndex(t *testing.T) {
	cases := map[string]int{"A": 0, "b": 1, "3": 2, " D ": 3}
	for in, want := range cases {
		got, err := optionIndex(in)
		if err != nil || got != want {
			t.Errorf("optionIndex(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "AB", "?"} {
		if _, err := optionIndex(bad); err == nil {
			t.Errorf("optionIndex(%q) should fail", bad)
		}
	}
}
