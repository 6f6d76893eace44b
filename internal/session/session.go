// Package session is the client-side state machine for one attempt at a
// Test: navigation, answer capture and a single-use submit.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Batpurev0828/qbtusul/internal/exam"
)

var (
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrSessionClosed      = errors.New("session is closed")
	ErrOutOfRange         = errors.New("out of range")
	ErrNoSubmitter        = errors.New("session has no submitter")
)

// Unanswered is the wire value of an MC question with no selection.
const Unanswered = -1

type Section int

const (
	SectionMC Section = iota
	SectionFR
)

func (s Section) String() string {
	if s == SectionFR {
		return "FR"
	}
	return "MC"
}

type Direction int

const (
	Prev Direction = iota
	Next
)

type Phase int

const (
	Active Phase = iota
	Submitting
	Submitted
	Failed
)

func (p Phase) String() string {
	switch p {
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Failed:
		return "failed"
	default:
		return "active"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool { return p == Submitted || p == Failed }

// Submission is the wire payload sent for grading. Both arrays are dense and
// sized to the Test, with Unanswered and "" in unanswered slots.
type Submission struct {
	TestID    string    `json:"testId"`
	MCAnswers []int     `json:"mcAnswers"`
	FRAnswers []string  `json:"frAnswers"`
	StartedAt time.Time `json:"startedAt"`
}

// Submitter delivers a Submission and returns the server-assigned attempt id.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (attemptID string, err error)
}

// retryable is implemented by errors that know whether resubmitting can
// succeed. Errors without it are treated as transport failures.
type retryable interface {
	Retryable() bool
}

type Position struct {
	Section Section
	Index   int
}

// Question is the view of the current question.
type Question struct {
	Position
	Number   int // 1-based across both sections
	Text     string
	Options  []string
	Points   float64
	Selected int
	Response string
}

type Session struct {
	mu sync.Mutex

	test      exam.Test
	startedAt time.Time
	submitter Submitter

	mc  []int
	fr  []string
	pos Position

	phase     Phase
	attemptID string
	lastErr   error
}

// New starts a session over t, which should be the sanitized view. startedAt
// is fixed for the life of the session.
func New(t exam.Test, startedAt time.Time, sub Submitter) *Session {
	s := &Session{
		test:      t,
		startedAt: startedAt,
		submitter: sub,
		mc:        make([]int, len(t.MCQuestions)),
		fr:        make([]string, len(t.FRQuestions)),
	}
	for i := range s.mc {
		s.mc[i] = Unanswered
	}
	if len(t.MCQuestions) == 0 && len(t.FRQuestions) > 0 {
		s.pos = Position{Section: SectionFR}
	}
	return s
}

func (s *Session) TestID() string       { return s.test.ID }
func (s *Session) StartedAt() time.Time { return s.startedAt }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// AttemptID is set once the session reaches Submitted.
func (s *Session) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

// Err is the last submission error, cleared when a new submission starts.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SelectOption records opt for MC question i, replacing any earlier choice.
func (s *Session) SelectOption(i, opt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrSessionClosed
	}
	if i < 0 || i >= len(s.mc) || opt < 0 || opt >= len(s.test.MCQuestions[i].Options) {
		return ErrOutOfRange
	}
	s.mc[i] = opt
	return nil
}

// ClearOption returns MC question i to unanswered.
func (s *Session) ClearOption(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrSessionClosed
	}
	if i < 0 || i >= len(s.mc) {
		return ErrOutOfRange
	}
	s.mc[i] = Unanswered
	return nil
}

// SetFreeResponse stores text verbatim for FR question i.
func (s *Session) SetFreeResponse(i int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrSessionClosed
	}
	if i < 0 || i >= len(s.fr) {
		return ErrOutOfRange
	}
	s.fr[i] = text
	return nil
}

// Navigate moves one question through the MC section and then the FR
// section. At either end it returns ErrOutOfRange and stays put.
func (s *Session) Navigate(d Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrSessionClosed
	}
	next, ok := s.step(d)
	if !ok {
		return ErrOutOfRange
	}
	s.pos = next
	return nil
}

// CanNavigate reports whether Navigate(d) would move.
func (s *Session) CanNavigate(d Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return false
	}
	_, ok := s.step(d)
	return ok
}

func (s *Session) step(d Direction) (Position, bool) {
	nMC, nFR := len(s.mc), len(s.fr)
	p := s.pos
	switch {
	case d == Next && p.Section == SectionMC && p.Index+1 < nMC:
		return Position{SectionMC, p.Index + 1}, true
	case d == Next && p.Section == SectionMC && nFR > 0:
		return Position{SectionFR, 0}, true
	case d == Next && p.Section == SectionFR && p.Index+1 < nFR:
		return Position{SectionFR, p.Index + 1}, true
	case d == Prev && p.Section == SectionFR && p.Index > 0:
		return Position{SectionFR, p.Index - 1}, true
	case d == Prev && p.Section == SectionFR && nMC > 0:
		return Position{SectionMC, nMC - 1}, true
	case d == Prev && p.Section == SectionMC && p.Index > 0:
		return Position{SectionMC, p.Index - 1}, true
	}
	return p, false
}

// JumpTo moves directly to any in-range question.
func (s *Session) JumpTo(sec Section, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrSessionClosed
	}
	n := len(s.mc)
	if sec == SectionFR {
		n = len(s.fr)
	}
	if i < 0 || i >= n {
		return ErrOutOfRange
	}
	s.pos = Position{Section: sec, Index: i}
	return nil
}

// Current returns the question at the current position; ok is false for a
// Test with no questions.
func (s *Session) Current() (q Question, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pos
	switch p.Section {
	case SectionMC:
		if p.Index >= len(s.test.MCQuestions) {
			return Question{}, false
		}
		mq := s.test.MCQuestions[p.Index]
		return Question{
			Position: p,
			Number:   p.Index + 1,
			Text:     mq.QuestionText,
			Options:  append([]string(nil), mq.Options...),
			Points:   mq.Points,
			Selected: s.mc[p.Index],
		}, true
	default:
		if p.Index >= len(s.test.FRQuestions) {
			return Question{}, false
		}
		fq := s.test.FRQuestions[p.Index]
		return Question{
			Position: p,
			Number:   len(s.mc) + p.Index + 1,
			Text:     fq.QuestionText,
			Points:   fq.Points,
			Selected: Unanswered,
			Response: s.fr[p.Index],
		}, true
	}
}

// IsAnswered treats whitespace-only FR text as unanswered. This is a display
// rule; the text is still submitted as typed.
func (s *Session) IsAnswered(sec Section, i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answered(sec, i)
}

func (s *Session) answered(sec Section, i int) bool {
	if sec == SectionMC {
		return i >= 0 && i < len(s.mc) && s.mc[i] != Unanswered
	}
	return i >= 0 && i < len(s.fr) && strings.TrimSpace(s.fr[i]) != ""
}

// AnsweredCount returns answered and total question counts.
func (s *Session) AnsweredCount() (answered, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mc {
		if s.answered(SectionMC, i) {
			answered++
		}
	}
	for i := range s.fr {
		if s.answered(SectionFR, i) {
			answered++
		}
	}
	return answered, len(s.mc) + len(s.fr)
}

// Snapshot copies the current answers into a Submission.
func (s *Session) Snapshot() Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Submission {
	return Submission{
		TestID:    s.test.ID,
		MCAnswers: append([]int{}, s.mc...),
		FRAnswers: append([]string{}, s.fr...),
		StartedAt: s.startedAt,
	}
}

// Submit sends a snapshot of the answers exactly once. A call while another
// is in flight returns ErrSubmissionInFlight and does nothing. On a
// retryable failure the session returns to Active so the user can try
// again; a non-retryable failure closes it as Failed.
func (s *Session) Submit(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch s.phase {
	case Submitting:
		s.mu.Unlock()
		return "", ErrSubmissionInFlight
	case Submitted:
		id := s.attemptID
		s.mu.Unlock()
		return id, ErrAlreadySubmitted
	case Failed:
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.submitter == nil {
		s.mu.Unlock()
		return "", ErrNoSubmitter
	}
	s.phase = Submitting
	s.lastErr = nil
	snap := s.snapshotLocked()
	sub := s.submitter
	s.mu.Unlock()

	id, err := sub.Submit(ctx, snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		s.phase = Active
		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			s.phase = Failed
		}
		return "", fmt.Errorf("submit attempt: %w", err)
	}
	s.phase = Submitted
	s.attemptID = id
	return id, nil
}
