package attempt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/exam"
	"github.com/Batpurev0828/qbtusul/internal/grading"
	"github.com/Batpurev0828/qbtusul/internal/session"
)

var ErrMissingTestID = apierr.New(apierr.Invalid, "testId is required")

type Service struct {
	tests exam.Store
	repo  Repository
	log   *zap.Logger
	now   func() time.Time
}

func NewService(tests exam.Store, repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{tests: tests, repo: repo, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Submit grades sub against the stored, unsanitized Test and persists the
// record. Nothing is written unless grading succeeds.
func (s *Service) Submit(ctx context.Context, id auth.Identity, sub session.Submission) (Record, error) {
	if !id.Authenticated() {
		return Record{}, auth.ErrUnauthorized
	}
	testID := strings.TrimSpace(sub.TestID)
	if testID == "" {
		return Record{}, ErrMissingTestID
	}

	t, err := s.tests.FindByID(ctx, testID)
	if err != nil {
		return Record{}, fmt.Errorf("load test %s: %w", testID, err)
	}

	started := sub.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	rec := Record{
		UserID:    id.UserID,
		TestID:    t.ID,
		Result:    grading.Grade(t, sub.MCAnswers, sub.FRAnswers),
		StartedAt: started.UTC(),
	}

	rec, err = s.repo.Create(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("save attempt: %w", err)
	}
	s.log.Info("attempt submitted",
		zap.String("attempt_id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.String("test_id", rec.TestID),
		zap.Float64("score", rec.TotalScore),
		zap.Float64("possible", rec.TotalPossible),
	)
	return rec, nil
}

// Get returns the record to its owner or an admin.
func (s *Service) Get(ctx context.Context, id auth.Identity, attemptID string) (Record, error) {
	if !id.Authenticated() {
		return Record{}, auth.ErrUnauthorized
	}
	rec, err := s.repo.FindByID(ctx, attemptID)
	if err != nil {
		return Record{}, err
	}
	if rec.UserID != id.UserID && !id.IsAdmin() {
		return Record{}, auth.ErrForbidden
	}
	return rec, nil
}

// ListMine returns the caller's attempts newest first. Test is nil for
// attempts whose Test has since been deleted.
func (s *Service) ListMine(ctx context.Context, id auth.Identity) ([]Listing, error) {
	if !id.Authenticated() {
		return nil, auth.ErrUnauthorized
	}
	recs, err := s.repo.FindByUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	infos := map[string]*TestInfo{}
	out := make([]Listing, 0, len(recs))
	for _, r := range recs {
		info, seen := infos[r.TestID]
		if !seen {
			t, err := s.tests.FindByID(ctx, r.TestID)
			switch {
			case err == nil:
				info = &TestInfo{Title: t.Title, Tag: t.Tag, Subject: t.Subject}
			case errors.Is(err, exam.ErrNotFound):
			default:
				return nil, fmt.Errorf("load test %s: %w", r.TestID, err)
			}
			infos[r.TestID] = info
		}
		out = append(out, Listing{Record: r, Test: info})
	}
	return out, nil
}
