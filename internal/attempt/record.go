// Package attempt grades submissions server-side and keeps the resulting
// write-once records.
package attempt

import (
	"context"
	"time"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/grading"
)

var ErrNotFound = apierr.New(apierr.NotFound, "attempt not found")

// Record is an immutable graded attempt. Question text, options and
// solutions are frozen copies taken at grading time.
type Record struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	TestID string `json:"testId"`

	grading.Result

	StartedAt   time.Time `json:"startedAt"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// TestInfo is the slice of a Test shown next to an attempt in listings.
type TestInfo struct {
	Title   string `json:"title"`
	Tag     string `json:"tag"`
	Subject string `json:"subject"`
}

// Listing is a Record joined with its Test, which may have been deleted.
type Listing struct {
	Record
	Test *TestInfo `json:"test"`
}

// Repository stores records. There is no update or delete.
type Repository interface {
	// Create assigns ID and SubmittedAt.
	Create(ctx context.Context, r Record) (Record, error)
	FindByID(ctx context.Context, id string) (Record, error)
	// FindByUser returns newest first.
	FindByUser(ctx context.Context, userID string) ([]Record, error)
}
