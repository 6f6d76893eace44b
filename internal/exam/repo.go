package exam

import (
	"context"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
)

var ErrNotFound = apierr.New(apierr.NotFound, "test not found")

// Store is the Test repository. FindByID always returns the full,
// unsanitized document; sanitizing is the caller's job.
type Store interface {
	FindByID(ctx context.Context, id string) (Test, error)
	FindPublished(ctx context.Context) ([]Test, error) // tag desc, then newest first
	FindAll(ctx context.Context) ([]Test, error)       // newest first, admin listing

	Create(ctx context.Context, t Test) (Test, error)
	Update(ctx context.Context, id string, t Test) (Test, error)
	Delete(ctx context.Context, id string) error
}
