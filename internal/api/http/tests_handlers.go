package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/exam"
	"github.com/Batpurev0828/qbtusul/internal/rbac"
	syncx "github.com/Batpurev0828/qbtusul/internal/sync"
)

func summaries(ts []exam.Test) []exam.Summary {
	out := make([]exam.Summary, 0, len(ts))
	for _, t := range ts {
		out = append(out, exam.Summarize(t))
	}
	return out
}

// ListTestsHandler lists published tests, newest tag first.
func ListTestsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := store.FindPublished(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, summaries(ts))
	}
}

// AdminListTestsHandler lists every test, unpublished ones included.
func AdminListTestsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := store.FindAll(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, summaries(ts))
	}
}

// GetTestHandler returns the answer-free view unless the caller may see keys.
func GetTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.FindByID(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		full := rbac.Can(auth.IdentityFromContext(r.Context()), rbac.PermTestViewFull)
		apierr.JSON(w, http.StatusOK, exam.Sanitize(t, full))
	}
}

func CreateTestHandler(store exam.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.Input
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		t, err := exam.Normalize(in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err = store.Create(r.Context(), t)
		if err != nil {
			writeError(w, r, err)
			return
		}
		recordTestEvent(r.Context(), events, syncx.TypeTestCreated, t)
		apierr.JSON(w, http.StatusCreated, t)
	}
}

// UpdateTestHandler merges the fields present in the body onto the stored
// test and validates the result, so {"published": false} only unpublishes.
func UpdateTestHandler(store exam.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		var p exam.Patch
		if err := decodeJSON(w, r, &p); err != nil {
			writeError(w, r, err)
			return
		}
		cur, err := store.FindByID(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err := exam.Normalize(p.Apply(exam.InputFrom(cur)))
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err = store.Update(r.Context(), id, t)
		if err != nil {
			writeError(w, r, err)
			return
		}
		recordTestEvent(r.Context(), events, syncx.TypeTestUpdated, t)
		apierr.JSON(w, http.StatusOK, t)
	}
}

func DeleteTestHandler(store exam.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		if err := store.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		recordTestEvent(r.Context(), events, syncx.TypeTestDeleted, exam.Test{ID: id})
		apierr.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type testEvent struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Actor string `json:"actor"`
}

// recordTestEvent is best effort: the write has already happened.
func recordTestEvent(ctx context.Context, events *syncx.EventRepo, typ string, t exam.Test) {
	log := loggerFrom(ctx)
	actor := auth.IdentityFromContext(ctx).UserID
	log.Info("test changed", zap.String("event", typ), zap.String("test_id", t.ID), zap.String("actor", actor))
	if events == nil {
		return
	}
	e, err := syncx.NewEvent(typ, t.ID, testEvent{ID: t.ID, Title: t.Title, Tag: t.Tag, Actor: actor})
	if err == nil {
		err = events.Append(ctx, nil, e)
	}
	if err != nil {
		log.Warn("append event", zap.String("event", typ), zap.Error(err))
	}
}
