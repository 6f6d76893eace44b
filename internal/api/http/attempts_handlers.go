package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/attempt"
	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/session"
)

// CreateAttemptHandler grades a submission and answers 201 {"attemptId"}.
func CreateAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub session.Submission
		if err := decodeJSON(w, r, &sub); err != nil {
			writeError(w, r, err)
			return
		}
		rec, err := svc.Submit(r.Context(), auth.IdentityFromContext(r.Context()), sub)
		if err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusCreated, map[string]string{"attemptId": rec.ID})
	}
}

func ListAttemptsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListMine(r.Context(), auth.IdentityFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, list)
	}
}

func GetAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.Get(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, rec)
	}
}
