package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/auth"
)

const maxJSONBody = 2 << 20

var errBadJSON = apierr.New(apierr.Invalid, "invalid JSON body")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}

type userResponse struct {
	User  *auth.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

// startSession issues a token for u and sets the session cookie.
func startSession(w http.ResponseWriter, authSvc *auth.Service, u auth.User) (string, error) {
	tok, err := authSvc.IssueToken(u.Identity())
	if err != nil {
		return "", err
	}
	authSvc.SetCookie(w, tok)
	return tok, nil
}

func SignupHandler(authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in auth.SignupInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		u, err := authSvc.Signup(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if _, err := startSession(w, authSvc, u); err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, userResponse{User: &u})
	}
}

func LoginHandler(authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			apierr.WriteStatus(w, http.StatusBadRequest, "email and password are required")
			return
		}
		u, err := authSvc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		tok, err := startSession(w, authSvc, u)
		if err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, userResponse{User: &u, Token: tok})
	}
}

func LogoutHandler(authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authSvc.ClearCookie(w)
		apierr.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// MeHandler answers {"user": null} with 401 rather than the error envelope.
func MeHandler(authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if !id.Authenticated() {
			apierr.JSON(w, http.StatusUnauthorized, userResponse{})
			return
		}
		u, err := authSvc.Me(r.Context(), id.UserID)
		if errors.Is(err, auth.ErrUserNotFound) {
			apierr.JSON(w, http.StatusUnauthorized, userResponse{})
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		apierr.JSON(w, http.StatusOK, userResponse{User: &u})
	}
}
