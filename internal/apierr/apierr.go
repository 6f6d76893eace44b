// Package apierr classifies domain errors and renders them as the JSON error
// envelope used by every endpoint: {"error": "..."}.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	Unauthorized
	Forbidden
	Invalid
	Conflict
	TooMany
)

func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Invalid:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case TooMany:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a sentinel with a kind. Domain packages declare their sentinels
// with New so errors.Is keeps working through wrapping.
type Error struct {
	kind Kind
	msg  string
}

func New(k Kind, msg string) *Error { return &Error{kind: k, msg: msg} }

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }

type kinded interface {
	Kind() Kind
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Internal
}

func Status(err error) int { return KindOf(err).Status() }

// Message is safe to send to clients: internal errors are never echoed.
func Message(err error) string {
	var k kinded
	if !errors.As(err, &k) || k.Kind() == Internal {
		return "internal server error"
	}
	if e, ok := k.(error); ok {
		return e.Error()
	}
	return http.StatusText(k.Kind().Status())
}

type envelope struct {
	Error string `json:"error"`
}

// Write sends err as {"error": msg} with the mapped status.
func Write(w http.ResponseWriter, err error) {
	JSON(w, Status(err), envelope{Error: Message(err)})
}

// WriteStatus sends a fixed message with an explicit status.
func WriteStatus(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, envelope{Error: msg})
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
