package http

import (
	"net/http"
	"strconv"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	syncx "github.com/Batpurev0828/qbtusul/internal/sync"
)

type eventsPage struct {
	Events []syncx.Event `json:"events"`
	Next   int64         `json:"next"`
}

// ListEventsHandler pages the audit log: GET ?after=<seq>&limit=<n>. Next is
// the cursor for the following page.
func ListEventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		if err != nil || after < 0 {
			after = 0
		}
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)

		list, err := events.List(r.Context(), after, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next := after
		if n := len(list); n > 0 {
			next = list[n-1].Seq
		}
		apierr.JSON(w, http.StatusOK, eventsPage{Events: list, Next: next})
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
