package handler

import (
	"net/http"
	"strconv"

	"github.com/V4T54L/dealboard/internal/activity"
)

const defaultActivityLimit = 10

// ActivityHandler serves the recent activity feed.
type ActivityHandler struct {
	feed *activity.Feed
}

func NewActivityHandler(feed *activity.Feed) *ActivityHandler {
	return &ActivityHandler{feed: feed}
}

// Recent handles GET /activity?limit=N.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteProblem(w, http.StatusBadRequest, "invalid parameters", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	respondWithJSON(w, http.StatusOK, h.feed.Recent(limit))
}
