package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/server/services"
)

const maxJSONBody = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// attemptsResponse carries the rate-limit state. timeRemaining is in
// milliseconds.
type attemptsResponse struct {
	Error             string `json:"error,omitempty"`
	RemainingAttempts int    `json:"remainingAttempts"`
	Locked            bool   `json:"locked"`
	TimeRemaining     int64  `json:"timeRemaining,omitempty"`
}

func attemptsBody(msg string, v services.Verdict) attemptsResponse {
	return attemptsResponse{
		Error:             msg,
		RemainingAttempts: v.RemainingAttempts,
		Locked:            v.Locked,
		TimeRemaining:     millis(v.TimeRemaining),
	}
}

func millis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return d.Milliseconds()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
}
