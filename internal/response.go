package form_courier

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// setCORSHeaders applies the fixed header set every response carries.
func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Max-Age", "86400")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	js, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		js = []byte(`{"error":"` + msgInternal + `"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(js)
}

// writeError maps a pipeline error onto its status and body and logs it at
// the level its class deserves.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		clientErr     *ClientError
		rateErr       *RateLimitedError
		dependencyErr *DependencyError
		unexpectedErr *UnexpectedError
	)

	switch {
	case errors.As(err, &clientErr):
		log.Info("submission rejected", "status", clientErr.Status, "reason", clientErr.Message)
		writeJSON(w, clientErr.Status, errorResponse{Error: clientErr.Message})

	case errors.As(err, &rateErr):
		log.Info("rate limited",
			"identity", rateErr.Identity,
			"count", rateErr.Decision.Count,
			"retry_after_s", rateErr.RetryAfter.Seconds(),
		)
		if rateErr.RetryAfter > 0 {
			secs := int(math.Ceil(rateErr.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: msgRateLimited})

	case errors.As(err, &dependencyErr):
		log.Error("failed to send email", "err", dependencyErr.Err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgSendFailed})

	case errors.As(err, &unexpectedErr):
		if len(unexpectedErr.Stack) > 0 {
			log.Error("unexpected error", "err", unexpectedErr.Err, "stack", string(unexpectedErr.Stack))
		} else {
			log.Error("unexpected error", "err", unexpectedErr.Err)
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})

	default:
		log.Error("unclassified error", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
	}
}
