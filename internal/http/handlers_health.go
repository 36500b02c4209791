package httpx

import (
	"context"
	"io"
	"net/http"
	"slices"
	"time"
)

const (
	liveResponse      = `{"status":"ok"}`
	readyCheckTimeout = 2 * time.Second
)

// HealthCheck probes one dependency, for example a database ping.
type HealthCheck func(ctx context.Context) error

// liveHandler reports that the process is serving requests.
func liveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, liveResponse)
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// readyHandler runs every check and answers 503 when any of them fails.
// Checks run in name order so the response and logs are stable.
func readyHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	slices.Sort(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		resp := readyResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		code := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		if r.Method == http.MethodHead {
			w.WriteHeader(code)
			return
		}
		WriteJSON(w, code, resp)
	}
}
