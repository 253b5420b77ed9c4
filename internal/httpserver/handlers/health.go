package handlers

import (
	"net/http"
	"runtime"
	"time"
)

var startTime = time.Now()

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version,omitempty"`
	GoVersion string `json:"go_version"`
	Storage   string `json:"storage"`
}

// Health handles the health check endpoint. It reports 503 when the store
// cannot be reached.
func (c *Context) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Version:   c.Version,
		GoVersion: runtime.Version(),
		Storage:   "ok",
	}

	status := http.StatusOK
	if c.Ping != nil {
		if err := c.Ping(r.Context()); err != nil {
			response.Status = "degraded"
			response.Storage = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, response)
}

// NotFound answers unknown routes with a JSON error.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "route not found", r.Method+" "+r.URL.Path)
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed", r.Method+" "+r.URL.Path)
}
