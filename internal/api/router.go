// Package api provides the HTTP delineation API for tdxmnsi.
// All data endpoints are mounted under /api/v1.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// maxJSONBodySize is the maximum size for JSON request bodies (1MB).
const maxJSONBodySize = 1 << 20

// Structured error type codes for machine-readable error categorization.
const (
	ErrorTypeValidation    = "VALIDATION"     // request data failed validation
	ErrorTypeAuthentication = "AUTHENTICATION" // missing or invalid credentials
	ErrorTypeNotFound      = "NOT_FOUND"       // requested resource does not exist
	ErrorTypeRateLimit     = "RATE_LIMIT"      // too many requests
	ErrorTypeInternal      = "INTERNAL"        // unexpected server error
	ErrorTypeUnavailable   = "UNAVAILABLE"     // dependency or feature not available
)

// APIError is the structured JSON error envelope returned by all API error responses.
// Format: {"error": {"code": "ERROR_CODE", "type": "ERROR_TYPE", "message": "human-readable message"}}
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail holds the code, type, and message inside the error envelope.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// errorTypeFromStatus maps HTTP status codes to broad error type categories.
func errorTypeFromStatus(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return ErrorTypeValidation
	case status == http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusServiceUnavailable:
		return ErrorTypeUnavailable
	case status >= 500:
		return ErrorTypeInternal
	default:
		return ""
	}
}

// errorJSON writes a structured JSON error response. The type field is
// derived automatically from the HTTP status code.
func errorJSON(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIError{
		Error: APIErrorDetail{Code: code, Type: errorTypeFromStatus(status), Message: message},
	}); err != nil {
		slog.Error("failed to encode JSON error response", "error", err)
	}
}

// internalError logs the full error server-side and returns a generic JSON error to clients.
func internalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	errorJSON(w, msg, "INTERNAL", http.StatusInternalServerError)
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// limitJSONBody caps request body size for non-multipart requests.
func limitJSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if r.Body != nil && !strings.HasPrefix(ct, "multipart/") {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds standard HTTP security headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

// parseFloatQuery reads a required float64 query parameter.
func parseFloatQuery(r *http.Request, name string) (float64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseRegionQuery reads an optional region_code query parameter.
func parseRegionQuery(r *http.Request) (int64, bool) {
	v := r.URL.Query().Get("region_code")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// BatchRunner reports the in-flight status of the scheduled batch pipeline.
// Implemented by internal/pipeline.Batch.
type BatchRunner interface {
	ActiveJobs() int
}

// Server holds dependencies for all API handlers.
type Server struct {
	Delineation   Delineation
	Batch         BatchRunner
	Auth          func(http.Handler) http.Handler
	CORSOrigins   []string         // Allowed CORS origins. Defaults to ["http://localhost:3000"].
	RateLimit       *RateLimitConfig // Per-IP rate limiting config. Nil disables rate limiting.
	RateLimiterStop func()           // Populated by NewRouter when rate limiting is enabled.
	DBHealth        HealthChecker    // Postgres health check (pool.Ping). Nil = skip.
	StorageHealth   HealthChecker    // Storage backend health check. Nil = skip.
}

// NewRouter creates a configured chi router with all API routes mounted.
func NewRouter(srv *Server) chi.Router {
	r := chi.NewRouter()

	corsOrigins := srv.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:3000"}
	}

	hasWildcard := false
	for _, o := range corsOrigins {
		if o == "*" {
			hasWildcard = true
			break
		}
	}

	corsOpts := cors.Options{
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "RateLimit-Limit", "RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if hasWildcard {
		slog.Warn("CORS: wildcard origin '*' with AllowCredentials — using dynamic origin reflection")
		corsOpts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		corsOpts.AllowedOrigins = corsOrigins
	}

	r.Use(cors.Handler(corsOpts))
	r.Use(securityHeaders)
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.HandleHealth)
	r.Get("/health/live", srv.HandleHealthLive)
	r.Get("/health/ready", srv.HandleHealthReady)
	r.Get("/metrics", srv.HandleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limitJSONBody)
		if srv.RateLimit != nil {
			rl, mw := RateLimit(*srv.RateLimit)
			srv.RateLimiterStop = rl.Stop
			r.Use(mw)
		}
		if srv.Auth != nil {
			r.Use(srv.Auth)
		}

		r.Get("/point", srv.HandlePoint)
		r.Get("/upstream/{link_id}", srv.HandleUpstream)
		r.Get("/boundary", srv.HandleBoundary)
	})

	return r
}
