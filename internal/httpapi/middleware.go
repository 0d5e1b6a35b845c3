package httpapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware stamps every request with a correlation id, reusing
// whatever the caller already sent if it looks safe to log and echo back.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = newRequestID()
		}
		r.Header.Set(requestIDHeader, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func validRequestID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req_fallback"
	}
	return "req_" + hex.EncodeToString(b[:])
}

// statusRecorder captures the status code a handler wrote so the logging
// middleware can report it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		dur := time.Since(start).Milliseconds()
		level := "INFO"
		if rec.status >= 500 {
			level = "ERROR"
		} else if rec.status >= 400 {
			level = "WARN"
		}
		logLine(level, "request", "method=%s path=%s status=%d duration_ms=%d", r.Method, r.URL.Path, rec.status, dur)
	})
}

func logLine(level, msg, format string, args ...any) {
	ts := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n", ts, level, msg, line)
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logLine("ERROR", "panic_recovered", "method=%s path=%s rec=%v", r.Method, r.URL.Path, rec)
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type corsConfig struct {
	allowedOrigins   []string
	allowedMethods   string
	allowedHeaders   string
	allowCredentials bool
	maxAgeSeconds    int
	allowAllOrigins  bool
}

func loadCORSConfig() corsConfig {
	origins := strings.TrimSpace(os.Getenv("VST_CORS_ALLOWED_ORIGINS"))
	if origins == "" {
		origins = "*"
	}
	allowedOrigins := splitCSV(origins)
	methods := strings.TrimSpace(os.Getenv("VST_CORS_ALLOWED_METHODS"))
	if methods == "" {
		methods = "GET,PUT,OPTIONS"
	}
	headers := strings.TrimSpace(os.Getenv("VST_CORS_ALLOWED_HEADERS"))
	if headers == "" {
		headers = "Content-Type, X-Request-ID, X-API-Key"
	}
	cred := strings.TrimSpace(os.Getenv("VST_CORS_ALLOW_CREDENTIALS"))
	allowCred := false
	if cred != "" {
		allowCred = strings.EqualFold(cred, "true")
	}
	maxAge := 600
	if v := strings.TrimSpace(os.Getenv("VST_CORS_MAX_AGE_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			maxAge = n
		}
	}
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
	}
	return corsConfig{
		allowedOrigins:   allowedOrigins,
		allowedMethods:   methods,
		allowedHeaders:   headers,
		allowCredentials: allowCred,
		maxAgeSeconds:    maxAge,
		allowAllOrigins:  allowAll,
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func originAllowed(cfg corsConfig, origin string) (string, bool) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", false
	}
	if cfg.allowCredentials {
		// With credentials, we cannot use wildcard. Must explicitly allow origin.
		for _, o := range cfg.allowedOrigins {
			if o == origin {
				return origin, true
			}
		}
		return "", false
	}

	// No credentials
	if cfg.allowAllOrigins {
		return "*", true
	}
	for _, o := range cfg.allowedOrigins {
		if o == origin {
			return origin, true
		}
	}
	return "", false
}

func setCORSHeaders(w http.ResponseWriter, cfg corsConfig, allowedOrigin string) {
	if allowedOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)

		// Ensure caches differentiate by Origin when not wildcard
		if allowedOrigin != "*" {
			w.Header().Add("Vary", "Origin")
		}
	}
	w.Header().Set("Access-Control-Allow-Methods", cfg.allowedMethods)
	w.Header().Set("Access-Control-Allow-Headers", cfg.allowedHeaders)
	if cfg.allowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.maxAgeSeconds))
}

func withCORS(next http.Handler) http.Handler {
	cfg := loadCORSConfig()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin, ok := originAllowed(cfg, origin)

		// If Origin isn't allowed, do not set allow headers; still serve the request.
		if ok {
			setCORSHeaders(w, cfg, allowedOrigin)
		}

		if r.Method == http.MethodOptions {
			// Preflight: CORS headers are set only when the origin is allowed.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secretsEqual performs a constant-time comparison so the maintenance
// endpoint does not leak timing information about the configured secret.
func secretsEqual(presented, configured string) bool {
	if len(configured) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
