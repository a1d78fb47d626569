package middleware

import (
	"net/http"
)

type CORSMiddleware struct {
	allowAll bool
	origins  map[string]struct{}
}

// NewCORSMiddleware builds a CORS layer from the configured origin list.
// A single "*" entry allows any origin.
func NewCORSMiddleware(origins []string) *CORSMiddleware {
	m := &CORSMiddleware{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			m.allowAll = true
			continue
		}
		m.origins[o] = struct{}{}
	}
	return m
}

func (m *CORSMiddleware) allowed(origin string) bool {
	if m.allowAll {
		return true
	}
	_, ok := m.origins[origin]
	return ok
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && m.allowed(origin) {
			if m.allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
