// Package handlers contains HTTP middleware and health check plumbing.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyAuth authenticates requests against bcrypt hashes of API keys. Only
// hashes are held in memory; plaintext keys exist only in client requests.
type APIKeyAuth struct {
	headerName string
	mu         sync.RWMutex
	keyHashes  [][]byte
}

// NewAPIKeyAuth creates an authenticator from bcrypt key hashes. Invalid
// hashes are dropped.
func NewAPIKeyAuth(headerName string, keyHashes []string) *APIKeyAuth {
	if headerName == "" {
		headerName = "X-API-Key"
	}

	hashes := make([][]byte, 0, len(keyHashes))
	for _, h := range keyHashes {
		if h == "" {
			continue
		}
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			continue
		}
		hashes = append(hashes, []byte(h))
	}

	return &APIKeyAuth{
		headerName: headerName,
		keyHashes:  hashes,
	}
}

// AddKey registers a plaintext key, storing only its hash.
func (a *APIKeyAuth) AddKey(key string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.keyHashes = append(a.keyHashes, hash)
	return nil
}

// IsValid reports whether the key matches any registered hash.
func (a *APIKeyAuth) IsValid(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, hash := range a.keyHashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// HasKeys reports whether any keys are registered. With no keys the
// middleware rejects everything, which keeps a misconfigured deployment
// closed rather than open.
func (a *APIKeyAuth) HasKeys() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keyHashes) > 0
}

// Middleware returns an HTTP middleware enforcing API key authentication.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(a.headerName)
		if key == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if key == "" {
			writeAuthError(w, "missing_api_key", "API key is required")
			return
		}
		if !a.IsValid(key) {
			writeAuthError(w, "invalid_api_key", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeAuthError emits a 401 as JSON, so auth failures parse like every
// other API error.
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMEOUT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TimeoutMiddleware bounds request handling time via the request context.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
