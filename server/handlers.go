package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"musaix/cache"
	"musaix/config"
	"musaix/core/analysis"
	"musaix/core/auth"
	"musaix/core/notify"
	"musaix/core/search"
	"musaix/core/upload"
	"musaix/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	cfg      *config.Config
	ingest   *analysis.IngestService
	results  *analysis.ResultService
	search   *search.Service
	uploads  *upload.Manager
	hub      *notify.Hub
	analyses repository.AnalysisRepository
	files    repository.AudioFileRepository
	users    repository.UserRepository
	cache    *cache.AnalysisCache
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	cfg *config.Config,
	ingest *analysis.IngestService,
	results *analysis.ResultService,
	searchSvc *search.Service,
	uploads *upload.Manager,
	hub *notify.Hub,
	analyses repository.AnalysisRepository,
	files repository.AudioFileRepository,
	users repository.UserRepository,
	analysisCache *cache.AnalysisCache,
) *APIHandler {
	return &APIHandler{
		cfg:      cfg,
		ingest:   ingest,
		results:  results,
		search:   searchSvc,
		uploads:  uploads,
		hub:      hub,
		analyses: analyses,
		files:    files,
		users:    users,
		cache:    analysisCache,
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type contextKey string

const userIDKey contextKey = "userID"

// GetUserIDFromContext extracts the authenticated user id set by
// AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("no user ID in context")
	}
	return userID, nil
}

// AuthMiddleware validates the JWT bearer token and injects the user id
// into the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

// HealthHandler reports service liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "musaix",
		"version": "1.0.0",
	})
}
