package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ridehub/internal/auth"
	"ridehub/internal/observability"
)

// CleanupHandler purges revoked token rows past the audit retention
// window. It is the out-of-band counterpart to the never-delete rule of
// the request path, guarded by a shared cron secret.
type CleanupHandler struct {
	store          *auth.PostgresTokenStore
	logger         *observability.Logger
	cronSecret     string
	tokenRetention time.Duration
	batchSize      int
}

func NewCleanupHandler(
	store *auth.PostgresTokenStore,
	logger *observability.Logger,
	cronSecret string,
	tokenRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		store:          store,
		logger:         logger,
		cronSecret:     strings.TrimSpace(cronSecret),
		tokenRetention: tokenRetention,
		batchSize:      batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.store.CleanupStaleTokens(r.Context(), h.tokenRetention, h.batchSize)
	if err != nil {
		h.logger.Error("token_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("token_cleanup_completed", map[string]any{
		"deleted_access_tokens":  result.DeletedAccessTokens,
		"deleted_refresh_tokens": result.DeletedRefreshTokens,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
