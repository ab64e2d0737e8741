package user

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/getsentry/sentry-go"

	"ridehub/internal/auth"
)

// ProfileSource is the read-side slice of the user directory this handler
// needs.
type ProfileSource interface {
	FindByUsernameOrEmail(ctx context.Context, identifier string) (auth.User, error)
}

type Handler struct {
	profiles ProfileSource
}

func NewHandler(profiles ProfileSource) *Handler {
	return &Handler{profiles: profiles}
}

type profileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// Me returns the profile of the authenticated caller. The identity comes
// from the request context; this handler never reads the token store.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	u, err := h.profiles.FindByUsernameOrEmail(r.Context(), identity.Username)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Phone:    u.Phone,
		Role:     u.Role,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
