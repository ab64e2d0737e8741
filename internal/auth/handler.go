package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRegex    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	sessions *SessionManager
}

func NewHandler(sessions *SessionManager) *Handler {
	return &Handler{sessions: sessions}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	tokens, err := h.sessions.Login(r.Context(), body.Identifier, body.Secret)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body SignupInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if !usernameRegex.MatchString(strings.ToLower(strings.TrimSpace(body.Username))) {
		writeError(w, http.StatusBadRequest, "username format is invalid")
		return
	}
	if !emailRegex.MatchString(strings.TrimSpace(body.Email)) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if !phoneRegex.MatchString(strings.TrimSpace(body.Phone)) {
		writeError(w, http.StatusBadRequest, "phone format is invalid")
		return
	}
	// bcrypt only hashes the first 72 bytes and rejects longer inputs.
	if len(strings.TrimSpace(body.Secret)) < 8 || len(body.Secret) > 72 {
		writeError(w, http.StatusBadRequest, "secret format is invalid")
		return
	}

	if err := h.sessions.Signup(r.Context(), body); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			writeError(w, http.StatusBadRequest, "username is already exist")
			return
		}
		if errors.Is(err, ErrPhoneTaken) {
			writeError(w, http.StatusBadRequest, "phone number is already exist")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	writeJSON(w, http.StatusOK, "User registered successfully!")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	tokens, err := h.sessions.Refresh(r.Context(), tokenString)
	if err != nil {
		if isClientTokenError(err) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing authorization token")
		return
	}

	if err := h.sessions.Logout(r.Context(), tokenString); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func isClientTokenError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
