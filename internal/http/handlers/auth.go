package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"olympiad-tracker/internal/auth"
	"olympiad-tracker/internal/models"
	"olympiad-tracker/internal/security"
)

type AuthHandler struct {
	auth     *auth.Authenticator
	tokens   *security.TokenIssuer
	sessions *security.SessionStore
	log      logrus.FieldLogger
}

func NewAuthHandler(authenticator *auth.Authenticator, tokens *security.TokenIssuer, sessions *security.SessionStore, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		auth:     authenticator,
		tokens:   tokens,
		sessions: sessions,
		log:      log,
	}
}

// Fields are pointers so that a missing field can be told apart from an empty one.
type loginRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func (req *loginRequest) missing() []string {
	var fields []string
	if req.Username == nil {
		fields = append(fields, "username: field required")
	}
	if req.Password == nil {
		fields = append(fields, "password: field required")
	}
	return fields
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	UserType    models.Kind `json:"user_type"`
	FullName    string      `json:"full_name"`
	ID          int         `json:"id"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if missing := req.missing(); len(missing) > 0 {
		respondError(w, http.StatusUnprocessableEntity, strings.Join(missing, "; "))
		return
	}
	username, password := *req.Username, *req.Password

	identity, err := h.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.log.WithField("username", username).Info("login rejected")
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.log.WithError(err).Error("login failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	token, _, err := h.tokens.Issue(identity.Username(), identity.Kind)
	if err != nil {
		h.log.WithError(err).Error("failed to issue token")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.sessions.SaveToken(w, r, token); err != nil {
		h.log.WithError(err).Error("failed to save session")
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.log.WithFields(logrus.Fields{
		"username":  identity.Username(),
		"user_type": identity.Kind,
	}).Info("login")

	respondJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserType:    identity.Kind,
		FullName:    identity.FullName(),
		ID:          identity.ID(),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(w, r); err != nil {
		h.log.WithError(err).Warn("failed to clear session")
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}
