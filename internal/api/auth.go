package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kelotduongvidainhat/ams/internal/audit"
	"github.com/kelotduongvidainhat/ams/internal/auth"
)

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginUser is the user summary returned with a token.
type loginUser struct {
	ID   string    `json:"id"`
	Role auth.Role `json:"role"`
}

// loginResponse is the response body for POST /api/auth/login.
type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int       `json:"expires_in"`
	User      loginUser `json:"user"`
}

// handleLogin exchanges credentials for a bearer token.
// The user id in the response is the username, the identity every other
// endpoint acts as.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, user, err := s.authn.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
		return
	case errors.Is(err, auth.ErrUserInactive):
		writeForbidden(w, "account is locked")
		return
	case err != nil:
		s.logger.Error("login failed", "username", req.Username, "error", err)
		writeInternalError(w, "login failed")
		return
	}

	s.recordAudit(&audit.AuditLog{
		Action:     audit.ActionLogin,
		EntityType: audit.EntityUser,
		EntityID:   user.Username,
		UserID:     user.Username,
	})

	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl <= 0 {
		ttl = 60 //nolint:mnd // matches auth default TTL in minutes
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: ttl * 60, //nolint:mnd // seconds
		User:      loginUser{ID: user.Username, Role: user.Role},
	})
}

// handleMe returns the caller's identity and permissions.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          claims.Identity(),
		"user_id":     claims.UserID,
		"role":        claims.Role,
		"permissions": auth.PermissionsForRole(claims.Role),
	})
}

func (s *Server) recordAudit(entry *audit.AuditLog) {
	if s.audit != nil {
		s.audit.Record(entry)
	}
}
