package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relaygate/gateway/infrastructure/errors"
	"github.com/relaygate/gateway/infrastructure/httputil"
	"github.com/relaygate/gateway/internal/auth"
	"github.com/relaygate/gateway/internal/storage"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
	TokenType    string `json:"token_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

func (s *Server) registerAuthRoutes() {
	s.router.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	s.router.HandleFunc("/auth/users", s.handleListUsers).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/users", s.handleCreateUser).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/users/{id}/api-keys", s.handleCreateAPIKey).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/users/{id}/api-keys", s.handleListAPIKeys).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/audit/logs", s.handleAuditLogs).Methods(http.MethodGet)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := s.deps.Storage.GetUserByUsername(r.Context(), req.Username)
	if err != nil || user == nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.deps.Audit.AuthFailure(r.Context(), req.Username, "invalid_credentials")
		httputil.Unauthorized(w, "invalid username or password")
		return
	}

	access, expiresAt, err := s.deps.Issuer.Issue(user, auth.TokenAccess)
	if err != nil {
		httputil.InternalError(w, "failed to issue token")
		return
	}
	refresh, _, err := s.deps.Issuer.Issue(user, auth.TokenRefresh)
	if err != nil {
		httputil.InternalError(w, "failed to issue token")
		return
	}

	s.deps.Audit.AuthSuccess(r.Context(), user.ID)
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
		TokenType:    "Bearer",
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	claims, err := s.deps.Issuer.Verify(req.RefreshToken, auth.TokenRefresh)
	if err != nil {
		httputil.Unauthorized(w, "invalid refresh token")
		return
	}

	user, err := s.deps.Storage.GetUserByID(r.Context(), claims.UserID)
	if err != nil || user == nil {
		httputil.Unauthorized(w, "unknown user")
		return
	}

	access, expiresAt, err := s.deps.Issuer.Issue(user, auth.TokenAccess)
	if err != nil {
		httputil.InternalError(w, "failed to issue token")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: access,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		TokenType:   "Bearer",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	s.deps.Audit.Log(r.Context(), auditEvent(storage.EventAuthLogout, userID, "", "", nil, s))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	user, err := s.deps.Storage.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		httputil.NotFound(w, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*storage.User, bool) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return nil, false
	}
	user, err := s.deps.Storage.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		httputil.Unauthorized(w, "unknown user")
		return nil, false
	}
	if err := auth.RequirePermission(user.Role, auth.PermAdminUsers); err != nil {
		s.deps.Audit.PermissionDenied(r.Context(), user.ID, "auth.users", "")
		writeServiceError(w, r, errors.PermissionDenied(""))
		return nil, false
	}
	return user, true
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "use a specific lookup; bulk listing is intentionally not exposed"})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.InternalError(w, "failed to hash password")
		return
	}
	role := storage.UserRole(req.Role)
	switch role {
	case storage.RoleAdmin, storage.RoleStandard, storage.RoleReadonly:
	default:
		role = storage.RoleStandard
	}
	user := &storage.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.deps.Storage.CreateUser(r.Context(), user); err != nil {
		writeServiceError(w, r, errors.Conflict("username already exists"))
		return
	}
	s.deps.Audit.Log(r.Context(), auditEvent(storage.EventResourceCreate, admin.ID, "user", user.ID, nil, s))
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

type apiKeyCreateResponse struct {
	ID     string `json:"id"`
	RawKey string `json:"api_key"`
	Name   string `json:"name,omitempty"`
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	admin, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	targetID := mux.Vars(r)["id"]

	raw, err := auth.GenerateAPIKey()
	if err != nil {
		httputil.InternalError(w, "failed to generate api key")
		return
	}
	key := &storage.APIKey{
		ID:        uuid.NewString(),
		UserID:    targetID,
		KeyHash:   auth.HashAPIKey(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Storage.CreateAPIKey(r.Context(), key); err != nil {
		httputil.InternalError(w, "failed to create api key")
		return
	}
	s.deps.Audit.Log(r.Context(), auditEvent(storage.EventResourceCreate, admin.ID, "api_key", key.ID, nil, s))
	httputil.WriteJSON(w, http.StatusCreated, apiKeyCreateResponse{ID: key.ID, RawKey: raw})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	targetID := mux.Vars(r)["id"]
	keys, err := s.deps.Storage.ListAPIKeys(r.Context(), targetID)
	if err != nil {
		httputil.InternalError(w, "failed to list api keys")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, keys)
}

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	limit := httputil.QueryInt(r, "limit", 100)
	logs, err := s.deps.Audit.GetLogs(r.Context(), storage.AuditFilter{Limit: limit})
	if err != nil {
		httputil.InternalError(w, "failed to load audit logs")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, logs)
}

func toUserResponse(u *storage.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: string(u.Role)}
}
