package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/voltdesk/be-plt-auth/internal/service"
	"github.com/voltdesk/be-plt-auth/pkg/apperr"
	"github.com/voltdesk/be-plt-auth/pkg/authz"
	"github.com/voltdesk/be-plt-auth/pkg/cookies"
)

// HTTPHandler exposes the auth core over JSON endpoints.
type HTTPHandler struct {
	auth           *service.AuthService
	authz          *service.AuthzService
	impersonations *service.ImpersonationService
	memberships    *service.MembershipService
	jar            *cookies.Jar
	log            zerolog.Logger
}

func NewHTTPHandler(
	auth *service.AuthService,
	authzSvc *service.AuthzService,
	impersonations *service.ImpersonationService,
	memberships *service.MembershipService,
	jar *cookies.Jar,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		auth:           auth,
		authz:          authzSvc,
		impersonations: impersonations,
		memberships:    memberships,
		jar:            jar,
		log:            log,
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *HTTPHandler) Routes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/login", h.Login)
	mux.HandleFunc("POST /v1/auth/logout", h.Logout)
	mux.HandleFunc("POST /v1/auth/token", h.IssueToken)
	mux.HandleFunc("POST /v1/auth/refresh", h.RefreshToken)
	mux.HandleFunc("GET /v1/auth/me", h.Me)

	mux.HandleFunc("GET /v1/members", h.ListMembers)
	mux.HandleFunc("POST /v1/members", h.AddMember)
	mux.HandleFunc("PATCH /v1/members/{id}/role", h.ChangeMemberRole)
	mux.HandleFunc("DELETE /v1/members/{id}", h.DeactivateMember)

	mux.HandleFunc("POST /v1/permissions/grant", h.GrantCapability)
	mux.HandleFunc("POST /v1/permissions/revoke", h.RevokeCapability)

	mux.HandleFunc("POST /v1/impersonation/start", h.StartImpersonation)
	mux.HandleFunc("POST /v1/impersonation/stop", h.StopImpersonation)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return mux
}

// Login authenticates with email/password and sets the session cookies.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid request body"))
		return
	}

	result, err := h.auth.Login(r.Context(), &service.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.jar.SetSession(w, result.Session.ID)
	companyID := ""
	if result.User.CompanyID != nil {
		companyID = *result.User.CompanyID
	}
	h.jar.SetIdentity(w, result.User.Role, result.User.Email, companyID, result.User.ProfileComplete)
	if result.Company != nil && result.Company.Subdomain != nil {
		h.jar.SetSubdomain(w, *result.Company.Subdomain)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":    result.User.ID,
		"email":     result.User.Email,
		"role":      result.User.Role,
		"companyId": result.User.CompanyID,
	})
}

// Logout deactivates the session, drops the cached context and clears
// the cookies in one operation.
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.ClearSession(r.Context(), w, r); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// IssueToken exchanges an authenticated session for a bearer token pair.
func (h *HTTPHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	authCtx, err := h.auth.Require(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return
	}
	pair, err := h.auth.IssueTokens(r.Context(), authCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

// RefreshToken rotates a refresh token into a new pair.
func (h *HTTPHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid request body"))
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

// Me returns the resolved company-scoped context, exercising the whole
// resolution chain including cache and membership.
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	companyCtx, err := h.authz.RequireCompanyContext(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":        companyCtx.UserID,
		"email":         companyCtx.Email,
		"companyId":     companyCtx.CompanyID,
		"role":          companyCtx.Role,
		"effectiveRole": companyCtx.EffectiveRole(),
		"source":        companyCtx.Source,
	})
}

func (h *HTTPHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	companyCtx, err := h.authz.RequireCapability(r.Context(), r, authz.CapManageTeam)
	if err != nil {
		writeError(w, err)
		return
	}
	members, err := h.memberships.ListMembers(r.Context(), companyCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *HTTPHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	companyCtx, err := h.authz.RequireCapability(r.Context(), r, authz.CapManageTeam)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.impersonations.RejectIfImpersonating(r.Context(), companyCtx); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid request body"))
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, apperr.BadRequest(err.Error()))
		return
	}

	membership, err := h.memberships.AddMember(r.Context(), companyCtx, req.Email, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (h *HTTPHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	companyCtx, err := h.authz.RequireCapability(r.Context(), r, authz.CapManageTeam)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.impersonations.RejectIfImpersonating(r.Context(), companyCtx); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid request body"))
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, apperr.BadRequest(err.Error()))
		return
	}

	if err := h.memberships.ChangeRole(r.Context(), companyCtx, r.PathValue("id"), role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}

func (h *HTTPHandler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	companyCtx, err := h.authz.RequireCapability(r.Context(), r, authz.CapManageTeam)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.impersonations.RejectIfImpersonating(r.Context(), companyCtx); err != nil {
		writeError(w, err)
		return
	}

	if err := h.memberships.Deactivate(r.Context(), companyCtx, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "member deactivated"})
}

func (h *HTTPHandler) GrantCapability(w http.ResponseWriter, r *http.Request) {
	h.capabilityChange(w, r, h.memberships.GrantCapability)
}

func (h *HTTPHandler) RevokeCapability(w http.ResponseWriter, r *http.Request) {
	h.capabilityChange(w, r, h.memberships.RevokeCapability)
}

func (h *HTTPHandler) capabilityChange(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, actor *service.CompanyAuthContext, userID string, capability authz.Capability) error,
) {
	companyCtx, err := h.authz.RequireCapability(r.Context(), r, authz.CapManageTeam)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.impersonations.RejectIfImpersonating(r.Context(), companyCtx); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		UserID     string `json:"userId"`
		Capability string `json:"capability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid request body"))
		return
	}

	if err := apply(r.Context(), companyCtx, req.UserID, authz.Capability(req.Capability)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (h *HTTPHandler) StartImpersonation(w http.ResponseWriter, r *http.Request) {
	// The capability check runs against the effective (membership-aware)
	// role, so an account-level admin demoted within this company cannot
	// impersonate. Starting is itself the act that opens the session, so
	// it is not guarded by RejectIfImpersonating.
	companyCtx, err := h.authz.RequireCapability(r.Context(), r, authz.CapImpersonate)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid request body"))
		return
	}

	imp, err := h.impersonations.Start(r.Context(), companyCtx, req.TargetUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"impersonationId": imp.ID,
		"targetUserId":    imp.TargetUserID,
		"startedAt":       imp.StartedAt,
	})
}

func (h *HTTPHandler) StopImpersonation(w http.ResponseWriter, r *http.Request) {
	companyCtx, err := h.authz.RequireCompanyContext(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.impersonations.Stop(r.Context(), companyCtx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "impersonation stopped"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a status-carrying error into a terse JSON
// response. Internal causes are never leaked to the client.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.StatusOf(err)
	message := "internal error"
	if status != http.StatusInternalServerError {
		message = err.Error()
	}
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  apperr.CodeOf(err),
	})
}
