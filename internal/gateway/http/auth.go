package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/domain"
	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/pkg/httpx"
)

type AuthHandler struct {
	Registry *service.Registry
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Loading       bool          `json:"loading"`
	IsAdmin       bool          `json:"is_admin"`
	User          *userResponse `json:"user,omitempty"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	metadata := map[string]any{}
	if req.FirstName != "" {
		metadata["first_name"] = req.FirstName
	}
	if req.LastName != "" {
		metadata["last_name"] = req.LastName
	}
	if req.Phone != "" {
		metadata["phone"] = req.Phone
	}

	token, manager, err := h.Registry.Register(r.Context(), req.Email, req.Password, req.ConfirmPassword, metadata)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if manager == nil {
		// Email confirmation pending; no session yet.
		httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
			"status": "confirmation_required",
		})
		return
	}

	setSessionCookie(w, token)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, snapshotResponse(manager.Snapshot()))
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	token, manager, err := h.Registry.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	setSessionCookie(w, token)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, snapshotResponse(manager.Snapshot()))
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookie)
	if err == nil && cookie.Value != "" {
		if err := h.Registry.Revoke(r.Context(), cookie.Value); err != nil {
			logFor(r).Warn("session revoke failed", "err", err)
		}
	}

	clearSessionCookie(w)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, snapshotResponse(snapshotFromContext(r.Context())))
}

func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	manager := sessionFromContext(r.Context())

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if err := manager.UpdateProfile(r.Context(), fields); err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, snapshotResponse(manager.Snapshot()))
}

func snapshotResponse(snap service.Snapshot) sessionResponse {
	resp := sessionResponse{
		Authenticated: snap.Identity != nil,
		Loading:       snap.Loading,
		IsAdmin:       snap.IsAdmin,
	}
	if snap.Identity != nil {
		resp.User = &userResponse{
			ID:            snap.Identity.ID,
			Email:         snap.Identity.Email,
			FirstName:     snap.Identity.FirstName,
			LastName:      snap.Identity.LastName,
			Phone:         snap.Identity.Phone,
			EmailVerified: snap.Identity.EmailVerified,
		}
	}
	return resp
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(service.DefaultSessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeDomainError maps the gateway error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var gw *domain.Error
	if !errors.As(err, &gw) {
		logFor(r).Error("unclassified failure", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "backend request failed")
		return
	}

	switch gw.Kind {
	case domain.KindValidation:
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", gw.Message)
	case domain.KindAuth:
		httpx.WriteError(w, http.StatusUnauthorized, "auth_failed", gw.Message)
	default:
		logFor(r).Warn("backend failure", "kind", string(gw.Kind), "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "backend request failed")
	}
}
