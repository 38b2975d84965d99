package httpapi

import (
	"net/http"

	"MessagingWebserver/internal/auth"
	"MessagingWebserver/internal/domain"
)

// sessionTokenHeader carries the signed session value for clients that
// authenticate with a bearer token instead of the cookie.
const sessionTokenHeader = "X-Session-Token"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Username = normalizeUsername(req.Username)
	if err := validateRegistration(req.Username, req.Password); err != nil {
		WriteDomainError(w, err)
		return
	}

	u, sessID, err := a.authSvc.Register(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.startSession(w, sessID)
	a.logger.Info("user registered", "user_id", u.ID)
	writeUser(w, http.StatusCreated, u)
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Username = normalizeUsername(req.Username)
	if err := validateLogin(req.Username, req.Password); err != nil {
		WriteDomainError(w, err)
		return
	}

	u, sessID, err := a.authSvc.Login(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.startSession(w, sessID)
	writeUser(w, http.StatusOK, u)
}

func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := CurrentSessionID(r.Context())
	if !ok || sessID == "" {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.authSvc.Logout(r.Context(), sessID); err != nil {
		a.logger.Warn("logout failed", "err", err)
	}
	auth.ClearSessionCookie(w, a.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) startSession(w http.ResponseWriter, sessID string) {
	cookieValue := a.cookieCodec.EncodeSessionID(sessID)
	auth.SetSessionCookie(w, cookieValue, a.sessionTTL, a.cookieSecure)
	w.Header().Set(sessionTokenHeader, cookieValue)
}
