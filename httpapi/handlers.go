package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/middleware"
)

const refreshCookieName = "refresh_token"

type principalView struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	MFAEnabled bool   `json:"mfaEnabled"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    int64         `json:"expiresIn"`
	Principal    principalView `json:"principal"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type revokedResponse struct {
	Revoked int `json:"revoked"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetTokenRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type healthResponse struct {
	Status         string  `json:"status"`
	RedisLatencyMs float64 `json:"redisLatencyMs"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    s.secondsUntil(res.AccessExpiresAt),
		Principal: principalView{
			ID:         res.Principal.ID,
			Email:      res.Principal.Email,
			Role:       string(res.Principal.Role),
			MFAEnabled: res.Principal.MFAEnabled,
		},
	})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// The body is optional; browsers send only the cookie.
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorBody{Code: "BAD_REQUEST", Message: "invalid JSON body"})
		return
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if c, err := r.Cookie(refreshCookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		middleware.WriteError(w, estateAuth.ErrUnauthenticated)
		return
	}

	res, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, refreshResponse{
		AccessToken: res.AccessToken,
		ExpiresIn:   s.secondsUntil(res.AccessExpiresAt),
	})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth, _ := estateAuth.AuthResultFromContext(r.Context())
	if err := s.engine.Logout(r.Context(), auth); err != nil {
		s.fail(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	auth, _ := estateAuth.AuthResultFromContext(r.Context())
	sessions, err := s.engine.ListSessions(r.Context(), auth)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sessions)
}

func (s *server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	auth, _ := estateAuth.AuthResultFromContext(r.Context())
	if err := s.engine.RevokeSession(r.Context(), auth, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	auth, _ := estateAuth.AuthResultFromContext(r.Context())
	n, err := s.engine.RevokeOtherSessions(r.Context(), auth)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, revokedResponse{Revoked: n})
}

func (s *server) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	auth, _ := estateAuth.AuthResultFromContext(r.Context())
	n, err := s.engine.ForceLogout(r.Context(), auth, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, revokedResponse{Revoked: n})
}

// handleResetRequest answers 202 whatever happened so the response never
// reveals whether the email is registered.
func (s *server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.logger.Error("password reset request failed", "error", err)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleResetValidate(w http.ResponseWriter, r *http.Request) {
	var req resetTokenRequest
	if !decode(w, r, &req) {
		return
	}
	status, err := s.engine.ValidateResetToken(r.Context(), req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, status)
}

func (s *server) handleResetComplete(w http.ResponseWriter, r *http.Request) {
	var req resetTokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.CompletePasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	if !h.RedisAvailable {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		RedisLatencyMs: float64(h.RedisLatency.Microseconds()) / 1000,
	})
}

// fail writes err and logs it when it is not a client-side failure.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := middleware.ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"code", estateAuth.CodeOf(err),
			"error", err,
		)
	}
	middleware.WriteJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteJSON(w, http.StatusRequestEntityTooLarge, middleware.ErrorBody{Code: "BODY_TOO_LARGE", Message: "request body too large"})
			return false
		}
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorBody{Code: "BAD_REQUEST", Message: "invalid JSON body"})
		return false
	}
	return true
}

func (s *server) secondsUntil(t time.Time) int64 {
	d := t.Sub(s.engine.Now()).Round(time.Second)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func (s *server) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/auth",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
