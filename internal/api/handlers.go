package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/CamDog38/ShopDelta2-sub001/internal/auth"
	"github.com/CamDog38/ShopDelta2-sub001/internal/share"
)

const maxRequestBody = 64 << 10

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	var req CreateShareRequest
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.shares.Issue(r.Context(), p.Shop, req.options())
	if err != nil {
		s.writeShareError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t.View(s.now(), s.config.PublicBaseURL))
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	tokens, err := s.shares.List(r.Context(), p.Shop)
	if err != nil {
		s.writeShareError(w, err)
		return
	}

	now := s.now()
	resp := ShareListResponse{Shares: make([]share.View, 0, len(tokens))}
	for _, t := range tokens {
		resp.Shares = append(resp.Shares, t.View(now, s.config.PublicBaseURL))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	t, err := s.shares.Get(r.Context(), principal(r).Shop, chi.URLParam(r, "id"))
	if err != nil {
		s.writeShareError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t.View(s.now(), s.config.PublicBaseURL))
}

func (s *Server) handleUpdateShare(w http.ResponseWriter, r *http.Request) {
	var req UpdateShareRequest
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.shares.Update(r.Context(), principal(r).Shop, chi.URLParam(r, "id"), req.options())
	if err != nil {
		s.writeShareError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t.View(s.now(), s.config.PublicBaseURL))
}

func (s *Server) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	t, err := s.shares.Revoke(r.Context(), principal(r).Shop, chi.URLParam(r, "id"))
	if err != nil {
		s.writeShareError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t.View(s.now(), s.config.PublicBaseURL))
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	if err := s.shares.Delete(r.Context(), principal(r).Shop, chi.URLParam(r, "id")); err != nil {
		s.writeShareError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResolveShare(w http.ResponseWriter, r *http.Request) {
	t, state, err := s.shares.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writePublicError(w, state, err)
		return
	}

	resp := PublicShareResponse{State: state, Title: t.Title}
	if state == share.StateActive {
		v := t.View(s.now(), s.config.PublicBaseURL)
		resp.Share = &v
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnlockShare(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	// Keyed on the code alone: X-Real-IP and X-Forwarded-For are client
	// controlled, so a per-IP budget can be reset by rotating them.
	if !s.unlocks.Allow(code) {
		s.logger.Warn("share unlock rate limited", "code", code, "remote", clientIP(r))
		s.writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return
	}

	var req UnlockShareRequest
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.shares.Unlock(r.Context(), code, req.Password)
	if err != nil {
		s.writePublicError(w, "", err)
		return
	}
	v := t.View(s.now(), s.config.PublicBaseURL)
	respondJSON(w, http.StatusOK, PublicShareResponse{State: share.StateActive, Title: t.Title, Share: &v})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// writeShareError maps share errors for the owner API.
func (s *Server) writeShareError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, share.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "share not found")
	case errors.Is(err, share.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, share.ErrRevoked):
		s.writeError(w, http.StatusConflict, "share has been revoked")
	default:
		s.logger.Error("share request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writePublicError maps share errors for anonymous visitors.
func (s *Server) writePublicError(w http.ResponseWriter, state share.AccessState, err error) {
	switch {
	case errors.Is(err, share.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "share not found")
	case errors.Is(err, share.ErrInaccessible):
		respondJSON(w, http.StatusGone, ErrorResponse{Error: "share is no longer available", State: state})
	case errors.Is(err, share.ErrPasswordMismatch):
		s.writeError(w, http.StatusUnauthorized, "incorrect password")
	default:
		s.logger.Error("public share request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
