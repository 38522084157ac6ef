package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/CamDog38/ShopDelta2-sub001/internal/auth"
	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
)

// authMiddleware validates the session token from the Authorization header
// and makes sure the shop it names is registered.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := s.verifier.Verify(token)
		if err != nil {
			s.logger.Debug("session token rejected", "error", err)
			s.writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		if err := s.ensureShop(r.Context(), principal.Shop); err != nil {
			s.logger.Error("failed to register shop", "shop", principal.Shop, "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// ensureShop makes sure the shop row exists, since share links reference it.
// An installed shop is left untouched. A missing or uninstalled row is only
// written when a platform-signed session token proves the app is open in
// that shop's admin, and the transition is logged.
func (s *Server) ensureShop(ctx context.Context, domain string) error {
	shop, err := s.shops.LookupShop(ctx, domain)
	switch {
	case errors.Is(err, tenant.ErrUnknownShop):
		if _, err := s.shops.Register(ctx, domain, ""); err != nil {
			return err
		}
		s.logger.Info("shop registered", "shop", domain)
	case err != nil:
		return err
	case !shop.Installed():
		if _, err := s.shops.Register(ctx, domain, ""); err != nil {
			return err
		}
		s.logger.Warn("shop reinstalled", "shop", domain, "uninstalled_at", shop.UninstalledAt)
	}
	return nil
}
