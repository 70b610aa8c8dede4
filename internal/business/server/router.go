package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openshop/identity/internal/config"
)

const (
	SignInPagePath     = "/v1/google-identity/signin-page/"
	SignInCallbackPath = "/v1/google-identity/signin-callback/"
	TokenRefreshPath   = "/v1/user/token/refresh/"
	TokenVerifyPath    = "/v1/user/token/verify/"
	PingPath           = "/ping"
)

func newRouter(cfg *config.Config, svc SignInService) *chi.Mux {
	h := &signInHandler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	routeOperation(r, cfg, http.MethodGet, PingPath, "ping", pingHandler)
	routeOperation(r, cfg, http.MethodGet, SignInPagePath, "signinPage", h.signInPage)
	routeOperation(r, cfg, http.MethodGet, SignInCallbackPath, "signinCallback", h.callback)
	routeOperation(r, cfg, http.MethodPost, TokenRefreshPath, "tokenRefresh", h.refresh)
	routeOperation(r, cfg, http.MethodPost, TokenVerifyPath, "tokenVerify", h.verify)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusNotFound, errorModel{Error: "Not found.", Code: "not_found"})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorModel{Error: "Method not allowed.", Code: "method_not_allowed"})
	})

	return r
}
