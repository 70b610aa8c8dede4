package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/serviceerr"
	"github.com/openshop/identity/internal/token"
)

//go:embed templates/login.html
var templatesFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templatesFS, "templates/login.html"))

// SignInService is the sign-in flow and the local token endpoints exposed over HTTP.
type SignInService interface {
	BeginSignIn(ctx context.Context) (string, error)
	Callback(ctx context.Context, state, code string) (token.Pair, error)
	Refresh(ctx context.Context, rawRefresh string) (string, error)
	Verify(ctx context.Context, raw string) error
}

type errorModel struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type signInHandler struct {
	svc SignInService
}

// signInPage renders a page linking to the provider authorization endpoint.
func (h *signInHandler) signInPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, err := h.svc.BeginSignIn(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to begin sign-in", "error", err)
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := loginTemplate.Execute(w, struct{ URL string }{URL: u}); err != nil {
		slogctx.Error(ctx, "Failed to render the sign-in page", "error", err)
	}
}

// callback completes the sign-in and answers with the local token pair.
func (h *signInHandler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		slogctx.Warn(ctx, "Provider reported a sign-in error", "provider_error", providerErr)
	}

	pair, err := h.svc.Callback(ctx, q.Get("state"), q.Get("code"))
	if err != nil {
		slogctx.Error(ctx, "Sign-in callback failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(ctx, w, http.StatusOK, pair)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	e := serviceerr.From(err)

	msg := e.Description
	if msg == "" {
		msg = string(e.Err)
	}

	writeJSON(ctx, w, e.HTTPStatus(), errorModel{Error: msg, Code: string(e.Err)})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slogctx.Error(ctx, "Failed to write the response", "error", err)
	}
}
