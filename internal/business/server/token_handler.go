package server

import (
	"encoding/json"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/serviceerr"
)

const maxTokenBodyBytes = 16 << 10

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

var errMalformedBody = &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "Malformed request body."}

// refresh answers a new access token for a valid refresh token.
func (h *signInHandler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	access, err := h.svc.Refresh(ctx, req.Refresh)
	if err != nil {
		slogctx.Warn(ctx, "Token refresh failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(ctx, w, http.StatusOK, refreshResponse{Access: access})
}

// verify answers an empty object when the token is valid.
func (h *signInHandler) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.svc.Verify(ctx, req.Token); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, struct{}{})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTokenBodyBytes)).Decode(v); err != nil {
		slogctx.Debug(r.Context(), "Rejected request body", "error", err)
		return errMalformedBody
	}

	return nil
}
