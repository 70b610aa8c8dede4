package signin

import (
	"context"
	"errors"
	"fmt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/serviceerr"
	"github.com/openshop/identity/internal/token"
)

// Refresh exchanges a refresh token for a new access token. The user is
// looked up again so that deleted accounts stop receiving credentials.
func (m *Manager) Refresh(ctx context.Context, rawRefresh string) (string, error) {
	if rawRefresh == "" {
		return "", &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "Missing refresh token."}
	}

	_, claims, err := m.tokens.Parse(rawRefresh, token.TypeRefresh)
	if err != nil {
		slogctx.Debug(ctx, "Rejected refresh token", "error", err)
		return "", errors.Join(serviceerr.ErrTokenNotValid, err)
	}

	ctx = slogctx.With(ctx, "user_id", claims.UserID)

	u, err := m.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Refresh token belongs to an unknown user")
			return "", serviceerr.ErrTokenNotValid
		}
		return "", errors.Join(serviceerr.ErrStorageError, fmt.Errorf("finding user: %w", err))
	}

	access, err := m.tokens.IssueAccess(u)
	if err != nil {
		return "", errors.Join(serviceerr.ErrUnknown, fmt.Errorf("issuing access token: %w", err))
	}

	slogctx.Info(ctx, "Refreshed access token")

	return access, nil
}

// Verify accepts any unexpired access or refresh token signed by this service.
func (m *Manager) Verify(ctx context.Context, raw string) error {
	if raw == "" {
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "Missing token."}
	}

	_, _, err := m.tokens.Parse(raw, token.TypeAccess)
	if errors.Is(err, token.ErrWrongType) {
		_, _, err = m.tokens.Parse(raw, token.TypeRefresh)
	}
	if err != nil {
		slogctx.Debug(ctx, "Rejected token", "error", err)
		return errors.Join(serviceerr.ErrTokenNotValid, err)
	}

	return nil
}
