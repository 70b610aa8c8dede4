package signin

import (
	"cmp"
	"context"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"
)

const anonymousObject = "anonymous"

func (m *Manager) sendUserLoginSuccessAudit(ctx context.Context, correlationID, userID string) {
	if m.audit == nil {
		return
	}

	metadata, err := otlpaudit.NewEventMetadata(auditSource, userID, correlationID)
	if err != nil {
		slogctx.Error(ctx, "creating audit metadata", "error", err)
		return
	}

	event, err := otlpaudit.NewUserLoginSuccessEvent(metadata, userID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.MFATYPE_NONE, otlpaudit.USERTYPE_BUSINESS, userID)
	if err != nil {
		slogctx.Error(ctx, "creating audit log", "error", err)
		return
	}

	if err := m.audit.SendEvent(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to send audit log for user login success", "error", err)
		return
	}
	slogctx.Debug(ctx, "sent audit log for user login success")
}

// sendUserLoginFailureAudit logs errors encountered while creating or sending
// the event but does not propagate them to the caller.
func (m *Manager) sendUserLoginFailureAudit(ctx context.Context, correlationID, objectID, reason string) {
	if m.audit == nil {
		return
	}

	objectID = cmp.Or(objectID, anonymousObject)

	metadata, err := otlpaudit.NewEventMetadata(auditSource, objectID, correlationID)
	if err != nil {
		slogctx.Error(ctx, "creating audit metadata", "error", err)
		return
	}

	event, err := otlpaudit.NewUserLoginFailureEvent(metadata, objectID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.FailReason(reason), objectID)
	if err != nil {
		slogctx.Error(ctx, "creating audit log", "error", err)
		return
	}

	if err := m.audit.SendEvent(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to send audit log for user login failure", "error", err)
		return
	}
	slogctx.Debug(ctx, "sent audit log for user login failure")
}
