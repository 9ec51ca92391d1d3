package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"taskfold.org/internal/auth"
	"taskfold.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Audit event names emitted by the auth subsystem.
const (
	EventRegistered     = "account.registered"
	EventActivated      = "account.activated"
	EventLogin          = "auth.login"
	EventLoginFailed    = "auth.login_failed"
	EventLogout         = "auth.logout"
	EventResetRequested = "password.reset_requested"
	EventResetCompleted = "password.reset_completed"
	EventDenied         = "authz.denied"
	EventCsrfRejected   = "authz.csrf_rejected"
)

// LogEvent writes an audit entry enriched with request and actor context.
// Token values and password material must never appear in fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if accountID, ok := auth.AccountIDFromContext(ctx); ok {
		entry["account_id"] = accountID
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
