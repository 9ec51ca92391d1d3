// Package notify delivers account emails as a fire-and-forget collaborator:
// a failed delivery is logged and never fails the request that triggered it.
package notify

import (
	"context"

	"taskfold.org/internal/obs"
)

// Notifier sends the activation and reset links. Implementations must not
// block the request path on delivery.
type Notifier interface {
	ActivationLink(ctx context.Context, email, link string)
	PasswordResetLink(ctx context.Context, email, link string)
}

// LogNotifier writes the would-be deliveries to the structured log. It
// stands in for the real mailer in dev and tests.
type LogNotifier struct{}

func (LogNotifier) ActivationLink(_ context.Context, email, link string) {
	obs.Emit("info", "notify: activation link", map[string]any{
		"email": email,
		"link":  link,
	})
}

func (LogNotifier) PasswordResetLink(_ context.Context, email, link string) {
	obs.Emit("info", "notify: password reset link", map[string]any{
		"email": email,
		"link":  link,
	})
}
