package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"taskfold.org/internal/audit"
	"taskfold.org/internal/auth"
	"taskfold.org/internal/obs"
	"taskfold.org/internal/session"
)

// Current is the resolved session for a request: the opaque identifier from
// the cookie plus the server-side payload it mapped to.
type Current struct {
	ID      string
	Payload session.Payload
}

type sessionCtxKey struct{}

// withSession resolves the session cookie into a Current value on the
// request context. A missing, expired or unreadable session leaves the
// request unauthenticated; it never fails the request by itself.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(a.cookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		payload, err := a.sessions.Read(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				obs.Error("session read failed", err, map[string]any{
					"request_id": requestIDFrom(r.Context()),
				})
			}
			// Fail closed: ambiguity resolves to unauthenticated.
			next.ServeHTTP(w, r)
			return
		}
		current := &Current{ID: cookie.Value, Payload: payload}
		ctx := context.WithValue(r.Context(), sessionCtxKey{}, current)
		ctx = auth.ContextWithAccountID(ctx, payload.Profile.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// current returns the request's session, or nil when unauthenticated.
func (a *API) current(r *http.Request) *Current {
	v, _ := r.Context().Value(sessionCtxKey{}).(*Current)
	return v
}

// IsAuthenticated reports whether the request carries a live session.
func (a *API) IsAuthenticated(r *http.Request) bool {
	return a.current(r) != nil
}

// RequirePermission gates a route on the session's permission snapshot.
// Unauthenticated requests are redirected to the login view; authenticated
// requests lacking the permission are denied. The check is fail-closed and
// never re-resolves permissions from storage.
func (a *API) RequirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := a.current(r)
			if current == nil {
				obs.DenialsTotal.WithLabelValues("unauthenticated").Inc()
				a.apply(w, r, Redirect{To: "/login"})
				return
			}
			if !current.Payload.Permissions.Has(perm) {
				obs.DenialsTotal.WithLabelValues("forbidden").Inc()
				_ = audit.LogEvent(r.Context(), audit.EventDenied, map[string]any{
					"permission": string(perm),
				})
				a.apply(w, r, Denied{Status: http.StatusForbidden, Reason: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuthenticated mirrors RequirePermission for routes that only need
// a session.
func (a *API) requireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.current(r) == nil {
			obs.DenialsTotal.WithLabelValues("unauthenticated").Inc()
			a.apply(w, r, Redirect{To: "/login"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCsrf validates the csrf_token form field on state-changing
// requests. Authenticated requests check against the session's token;
// pre-auth forms (login, register, reset) check against the double-submit
// cookie minted when the form was rendered. Mismatch is a hard 403, never a
// redirect with a generic message.
func (a *API) requireCsrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		supplied := r.PostFormValue("csrf_token")
		expected := ""
		if current := a.current(r); current != nil {
			expected = current.Payload.CSRFToken
		} else if cookie, err := r.Cookie(a.csrfCookieName()); err == nil {
			expected = cookie.Value
		}
		if !session.ValidateCSRF(expected, supplied) {
			obs.CsrfRejectionsTotal.Inc()
			_ = audit.LogEvent(r.Context(), audit.EventCsrfRejected, map[string]any{
				"path": r.URL.Path,
			})
			a.apply(w, r, Denied{Status: http.StatusForbidden, Reason: "csrf token mismatch"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) csrfCookieName() string { return a.cookieName + "_csrf" }

func (a *API) flashCookieName() string { return a.cookieName + "_flash" }

// csrfToken returns the token the rendered form must echo: the session's
// token when authenticated, otherwise a double-submit cookie minted here.
func (a *API) csrfToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if current := a.current(r); current != nil {
		return current.Payload.CSRFToken, nil
	}
	if cookie, err := r.Cookie(a.csrfCookieName()); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	token, err := session.MintCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.csrfCookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// stashFlash records a flash for the next render: in the session when one
// exists, otherwise in a read-once cookie.
func (a *API) stashFlash(w http.ResponseWriter, r *http.Request, kind session.FlashKind, message string) {
	if current := a.current(r); current != nil {
		if err := a.sessions.PushFlash(r.Context(), current.ID, kind, message); err == nil {
			return
		}
	}
	data, err := json.Marshal(session.Flashes{kind: message})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.flashCookieName(),
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// drainFlashes collects and clears pending flashes from the session and the
// pre-auth cookie. Each message is delivered exactly once.
func (a *API) drainFlashes(w http.ResponseWriter, r *http.Request) session.Flashes {
	flashes := session.Flashes{}
	if current := a.current(r); current != nil {
		if drained, err := a.sessions.DrainFlashes(r.Context(), current.ID); err == nil {
			for kind, msg := range drained {
				flashes[kind] = msg
			}
		}
	}
	if cookie, err := r.Cookie(a.flashCookieName()); err == nil && cookie.Value != "" {
		if data, err := base64.RawURLEncoding.DecodeString(cookie.Value); err == nil {
			var fromCookie session.Flashes
			if err := json.Unmarshal(data, &fromCookie); err == nil {
				for kind, msg := range fromCookie {
					if _, taken := flashes[kind]; !taken {
						flashes[kind] = msg
					}
				}
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     a.flashCookieName(),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   a.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return flashes
}
