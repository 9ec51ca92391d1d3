package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"taskfold.org/internal/audit"
	"taskfold.org/internal/auth"
	"taskfold.org/internal/obs"
	"taskfold.org/internal/session"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgAccountInactive    = "Your account has not been activated yet. Check your email for the activation link."
	msgInvalidToken       = "Invalid or expired link"
	msgGenericFailure     = "Something went wrong. Please try again."
)

// handle adapts a result-returning handler onto the router.
func (a *API) handle(fn func(http.ResponseWriter, *http.Request) Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.apply(w, r, fn(w, r))
	}
}

func (a *API) showLogin(w http.ResponseWriter, r *http.Request) Result {
	if a.IsAuthenticated(r) {
		return Redirect{To: "/dashboard"}
	}
	csrfToken, err := a.csrfToken(w, r)
	if err != nil {
		return a.internalError(r, "mint csrf token", err)
	}
	return Rendered{
		View: "auth/login",
		Data: map[string]any{
			"csrf_token": csrfToken,
			"flashes":    a.drainFlashes(w, r),
		},
	}
}

func (a *API) login(w http.ResponseWriter, r *http.Request) Result {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		return Redirect{To: "/login", Flash: &Flash{session.FlashError, "Email and password are required"}}
	}

	account, err := a.creds.Verify(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.LoginsTotal.WithLabelValues("invalid").Inc()
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
				"email": auth.NormalizeEmail(email),
			})
			return Redirect{To: "/login", Flash: &Flash{session.FlashError, msgInvalidCredentials}}
		case errors.Is(err, auth.ErrAccountInactive):
			obs.LoginsTotal.WithLabelValues("inactive").Inc()
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
				"email":  auth.NormalizeEmail(email),
				"reason": "inactive",
			})
			return Redirect{To: "/login", Flash: &Flash{session.FlashError, msgAccountInactive}}
		default:
			obs.LoginsTotal.WithLabelValues("error").Inc()
			return a.internalError(r, "login verify", err)
		}
	}

	if res := a.establishSession(w, r, account); isFailure(res) {
		obs.LoginsTotal.WithLabelValues("error").Inc()
		return res
	}
	obs.LoginsTotal.WithLabelValues("success").Inc()
	_ = audit.LogEvent(auth.ContextWithAccountID(r.Context(), account.ID), audit.EventLogin, nil)
	return Redirect{To: "/dashboard"}
}

// establishSession resolves the permission snapshot and creates a
// fixation-safe session for the account, replacing whatever identifier the
// client presented. The snapshot taken here is authoritative until the next
// login.
func (a *API) establishSession(w http.ResponseWriter, r *http.Request, account *auth.Account) Result {
	roles, perms, err := a.resolver.Resolve(r.Context(), account.ID)
	if err != nil {
		return a.internalError(r, "resolve permissions", err)
	}

	previousID := ""
	if cookie, err := r.Cookie(a.cookieName); err == nil {
		previousID = cookie.Value
	}
	id, payload, err := a.sessions.Create(r.Context(), auth.ProfileOf(account), roles, perms, previousID)
	if err != nil {
		return a.internalError(r, "create session", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    id,
		Path:     "/",
		Expires:  payload.ExpiresAt,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	// The pre-auth CSRF cookie is superseded by the session's token.
	http.SetCookie(w, &http.Cookie{
		Name:     a.csrfCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return Rendered{View: "session/established"}
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) Result {
	current := a.current(r)
	if current == nil {
		return Redirect{To: "/dashboard", Flash: &Flash{session.FlashError, "You are not signed in"}}
	}
	if err := a.sessions.Destroy(r.Context(), current.ID); err != nil {
		return a.internalError(r, "destroy session", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	return Redirect{To: "/login"}
}

func (a *API) showRegister(w http.ResponseWriter, r *http.Request) Result {
	if a.IsAuthenticated(r) {
		return Redirect{To: "/dashboard"}
	}
	csrfToken, err := a.csrfToken(w, r)
	if err != nil {
		return a.internalError(r, "mint csrf token", err)
	}
	return Rendered{
		View: "auth/register",
		Data: map[string]any{
			"csrf_token": csrfToken,
			"flashes":    a.drainFlashes(w, r),
		},
	}
}

func (a *API) register(w http.ResponseWriter, r *http.Request) Result {
	password := r.PostFormValue("password")
	if password != r.PostFormValue("confirm_password") {
		return Redirect{To: "/register", Flash: &Flash{session.FlashError, "Passwords do not match"}}
	}

	account, err := a.creds.Register(r.Context(),
		r.PostFormValue("first_name"),
		r.PostFormValue("last_name"),
		r.PostFormValue("email"),
		password,
	)
	if err != nil {
		var vErr *auth.ValidationError
		if errors.As(err, &vErr) {
			return Redirect{To: "/register", Flash: &Flash{session.FlashError, joinFieldErrors(vErr)}}
		}
		return a.internalError(r, "register account", err)
	}

	token, err := a.tokens.Issue(r.Context(), account.ID, auth.PurposeActivation)
	if err != nil {
		return a.internalError(r, "issue activation token", err)
	}
	a.notifier.ActivationLink(r.Context(), account.Email, a.link("/activate", token))
	_ = audit.LogEvent(auth.ContextWithAccountID(r.Context(), account.ID), audit.EventRegistered, map[string]any{
		"email": account.Email,
	})
	return Redirect{To: "/login", Flash: &Flash{session.FlashSuccess,
		"Account created. Check your email for the activation link."}}
}

func (a *API) activate(w http.ResponseWriter, r *http.Request) Result {
	token := r.URL.Query().Get("token")
	accountID, err := a.tokens.ValidateAndConsume(r.Context(), token, auth.PurposeActivation)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
			return Redirect{To: "/login", Flash: &Flash{session.FlashError, msgInvalidToken}}
		}
		return a.internalError(r, "consume activation token", err)
	}
	if err := a.creds.SetActive(r.Context(), accountID); err != nil {
		return a.internalError(r, "activate account", err)
	}
	account, err := a.creds.FindByID(r.Context(), accountID)
	if err != nil {
		return a.internalError(r, "load activated account", err)
	}

	if res := a.establishSession(w, r, account); isFailure(res) {
		return res
	}
	_ = audit.LogEvent(auth.ContextWithAccountID(r.Context(), account.ID), audit.EventActivated, nil)
	return Redirect{To: "/login", Flash: &Flash{session.FlashSuccess,
		"Your account is now active. Welcome!"}}
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) Result {
	email := r.PostFormValue("email")
	account, err := a.creds.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return Redirect{To: "/login", Flash: &Flash{session.FlashError,
				"No account found for that email address"}}
		}
		return a.internalError(r, "lookup account", err)
	}

	token, err := a.tokens.Issue(r.Context(), account.ID, auth.PurposeReset)
	if err != nil {
		return a.internalError(r, "issue reset token", err)
	}
	a.notifier.PasswordResetLink(r.Context(), account.Email, a.link("/reset-password", token))
	_ = audit.LogEvent(auth.ContextWithAccountID(r.Context(), account.ID), audit.EventResetRequested, nil)
	return Redirect{To: "/login", Flash: &Flash{session.FlashSuccess,
		"A password reset link has been emailed to you."}}
}

func (a *API) showResetPassword(w http.ResponseWriter, r *http.Request) Result {
	token := r.URL.Query().Get("token")
	if _, err := a.tokens.Peek(r.Context(), token, auth.PurposeReset); err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
			return Redirect{To: "/login", Flash: &Flash{session.FlashError, msgInvalidToken}}
		}
		return a.internalError(r, "peek reset token", err)
	}
	csrfToken, err := a.csrfToken(w, r)
	if err != nil {
		return a.internalError(r, "mint csrf token", err)
	}
	return Rendered{
		View: "auth/reset_password",
		Data: map[string]any{
			"token":      token,
			"csrf_token": csrfToken,
			"flashes":    a.drainFlashes(w, r),
		},
	}
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) Result {
	password := r.PostFormValue("password")
	if password != r.PostFormValue("confirm_password") {
		token := url.QueryEscape(r.URL.Query().Get("token"))
		return Redirect{To: "/reset-password?token=" + token,
			Flash: &Flash{session.FlashError, "Passwords do not match"}}
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.PostFormValue("token")
	}
	accountID, err := a.tokens.ValidateAndConsume(r.Context(), token, auth.PurposeReset)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
			return Redirect{To: "/login", Flash: &Flash{session.FlashError, msgInvalidToken}}
		}
		return a.internalError(r, "consume reset token", err)
	}

	if err := a.creds.SetPassword(r.Context(), accountID, password); err != nil {
		var vErr *auth.ValidationError
		if errors.As(err, &vErr) {
			return Redirect{To: "/login", Flash: &Flash{session.FlashError, joinFieldErrors(vErr)}}
		}
		return a.internalError(r, "set password", err)
	}
	_ = audit.LogEvent(auth.ContextWithAccountID(r.Context(), accountID), audit.EventResetCompleted, nil)
	return Redirect{To: "/login", Flash: &Flash{session.FlashSuccess,
		"Your password has been updated. You can sign in now."}}
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) Result {
	current := a.current(r)
	if current == nil {
		return Redirect{To: "/login"}
	}
	return Rendered{
		View: "dashboard/index",
		Data: map[string]any{
			"profile":     current.Payload.Profile,
			"roles":       current.Payload.Roles,
			"permissions": current.Payload.Permissions.Slugs(),
			"csrf_token":  current.Payload.CSRFToken,
			"flashes":     a.drainFlashes(w, r),
		},
	}
}

// internalError logs the full failure server-side and hands the user a
// generic flash. Stack details, SQL and token values stay out of responses.
func (a *API) internalError(r *http.Request, msg string, err error) Result {
	obs.Error(msg, err, map[string]any{
		"request_id": requestIDFrom(r.Context()),
		"path":       r.URL.Path,
	})
	return Redirect{To: "/login", Flash: &Flash{session.FlashError, msgGenericFailure}}
}

func (a *API) link(path, token string) string {
	return strings.TrimRight(a.baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func isFailure(res Result) bool {
	_, rendered := res.(Rendered)
	return !rendered
}

func joinFieldErrors(vErr *auth.ValidationError) string {
	msgs := make([]string, 0, len(vErr.Fields))
	for _, msg := range vErr.Fields {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, ". ")
}
