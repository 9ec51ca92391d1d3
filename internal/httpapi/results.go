package httpapi

import (
	"net/http"

	"taskfold.org/internal/session"
)

// Result is what a handler returns instead of writing the response itself.
// The router applies it, which keeps guards and handlers unit-testable
// without process-level side effects.
type Result interface {
	isResult()
}

// Flash pairs a message with its slot for delivery on the next render.
type Flash struct {
	Kind    session.FlashKind
	Message string
}

// Redirect sends a 303 to the given path, optionally carrying a flash.
type Redirect struct {
	To    string
	Flash *Flash
}

// Rendered describes a view for the out-of-scope rendering layer. The
// router serializes it as a JSON view descriptor.
type Rendered struct {
	View   string
	Status int
	Data   map[string]any
}

// Denied rejects the request outright (403-equivalents: Forbidden,
// CsrfMismatch).
type Denied struct {
	Status int
	Reason string
}

func (Redirect) isResult() {}
func (Rendered) isResult() {}
func (Denied) isResult()   {}

// apply performs the I/O a handler's result calls for.
func (a *API) apply(w http.ResponseWriter, r *http.Request, res Result) {
	switch v := res.(type) {
	case Redirect:
		if v.Flash != nil {
			a.stashFlash(w, r, v.Flash.Kind, v.Flash.Message)
		}
		http.Redirect(w, r, v.To, http.StatusSeeOther)
	case Rendered:
		status := v.Status
		if status == 0 {
			status = http.StatusOK
		}
		data := v.Data
		if data == nil {
			data = map[string]any{}
		}
		writeJSON(w, status, map[string]any{
			"view": v.View,
			"data": data,
		})
	case Denied:
		status := v.Status
		if status == 0 {
			status = http.StatusForbidden
		}
		writeError(w, r, status, v.Reason)
	default:
		writeError(w, r, http.StatusInternalServerError, "unhandled result")
	}
}
