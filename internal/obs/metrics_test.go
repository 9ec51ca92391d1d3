package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init() // must not panic on re-registration
}

func TestCanonicalPath(t *testing.T) {
	for raw, want := range map[string]string{
		"":                        "/",
		"/login":                  "/login",
		"/activate?token=secret":  "/activate",
		"/reset-password?token=x": "/reset-password",
	} {
		if got := CanonicalPath(raw); got != want {
			t.Fatalf("CanonicalPath(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestInstrumentPreservesResponse(t *testing.T) {
	Init()
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/info", nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr.Body.String() != "done" {
		t.Fatalf("body altered: %q", rr.Body.String())
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	Init()
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scrape status %d", resp.StatusCode)
	}
}
