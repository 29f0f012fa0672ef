package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWithCookie(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: name, Value: value})
	return r
}

func TestSessionIDCurrentName(t *testing.T) {
	jar := New(false)
	r := requestWithCookie("vd_session", "sess-123")
	if got := jar.SessionID(r); got != "sess-123" {
		t.Fatalf("SessionID() = %q, want sess-123", got)
	}
}

func TestSessionIDLegacyFallback(t *testing.T) {
	jar := New(false)
	r := requestWithCookie("sessionId", "legacy-456")
	if got := jar.SessionID(r); got != "legacy-456" {
		t.Fatalf("SessionID() = %q, want legacy-456", got)
	}
}

func TestSessionIDPrefersCurrentName(t *testing.T) {
	jar := New(false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "vd_session", Value: "current"})
	r.AddCookie(&http.Cookie{Name: "sessionId", Value: "legacy"})
	if got := jar.SessionID(r); got != "current" {
		t.Fatalf("SessionID() = %q, want current", got)
	}
}

func TestSessionIDMissing(t *testing.T) {
	jar := New(false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := jar.SessionID(r); got != "" {
		t.Fatalf("SessionID() = %q, want empty", got)
	}
}

func TestProductionUsesHostLockedName(t *testing.T) {
	jar := New(true)
	w := httptest.NewRecorder()
	jar.SetSession(w, "sess-123")

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != "__Host-vd_session" {
		t.Errorf("Name = %q, want __Host-vd_session", c.Name)
	}
	if !c.Secure || !c.HttpOnly {
		t.Error("production session cookie must be Secure and HttpOnly")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if c.Path != "/" {
		t.Errorf("Path = %q, want /", c.Path)
	}
	if c.Domain != "" {
		t.Errorf("Domain = %q, want empty for host-locked cookie", c.Domain)
	}
}

func TestSetIdentityWritesAllMarkers(t *testing.T) {
	jar := New(false)
	w := httptest.NewRecorder()
	jar.SetIdentity(w, "office", "user@example.co.uk", "company-1", true)

	got := map[string]string{}
	for _, c := range w.Result().Cookies() {
		got[c.Name] = c.Value
	}
	want := map[string]string{
		"vd_role":             "office",
		"vd_email":            "user@example.co.uk",
		"vd_company":          "company-1",
		"vd_profile_complete": "true",
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("cookie %s = %q, want %q", name, got[name], value)
		}
	}
}

func TestClearExpiresEverything(t *testing.T) {
	jar := New(false)
	w := httptest.NewRecorder()
	jar.Clear(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 7 {
		t.Fatalf("got %d cookies, want 7", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s not expired (MaxAge=%d)", c.Name, c.MaxAge)
		}
		if c.Value != "" {
			t.Errorf("cookie %s cleared with non-empty value", c.Name)
		}
	}
}
