package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCookieCodec_SignAndVerify(t *testing.T) {
	codec := NewCookieCodec([]byte(strings.Repeat("x", 32)))

	encoded := codec.EncodeSessionID("abc")
	if encoded == "abc" {
		t.Fatalf("expected signed cookie value")
	}

	id, ok := codec.DecodeSessionID(encoded)
	if !ok || id != "abc" {
		t.Fatalf("expected decode ok for signed cookie")
	}

	_, ok = codec.DecodeSessionID(encoded + "x")
	if ok {
		t.Fatalf("expected tampered cookie to fail verification")
	}

	_, ok = codec.DecodeSessionID("abc")
	if ok {
		t.Fatalf("expected unsigned value to fail with a secret configured")
	}
}

func TestCookieCodec_Unsigned(t *testing.T) {
	codec := NewCookieCodec(nil)
	id, ok := codec.DecodeSessionID("abc")
	if !ok || id != "abc" {
		t.Fatalf("expected unsigned cookie to decode")
	}
}

func TestSessionToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := SessionToken(r); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}

	r.Header.Set("Authorization", "Bearer tok-1")
	if got := SessionToken(r); got != "tok-1" {
		t.Fatalf("bearer token: got %q", got)
	}

	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-1"})
	if got := SessionToken(r); got != "cookie-1" {
		t.Fatalf("cookie should win over header: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if got := SessionToken(r); got != "" {
		t.Fatalf("basic auth must not be treated as a session: got %q", got)
	}
}

func TestSessionCookieHelpers(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "v", 10*time.Minute, false)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Name != SessionCookieName {
		t.Fatalf("unexpected cookie name: %s", cookies[0].Name)
	}
	if cookies[0].HttpOnly != true || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes")
	}

	rr = httptest.NewRecorder()
	ClearSessionCookie(rr, false)
	cookies = rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 {
		t.Fatalf("expected MaxAge=-1 on clear")
	}
}
