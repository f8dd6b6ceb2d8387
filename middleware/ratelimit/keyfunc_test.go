package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false, "")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	assert.Equal(t, "client-123", fn(r))
}

func TestDefaultKeyFunc_BlankHeaderFallsThrough(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false, "")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", "   ")

	assert.Equal(t, "10.0.0.1", fn(r))
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true, "")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	assert.Equal(t, "1.2.3.4", fn(r))
}

func TestDefaultKeyFunc_IgnoresGarbageXForwardedFor(t *testing.T) {
	fn := DefaultKeyFunc("", true, "")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "not-an-ip, 5.6.7.8")

	assert.Equal(t, "10.0.0.9", fn(r))
}

func TestDefaultKeyFunc_UntrustedXForwardedForIgnored(t *testing.T) {
	fn := DefaultKeyFunc("", false, "")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	assert.Equal(t, "10.0.0.9", fn(r))
}

func TestDefaultKeyFunc_RemoteAddrWithoutPort(t *testing.T) {
	fn := DefaultKeyFunc("", false, "")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "unix-socket"

	assert.Equal(t, "unix-socket", fn(r))
}

func TestDefaultKeyFunc_FallbackSentinel(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	assert.Equal(t, DefaultFallbackKey, DefaultKeyFunc("", false, "")(r))
	assert.Equal(t, "anon", DefaultKeyFunc("", false, "anon")(r))
}
