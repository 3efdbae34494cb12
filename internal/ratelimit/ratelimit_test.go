package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowBurstThenThrottle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("fresh")

	l.Prune(10 * time.Minute)
	assert.Equal(t, 1, l.Len())
}

func TestClientIPIgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	proxies, err := ParseProxies([]string{"127.0.0.1"})
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", proxies.ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.1", proxies.ClientIP(r))

	var none *Proxies
	assert.Equal(t, "192.0.2.1", none.ClientIP(r))
}

func TestClientIPBehindTrustedProxies(t *testing.T) {
	proxies, err := ParseProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8"})
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	r.RemoteAddr = "127.0.0.1:5555"
	assert.Equal(t, "127.0.0.1", proxies.ClientIP(r), "no header")

	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", proxies.ClientIP(r))

	// A client-supplied first hop is not trusted past the last untrusted one.
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 203.0.113.9, 10.1.2.3")
	assert.Equal(t, "203.0.113.9", proxies.ClientIP(r))

	r.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "127.0.0.1", proxies.ClientIP(r))

	r.RemoteAddr = "[::1]:5555"
	r.Header.Set("X-Forwarded-For", "2001:db8::1")
	assert.Equal(t, "2001:db8::1", proxies.ClientIP(r))
}

func TestParseProxiesRejectsGarbage(t *testing.T) {
	_, err := ParseProxies([]string{"not-an-ip"})
	require.Error(t, err)
	_, err = ParseProxies([]string{"10.0.0.0/99"})
	require.Error(t, err)
}
