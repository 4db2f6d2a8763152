package proxycheck

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParse_HostPort(t *testing.T) {
	spec, err := Parse("proxy.example.com:8080")
	require.NoError(t, err)

	assert.Equal(t, "proxy.example.com", spec.Host)
	assert.Equal(t, 8080, spec.Port)
	assert.False(t, spec.Authenticated())
	assert.Equal(t, "proxy.example.com:8080", spec.Endpoint())
	assert.Equal(t, "http://proxy.example.com:8080", spec.ServerURL())
}

func TestParse_WithCredentials(t *testing.T) {
	spec, err := Parse("alice:s3cret@203.0.113.7:3128")
	require.NoError(t, err)

	assert.Equal(t, "alice", spec.Username)
	assert.Equal(t, "s3cret", spec.Password)
	assert.Equal(t, "203.0.113.7", spec.Host)
	assert.True(t, spec.Authenticated())
}

func TestParse_Malformed(t *testing.T) {
	tests := []string{
		"",
		"no-port",
		"host:notaport",
		"host:0",
		"host:70000",
		"useronly@host:8080",
	}
	for _, input := range tests {
		_, err := Parse(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PROXY_HOST", "envproxy.example.com")
	t.Setenv("PROXY_PORT", "9000")
	t.Setenv("PROXY_USERNAME", "bob")
	t.Setenv("PROXY_PASSWORD", "hunter2")

	spec, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "envproxy.example.com:9000", spec.Endpoint())
	assert.True(t, spec.Authenticated())
}

func TestFromEnv_Absent(t *testing.T) {
	t.Setenv("PROXY_HOST", "")
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrNoProxy)
}

func TestResolve_PrefersExplicitAddress(t *testing.T) {
	t.Setenv("PROXY_HOST", "envproxy.example.com")
	t.Setenv("PROXY_PORT", "9000")

	spec, err := Resolve("direct.example.com:1080")
	require.NoError(t, err)
	assert.Equal(t, "direct.example.com", spec.Host)
}

func TestPreflight_ReachableEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	spec, err := Parse(ln.Addr().String())
	require.NoError(t, err)

	v := NewValidator(2*time.Second, zaptest.NewLogger(t))
	assert.NoError(t, v.Preflight(context.Background(), spec))
}

func TestPreflight_UnreachableEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // nothing listens there anymore

	spec, err := Parse(addr)
	require.NoError(t, err)

	v := NewValidator(500*time.Millisecond, zaptest.NewLogger(t))
	assert.Error(t, v.Preflight(context.Background(), spec))
}

func TestGeoResolver_HostnameHint(t *testing.T) {
	r := NewGeoResolver("", zaptest.NewLogger(t))
	defer r.Close()

	exit := r.Resolve(context.Background(), Spec{Host: "us-frankfurt-12.proxyvendor.net", Port: 8080})

	assert.Equal(t, "Europe/Berlin", exit.Timezone)
	assert.Equal(t, "hostname_hint", exit.Method)

	geo := exit.Geolocation()
	require.NotNil(t, geo)
	assert.InDelta(t, 52.52, geo.Latitude, 0.01)
}

func TestGeoResolver_DefaultFallback(t *testing.T) {
	r := NewGeoResolver("", zaptest.NewLogger(t))
	defer r.Close()

	exit := r.Resolve(context.Background(), Spec{Host: "203.0.113.7", Port: 8080})

	assert.Equal(t, DefaultTimezone, exit.Timezone)
	assert.Equal(t, "default", exit.Method)
	assert.Equal(t, "203.0.113.7", exit.IP)
	require.NotNil(t, exit.Geolocation())
}

func TestGeoResolver_CachesPerHost(t *testing.T) {
	r := NewGeoResolver("", zaptest.NewLogger(t))
	defer r.Close()

	spec := Spec{Host: "tokyo-3.proxyvendor.net", Port: 8080}
	a := r.Resolve(context.Background(), spec)
	b := r.Resolve(context.Background(), spec)

	assert.Equal(t, a, b)
	assert.Equal(t, "Asia/Tokyo", a.Timezone)
}

func TestGeoResolver_MissingDatabaseDegrades(t *testing.T) {
	r := NewGeoResolver("/nonexistent/GeoLite2-City.mmdb", zaptest.NewLogger(t))
	defer r.Close()

	exit := r.Resolve(context.Background(), Spec{Host: "west-proxy.example.net", Port: 1080})
	assert.Equal(t, "America/Los_Angeles", exit.Timezone)
}
