package net

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNSResolver_Literal(t *testing.T) {
	addr, err := DNSResolver{}.Resolve(context.Background(), "192.168.1.20", 1337)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20:1337", addr.String())

	_, err = DNSResolver{}.Resolve(context.Background(), "::1", 1337)
	assert.ErrorIs(t, err, ErrResolve)
}

func TestDNSResolver_Unknown(t *testing.T) {
	_, err := DNSResolver{}.Resolve(context.Background(), "oldentide.invalid", 1337)
	assert.ErrorIs(t, err, ErrResolve)
}

func consulServer(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/health/service/oldentide") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "1", r.URL.Query().Get("passing"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Consul-Index", "1")
		w.Header().Set("X-Consul-LastContact", "0")
		w.Header().Set("X-Consul-KnownLeader", "true")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestConsulResolver(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		port    int
		want    string
		wantErr bool
	}{
		{
			name: "service address and port",
			body: `[{"Node":{"Address":"10.0.0.1"},"Service":{"Address":"127.0.0.5","Port":4000}}]`,
			port: 1337,
			want: "127.0.0.5:4000",
		},
		{
			name: "node address and configured port",
			body: `[{"Node":{"Address":"127.0.0.6"},"Service":{"Address":"","Port":0}}]`,
			port: 1337,
			want: "127.0.0.6:1337",
		},
		{
			name:    "no port anywhere",
			body:    `[{"Node":{"Address":"127.0.0.6"},"Service":{"Address":"","Port":0}}]`,
			port:    0,
			wantErr: true,
		},
		{
			name:    "no passing instance",
			body:    `[]`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewConsulResolver(consulServer(t, tt.body), "oldentide")
			require.NoError(t, err)

			addr, err := r.Resolve(context.Background(), "ignored", tt.port)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrResolve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestConsulResolver_AgentDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	r, err := NewConsulResolver(addr, "oldentide")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "", 1337)
	assert.ErrorIs(t, err, ErrResolve)
}

func TestNewResolver(t *testing.T) {
	r, err := NewResolver(&ClientCfg{Discovery: DiscoveryDNS})
	require.NoError(t, err)
	assert.IsType(t, DNSResolver{}, r)

	r, err = NewResolver(&ClientCfg{Discovery: DiscoveryConsul, ConsulAddr: "127.0.0.1:8500", ConsulService: "oldentide"})
	require.NoError(t, err)
	assert.IsType(t, &ConsulResolver{}, r)
}
