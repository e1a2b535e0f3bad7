package net

import (
	"context"
	"fmt"
	"net"
	"strconv"

	consul "github.com/hashicorp/consul/api"
)

// Resolver turns the configured server into a UDP endpoint. It runs once, at
// startup; a failure aborts the client.
type Resolver interface {
	Resolve(ctx context.Context, host string, port int) (*net.UDPAddr, error)
}

// DNSResolver resolves host through the system resolver and keeps the first IPv4
// address. Literal IPs are returned as is.
type DNSResolver struct {
	Resolver *net.Resolver
}

func (r DNSResolver) Resolve(ctx context.Context, host string, port int) (*net.UDPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return &net.UDPAddr{IP: ip4, Port: port}, nil
		}
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", ErrResolve, host)
	}

	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %w", ErrResolve, host, err)
	}
	for _, a := range addrs {
		if ip4 := a.IP.To4(); ip4 != nil {
			return &net.UDPAddr{IP: ip4, Port: port}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no IPv4 address", ErrResolve, host)
}

// ConsulResolver finds the server as a healthy instance of a Consul service.
// The host argument is ignored; Service names what to look up.
type ConsulResolver struct {
	client  *consul.Client
	Service string
	// Fallback resolves the instance address when it is a hostname.
	Fallback Resolver
}

// NewConsulResolver connects to the Consul agent at addr (host:port); an empty
// addr uses the agent default and CONSUL_HTTP_ADDR.
func NewConsulResolver(addr, service string) (*ConsulResolver, error) {
	cfg := consul.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: consul client: %w", ErrResolve, err)
	}
	return &ConsulResolver{client: client, Service: service, Fallback: DNSResolver{}}, nil
}

// Resolve returns the first passing instance. The instance's service address
// wins over its node address; port is used when the service registers none.
func (r *ConsulResolver) Resolve(ctx context.Context, _ string, port int) (*net.UDPAddr, error) {
	opts := (&consul.QueryOptions{}).WithContext(ctx)
	entries, _, err := r.client.Health().Service(r.Service, "", true, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: consul service %s: %w", ErrResolve, r.Service, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: consul service %s has no passing instance", ErrResolve, r.Service)
	}

	entry := entries[0]
	host := ""
	if entry.Service != nil {
		host = entry.Service.Address
		if entry.Service.Port != 0 {
			port = entry.Service.Port
		}
	}
	if host == "" && entry.Node != nil {
		host = entry.Node.Address
	}
	if host == "" {
		return nil, fmt.Errorf("%w: consul service %s instance has no address", ErrResolve, r.Service)
	}
	if port == 0 {
		return nil, fmt.Errorf("%w: consul service %s registers no port and serverPort is unset", ErrResolve, r.Service)
	}

	fallback := r.Fallback
	if fallback == nil {
		fallback = DNSResolver{}
	}
	return fallback.Resolve(ctx, host, port)
}

// NewResolver picks the resolver named by cfg.Discovery.
func NewResolver(cfg *ClientCfg) (Resolver, error) {
	switch cfg.Discovery {
	case DiscoveryConsul:
		return NewConsulResolver(cfg.ConsulAddr, cfg.ConsulService)
	default:
		return DNSResolver{}, nil
	}
}

// SameEndpoint reports whether a and b are the same IP and port.
func SameEndpoint(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

func endpointString(a *net.UDPAddr) string {
	if a == nil {
		return ""
	}
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
}
