// Package net is the client side of the game's UDP protocol: framing, the
// transport, the background receiver and the request actions built on them.
//
// Replies are matched to requests through a single FIFO correlation queue that
// is not keyed by request. Callers must therefore have at most one request
// action (Connect, ListCharacters, Broadcast) awaiting a reply at any time; two
// overlapping requests may each consume the other's reply.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcx/oldentide-client/log"
	"github.com/lcx/oldentide-client/metrics"
)

// Transport moves whole datagrams between the client and its one server.
type Transport interface {
	// Send writes datagram to the remote endpoint. Delivery is not confirmed.
	Send(ctx context.Context, datagram []byte) error
	// Receive blocks for the next datagram from any sender. After Close it
	// returns ErrTransportClosed.
	Receive(ctx context.Context) ([]byte, *net.UDPAddr, error)
	// Close releases the socket and wakes a blocked Receive. Idempotent.
	Close() error
	LocalAddr() *net.UDPAddr
	RemoteAddr() *net.UDPAddr
}

// UDPTransport is a Transport over an IPv4 UDP socket.
type UDPTransport struct {
	conn      *net.UDPConn
	local     *net.UDPAddr
	remote    *net.UDPAddr
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Transport = (*UDPTransport)(nil)

// OpenUDP resolves the configured server and binds the local socket on all
// IPv4 interfaces. Failures are ErrResolve or ErrBind.
func OpenUDP(ctx context.Context, cfg *ClientCfg, resolver Resolver) (*UDPTransport, error) {
	if resolver == nil {
		resolver = DNSResolver{}
	}
	remote, err := resolver.Resolve(ctx, cfg.ServerHost, cfg.ServerPort)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "transport_start_error_total", 1, metrics.Dimension{"error_type": "resolve"})
		log.Error().Str("host", cfg.ServerHost).Int("port", cfg.ServerPort).Err(err).Msg("resolve server failed")
		if !errors.Is(err, ErrResolve) {
			err = fmt.Errorf("%w: %w", ErrResolve, err)
		}
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: cfg.LocalPort})
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "transport_start_error_total", 1, metrics.Dimension{"error_type": "bind"})
		log.Error().Int("localPort", cfg.LocalPort).Err(err).Msg("bind local socket failed")
		return nil, fmt.Errorf("%w: port %d: %w", ErrBind, cfg.LocalPort, err)
	}

	t := &UDPTransport{
		conn:   conn,
		local:  conn.LocalAddr().(*net.UDPAddr),
		remote: remote,
	}
	metrics.IncrCounterWithDimGroup("net", "transport_start_success_total", 1, metrics.Dimension{"transport_type": "udp"})
	log.Info().Str("local", endpointString(t.local)).Str("remote", endpointString(t.remote)).Msg("udp transport opened")
	return t, nil
}

func (t *UDPTransport) LocalAddr() *net.UDPAddr  { return t.local }
func (t *UDPTransport) RemoteAddr() *net.UDPAddr { return t.remote }

func (t *UDPTransport) Send(ctx context.Context, datagram []byte) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(datagram) > MaxDatagramSize {
		return fmt.Errorf("%w: datagram of %d bytes, limit %d", ErrPayloadTooLarge, len(datagram), MaxDatagramSize)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(time.Time{})
	}

	if _, err := t.conn.WriteToUDP(datagram, t.remote); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrTransportClosed
		}
		metrics.IncrCounterWithDimGroup("net", "datagram_send_error_total", 1, nil)
		return fmt.Errorf("net: send to %s: %w", endpointString(t.remote), err)
	}

	metrics.IncrCounterWithGroup("net", "datagram_sent_total", 1)
	metrics.IncrCounterWithGroup("net", "datagram_sent_bytes_total", metrics.Value(len(datagram)))
	log.Debug().Str("to", endpointString(t.remote)).Hex("datagram", datagram).Msg("datagram sent")
	return nil
}

func (t *UDPTransport) Receive(ctx context.Context) ([]byte, *net.UDPAddr, error) {
	if t.closed.Load() {
		return nil, nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	_ = t.conn.SetReadDeadline(time.Time{})
	// cancelling ctx expires the read
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, MaxDatagramSize)
	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if t.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, nil, ErrTransportClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, fmt.Errorf("net: receive: %w", err)
	}

	metrics.IncrCounterWithGroup("net", "datagram_received_total", 1)
	metrics.IncrCounterWithGroup("net", "datagram_received_bytes_total", metrics.Value(n))
	log.Debug().Str("from", endpointString(from)).Hex("datagram", buf[:n]).Msg("datagram received")
	return buf[:n], from, nil
}

func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.conn.Close()
		log.Info().Str("local", endpointString(t.local)).Msg("udp transport closed")
	})
	return t.closeErr
}
