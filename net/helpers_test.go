package net

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lcx/oldentide-client/codec"
)

var serverAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1).To4(), Port: 1337}

type inbound struct {
	datagram []byte
	from     *net.UDPAddr
}

// fakeTransport is an in-memory Transport. Tests push datagrams with deliver
// and read what the code under test sent from sent.
type fakeTransport struct {
	remote    *net.UDPAddr
	in        chan inbound
	sent      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		remote: serverAddr,
		in:     make(chan inbound, 16),
		sent:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) deliver(datagram []byte, from *net.UDPAddr) {
	f.in <- inbound{datagram: datagram, from: from}
}

func (f *fakeTransport) Send(ctx context.Context, datagram []byte) error {
	select {
	case <-f.closed:
		return ErrTransportClosed
	default:
	}
	b := append([]byte(nil), datagram...)
	select {
	case f.sent <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, *net.UDPAddr, error) {
	select {
	case d := <-f.in:
		return d.datagram, d.from, nil
	case <-f.closed:
		return nil, nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) LocalAddr() *net.UDPAddr  { return &net.UDPAddr{IP: net.IPv4zero, Port: 4000} }
func (f *fakeTransport) RemoteAddr() *net.UDPAddr { return f.remote }

// mustFrame encodes p with c and frames it as kind.
func mustFrame(t *testing.T, c codec.Codec, kind Kind, p any) []byte {
	t.Helper()
	payload, err := c.Encode(p, nil)
	require.NoError(t, err)
	frame, err := EncodeFrame(kind, payload)
	require.NoError(t, err)
	return frame
}

// replyFunc builds the server's answer to one request. ok=false sends nothing.
type replyFunc func(kind Kind, payload []byte) (replyKind Kind, reply any, ok bool)

// fakeServer is a loopback UDP game server driven by a replyFunc.
type fakeServer struct {
	t     *testing.T
	conn  *net.UDPConn
	codec codec.Codec

	mu       sync.Mutex
	reply    replyFunc
	received []Kind
	client   *net.UDPAddr
}

func newFakeServer(t *testing.T, c codec.Codec, reply replyFunc) *fakeServer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	s := &fakeServer{t: t, conn: conn, codec: c, reply: reply}
	go s.serve()
	t.Cleanup(func() { _ = conn.Close() })
	return s
}

func (s *fakeServer) port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *fakeServer) setReply(reply replyFunc) {
	s.mu.Lock()
	s.reply = reply
	s.mu.Unlock()
}

func (s *fakeServer) kinds() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Kind(nil), s.received...)
}

func (s *fakeServer) serve() {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		kind, payload, err := DecodeFrame(buf[:n])
		if err != nil {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, kind)
		s.client = from
		reply := s.reply
		s.mu.Unlock()

		if reply == nil {
			continue
		}
		replyKind, p, ok := reply(kind, payload)
		if !ok {
			continue
		}
		s.send(replyKind, p, from)
	}
}

func (s *fakeServer) send(kind Kind, p any, to *net.UDPAddr) {
	payload, err := s.codec.Encode(p, nil)
	if err != nil {
		return
	}
	frame, err := EncodeFrame(kind, payload)
	if err != nil {
		return
	}
	_, _ = s.conn.WriteToUDP(frame, to)
}

// push sends an unsolicited datagram to the last client seen.
func (s *fakeServer) push(kind Kind, p any) {
	s.mu.Lock()
	to := s.client
	s.mu.Unlock()
	require.NotNil(s.t, to, "no client has contacted the server yet")
	s.send(kind, p, to)
}

func testClientCfg(port int) *ClientCfg {
	return &ClientCfg{
		ServerHost:     "127.0.0.1",
		ServerPort:     port,
		LocalPort:      0,
		RequestTimeout: time.Second,
	}
}

func newTestClient(t *testing.T, cfg *ClientCfg, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
