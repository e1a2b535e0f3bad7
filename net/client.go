package net

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcx/oldentide-client/codec"
	"github.com/lcx/oldentide-client/config"
	"github.com/lcx/oldentide-client/log"
)

type clientOptions struct {
	transport Transport
	resolver  Resolver
	display   Display
	codec     codec.Codec
}

// ClientOption customises NewClient.
type ClientOption func(*clientOptions)

// WithTransport uses t instead of opening a UDP socket. The client owns t and
// closes it on Close.
func WithTransport(t Transport) ClientOption {
	return func(o *clientOptions) { o.transport = t }
}

// WithResolver overrides the resolver chosen from ClientCfg.Discovery.
func WithResolver(r Resolver) ClientOption {
	return func(o *clientOptions) { o.resolver = r }
}

// WithDisplay receives text pushed by the server. Without it the text is logged.
func WithDisplay(d Display) ClientOption {
	return func(o *clientOptions) { o.display = d }
}

// WithCodec overrides the payload codec named by ClientCfg.Codec.
func WithCodec(c codec.Codec) ClientOption {
	return func(o *clientOptions) { o.codec = c }
}

// Client is one connection to the game server: the transport, the receiver
// goroutine and the state the request actions share.
//
// At most one of Connect, ListCharacters and Broadcast (sync or async) may be
// awaiting a reply at a time; see the package documentation.
type Client struct {
	transport   Transport
	session     *Session
	queue       *CorrelationQueue
	codec       codec.Codec
	sendLimiter *SendLimiter
	recvLimiter *FunnelRecvLimiter
	receiver    *Receiver
	timeout     atomic.Int64

	// life is cancelled by Close and aborts every in-progress action
	life       context.Context
	cancelLife context.CancelFunc

	asyncMu   sync.Mutex
	asyncWG   sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewClient opens the transport and starts the receiver. Resolve and bind
// failures are returned as ErrResolve and ErrBind. The client is closed when
// ctx is done.
func NewClient(ctx context.Context, cfg *ClientCfg, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("net: nil client config")
	}
	c := *cfg
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("net: invalid client config: %w", err)
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.codec == nil {
		pc, err := codec.ByName(c.Codec)
		if err != nil {
			return nil, err
		}
		o.codec = pc
	}

	if o.transport == nil {
		resolver := o.resolver
		if resolver == nil {
			r, err := NewResolver(&c)
			if err != nil {
				return nil, err
			}
			resolver = r
		}
		t, err := OpenUDP(ctx, &c, resolver)
		if err != nil {
			return nil, err
		}
		o.transport = t
	}

	client := &Client{
		transport:   o.transport,
		session:     NewSession(),
		queue:       NewCorrelationQueue(c.MaxQueueLen),
		codec:       o.codec,
		sendLimiter: NewSendLimiter(c.SendRate, c.SendBurst),
		recvLimiter: NewFunnelRecvLimiter(c.RecvRate),
	}
	client.timeout.Store(int64(c.RequestTimeout))
	client.life, client.cancelLife = context.WithCancel(context.Background())
	client.receiver = NewReceiver(client.transport, client.session, client.queue, client.codec, o.display, client.recvLimiter)
	client.receiver.Start()
	go client.closeWhenDone(ctx)

	log.Info().Str("codec", client.codec.Name()).Dur("requestTimeout", c.RequestTimeout).Msg("client started")
	return client, nil
}

// Session returns the client's session state.
func (c *Client) Session() *Session { return c.session }

// Receiver returns the background receiver.
func (c *Client) Receiver() *Receiver { return c.receiver }

// Transport returns the underlying transport.
func (c *Client) Transport() Transport { return c.transport }

// RequestTimeout is how long a request waits for its reply.
func (c *Client) RequestTimeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// Close stops the receiver, aborts in-progress actions and waits for async
// actions to return. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.asyncMu.Lock()
		c.closed.Store(true)
		c.asyncMu.Unlock()

		c.cancelLife()
		c.receiver.Stop()
		c.asyncWG.Wait()
		log.Info().Int64("sessionId", c.session.ID()).Msg("client closed")
	})
	return nil
}

// OnConfigChanged implements config.ConfigChangeListener. Rates and the
// request timeout apply immediately; endpoint and codec changes need a restart.
func (c *Client) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "client" {
		return nil
	}
	newCfg, ok := newConfig.(*ClientCfg)
	if !ok {
		return fmt.Errorf("invalid configuration type %T for client", newConfig)
	}
	cfg := *newCfg
	cfg.ApplyDefaults()

	c.sendLimiter.Reload(cfg.SendRate, cfg.SendBurst)
	c.recvLimiter.Reload(cfg.RecvRate)
	c.timeout.Store(int64(cfg.RequestTimeout))

	if oldCfg, ok := oldConfig.(*ClientCfg); ok {
		if oldCfg.ServerHost != cfg.ServerHost || oldCfg.ServerPort != cfg.ServerPort ||
			oldCfg.LocalPort != cfg.LocalPort || oldCfg.Codec != newCfg.Codec {
			log.Warn().Msg("endpoint or codec change takes effect after restart")
		}
	}

	log.Info().Int("sendRate", cfg.SendRate).Int("recvRate", cfg.RecvRate).
		Dur("requestTimeout", cfg.RequestTimeout).Msg("client configuration reloaded")
	return nil
}

func (c *Client) closeWhenDone(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = c.Close()
	case <-c.life.Done():
	}
}

// bind derives a context that is also cancelled when the client closes.
func (c *Client) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// goAsync runs fn on its own goroutine, tracked by Close. On a closed client
// it runs onClosed instead, still off the caller's goroutine.
func (c *Client) goAsync(fn, onClosed func()) {
	c.asyncMu.Lock()
	if c.closed.Load() {
		c.asyncMu.Unlock()
		go onClosed()
		return
	}
	c.asyncWG.Add(1)
	c.asyncMu.Unlock()

	go func() {
		defer c.asyncWG.Done()
		fn()
	}()
}
