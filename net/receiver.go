package net

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lcx/oldentide-client/codec"
	"github.com/lcx/oldentide-client/log"
	"github.com/lcx/oldentide-client/metrics"
)

// Display shows text pushed by the server to the player.
type Display interface {
	ShowServerText(text string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(text string)

func (f DisplayFunc) ShowServerText(text string) { f(text) }

type logDisplay struct{}

func (logDisplay) ShowServerText(text string) {
	log.Info().Str("text", text).Msg("server says")
}

// ReceiverState is the receiver's lifecycle; Stopped is terminal.
type ReceiverState int32

const (
	ReceiverIdle ReceiverState = iota
	ReceiverRunning
	ReceiverStopped
)

func (s ReceiverState) String() string {
	switch s {
	case ReceiverRunning:
		return "running"
	case ReceiverStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Receiver is the background loop reading the transport. Errors and pushed
// server text are handled in place; every other message is queued for the
// request waiting on the correlation queue.
type Receiver struct {
	transport Transport
	session   *Session
	queue     *CorrelationQueue
	codec     codec.Codec
	display   Display
	limiter   *FunnelRecvLimiter

	state     atomic.Int32
	startOnce sync.Once
	done      chan struct{}
}

// NewReceiver wires a receiver. display and limiter may be nil.
func NewReceiver(t Transport, session *Session, queue *CorrelationQueue, c codec.Codec, display Display, limiter *FunnelRecvLimiter) *Receiver {
	if display == nil {
		display = logDisplay{}
	}
	if limiter == nil {
		limiter = NewFunnelRecvLimiter(0)
	}
	return &Receiver{
		transport: t,
		session:   session,
		queue:     queue,
		codec:     c,
		display:   display,
		limiter:   limiter,
		done:      make(chan struct{}),
	}
}

// Start launches the loop. Later calls do nothing.
func (r *Receiver) Start() {
	r.startOnce.Do(func() {
		r.state.Store(int32(ReceiverRunning))
		metrics.UpdateGaugeWithGroup("net", "receiver_running", 1)
		go r.loop()
	})
}

// Stop closes the transport, which is what ends the loop, and waits for it.
func (r *Receiver) Stop() {
	_ = r.transport.Close()
	r.startOnce.Do(func() {
		r.finish()
	})
	<-r.done
}

// Done is closed once the loop has exited.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

func (r *Receiver) State() ReceiverState {
	return ReceiverState(r.state.Load())
}

func (r *Receiver) finish() {
	r.state.Store(int32(ReceiverStopped))
	metrics.UpdateGaugeWithGroup("net", "receiver_running", 0)
	close(r.done)
}

func (r *Receiver) loop() {
	defer r.finish()
	log.Debug().Msg("receiver started")

	for {
		datagram, from, err := r.transport.Receive(context.Background())
		if err != nil {
			if errors.Is(err, ErrTransportClosed) {
				log.Debug().Msg("receiver stopped: transport closed")
				return
			}
			metrics.IncrCounterWithDimGroup("net", "receive_error_total", 1, nil)
			log.Warn().Err(err).Msg("receive failed")
			continue
		}
		r.handle(datagram, from)
	}
}

func (r *Receiver) handle(datagram []byte, from *net.UDPAddr) {
	if !SameEndpoint(from, r.transport.RemoteAddr()) {
		dropped("foreign_sender")
		log.Debug().Str("from", endpointString(from)).Msg("datagram from unexpected sender dropped")
		return
	}

	r.limiter.Take()

	kind, payload, err := DecodeFrame(datagram)
	if err != nil {
		dropped("framing")
		log.Warn().Err(err).Int("size", len(datagram)).Msg("malformed datagram dropped")
		return
	}

	route := kind.Route()
	metrics.IncrCounterWithDimGroup("net", "frame_received_total", 1, metrics.Dimension{"kind": kind.String(), "route": route.String()})

	switch route {
	case RouteError:
		var p ErrorPacket
		if err := r.codec.Decode(&p, payload); err != nil {
			dropped("payload")
			log.Warn().Err(err).Stringer("kind", kind).Msg("undecodable error report dropped")
			return
		}
		log.Error().Int64("sessionId", p.SessionID).Int64("packetId", p.PacketID).Str("errorMsg", p.ErrorMsg).Msg("server reported error")

	case RouteNotify:
		var p ServerCommandPacket
		if err := r.codec.Decode(&p, payload); err != nil {
			dropped("payload")
			log.Warn().Err(err).Stringer("kind", kind).Msg("undecodable server command dropped")
			return
		}
		if p.SessionID != r.session.ID() {
			dropped("stale_session")
			log.Debug().Int64("sessionId", p.SessionID).Int64("current", r.session.ID()).Msg("server command for another session ignored")
			return
		}
		r.display.ShowServerText(p.Command)

	default:
		if !kind.Known() {
			log.Debug().Stringer("kind", kind).Msg("unknown kind queued")
		}
		r.queue.Enqueue(payload)
	}
}

func dropped(reason string) {
	metrics.IncrCounterWithDimGroup("net", "datagram_dropped_total", 1, metrics.Dimension{"reason": reason})
}
