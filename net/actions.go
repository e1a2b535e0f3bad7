package net

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lcx/oldentide-client/log"
	"github.com/lcx/oldentide-client/metrics"
)

// send encodes p, frames it and writes it once the send limiter allows.
func (c *Client) send(ctx context.Context, p Packet) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	payload, err := c.codec.Encode(p, nil)
	if err != nil {
		return err
	}
	frame, err := EncodeFrame(p.Kind(), payload)
	if err != nil {
		return err
	}
	if err := c.sendLimiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.transport.Send(ctx, frame); err != nil {
		return err
	}
	metrics.IncrCounterWithDimGroup("net", "frame_sent_total", 1, metrics.Dimension{"kind": p.Kind().String()})
	return nil
}

// roundTrip sends req and decodes the next queued payload into reply.
func (c *Client) roundTrip(ctx context.Context, action string, req, reply Packet) (err error) {
	start := time.Now()
	_, packetID := req.Header()
	defer func() {
		if !c.session.Settle(packetID) {
			log.Debug().Str("action", action).Int64("packetId", packetID).Msg("request no longer in flight, session was reset")
		}
		metrics.IncrCounterWithDimGroup("net", "request_total", 1, metrics.Dimension{"action": action, "outcome": outcome(err)})
		metrics.RecordStopwatchWithDimGroup("net", "request_seconds", time.Since(start), metrics.Dimension{"action": action})
	}()

	ctx, cancel := c.bind(ctx)
	defer cancel()

	if err := c.send(ctx, req); err != nil {
		return c.closedOr(err)
	}

	payload, err := c.queue.WaitDequeue(ctx, c.RequestTimeout())
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			log.Warn().Str("action", action).Int64("packetId", packetID).Dur("timeout", c.RequestTimeout()).Msg("no reply, timed out")
		}
		return c.closedOr(err)
	}

	if err := c.codec.Decode(reply, payload); err != nil {
		log.Warn().Str("action", action).Err(err).Hex("payload", payload).Msg("undecodable reply")
		return fmt.Errorf("%w: undecodable %s reply: %w", ErrNoResponse, action, err)
	}

	if _, replyID := reply.Header(); replyID != packetID {
		c.checkPacketID(action, packetID, replyID)
	}
	return nil
}

// checkPacketID records a reply whose packet id differs from the request's.
// Matching stays FIFO; an id that was never issued marks the reply as stale.
func (c *Client) checkPacketID(action string, packetID, replyID int64) {
	reason := "out_of_order"
	if !c.session.Issued(replyID) {
		reason = "stale_packet"
	}
	metrics.IncrCounterWithDimGroup("net", "reply_mismatch_total", 1, metrics.Dimension{"reason": reason})
	log.Debug().Str("action", action).Int64("packetId", packetID).Int64("replyPacketId", replyID).
		Str("reason", reason).Msg("reply carries another packet id")
}

func (c *Client) closedOr(err error) error {
	if c.closed.Load() && !errors.Is(err, ErrNoResponse) {
		return ErrClientClosed
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimedOut):
		return "timeout"
	case errors.Is(err, ErrStaleSession):
		return "stale_session"
	case errors.Is(err, ErrNoResponse):
		return "bad_reply"
	case errors.Is(err, ErrClientClosed):
		return "closed"
	default:
		return "error"
	}
}

// Connect asks the server for a session and adopts the id it replies with.
// This is the only way the client becomes authenticated.
func (c *Client) Connect(ctx context.Context) (int64, error) {
	req := &ConnectPacket{SessionID: c.session.ID(), PacketID: c.session.NextPacketID()}
	var reply ConnectPacket
	if err := c.roundTrip(ctx, "connect", req, &reply); err != nil {
		return 0, err
	}

	if c.session.Adopt(reply.SessionID) {
		log.Info().Int64("sessionId", reply.SessionID).Msg("session established")
	} else {
		log.Debug().Int64("sessionId", reply.SessionID).Msg("session unchanged")
	}
	return reply.SessionID, nil
}

// ListCharacters returns the account's character names. A reply for another
// session is ErrStaleSession. An empty roster is an empty, non-nil slice.
func (c *Client) ListCharacters(ctx context.Context) ([]string, error) {
	req := &ListCharactersPacket{
		SessionID:  c.session.ID(),
		PacketID:   c.session.NextPacketID(),
		Characters: []string{},
	}
	var reply ListCharactersPacket
	if err := c.roundTrip(ctx, "list_characters", req, &reply); err != nil {
		return nil, err
	}
	if err := c.checkSession(&reply); err != nil {
		return nil, err
	}
	if reply.Characters == nil {
		return []string{}, nil
	}
	return reply.Characters, nil
}

// Broadcast sends a player command or chat line and returns the server's echo.
func (c *Client) Broadcast(ctx context.Context, command string) (string, error) {
	req := &PlayerCommandPacket{
		SessionID: c.session.ID(),
		PacketID:  c.session.NextPacketID(),
		Command:   command,
	}
	var reply PlayerCommandPacket
	if err := c.roundTrip(ctx, "broadcast", req, &reply); err != nil {
		return "", err
	}
	if err := c.checkSession(&reply); err != nil {
		return "", err
	}
	return reply.Command, nil
}

func (c *Client) checkSession(reply Packet) error {
	sessionID, _ := reply.Header()
	if current := c.session.ID(); sessionID != current {
		metrics.IncrCounterWithDimGroup("net", "datagram_dropped_total", 1, metrics.Dimension{"reason": "stale_session"})
		log.Debug().Stringer("kind", reply.Kind()).Int64("sessionId", sessionID).Int64("current", current).
			Msg("reply for another session discarded")
		return fmt.Errorf("%w: reply for session %d, current %d", ErrStaleSession, sessionID, current)
	}
	return nil
}

// fire sends p without waiting for a reply.
func (c *Client) fire(ctx context.Context, action string, p Packet) error {
	ctx, cancel := c.bind(ctx)
	defer cancel()

	_, packetID := p.Header()
	err := c.send(ctx, p)
	c.session.Settle(packetID)
	metrics.IncrCounterWithDimGroup("net", "request_total", 1, metrics.Dimension{"action": action, "outcome": outcome(err)})
	return c.closedOr(err)
}

// CreateCharacter asks the server to create a character. No reply is awaited;
// use ListCharacters to see the result.
func (c *Client) CreateCharacter(ctx context.Context, firstName, lastName string) error {
	return c.fire(ctx, "create_character", &CreateCharacterPacket{
		SessionID: c.session.ID(),
		PacketID:  c.session.NextPacketID(),
		FirstName: firstName,
		LastName:  lastName,
	})
}

// SelectCharacter picks the character to play. No reply is awaited.
func (c *Client) SelectCharacter(ctx context.Context, character string) error {
	return c.fire(ctx, "select_character", &SelectCharacterPacket{
		SessionID: c.session.ID(),
		PacketID:  c.session.NextPacketID(),
		Character: character,
	})
}

// Disconnect tells the server the session is over and resets the local
// session so a later Connect starts from scratch. The session is reset even
// when the send fails.
func (c *Client) Disconnect(ctx context.Context) error {
	err := c.fire(ctx, "disconnect", &DisconnectPacket{
		SessionID: c.session.ID(),
		PacketID:  c.session.NextPacketID(),
	})
	c.session.Reset()
	if n := c.queue.Drain(); n > 0 {
		log.Debug().Int("discarded", n).Msg("queued replies discarded on disconnect")
	}
	return err
}

// AsyncConnect runs Connect on its own goroutine and reports to done, which
// may be nil. done must not call Close.
func (c *Client) AsyncConnect(ctx context.Context, done func(sessionID int64, err error)) {
	if done == nil {
		done = func(int64, error) {}
	}
	c.goAsync(func() {
		done(c.Connect(ctx))
	}, func() {
		done(0, ErrClientClosed)
	})
}

// AsyncListCharacters runs ListCharacters on its own goroutine.
func (c *Client) AsyncListCharacters(ctx context.Context, done func(characters []string, err error)) {
	if done == nil {
		done = func([]string, error) {}
	}
	c.goAsync(func() {
		done(c.ListCharacters(ctx))
	}, func() {
		done(nil, ErrClientClosed)
	})
}

// AsyncBroadcast runs Broadcast on its own goroutine.
func (c *Client) AsyncBroadcast(ctx context.Context, command string, done func(echo string, err error)) {
	if done == nil {
		done = func(string, error) {}
	}
	c.goAsync(func() {
		done(c.Broadcast(ctx, command))
	}, func() {
		done("", ErrClientClosed)
	})
}

// AsyncDisconnect runs Disconnect on its own goroutine.
func (c *Client) AsyncDisconnect(ctx context.Context, done func(err error)) {
	if done == nil {
		done = func(error) {}
	}
	c.goAsync(func() {
		done(c.Disconnect(ctx))
	}, func() {
		done(ErrClientClosed)
	})
}

// AsyncCreateCharacter runs CreateCharacter on its own goroutine.
func (c *Client) AsyncCreateCharacter(ctx context.Context, firstName, lastName string, done func(err error)) {
	if done == nil {
		done = func(error) {}
	}
	c.goAsync(func() {
		done(c.CreateCharacter(ctx, firstName, lastName))
	}, func() {
		done(ErrClientClosed)
	})
}

// AsyncSelectCharacter runs SelectCharacter on its own goroutine.
func (c *Client) AsyncSelectCharacter(ctx context.Context, character string, done func(err error)) {
	if done == nil {
		done = func(error) {}
	}
	c.goAsync(func() {
		done(c.SelectCharacter(ctx, character))
	}, func() {
		done(ErrClientClosed)
	})
}
