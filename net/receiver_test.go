package net

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/oldentide-client/codec"
	"github.com/lcx/oldentide-client/log"
)

type recordingDisplay struct {
	mu    sync.Mutex
	lines []string
}

func (d *recordingDisplay) ShowServerText(text string) {
	d.mu.Lock()
	d.lines = append(d.lines, text)
	d.mu.Unlock()
}

func (d *recordingDisplay) get() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

type receiverFixture struct {
	transport *fakeTransport
	session   *Session
	queue     *CorrelationQueue
	display   *recordingDisplay
	receiver  *Receiver
	codec     codec.Codec
}

func newReceiverFixture(t *testing.T) *receiverFixture {
	t.Helper()
	f := &receiverFixture{
		transport: newFakeTransport(),
		session:   NewSession(),
		queue:     NewCorrelationQueue(0),
		display:   &recordingDisplay{},
		codec:     codec.MsgpackCodec{},
	}
	f.receiver = NewReceiver(f.transport, f.session, f.queue, f.codec, f.display, nil)
	f.receiver.Start()
	t.Cleanup(f.receiver.Stop)
	return f
}

// sync delivers a marker through the queue path so everything sent before it
// has been handled. It returns the payloads queued ahead of the marker.
func (f *receiverFixture) sync(t *testing.T) [][]byte {
	t.Helper()
	var queued [][]byte
	marker := []byte{0xFE, 0xED}
	frame, err := EncodeFrame(KindGeneric, marker)
	require.NoError(t, err)
	f.transport.deliver(frame, serverAddr)

	for {
		got, err := f.queue.WaitDequeue(context.Background(), time.Second)
		require.NoError(t, err)
		if bytes.Equal(got, marker) {
			return queued
		}
		queued = append(queued, got)
	}
}

func TestReceiver_QueuesReplies(t *testing.T) {
	f := newReceiverFixture(t)
	require.Equal(t, ReceiverRunning, f.receiver.State())

	frame := mustFrame(t, f.codec, KindConnect, &ConnectPacket{SessionID: 42, PacketID: 1})
	f.transport.deliver(frame, serverAddr)

	payload, err := f.queue.WaitDequeue(context.Background(), time.Second)
	require.NoError(t, err)

	var reply ConnectPacket
	require.NoError(t, f.codec.Decode(&reply, payload))
	assert.EqualValues(t, 42, reply.SessionID)
}

func TestReceiver_UnknownKindIsQueued(t *testing.T) {
	f := newReceiverFixture(t)

	frame, err := EncodeFrame(Kind(99), []byte("opaque"))
	require.NoError(t, err)
	f.transport.deliver(frame, serverAddr)

	payload, err := f.queue.WaitDequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "opaque", string(payload))
}

func TestReceiver_ServerCommandGating(t *testing.T) {
	f := newReceiverFixture(t)
	f.session.Adopt(42)

	f.transport.deliver(mustFrame(t, f.codec, KindSendServerCommand,
		&ServerCommandPacket{SessionID: 7, Command: "spoofed"}), serverAddr)
	f.transport.deliver(mustFrame(t, f.codec, KindSendServerCommand,
		&ServerCommandPacket{SessionID: 42, Command: "Welcome to Oldentide"}), serverAddr)
	queued := f.sync(t)

	assert.Equal(t, []string{"Welcome to Oldentide"}, f.display.get())
	assert.Empty(t, queued, "server commands never reach the queue")
}

func TestReceiver_ErrorIsLoggedNotQueued(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := log.NewLogger(&log.LogCfg{LogLevel: log.InfoLevel})
	logger.SetAppenders(log.NewWriterAppender(buf))
	prev := log.Default()
	log.SetDefaultLogger(logger)
	defer log.SetDefaultLogger(prev)

	f := newReceiverFixture(t)
	f.transport.deliver(mustFrame(t, f.codec, KindError, &ErrorPacket{ErrorMsg: "character name taken"}), serverAddr)
	queued := f.sync(t)

	assert.Empty(t, queued)
	assert.Contains(t, buf.String(), "character name taken")
}

func TestReceiver_DropsForeignAndMalformed(t *testing.T) {
	f := newReceiverFixture(t)

	stranger := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: serverAddr.Port}
	f.transport.deliver(mustFrame(t, f.codec, KindConnect, &ConnectPacket{SessionID: 666}), stranger)
	f.transport.deliver([]byte{byte(KindConnect), 0x10}, serverAddr)
	f.transport.deliver([]byte{byte(KindConnect), 0x10, 0x00, 0x01}, serverAddr)
	queued := f.sync(t)

	assert.Empty(t, queued)
	assert.Equal(t, ReceiverRunning, f.receiver.State(), "bad datagrams never stop the loop")
}

func TestReceiver_UndecodablePushDropped(t *testing.T) {
	f := newReceiverFixture(t)
	frame, err := EncodeFrame(KindSendServerCommand, []byte{0xC1})
	require.NoError(t, err)
	f.transport.deliver(frame, serverAddr)
	f.sync(t)

	assert.Empty(t, f.display.get())
}

func TestReceiver_StopsWhenTransportCloses(t *testing.T) {
	f := newReceiverFixture(t)

	require.NoError(t, f.transport.Close())
	select {
	case <-f.receiver.Done():
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop after the transport closed")
	}
	assert.Equal(t, ReceiverStopped, f.receiver.State())

	// Stop after the fact is harmless
	f.receiver.Stop()
	f.receiver.Start()
	assert.Equal(t, ReceiverStopped, f.receiver.State())
}

func TestReceiver_StopBeforeStart(t *testing.T) {
	r := NewReceiver(newFakeTransport(), NewSession(), NewCorrelationQueue(0), codec.MsgpackCodec{}, nil, nil)
	r.Stop()
	assert.Equal(t, ReceiverStopped, r.State())
	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestReceiverState_String(t *testing.T) {
	assert.Equal(t, "idle", ReceiverIdle.String())
	assert.Equal(t, "running", ReceiverRunning.String())
	assert.Equal(t, "stopped", ReceiverStopped.String())
}
