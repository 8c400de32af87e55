package net

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/jude-swap/swap/net/message"
)

// EventLoopHandle is the request/response channel pair: a per-swap handle
// the state machine driver uses to send protocol messages to its
// counterparty and to receive the counterparty's replies, without the
// driver needing to know anything about libp2p streams.
type EventLoopHandle interface {
	SendSwapMessage(msg message.Message) error
	Recv(ctx context.Context) (message.Message, error)
	Close() error
}

// streamHandle implements EventLoopHandle over a single open libp2p stream
// to one counterparty for the lifetime of one swap.
type streamHandle struct {
	host   *Host
	peerID peer.ID
	swapID string

	mu     sync.Mutex
	stream network.Stream

	incoming chan message.Message
	closed   chan struct{}
}

// OpenEventLoop dials peerID (if not already connected) and returns an
// EventLoopHandle bound to the given swap id, registering it with the
// Host's router so inbound stream messages for this swap land on Recv.
func (host *Host) OpenEventLoop(ctx context.Context, swapID string, peerID peer.ID) (EventLoopHandle, error) {
	s, err := host.h.NewStream(ctx, peerID, host.protocolID)
	if err != nil {
		return nil, fmt.Errorf("net: failed to open stream to %s: %w", peerID, err)
	}

	handle := &streamHandle{
		host:     host,
		peerID:   peerID,
		swapID:   swapID,
		stream:   s,
		incoming: make(chan message.Message, 16),
		closed:   make(chan struct{}),
	}

	host.swaps[swapID] = handle
	return handle, nil
}

// ID implements SwapState so the Host's router can address this handle.
func (h *streamHandle) ID() string { return h.swapID }

// HandleProtocolMessage implements SwapState: the router delivers every
// inbound message for this swap here, and we fan it out to Recv.
func (h *streamHandle) HandleProtocolMessage(msg Message) error {
	select {
	case h.incoming <- msg:
		return nil
	case <-h.closed:
		return fmt.Errorf("net: event loop handle for swap %s is closed", h.swapID)
	}
}

// Exit implements SwapState.
func (h *streamHandle) Exit() error {
	return h.Close()
}

// SendSwapMessage writes a length-prefixed message to the open stream.
func (h *streamHandle) SendSwapMessage(msg message.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("net: failed to encode %s: %w", msg.Type(), err)
	}

	lenPrefix := []byte{
		byte(len(b) >> 24), byte(len(b) >> 16), byte(len(b) >> 8), byte(len(b)),
	}

	w := bufio.NewWriter(h.stream)
	if _, err := w.Write(lenPrefix); err != nil {
		return fmt.Errorf("net: failed to write message length: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("net: failed to write message body: %w", err)
	}
	return w.Flush()
}

// Recv blocks until the next protocol message for this swap arrives or ctx
// is cancelled.
func (h *streamHandle) Recv(ctx context.Context) (message.Message, error) {
	select {
	case msg := <-h.incoming:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.closed:
		return nil, fmt.Errorf("net: event loop handle for swap %s is closed", h.swapID)
	}
}

// Close tears down the stream and unregisters the handle from the Host.
func (h *streamHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.closed:
		return nil
	default:
		close(h.closed)
	}

	delete(h.host.swaps, h.swapID)
	return h.stream.Close()
}
