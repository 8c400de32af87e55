// Package net implements the libp2p transport and protocol-message stream
// handling for swap handshakes, directly adapted from the Host/Config/Handler
// shape exercised by mewmix-atomic-swap's
// net/host_test.go (NewHost, SetHandlers, Stop, a persistent on-disk
// identity KeyFile).
package net

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"

	logging "github.com/ipfs/go-log"

	"github.com/jude-swap/swap/net/message"
)

var log = logging.Logger("net")

// Message is an alias kept local to this package's exported surface so
// callers don't need to import net/message directly for the common case.
type Message = message.Message

// SwapState is implemented by an in-progress swap's driver so the network
// layer can route incoming stream messages to it without knowing about the
// Alice/Bob state machine internals.
type SwapState interface {
	ID() string
	HandleProtocolMessage(msg Message) error
	Exit() error
}

// Handler is implemented by the side that accepts new swap streams (the
// counterparty that did not initiate): on a SendKeysMessage it either
// attaches to an already-tracked swap or starts a new one.
type Handler interface {
	HandleInitiateMessage(msg *message.SendKeysMessage) (SwapState, Message, error)
}

// Host wraps a libp2p host.Host bound to the swap protocol stream.
type Host struct {
	ctx        context.Context
	h          host.Host
	protocolID protocol.ID
	handler    Handler

	swaps map[string]SwapState
}

// NewHost constructs (and persists, if not already present) a libp2p
// identity key under cfg.KeyFile and starts listening on cfg.ListenIP:cfg.Port.
func NewHost(cfg *Config) (*Host, error) {
	priv, err := loadOrGenerateKey(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("net: failed to load identity key: %w", err)
	}

	addr := fmt.Sprintf("/ip4/%s/tcp/%d", cfg.ListenIP, cfg.Port)
	listenAddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("net: invalid listen address %s: %w", addr, err)
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrs(listenAddr),
		libp2p.Identity(priv),
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("net: failed to construct libp2p host: %w", err)
	}

	for _, bn := range cfg.Bootnodes {
		if err := connectBootnode(h, bn); err != nil {
			log.Warnf("failed to connect to bootnode %s: %s", bn, err)
		}
	}

	host := &Host{
		ctx:        cfg.Ctx,
		h:          h,
		protocolID: protocol.ID(cfg.ProtocolID),
		swaps:      make(map[string]SwapState),
	}

	h.SetStreamHandler(host.protocolID, host.handleStream)
	return host, nil
}

func loadOrGenerateKey(keyFile string) (libp2pcrypto.PrivKey, error) {
	if keyFile != "" {
		if b, err := os.ReadFile(keyFile); err == nil {
			return libp2pcrypto.UnmarshalPrivateKey(b)
		}
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, err
	}

	if keyFile != "" {
		b, err := libp2pcrypto.MarshalPrivateKey(priv)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(keyFile, b, 0o600); err != nil {
			return nil, fmt.Errorf("net: failed to persist identity key: %w", err)
		}
	}

	return priv, nil
}

func connectBootnode(h host.Host, addr string) error {
	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return err
	}
	h.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.PermanentAddrTTL)
	return h.Connect(context.Background(), *info)
}

// SetHandlers installs the handler used for inbound swap-initiation streams.
func (host *Host) SetHandlers(h Handler) {
	host.handler = h
}

// AddrInfo returns this host's own dialable address info, persisted per
// swap so a resumed swap can reconnect without rendezvous discovery.
func (host *Host) AddrInfo() peer.AddrInfo {
	return peer.AddrInfo{ID: host.h.ID(), Addrs: host.h.Addrs()}
}

// PeerID returns this host's libp2p peer id.
func (host *Host) PeerID() peer.ID {
	return host.h.ID()
}

// Peers returns the peer ids this host currently holds an open connection
// to, for the CLI `peers` subcommand.
func (host *Host) Peers() []peer.ID {
	return host.h.Network().Peers()
}

func (host *Host) handleStream(s network.Stream) {
	defer s.Close() //nolint:errcheck

	reader := bufio.NewReader(s)
	lenBuf := make([]byte, 4)
	if _, err := reader.Read(lenBuf); err != nil {
		log.Warnf("failed to read message length: %s", err)
		return
	}

	msgLen := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
	buf := make([]byte, msgLen)
	if _, err := reader.Read(buf); err != nil {
		log.Warnf("failed to read message body: %s", err)
		return
	}

	msg, err := message.DecodeMessage(buf)
	if err != nil {
		log.Warnf("failed to decode message: %s", err)
		return
	}

	if err := host.routeMessage(s.Conn().RemotePeer(), msg); err != nil {
		log.Warnf("failed to route message: %s", err)
	}
}

func (host *Host) routeMessage(from peer.ID, msg Message) error {
	if skm, ok := msg.(*message.SendKeysMessage); ok {
		if host.handler == nil {
			return fmt.Errorf("net: no handler installed for initiate messages")
		}
		swapState, _, err := host.handler.HandleInitiateMessage(skm)
		if err != nil {
			return err
		}
		host.swaps[swapState.ID()] = swapState
		return nil
	}

	for _, s := range host.swaps {
		if err := s.HandleProtocolMessage(msg); err == nil {
			return nil
		}
	}
	return fmt.Errorf("net: no swap able to handle message %s", msg.Type())
}

// DeliverToSwap hands msg to a swap already registered with the host (by
// OpenEventLoop or a prior HandleInitiateMessage), for callers that decode
// a message out-of-band from the normal stream read loop — the daemon uses
// this to seed a freshly opened reciprocal EventLoopHandle with the
// SendKeysMessage that triggered HandleInitiateMessage in the first place,
// before the counterparty's handshake's own Transition runs its Recv.
func (host *Host) DeliverToSwap(swapID string, msg Message) error {
	s, ok := host.swaps[swapID]
	if !ok {
		return fmt.Errorf("net: no swap %s registered with this host", swapID)
	}
	return s.HandleProtocolMessage(msg)
}

// Stop shuts down the libp2p host.
func (host *Host) Stop() error {
	return host.h.Close()
}
