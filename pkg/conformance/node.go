// Package conformance implements the target side of the JAM fuzz protocol
// (https://github.com/davxy/jam-stuff/tree/main/fuzz-proto, v0.6.7 message set).
package conformance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/state/serialization"
	"github.com/eigerco/jamtarget/internal/statetransition"
	"github.com/eigerco/jamtarget/internal/store"
	"github.com/eigerco/jamtarget/pkg/log"
	"github.com/eigerco/jamtarget/pkg/network/handlers"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

var (
	ErrHandshakeRequired   = errors.New("handshake was not performed, peer info message should be sent first")
	ErrStateNotInitialized = errors.New("state not initialized, set state message should be sent first")
	ErrUnexpectedMessage   = errors.New("unexpected message")
)

// Node is a conformance testing node. It listens on a unix socket for fuzzer
// messages, imports blocks on top of the current state and answers with the
// resulting state roots.
type Node struct {
	socketPath string
	transition *statetransition.Transition
	codec      jam.Codec[Message]
	chain      *store.Chain
	history    *store.History
	peerInfo   PeerInfo

	mu            sync.Mutex
	listener      net.Listener
	handshakeDone bool
	state         *state.State
	stateRoot     crypto.Hash
}

func NewNode(socketPath string, transition *statetransition.Transition, chain *store.Chain, history *store.History, peerInfo PeerInfo) *Node {
	return &Node{
		socketPath: socketPath,
		transition: transition,
		codec:      NewMessageCodec(transition.BlockCodecs()),
		chain:      chain,
		history:    history,
		peerInfo:   peerInfo,
	}
}

// Start listens on the socket and serves one fuzzer connection at a time
// until the context is cancelled or Stop is called.
func (n *Node) Start(ctx context.Context) error {
	if _, err := os.Stat(n.socketPath); err == nil {
		if err := os.Remove(n.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", n.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on unix socket: %w", err)
	}
	n.mu.Lock()
	n.listener = listener
	n.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { listener.Close() }) //nolint:errcheck
	defer stop()

	log.Conformance.Info().Str("socket", n.socketPath).Msg("listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		n.handleConnection(ctx, conn)
	}
}

// Stop closes the listener, Start returns once the current connection ends.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil
	}
	return n.listener.Close()
}

func (n *Node) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck
	defer stop()

	if err := n.Serve(ctx, conn); err != nil {
		log.Conformance.Error().Err(err).Msg("session aborted")
		return
	}
	log.Conformance.Info().Msg("fuzzer closed the connection, session ended")
}

// Serve answers framed messages read from rw until the peer closes the
// stream. Any error ends the session.
func (n *Node) Serve(ctx context.Context, rw io.ReadWriter) error {
	for {
		msgBytes, err := handlers.ReadMessageWithContext(ctx, rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		if log.DumpMessages {
			log.Conformance.Info().Hex("bytes", msgBytes.Content).Msg("received")
		}

		msg, err := jam.Unmarshal(n.codec, msgBytes.Content)
		if err != nil {
			return fmt.Errorf("unmarshal message: %w", err)
		}

		response, err := n.handleSafely(msg)
		if err != nil {
			return fmt.Errorf("handle %s: %w", Kind(msg), err)
		}

		respBytes, err := jam.Marshal(n.codec, response)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", Kind(response), err)
		}
		if log.DumpMessages {
			log.Conformance.Info().Hex("bytes", respBytes).Msg("sent")
		}
		if err := handlers.WriteMessageWithContext(ctx, rw, respBytes); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

func (n *Node) handleSafely(msg Message) (response Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return n.Handle(msg)
}

// Handle answers a single message.
func (n *Node) Handle(msg Message) (Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if peer, ok := msg.(PeerInfo); ok {
		log.Conformance.Info().
			Str("name", string(peer.Name)).
			Stringer("app_version", peer.AppVersion).
			Stringer("jam_version", peer.JamVersion).
			Msg("handshake")
		n.handshakeDone = true
		return n.peerInfo, nil
	}

	if !n.handshakeDone {
		return nil, ErrHandshakeRequired
	}
	switch m := msg.(type) {
	case SetState:
		return n.setState(m)
	case ImportBlock:
		return n.importBlock(m)
	case GetState:
		return n.getState(m)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, Kind(msg))
}

func (n *Node) setState(m SetState) (Message, error) {
	serialized := serialization.FromKeyValues(m.State.StateItems)
	newState, err := serialization.DeserializeState(n.transition.StateCodecs(), serialized)
	if err != nil {
		return nil, fmt.Errorf("deserialize state: %w", err)
	}
	headerHash, err := n.transition.BlockCodecs().HeaderHash(m.Header)
	if err != nil {
		return nil, fmt.Errorf("header hash: %w", err)
	}

	if err := n.history.Reset(); err != nil {
		return nil, fmt.Errorf("reset history: %w", err)
	}
	if err := n.chain.Reset(); err != nil {
		return nil, err
	}
	root, err := n.history.Record(headerHash, serialized)
	if err != nil {
		return nil, fmt.Errorf("record state: %w", err)
	}
	if _, err := n.chain.PutHeader(m.Header, root); err != nil {
		return nil, fmt.Errorf("store header: %w", err)
	}

	n.state = &newState
	n.stateRoot = root
	log.Conformance.Info().
		Hex("header_hash", headerHash[:]).
		Hex("state_root", root[:]).
		Int("keys", len(serialized)).
		Msg("state initialized")
	return StateRoot{StateRootHash: root}, nil
}

// importBlock applies the block to the current state. A rejected block is
// answered with the unchanged current root.
func (n *Node) importBlock(m ImportBlock) (Message, error) {
	if n.state == nil {
		return nil, ErrStateNotInitialized
	}
	header := m.Block.Header
	headerHash, err := n.transition.BlockCodecs().HeaderHash(header)
	if err != nil {
		return nil, fmt.Errorf("header hash: %w", err)
	}

	posterior, err := n.transition.UpdateStateFromRoot(*n.state, n.stateRoot, m.Block)
	if err != nil {
		log.Conformance.Warn().
			Err(err).
			Hex("header_hash", headerHash[:]).
			Uint32("slot", uint32(header.TimeSlotIndex)).
			Msg("block rejected")
		return StateRoot{StateRootHash: n.stateRoot}, nil
	}

	serialized, err := serialization.SerializeState(n.transition.StateCodecs(), posterior)
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	root, err := n.history.Record(headerHash, serialized)
	if err != nil {
		return nil, fmt.Errorf("record state: %w", err)
	}
	if _, err := n.chain.PutHeader(header, root); err != nil {
		return nil, fmt.Errorf("store header: %w", err)
	}

	n.state = &posterior
	n.stateRoot = root
	log.Conformance.Debug().
		Hex("header_hash", headerHash[:]).
		Uint32("slot", uint32(header.TimeSlotIndex)).
		Hex("state_root", root[:]).
		Msg("block imported")
	return StateRoot{StateRootHash: root}, nil
}

func (n *Node) getState(m GetState) (Message, error) {
	header, err := n.chain.GetHeader(m.HeaderHash)
	if err != nil {
		return nil, fmt.Errorf("header %x: %w", m.HeaderHash, err)
	}
	serialized, err := n.history.State(m.HeaderHash)
	if err != nil {
		return nil, fmt.Errorf("state of header %x at slot %d: %w", m.HeaderHash, header.TimeSlotIndex, err)
	}
	return State{StateItems: serialization.SortedKeyValues(serialized)}, nil
}
