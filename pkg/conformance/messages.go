package conformance

import (
	"fmt"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/state/serialization"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

const (
	peerInfoKind byte = iota
	importBlockKind
	setStateKind
	getStateKind
	stateKind
	stateRootKind
)

// Message is one of PeerInfo, ImportBlock, SetState, GetState, State or StateRoot.
type Message interface {
	isMessage()
}

type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

type PeerInfo struct {
	Name       []byte
	AppVersion Version
	JamVersion Version
}

type ImportBlock struct {
	Block block.Block
}

type SetState struct {
	Header block.Header
	State  State
}

type GetState struct {
	HeaderHash crypto.Hash
}

type State struct {
	StateItems []serialization.KeyValue
}

type StateRoot struct {
	StateRootHash crypto.Hash
}

func (PeerInfo) isMessage()    {}
func (ImportBlock) isMessage() {}
func (SetState) isMessage()    {}
func (GetState) isMessage()    {}
func (State) isMessage()       {}
func (StateRoot) isMessage()   {}

// Kind names the message for logs.
func Kind(m Message) string {
	switch m.(type) {
	case PeerInfo:
		return "peer_info"
	case ImportBlock:
		return "import_block"
	case SetState:
		return "set_state"
	case GetState:
		return "get_state"
	case State:
		return "state"
	case StateRoot:
		return "state_root"
	}
	return "unknown"
}

var (
	versionCodec = jam.Struct(
		jam.Field("major", jam.U8, func(v *Version) *uint8 { return &v.Major }),
		jam.Field("minor", jam.U8, func(v *Version) *uint8 { return &v.Minor }),
		jam.Field("patch", jam.U8, func(v *Version) *uint8 { return &v.Patch }),
	)
	peerInfoCodec = jam.Struct(
		jam.Field("name", jam.Blob, func(p *PeerInfo) *[]byte { return &p.Name }),
		jam.Field("app_version", versionCodec, func(p *PeerInfo) *Version { return &p.AppVersion }),
		jam.Field("jam_version", versionCodec, func(p *PeerInfo) *Version { return &p.JamVersion }),
	)
	keyValueCodec = jam.Struct(
		jam.Field("key", statekey.Codec, func(kv *serialization.KeyValue) *statekey.StateKey { return &kv.Key }),
		jam.Field("value", jam.Blob, func(kv *serialization.KeyValue) *[]byte { return &kv.Value }),
	)
	stateCodec = jam.Struct(
		jam.Field("keyvals", jam.Sequence(keyValueCodec), func(s *State) *[]serialization.KeyValue { return &s.StateItems }),
	)
	getStateCodec = jam.Struct(
		jam.Field("header_hash", crypto.HashCodec, func(g *GetState) *crypto.Hash { return &g.HeaderHash }),
	)
	stateRootCodec = jam.Struct(
		jam.Field("state_root", crypto.HashCodec, func(s *StateRoot) *crypto.Hash { return &s.StateRootHash }),
	)
)

// NewMessageCodec builds the fuzz protocol message codec. Blocks and headers
// are sized by the chain parameters the codecs were built for.
func NewMessageCodec(codecs *block.Codecs) jam.Codec[Message] {
	importBlockCodec := jam.Struct(
		jam.Field("block", codecs.Block, func(i *ImportBlock) *block.Block { return &i.Block }),
	)
	setStateCodec := jam.Struct(
		jam.Field("header", codecs.Header, func(s *SetState) *block.Header { return &s.Header }),
		jam.Field("state", stateCodec, func(s *SetState) *State { return &s.State }),
	)
	return jam.Union(
		variant(peerInfoKind, peerInfoCodec),
		variant(importBlockKind, importBlockCodec),
		variant(setStateKind, setStateCodec),
		variant(getStateKind, getStateCodec),
		variant(stateKind, stateCodec),
		variant(stateRootKind, stateRootCodec),
	)
}

func variant[V Message](tag byte, c jam.Codec[V]) jam.Variant[Message] {
	return jam.Case(tag, c,
		func(v V) Message { return v },
		func(m Message) (V, bool) {
			v, ok := m.(V)
			return v, ok
		},
	)
}
