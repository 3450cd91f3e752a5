// Package engine declares the Peer-Connection Engine interface: the
// pluggable collaborator responsible for DTLS, SRTP, ICE, RTCP, codecs, and
// data channels. The orchestration core depends only on this contract;
// concrete implementations (see the pionengine subpackage for a reference
// adapter) live outside the core.
package engine

import "context"

// Session is the opaque handle an Engine returns from CreateSession. The
// core never inspects it; it is passed back verbatim to DestroySession,
// SendMessage, and the data-channel entry points.
type Session interface{}

// Message is the wire-agnostic SDP/ICE payload exchanged with an engine
// session. The core forwards SignalingMessage payloads into this shape and
// back without interpreting them.
type Message struct {
	Kind    MessageKind
	SDP     string
	ICE     string
	Bytes   []byte
}

// MessageKind distinguishes what an engine Message carries.
type MessageKind int

const (
	MessageOffer MessageKind = iota
	MessageAnswer
	MessageICECandidate
)

// PeerState is reported through the state-change callback.
type PeerState int

const (
	PeerStateConnecting PeerState = iota
	PeerStateConnected
	PeerStateDisconnected
	PeerStateFailed
	PeerStateClosed
)

// DataChannelConfig optionally configures a data channel at session creation.
type DataChannelConfig struct {
	Label   string
	Ordered bool
}

// OutboundMessageFunc is registered via SetCallbacks; the engine invokes it
// whenever it needs to emit SDP/ICE to the remote peer through signaling.
// customData is whatever SetCallbacks was given — for normal sessions this is
// always a *webrtcapp.Session wrapper, never the orchestration context.
type OutboundMessageFunc func(customData interface{}, msg Message)

// StateChangeFunc is registered via SetCallbacks; the engine invokes it when
// a peer connection's state transitions.
type StateChangeFunc func(customData interface{}, state PeerState)

// DataChannelOpenFunc fires when a data channel opens.
type DataChannelOpenFunc func(customData interface{}, channel string)

// DataChannelMessageFunc fires when a data channel message arrives.
type DataChannelMessageFunc func(customData interface{}, channel string, isBinary bool, data []byte)

// Config configures an Engine at Init time.
type Config struct {
	AudioCodec   string
	VideoCodec   string
	ReceiveMedia bool
}

// Engine is the vtable every Peer-Connection Engine adapter implements.
type Engine interface {
	Init(ctx context.Context, cfg Config) error
	Free() error

	// CreateSession is unused in bridge mode, where the core never builds a
	// per-peer session and instead calls BridgeSender directly.
	CreateSession(ctx context.Context, peerID string, isInitiator bool, dc *DataChannelConfig) (Session, error)
	DestroySession(sess Session) error

	SetCallbacks(sess Session, customData interface{}, onOutbound OutboundMessageFunc, onState StateChangeFunc) error
	SendMessage(sess Session, msg Message) error
	SetICEServers(servers []ICEServer) error

	// Optional entry points. Implementations that do not support them
	// return ErrNotImplemented-equivalent (false, nil) via the ok return.
	SetDataChannelCallbacks(sess Session, onOpen DataChannelOpenFunc, onMessage DataChannelMessageFunc, customData interface{}) (ok bool, err error)
	SendDataChannelMessage(sess Session, channel string, isBinary bool, data []byte) (ok bool, err error)
}

// ICEServer mirrors the core's ICE Server Record.
type ICEServer struct {
	URLs       string
	Username   string
	Credential string
}

// BridgeSender is an optional narrower interface a bridge-mode engine
// implements: send raw signaling payloads with no session concept at all.
// This is a distinct vtable slot rather than reusing SendMessage(nil, ...)
// with the context passed off as custom data.
type BridgeSender interface {
	SendBridgeMessage(msg Message) error
}
