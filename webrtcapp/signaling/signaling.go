// Package signaling declares the Signaling Transport interface: the
// pluggable collaborator responsible for the wire protocol to the remote
// rendezvous service, including authentication, framing, and ICE server
// credential delivery. A reference adapter lives in the wssignal subpackage.
package signaling

import "context"

// MessageType mirrors the core's classification so adapters can construct
// Message values without importing the core package.
type MessageType int

const (
	MessageOffer MessageType = iota
	MessageAnswer
	MessageICECandidate
	MessageICEServerUpdate
	MessageGoAway
	MessageStatus
	MessageError
)

// Message is the wire-agnostic signaling payload.
type Message struct {
	Type          MessageType
	PeerClientID  string
	CorrelationID string
	Payload       []byte
	Version       int
}

// State reports the transport's connection lifecycle.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

// ErrorCategory classifies transport errors for the Reconnect Controller.
type ErrorCategory int

const (
	ErrorIceRefreshFailed ErrorCategory = iota
	ErrorReconnectFailed
	ErrorConnectionLost
	ErrorAuthFailed
	ErrorOther
)

// ICEServer mirrors the core's ICE Server Record.
type ICEServer struct {
	URLs       string
	Username   string
	Credential string
}

// Bounded-string limits mirroring the core's, so an adapter can cap its own
// outgoing ICE-server list without importing the core package.
const (
	MaxICEConfigURILen = 512
	MaxICEServers      = 16
)

// Config configures a Transport at Init time.
type Config struct {
	Endpoint string
	Role     int
}

// MessageReceivedFunc delivers one inbound message to the Dispatcher.
type MessageReceivedFunc func(customData interface{}, msg Message)

// StateChangedFunc reports transport connection-state transitions.
type StateChangedFunc func(customData interface{}, state State)

// ErrorFunc reports a classified transport error.
type ErrorFunc func(customData interface{}, category ErrorCategory, detail string)

// ICEUpdateFunc is the optional callback fired when the transport has fresh
// ICE servers available.
type ICEUpdateFunc func(customData interface{}, newCount int)

// Transport is the vtable every Signaling Transport adapter implements.
type Transport interface {
	Init(ctx context.Context, cfg Config) error
	Free() error
	Connect(ctx context.Context) error
	Disconnect() error

	SendMessage(msg Message) error
	SetCallbacks(customData interface{}, onMessage MessageReceivedFunc, onState StateChangedFunc, onError ErrorFunc) error

	GetICEServers() ([]ICEServer, error)
}

// ProgressiveICESource is the optional extension enabling the Progressive
// ICE Controller's background TURN fetch. A Transport that does not
// implement this interface falls back to a static default STUN server.
type ProgressiveICESource interface {
	// GetICEServerByIdx returns the server at index, whether more servers
	// remain to be fetched in the background (haveMore), and an error.
	GetICEServerByIdx(ctx context.Context, index int, wantTURN bool) (server ICEServer, haveMore bool, err error)
	SetICEUpdateCallback(customData interface{}, cb ICEUpdateFunc) error
	RefreshICEConfiguration(ctx context.Context) error
	IsICERefreshNeeded() (bool, error)
}

// RoleSetter is the optional set_role_type entry point.
type RoleSetter interface {
	SetRoleType(role int) error
}
