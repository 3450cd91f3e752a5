package webrtcapp

import "time"

// Role is the session role of this process.
type Role int

const (
	RoleMaster Role = iota
	RoleViewer
)

// MediaKind selects whether the session carries audio+video or video only.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudioVideo
)

// MessageType enumerates the signaling message shapes the Dispatcher classifies.
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

// Bounded-string limits enforced at the signaling boundary.
const (
	MaxSignalingClientIDLen = 256
	MaxCorrelationIDLen     = 256
	MaxICEConfigURILen      = 512
	MaxICEServers           = 16
	DefaultMaxSessions      = 10
)

// SignalingMessage is the generic inbound/outbound message shape. Inbound
// messages are borrowed for the duration of Dispatch; the Dispatcher
// deep-copies anything it needs to retain in a Pending Queue.
type SignalingMessage struct {
	Type          MessageType
	PeerClientID  string
	CorrelationID string
	Payload       []byte
	Version       int
}

// clone returns a deep copy suitable for retention in a Pending Queue.
func (m SignalingMessage) clone() SignalingMessage {
	cp := m
	if m.Payload != nil {
		cp.Payload = make([]byte, len(m.Payload))
		copy(cp.Payload, m.Payload)
	}
	return cp
}

// ICEServer mirrors the public ICE server record shape.
type ICEServer struct {
	URLs       string
	Username   string
	Credential string
}

// Config is the snapshot taken at Init time.
type Config struct {
	Role             Role
	MediaKind        MediaKind
	AudioCodec       string
	VideoCodec       string
	TrickleICE       bool
	UseTURN          bool
	LogLevel         int
	ReceiveMedia     bool
	BridgeMode       bool
	MaxSessions      int
	PendingQueueTTL  time.Duration
	CleanupPeriod    time.Duration
	ConnectTimeout   time.Duration
}

// DefaultConfig returns the common defaults: trickle-ICE on, use-TURN on,
// Master role, codec Opus/H264.
func DefaultConfig() Config {
	return Config{
		Role:            RoleMaster,
		MediaKind:       MediaAudioVideo,
		AudioCodec:      "opus",
		VideoCodec:      "h264",
		TrickleICE:      true,
		UseTURN:         true,
		LogLevel:        3,
		ReceiveMedia:    true,
		BridgeMode:      false,
		MaxSessions:     DefaultMaxSessions,
		PendingQueueTTL: 30 * time.Second,
		CleanupPeriod:   1 * time.Second,
		ConnectTimeout:  15 * time.Second,
	}
}

// EventID enumerates the Event Bus's lifecycle/error events.
type EventID int

const (
	EventInitialized EventID = iota
	EventSignalingConnecting
	EventSignalingConnected
	EventSignalingDisconnected
	EventSignalingError
	EventReceivedOffer
	EventSentAnswer
	EventSentOffer
	EventPeerConnectionRequested
	EventPeerConnected
	EventPeerDisconnected
	EventError
)

// Event is the payload raised through the Event Bus.
type Event struct {
	ID         EventID
	StatusCode int
	PeerID     string
	Message    string
}

// EventCallback is the single subscriber signature for register_event_callback.
type EventCallback func(ev Event, userCtx interface{})

// DataChannelOpenCallback fires when a data channel opens for a session.
type DataChannelOpenCallback func(peerID, channel string, userCtx interface{})

// DataChannelMessageCallback fires when a data channel message is received.
type DataChannelMessageCallback func(peerID, channel string, isBinary bool, data []byte, userCtx interface{})

// dataChannelCallbacks is a pending-configuration object captured for a
// peer_id before that peer's session exists.
type dataChannelCallbacks struct {
	onOpen     DataChannelOpenCallback
	onMessage  DataChannelMessageCallback
	customData interface{}
}
