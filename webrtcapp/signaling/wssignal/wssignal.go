// Package wssignal is a reference Signaling Transport adapter built on
// gorilla/websocket, carrying
// OFFER/ANSWER/ICE_CANDIDATE/ICE_SERVER_UPDATE/GO_AWAY/STATUS/ERROR messages
// over a ping/pong-keepalived read/write pump pair.
package wssignal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // comfortably under pongWait
)

// wireMessage is the JSON envelope sent over the socket.
type wireMessage struct {
	Type          string `json:"type"`
	PeerClientID  string `json:"peer_client_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       string `json:"payload,omitempty"`
	Version       int    `json:"version,omitempty"`
}

var typeNames = map[signaling.MessageType]string{
	signaling.MessageOffer:           "offer",
	signaling.MessageAnswer:          "answer",
	signaling.MessageICECandidate:    "ice_candidate",
	signaling.MessageICEServerUpdate: "ice_server_update",
	signaling.MessageGoAway:          "go_away",
	signaling.MessageStatus:          "status",
	signaling.MessageError:           "error",
}

var namesToType = func() map[string]signaling.MessageType {
	m := make(map[string]signaling.MessageType, len(typeNames))
	for k, v := range typeNames {
		m[v] = k
	}
	return m
}()

// Transport implements signaling.Transport over a single websocket endpoint.
// One Transport corresponds to one signaling channel connection, matching
// the scope of the core's signaling collaborator (not a multi-room hub).
type Transport struct {
	endpoint string

	mu           sync.Mutex
	conn         *websocket.Conn
	send         chan []byte
	customData   interface{}
	onMessage    signaling.MessageReceivedFunc
	onState      signaling.StateChangedFunc
	onError      signaling.ErrorFunc
	onICEUpdate  signaling.ICEUpdateFunc
	iceUpdateUD  interface{}
	closed       chan struct{}
	iceServers   []signaling.ICEServer

	turnSource      *TURNCredentialSource
	refreshInterval time.Duration
	lastTURNFetch   time.Time
}

// New constructs a Transport that will dial endpoint on Connect.
func New(endpoint string) *Transport {
	return &Transport{endpoint: endpoint}
}

func (t *Transport) Init(ctx context.Context, cfg signaling.Config) error {
	if cfg.Endpoint != "" {
		t.endpoint = cfg.Endpoint
	}
	return nil
}

func (t *Transport) Free() error {
	return t.Disconnect()
}

func (t *Transport) Connect(ctx context.Context) error {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return fmt.Errorf("wssignal: invalid endpoint: %w", err)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if t.onError != nil {
			t.onError(t.customData, signaling.ErrorConnectionLost, err.Error())
		}
		return fmt.Errorf("wssignal: dial %s: %w", t.endpoint, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.send = make(chan []byte, 256)
	t.closed = make(chan struct{})
	t.mu.Unlock()

	go t.writePump()
	go t.readPump()

	if t.onState != nil {
		t.onState(t.customData, signaling.StateConnected)
	}
	return nil
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	select {
	case <-closed:
	default:
		close(closed)
	}
	err := conn.Close()
	if t.onState != nil {
		t.onState(t.customData, signaling.StateDisconnected)
	}
	return err
}

func (t *Transport) SendMessage(msg signaling.Message) error {
	t.mu.Lock()
	ch := t.send
	t.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("wssignal: not connected")
	}

	wm := wireMessage{
		Type:          typeNames[msg.Type],
		PeerClientID:  msg.PeerClientID,
		CorrelationID: msg.CorrelationID,
		Payload:       string(msg.Payload),
		Version:       msg.Version,
	}
	data, err := json.Marshal(wm)
	if err != nil {
		return fmt.Errorf("wssignal: marshal: %w", err)
	}

	select {
	case ch <- data:
		return nil
	default:
		return fmt.Errorf("wssignal: send buffer full")
	}
}

func (t *Transport) SetCallbacks(customData interface{}, onMessage signaling.MessageReceivedFunc, onState signaling.StateChangedFunc, onError signaling.ErrorFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.customData = customData
	t.onMessage = onMessage
	t.onState = onState
	t.onError = onError
	return nil
}

func (t *Transport) GetICEServers() ([]signaling.ICEServer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]signaling.ICEServer, len(t.iceServers))
	copy(out, t.iceServers)
	return out, nil
}

// SetICEServers lets the embedding application (or a TURN credential
// refresher) push a fresh ICE server list; wssignal has no rendezvous
// service of its own to fetch them from.
func (t *Transport) SetICEServers(servers []signaling.ICEServer) {
	t.mu.Lock()
	t.iceServers = servers
	cb := t.onICEUpdate
	ud := t.iceUpdateUD
	t.mu.Unlock()
	if cb != nil {
		cb(ud, len(servers))
	}
}

func (t *Transport) SetICEUpdateCallback(customData interface{}, cb signaling.ICEUpdateFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onICEUpdate = cb
	t.iceUpdateUD = customData
	return nil
}

func (t *Transport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	t.mu.Lock()
	conn := t.conn
	ch := t.send
	t.mu.Unlock()

	for {
		select {
		case msg, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-t.closed:
			return
		}
	}
}

func (t *Transport) readPump() {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	defer func() {
		t.mu.Lock()
		onState := t.onState
		cd := t.customData
		t.mu.Unlock()
		if onState != nil {
			onState(cd, signaling.StateDisconnected)
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			onErr, cd := t.onError, t.customData
			t.mu.Unlock()
			if onErr != nil {
				onErr(cd, signaling.ErrorConnectionLost, err.Error())
			}
			return
		}

		var wm wireMessage
		if err := json.Unmarshal(raw, &wm); err != nil {
			applog.Warn("wssignal: dropping malformed message", map[string]interface{}{"error": err})
			continue
		}
		msgType, ok := namesToType[wm.Type]
		if !ok {
			applog.Info("wssignal: dropping unknown message type", map[string]interface{}{"type": wm.Type})
			continue
		}

		correlationID := wm.CorrelationID
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		t.mu.Lock()
		onMsg, cd := t.onMessage, t.customData
		t.mu.Unlock()
		if onMsg != nil {
			onMsg(cd, signaling.Message{
				Type:          msgType,
				PeerClientID:  wm.PeerClientID,
				CorrelationID: correlationID,
				Payload:       []byte(wm.Payload),
				Version:       wm.Version,
			})
		}
	}
}

// SetRoleType implements the optional signaling.RoleSetter entry point; for
// wssignal this is purely informational bookkeeping used in log lines, since
// the wire protocol itself is role-agnostic.
func (t *Transport) SetRoleType(role int) error {
	applog.Info("wssignal: role set", map[string]interface{}{"role": role})
	return nil
}

// ServeHTTP upgrades an inbound connection, letting wssignal also act as the
// signaling server endpoint a Master process listens on.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Error("wssignal: upgrade failed", err, nil)
		return
	}

	t.mu.Lock()
	t.conn = conn
	t.send = make(chan []byte, 256)
	t.closed = make(chan struct{})
	t.mu.Unlock()

	go t.writePump()
	if t.onState != nil {
		t.onState(t.customData, signaling.StateConnected)
	}
	t.readPump()
}
