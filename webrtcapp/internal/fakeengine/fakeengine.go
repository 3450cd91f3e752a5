// Package fakeengine is an in-memory engine.Engine double used by the core's
// own tests: a hand-written fake rather than a mocking-framework generated
// one, since this call surface is small enough to implement directly.
package fakeengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
)

type call struct {
	Method string
	PeerID string
}

type fakeSession struct {
	peerID      string
	isInitiator bool
	customData  interface{}
	onOutbound  engine.OutboundMessageFunc
	onState     engine.StateChangeFunc
}

// Engine records every call it receives so tests can assert call order and
// counts without a mocking framework.
type Engine struct {
	mu sync.Mutex

	FailCreateSession bool
	FailSendMessage   map[string]bool // peerID -> fail

	Calls    []call
	Sessions map[string]*fakeSession

	ICEServers []engine.ICEServer
}

func New() *Engine {
	return &Engine{
		Sessions:        make(map[string]*fakeSession),
		FailSendMessage: make(map[string]bool),
	}
}

func (e *Engine) Init(ctx context.Context, cfg engine.Config) error { return nil }
func (e *Engine) Free() error                                       { return nil }

func (e *Engine) CreateSession(ctx context.Context, peerID string, isInitiator bool, dc *engine.DataChannelConfig) (engine.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, call{"CreateSession", peerID})
	if e.FailCreateSession {
		return nil, fmt.Errorf("fakeengine: create_session forced failure")
	}
	s := &fakeSession{peerID: peerID, isInitiator: isInitiator}
	e.Sessions[peerID] = s
	return s, nil
}

func (e *Engine) DestroySession(sess engine.Session) error {
	s := sess.(*fakeSession)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, call{"DestroySession", s.peerID})
	delete(e.Sessions, s.peerID)
	return nil
}

// SetCallbacks installs the callbacks and, for a viewer-initiated session,
// simulates the engine auto-generating and emitting the initial OFFER —
// mirroring the real pionengine adapter's pendingInitialOffer mechanism.
func (e *Engine) SetCallbacks(sess engine.Session, customData interface{}, onOutbound engine.OutboundMessageFunc, onState engine.StateChangeFunc) error {
	s := sess.(*fakeSession)
	e.mu.Lock()
	s.customData = customData
	s.onOutbound = onOutbound
	s.onState = onState
	isInitiator := s.isInitiator
	e.mu.Unlock()
	if isInitiator && onOutbound != nil {
		onOutbound(customData, engine.Message{Kind: engine.MessageOffer, SDP: "v=0 fake-offer"})
	}
	return nil
}

// SendMessage records the call and, for an inbound OFFER, simulates the
// engine auto-generating and emitting an ANSWER through the outbound
// callback — mirroring the real pionengine adapter's CreateAnswer step.
func (e *Engine) SendMessage(sess engine.Session, msg engine.Message) error {
	s := sess.(*fakeSession)
	e.mu.Lock()
	e.Calls = append(e.Calls, call{"SendMessage", s.peerID})
	fail := e.FailSendMessage[s.peerID]
	onOutbound, cd := s.onOutbound, s.customData
	e.mu.Unlock()
	if fail {
		return fmt.Errorf("fakeengine: send_message forced failure for %s", s.peerID)
	}
	if msg.Kind == engine.MessageOffer && onOutbound != nil {
		onOutbound(cd, engine.Message{Kind: engine.MessageAnswer, SDP: "v=0 fake-answer"})
	}
	return nil
}

func (e *Engine) SetICEServers(servers []engine.ICEServer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ICEServers = servers
	return nil
}

func (e *Engine) SetDataChannelCallbacks(sess engine.Session, onOpen engine.DataChannelOpenFunc, onMessage engine.DataChannelMessageFunc, customData interface{}) (bool, error) {
	return true, nil
}

func (e *Engine) SendDataChannelMessage(sess engine.Session, channel string, isBinary bool, data []byte) (bool, error) {
	return true, nil
}

// CallCountFor returns how many times method was called for peerID.
func (e *Engine) CallCountFor(method, peerID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.Calls {
		if c.Method == method && c.PeerID == peerID {
			n++
		}
	}
	return n
}

// SendMessageOrderFor returns the index-ordered sequence of SendMessage
// calls for peerID, for asserting FIFO drain order.
func (e *Engine) SendMessageOrderFor(peerID string) []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var idxs []int
	for i, c := range e.Calls {
		if c.Method == "SendMessage" && c.PeerID == peerID {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
