package webrtcapp

import (
	"context"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

// handleInboundMessage is installed as the transport's MessageReceivedFunc
// and is the Signaling Dispatcher's entry point. It is invoked synchronously
// from the transport's own reader task. Over-length bounded strings are
// dropped with a logged warning before the message ever reaches Dispatch.
func (c *Context) handleInboundMessage(customData interface{}, msg signaling.Message) {
	if len(msg.PeerClientID) > MaxSignalingClientIDLen {
		applog.Warn("handleInboundMessage: peer_client_id exceeds bound, dropping message", map[string]interface{}{
			"len": len(msg.PeerClientID), "max": MaxSignalingClientIDLen,
		})
		return
	}
	if len(msg.CorrelationID) > MaxCorrelationIDLen {
		applog.Warn("handleInboundMessage: correlation_id exceeds bound, dropping message", map[string]interface{}{
			"len": len(msg.CorrelationID), "max": MaxCorrelationIDLen, "peer": msg.PeerClientID,
		})
		return
	}

	m := SignalingMessage{
		Type:          MessageType(msg.Type),
		PeerClientID:  msg.PeerClientID,
		CorrelationID: msg.CorrelationID,
		Payload:       msg.Payload,
		Version:       msg.Version,
	}
	c.Dispatch(m)
}

// Dispatch classifies one inbound message and routes it to the matching
// handler. All dispatch is serialized on the context mutex.
func (c *Context) Dispatch(m SignalingMessage) error {
	peerID := m.PeerClientID
	if c.bridge {
		// Bridge mode forwards verbatim and bypasses session management
		// entirely; it never reaches the empty-peer_client_id default below.
		return c.dispatchBridge(m, peerID)
	}

	// An empty peer_client_id in normal mode defaults to "default" with a
	// logged warning, rather than letting dispatchOffer/dispatchAnswer/
	// dispatchICECandidate create or look up a session keyed on "".
	if peerID == "" {
		applog.Warn("dispatch: empty peer_client_id, defaulting", nil)
		peerID = "default"
		m.PeerClientID = peerID
	}

	switch m.Type {
	case MessageOffer:
		return c.dispatchOffer(m)
	case MessageAnswer:
		return c.dispatchAnswer(m)
	case MessageICECandidate:
		return c.dispatchICECandidate(m)
	default:
		applog.Info("dispatch: dropping unhandled message type", map[string]interface{}{
			"type": m.Type, "peer": m.PeerClientID,
		})
		return nil
	}
}

// dispatchBridge forwards to the engine's bridge-sender entry point if the
// engine exposes one. Bridge mode uses a distinct vtable slot, never the
// Context passed off as a session.
func (c *Context) dispatchBridge(m SignalingMessage, peerID string) error {
	bs, ok := c.eng.(engine.BridgeSender)
	if !ok {
		return newErr("webrtcapp.Dispatch", ErrNotImplemented)
	}
	engMsg := toEngineMessage(m)
	if err := bs.SendBridgeMessage(engMsg); err != nil {
		return wrapErr("webrtcapp.Dispatch", ErrEngineSend, peerID, err)
	}
	return nil
}

func toEngineMessage(m SignalingMessage) engine.Message {
	switch m.Type {
	case MessageOffer:
		return engine.Message{Kind: engine.MessageOffer, SDP: string(m.Payload), Bytes: m.Payload}
	case MessageAnswer:
		return engine.Message{Kind: engine.MessageAnswer, SDP: string(m.Payload), Bytes: m.Payload}
	default:
		return engine.Message{Kind: engine.MessageICECandidate, ICE: string(m.Payload), Bytes: m.Payload}
	}
}

// dispatchOffer handles an inbound OFFER: the master side creates a session
// on the first OFFER for a given peer.
func (c *Context) dispatchOffer(m SignalingMessage) error {
	const op = "webrtcapp.Dispatch"
	peerID := m.PeerClientID
	fp := fingerprint(peerID)

	c.mu.Lock()

	if _, exists := c.sessions.getByFingerprint(fp); exists {
		c.mu.Unlock()
		return newErrPeer(op, ErrDuplicateOffer, peerID)
	}

	if c.sessions.count() >= c.cfg.MaxSessions {
		c.pending.drain(fp) // drain and drop without failing the transport
		c.mu.Unlock()
		applog.Warn("dispatch: capacity exceeded, dropping offer", map[string]interface{}{"peer": peerID})
		return newErrPeer(op, ErrCapacityExceeded, peerID)
	}
	c.mu.Unlock()

	handle, err := c.eng.CreateSession(context.Background(), peerID, false, nil)
	if err != nil {
		return wrapErr(op, ErrEngineCreate, peerID, err)
	}

	sess := newSession(peerID, false, handle)

	c.mu.Lock()
	// Custom data is the *Session, never *Context — this is what prevents a
	// callback from ever marking the wrong peer's session terminated.
	if err := c.eng.SetCallbacks(handle, sess, c.onEngineOutbound, c.onEngineStateChange); err != nil {
		c.mu.Unlock()
		_ = c.eng.DestroySession(handle)
		return wrapErr(op, ErrEngineCreate, peerID, err)
	}
	if cbs, ok := c.pendingDataChannelCallbacks[peerID]; ok {
		sess.dataChannel = cbs
		delete(c.pendingDataChannelCallbacks, peerID)
	}
	c.sessions.insert(sess)
	c.mu.Unlock()

	c.ice.trigger(context.Background(), "new session", c.cfg.UseTURN)

	c.events.Raise(Event{ID: EventReceivedOffer, PeerID: peerID})
	c.events.Raise(Event{ID: EventPeerConnectionRequested, PeerID: peerID})

	if err := c.eng.SendMessage(handle, toEngineMessage(m)); err != nil {
		sess.MarkTerminated()
		c.wake()
		return wrapErr(op, ErrEngineSend, peerID, err)
	}

	c.mu.Lock()
	drained := c.pending.drain(fp)
	c.mu.Unlock()
	for _, qm := range drained {
		if err := c.eng.SendMessage(handle, toEngineMessage(qm)); err != nil {
			applog.Error("dispatch: failed sending drained pending message", err, map[string]interface{}{"peer": peerID})
		}
	}

	c.events.Raise(Event{ID: EventSentAnswer, PeerID: peerID})
	return nil
}

// dispatchAnswer handles an inbound ANSWER. It looks up the viewer session by
// peer_id rather than by table position, so a second concurrent viewer can
// never be confused with the first.
func (c *Context) dispatchAnswer(m SignalingMessage) error {
	const op = "webrtcapp.Dispatch"
	peerID := m.PeerClientID
	fp := fingerprint(peerID)

	c.mu.Lock()
	sess, ok := c.sessions.get(peerID)
	c.mu.Unlock()
	if !ok {
		return newErrPeer(op, ErrInvalidState, peerID)
	}

	c.ice.trigger(context.Background(), "answer processing", c.cfg.UseTURN)

	if err := c.eng.SendMessage(sess.engineHandle, toEngineMessage(m)); err != nil {
		sess.MarkTerminated()
		c.wake()
		return wrapErr(op, ErrEngineSend, peerID, err)
	}

	c.mu.Lock()
	drained := c.pending.drain(fp)
	c.mu.Unlock()
	for _, qm := range drained {
		if err := c.eng.SendMessage(sess.engineHandle, toEngineMessage(qm)); err != nil {
			applog.Error("dispatch: failed sending drained pending message", err, map[string]interface{}{"peer": peerID})
		}
	}
	return nil
}

// dispatchICECandidate handles an inbound ICE_CANDIDATE message.
func (c *Context) dispatchICECandidate(m SignalingMessage) error {
	const op = "webrtcapp.Dispatch"
	peerID := m.PeerClientID
	fp := fingerprint(peerID)

	c.mu.Lock()
	sess, ok := c.sessions.get(peerID)
	if !ok {
		c.pending.enqueue(fp, m)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.eng.SendMessage(sess.engineHandle, toEngineMessage(m)); err != nil {
		return wrapErr(op, ErrEngineSend, peerID, err)
	}
	return nil
}

// onEngineOutbound forwards engine-emitted SDP/ICE to the signaling
// transport. customData is always the *Session the engine was configured
// with, never the Context.
func (c *Context) onEngineOutbound(customData interface{}, msg engine.Message) {
	sess, ok := customData.(*Session)
	if !ok {
		applog.Error("onEngineOutbound: custom data is not a *Session", nil, nil)
		return
	}
	out := signaling.Message{
		PeerClientID: sess.PeerID,
		Payload:      msg.Bytes,
	}
	switch msg.Kind {
	case engine.MessageOffer:
		out.Type = signaling.MessageOffer
	case engine.MessageAnswer:
		out.Type = signaling.MessageAnswer
	default:
		out.Type = signaling.MessageICECandidate
	}
	if err := c.transport.SendMessage(out); err != nil {
		applog.Error("onEngineOutbound: send_message failed", err, map[string]interface{}{"peer": sess.PeerID})
		return
	}
	if msg.Kind == engine.MessageOffer {
		c.events.Raise(Event{ID: EventSentOffer, PeerID: sess.PeerID})
	}
}

// onEngineStateChange maps an engine peer-state transition to events and,
// for terminal states, marks the specific session terminated. Because
// customData is always the *Session, failure of one peer can never reach
// another peer's flag.
func (c *Context) onEngineStateChange(customData interface{}, state engine.PeerState) {
	sess, ok := customData.(*Session)
	if !ok {
		applog.Error("onEngineStateChange: custom data is not a *Session", nil, nil)
		return
	}
	switch state {
	case engine.PeerStateConnected:
		c.events.Raise(Event{ID: EventPeerConnected, PeerID: sess.PeerID})
	case engine.PeerStateDisconnected:
		c.events.Raise(Event{ID: EventPeerDisconnected, PeerID: sess.PeerID})
	case engine.PeerStateFailed, engine.PeerStateClosed:
		sess.MarkTerminated()
		c.wake()
		c.events.Raise(Event{ID: EventPeerDisconnected, PeerID: sess.PeerID})
	}
}

// TriggerOffer implements the viewer path: look up or create a session for
// peerID. Reusing an existing session must not create a second one — the
// offer contract is idempotent.
func (c *Context) TriggerOffer(peerID string) error {
	const op = "webrtcapp.TriggerOffer"

	c.mu.Lock()
	if _, exists := c.sessions.get(peerID); exists {
		c.mu.Unlock()
		return nil // idempotent: already have a session, do not re-offer
	}
	if c.sessions.count() >= c.cfg.MaxSessions {
		c.mu.Unlock()
		return newErrPeer(op, ErrCapacityExceeded, peerID)
	}
	c.mu.Unlock()

	handle, err := c.eng.CreateSession(context.Background(), peerID, true, nil)
	if err != nil {
		return wrapErr(op, ErrEngineCreate, peerID, err)
	}
	sess := newSession(peerID, true, handle)

	c.mu.Lock()
	if err := c.eng.SetCallbacks(handle, sess, c.onEngineOutbound, c.onEngineStateChange); err != nil {
		c.mu.Unlock()
		_ = c.eng.DestroySession(handle)
		return wrapErr(op, ErrEngineCreate, peerID, err)
	}
	if cbs, ok := c.pendingDataChannelCallbacks[peerID]; ok {
		sess.dataChannel = cbs
		delete(c.pendingDataChannelCallbacks, peerID)
	}
	c.sessions.insert(sess)
	c.mu.Unlock()

	c.ice.trigger(context.Background(), "trigger_offer", c.cfg.UseTURN)
	c.events.Raise(Event{ID: EventPeerConnectionRequested, PeerID: peerID})

	// The engine auto-generates and emits the OFFER through the outbound
	// callback installed just above (SentOffer is raised from
	// onEngineOutbound); the core does not call SendMessage itself for the
	// viewer path.
	return nil
}

// SetDataChannelCallbacks stores callbacks for future sessions, or applies
// them immediately if a session already exists for peerID.
func (c *Context) SetDataChannelCallbacks(peerID string, onOpen DataChannelOpenCallback, onMessage DataChannelMessageCallback, customData interface{}) error {
	cbs := dataChannelCallbacks{onOpen: onOpen, onMessage: onMessage, customData: customData}

	c.mu.Lock()
	sess, exists := c.sessions.get(peerID)
	if !exists {
		c.pendingDataChannelCallbacks[peerID] = cbs
		c.mu.Unlock()
		return nil
	}
	sess.dataChannel = cbs
	c.mu.Unlock()

	ok, err := c.eng.SetDataChannelCallbacks(sess.engineHandle, func(customData interface{}, channel string) {
		if onOpen != nil {
			onOpen(peerID, channel, customData)
		}
	}, func(customData interface{}, channel string, isBinary bool, data []byte) {
		if onMessage != nil {
			onMessage(peerID, channel, isBinary, data, customData)
		}
	}, cbs.customData)
	if err != nil {
		return wrapErr("webrtcapp.SetDataChannelCallbacks", ErrInternal, peerID, err)
	}
	if !ok {
		return newErrPeer("webrtcapp.SetDataChannelCallbacks", ErrNotImplemented, peerID)
	}
	return nil
}

// SendDataChannelMessage looks up the session and delegates to the engine.
func (c *Context) SendDataChannelMessage(peerID, channel string, isBinary bool, data []byte) error {
	const op = "webrtcapp.SendDataChannelMessage"
	c.mu.Lock()
	sess, ok := c.sessions.get(peerID)
	c.mu.Unlock()
	if !ok {
		return newErrPeer(op, ErrNotFound, peerID)
	}
	ok2, err := c.eng.SendDataChannelMessage(sess.engineHandle, channel, isBinary, data)
	if err != nil {
		return wrapErr(op, ErrEngineSend, peerID, err)
	}
	if !ok2 {
		return newErrPeer(op, ErrNotImplemented, peerID)
	}
	return nil
}
