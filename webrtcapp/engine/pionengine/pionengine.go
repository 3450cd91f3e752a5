// Package pionengine is a reference Peer-Connection Engine adapter built on
// pion/webrtc/v4: codec registration, interceptor wiring, and per-peer
// connection setup.
package pionengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
)

// Engine implements engine.Engine using real pion/webrtc peer connections.
type Engine struct {
	api *webrtc.API

	mu       sync.Mutex
	sessions map[*session]struct{}

	iceServers []webrtc.ICEServer
}

// New constructs an Engine; call Init before use.
func New() *Engine {
	return &Engine{sessions: make(map[*session]struct{})}
}

// Init registers H264 (PT 96) and Opus (PT 111) codecs with RTCP feedback
// (nack, pli, goog-remb) and wires pion's default interceptor registry
// (NACK among them) into every session.
func (e *Engine) Init(ctx context.Context, cfg engine.Config) error {
	m := &webrtc.MediaEngine{}

	videoRTCPFeedback := []webrtc.RTCPFeedback{
		{Type: "goog-remb"}, {Type: "ccm", Parameter: "fir"},
		{Type: "nack"}, {Type: "nack", Parameter: "pli"},
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType: webrtc.MimeTypeH264, ClockRate: 90000, Channels: 0,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			RTCPFeedback: videoRTCPFeedback,
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return fmt.Errorf("pionengine: register h264: %w", err)
	}

	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2,
			SDPFmtpLine:  "minptime=10;useinbandfec=1",
			RTCPFeedback: []webrtc.RTCPFeedback{{Type: "nack"}},
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return fmt.Errorf("pionengine: register opus: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return fmt.Errorf("pionengine: register interceptors: %w", err)
	}

	e.api = webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i))
	return nil
}

func (e *Engine) Free() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for s := range e.sessions {
		_ = s.pc.Close()
	}
	e.sessions = make(map[*session]struct{})
	return nil
}

// session wraps one *webrtc.PeerConnection plus the strongly-typed identity
// the core attaches as custom data — never the engine or the context itself.
type session struct {
	peerID      string
	isInitiator bool
	pc          *webrtc.PeerConnection

	mu                  sync.Mutex
	customData          interface{}
	onOutbound          engine.OutboundMessageFunc
	onState             engine.StateChangeFunc
	dataChannel         *webrtc.DataChannel
	pendingInitialOffer *webrtc.SessionDescription
}

func (e *Engine) CreateSession(ctx context.Context, peerID string, isInitiator bool, dc *engine.DataChannelConfig) (engine.Session, error) {
	pcCfg := webrtc.Configuration{ICEServers: e.iceServers}
	pc, err := e.api.NewPeerConnection(pcCfg)
	if err != nil {
		return nil, fmt.Errorf("pionengine: new peer connection for %s: %w", peerID, err)
	}

	s := &session{peerID: peerID, isInitiator: isInitiator, pc: pc}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		applog.Warn("pionengine: add video transceiver failed", map[string]interface{}{"peer": peerID, "error": err})
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		applog.Warn("pionengine: add audio transceiver failed", map[string]interface{}{"peer": peerID, "error": err})
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		s.mu.Lock()
		cb, cd := s.onOutbound, s.customData
		s.mu.Unlock()
		if cb != nil {
			cb(cd, engine.Message{Kind: engine.MessageICECandidate, ICE: cand.ToJSON().Candidate, Bytes: []byte(cand.ToJSON().Candidate)})
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, recv *webrtc.RTPReceiver) {
		go e.relayTrackKeyframes(s, track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.mu.Lock()
		cb, cd := s.onState, s.customData
		s.mu.Unlock()
		if cb == nil {
			return
		}
		switch state {
		case webrtc.PeerConnectionStateConnected:
			cb(cd, engine.PeerStateConnected)
		case webrtc.PeerConnectionStateDisconnected:
			cb(cd, engine.PeerStateDisconnected)
		case webrtc.PeerConnectionStateFailed:
			cb(cd, engine.PeerStateFailed)
		case webrtc.PeerConnectionStateClosed:
			cb(cd, engine.PeerStateClosed)
		}
	})

	if isInitiator {
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("pionengine: create offer for %s: %w", peerID, err)
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("pionengine: set local description for %s: %w", peerID, err)
		}
		// Outbound callback is installed by SetCallbacks, called right
		// after CreateSession returns, so the offer is kept on the session
		// and SetCallbacks emits it rather than emitting here.
		s.pendingInitialOffer = pc.LocalDescription()
	}

	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()

	return s, nil
}

func (e *Engine) DestroySession(sess engine.Session) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("pionengine: destroy_session: not a pionengine session")
	}
	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()
	return s.pc.Close()
}

func (e *Engine) SetCallbacks(sess engine.Session, customData interface{}, onOutbound engine.OutboundMessageFunc, onState engine.StateChangeFunc) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("pionengine: set_callbacks: not a pionengine session")
	}
	s.mu.Lock()
	s.customData = customData
	s.onOutbound = onOutbound
	s.onState = onState
	pending := s.pendingInitialOffer
	s.pendingInitialOffer = nil
	s.mu.Unlock()

	if pending != nil && onOutbound != nil {
		onOutbound(customData, engine.Message{Kind: engine.MessageOffer, SDP: pending.SDP, Bytes: []byte(pending.SDP)})
	}
	return nil
}

func (e *Engine) SendMessage(sess engine.Session, msg engine.Message) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("pionengine: send_message: not a pionengine session")
	}
	switch msg.Kind {
	case engine.MessageOffer:
		if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP}); err != nil {
			return fmt.Errorf("pionengine: set remote offer for %s: %w", s.peerID, err)
		}
		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("pionengine: create answer for %s: %w", s.peerID, err)
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("pionengine: set local answer for %s: %w", s.peerID, err)
		}
		s.mu.Lock()
		cb, cd := s.onOutbound, s.customData
		s.mu.Unlock()
		if cb != nil {
			cb(cd, engine.Message{Kind: engine.MessageAnswer, SDP: answer.SDP, Bytes: []byte(answer.SDP)})
		}
		return nil
	case engine.MessageAnswer:
		return s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP})
	default:
		return s.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: msg.ICE})
	}
}

func (e *Engine) SetICEServers(servers []engine.ICEServer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		ice := webrtc.ICEServer{URLs: []string{s.URLs}}
		if s.Username != "" {
			ice.Username = s.Username
			ice.Credential = s.Credential
		}
		out = append(out, ice)
	}
	e.iceServers = out
	return nil
}

func (e *Engine) SetDataChannelCallbacks(sess engine.Session, onOpen engine.DataChannelOpenFunc, onMessage engine.DataChannelMessageFunc, customData interface{}) (bool, error) {
	s, ok := sess.(*session)
	if !ok {
		return false, fmt.Errorf("pionengine: set_data_channel_callbacks: not a pionengine session")
	}
	s.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		s.mu.Lock()
		s.dataChannel = dc
		s.mu.Unlock()
		dc.OnOpen(func() {
			if onOpen != nil {
				onOpen(customData, dc.Label())
			}
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			if onMessage != nil {
				onMessage(customData, dc.Label(), !msg.IsString, msg.Data)
			}
		})
	})
	return true, nil
}

func (e *Engine) SendDataChannelMessage(sess engine.Session, channel string, isBinary bool, data []byte) (bool, error) {
	s, ok := sess.(*session)
	if !ok {
		return false, fmt.Errorf("pionengine: send_data_channel_message: not a pionengine session")
	}
	s.mu.Lock()
	dc := s.dataChannel
	s.mu.Unlock()
	if dc == nil {
		return false, fmt.Errorf("pionengine: no data channel open for %s", s.peerID)
	}
	if isBinary {
		return true, dc.Send(data)
	}
	return true, dc.SendText(string(data))
}
