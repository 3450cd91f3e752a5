package webrtcapp_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/fakeengine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/faketransport"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

// bridgeFakeEngine extends fakeengine.Engine with engine.BridgeSender, so
// bridge-mode dispatch can be exercised without wiring a real bridge engine.
type bridgeFakeEngine struct {
	*fakeengine.Engine
	mu      sync.Mutex
	Bridged []engine.Message
}

func (b *bridgeFakeEngine) SendBridgeMessage(msg engine.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Bridged = append(b.Bridged, msg)
	return nil
}

func newTestContext(t *testing.T, cfg webrtcapp.Config) (*webrtcapp.Context, *fakeengine.Engine, *faketransport.Transport) {
	t.Helper()
	eng := fakeengine.New()
	transport := faketransport.New()
	ctx, err := webrtcapp.Init(cfg, transport, eng)
	require.NoError(t, err, "init should succeed with valid collaborators")
	return ctx, eng, transport
}

func offerMsg(peerID string) webrtcapp.SignalingMessage {
	return webrtcapp.SignalingMessage{Type: webrtcapp.MessageOffer, PeerClientID: peerID, Payload: []byte("v=0 offer")}
}

func candidateMsg(peerID string) webrtcapp.SignalingMessage {
	return webrtcapp.SignalingMessage{Type: webrtcapp.MessageICECandidate, PeerClientID: peerID, Payload: []byte("candidate:1")}
}

// Master happy path: one offer plus trickled candidates produces exactly one session, one answer, and four forwarded messages.
func TestMasterHappyPathOfferThenCandidates(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, eng, transport := newTestContext(t, cfg)

	require.NoError(t, ctx.Dispatch(offerMsg("peer-A")), "offer dispatch should succeed")
	for i := 0; i < 3; i++ {
		require.NoError(t, ctx.Dispatch(candidateMsg("peer-A")), "candidate %d dispatch should succeed", i)
	}

	assert.Equal(t, 1, eng.CallCountFor("CreateSession", "peer-A"), "exactly one create_session for peer-A")
	assert.Equal(t, 4, eng.CallCountFor("SendMessage", "peer-A"), "engine send_message called 4x for peer-A")
	assert.Equal(t, 1, transport.OutboundCount(), "exactly one outbound message (the answer)")
}

// Orphan candidates arriving before the offer must be queued and all
// drained into the engine once the offer creates the session.
func TestOrphanCandidatesQueueUntilOfferArrives(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, eng, _ := newTestContext(t, cfg)

	require.NoError(t, ctx.Dispatch(candidateMsg("peer-B")))
	require.NoError(t, ctx.Dispatch(candidateMsg("peer-B")))
	require.NoError(t, ctx.Dispatch(offerMsg("peer-B")))

	assert.Equal(t, 1, eng.CallCountFor("CreateSession", "peer-B"), "exactly one session created")
	// offer itself + 2 drained candidates = 3 send_message calls
	assert.Equal(t, 3, eng.CallCountFor("SendMessage", "peer-B"), "offer plus two drained candidates")
}

// Capacity cap: no session/engine call for the peer over max sessions.
func TestCapacityCapRejectsOfferOverMaxSessions(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	cfg.MaxSessions = 2
	ctx, eng, _ := newTestContext(t, cfg)

	require.NoError(t, ctx.Dispatch(offerMsg("peer-D")))
	require.NoError(t, ctx.Dispatch(offerMsg("peer-E")))

	err := ctx.Dispatch(offerMsg("peer-F"))
	require.Error(t, err, "offer over capacity must fail")
	kind, ok := webrtcapp.KindOf(err)
	require.True(t, ok, "error should carry an ErrorKind")
	assert.Equal(t, webrtcapp.ErrCapacityExceeded, kind)

	assert.Equal(t, 0, eng.CallCountFor("CreateSession", "peer-F"), "no create_session call for peer-F")
}

// Duplicate trigger_offer calls for the same peer are idempotent.
func TestDuplicateTriggerOfferIsIdempotent(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, eng, _ := newTestContext(t, cfg)

	require.NoError(t, ctx.TriggerOffer("peer-G"))
	require.NoError(t, ctx.TriggerOffer("peer-G"))

	assert.Equal(t, 1, eng.CallCountFor("CreateSession", "peer-G"), "exactly one create_session(is_initiator=true) call")
}

func TestSentOfferEventRaisedOnce(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, _, _ := newTestContext(t, cfg)

	var sentOffers int
	ctx.RegisterEventCallback(func(ev webrtcapp.Event, _ interface{}) {
		if ev.ID == webrtcapp.EventSentOffer {
			sentOffers++
		}
	}, nil)

	require.NoError(t, ctx.TriggerOffer("peer-G"))
	require.NoError(t, ctx.TriggerOffer("peer-G"))

	assert.Equal(t, 1, sentOffers, "exactly one SentOffer event for duplicate trigger_offer")
}

// DuplicateOffer: a second OFFER for a peer that already has a session fails.
func TestDuplicateOfferRejected(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, _, _ := newTestContext(t, cfg)

	require.NoError(t, ctx.Dispatch(offerMsg("peer-H")))
	err := ctx.Dispatch(offerMsg("peer-H"))
	require.Error(t, err)
	kind, ok := webrtcapp.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, webrtcapp.ErrDuplicateOffer, kind)
}

// Answer is looked up by peer_id, not table position: a second viewer
// session must not confuse the first.
func TestAnswerLookupByPeerID(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	cfg.Role = webrtcapp.RoleViewer
	ctx, eng, _ := newTestContext(t, cfg)

	require.NoError(t, ctx.TriggerOffer("peer-X"))
	require.NoError(t, ctx.TriggerOffer("peer-Y"))

	answer := webrtcapp.SignalingMessage{Type: webrtcapp.MessageAnswer, PeerClientID: "peer-Y", Payload: []byte("v=0 answer")}
	require.NoError(t, ctx.Dispatch(answer))

	// SendMessage for the answer must have gone to peer-Y's session, not
	// peer-X's — CreateSession(1) + SendMessage(1, the answer) for peer-Y.
	assert.Equal(t, 1, eng.CallCountFor("SendMessage", "peer-Y"), "answer routed to peer-Y, not peer-X")
	assert.Equal(t, 0, eng.CallCountFor("SendMessage", "peer-X"), "peer-X unaffected by peer-Y's answer")
}

// Bijection: the secondary fingerprint hash agrees with the session table.
func TestSessionTableFingerprintBijection(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, _, _ := newTestContext(t, cfg)

	require.NoError(t, ctx.Dispatch(offerMsg("peer-Z")))
	// No direct accessor is exported for the internal table; the behavioral
	// proxy is that a second OFFER for the same peer is rejected as a
	// duplicate, which can only happen if the fingerprint lookup found the
	// table entry.
	err := ctx.Dispatch(offerMsg("peer-Z"))
	require.Error(t, err)
	kind, _ := webrtcapp.KindOf(err)
	assert.Equal(t, webrtcapp.ErrDuplicateOffer, kind)
}

func TestTerminateIsIdempotent(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, _, _ := newTestContext(t, cfg)
	require.NoError(t, ctx.Run())

	assert.NoError(t, ctx.Terminate())
	assert.NoError(t, ctx.Terminate(), "terminate must be safe to call twice")
}

// An empty peer_client_id in normal mode must be defaulted to "default"
// before it reaches dispatchOffer, never left as the session's peer_id.
func TestEmptyPeerClientIDDefaultsInNormalMode(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	ctx, eng, _ := newTestContext(t, cfg)

	require.NoError(t, ctx.Dispatch(offerMsg("")))

	assert.Equal(t, 0, eng.CallCountFor("CreateSession", ""), "no session ever keyed on empty peer_id")
	assert.Equal(t, 1, eng.CallCountFor("CreateSession", "default"), "empty peer_client_id defaults to \"default\"")
}

// Bridge mode forwards verbatim and never applies the "default" substitution,
// since it has no session to key the fallback against.
func TestEmptyPeerClientIDNotDefaultedInBridgeMode(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	cfg.BridgeMode = true
	eng := &bridgeFakeEngine{Engine: fakeengine.New()}
	transport := faketransport.New()
	ctx, err := webrtcapp.Init(cfg, transport, eng)
	require.NoError(t, err)

	require.NoError(t, ctx.Dispatch(offerMsg("")))

	require.Len(t, eng.Bridged, 1, "bridge mode forwards the message even with an empty peer_client_id")
	assert.Equal(t, 0, eng.CallCountFor("CreateSession", "default"), "bridge mode never creates a session, defaulted or otherwise")
}

// An over-length peer_client_id is dropped with a logged warning at the
// transport boundary, before Dispatch ever sees it.
func TestHandleInboundMessageDropsOverLengthPeerClientID(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	_, eng, transport := newTestContext(t, cfg)

	oversized := string(make([]byte, webrtcapp.MaxSignalingClientIDLen+1))
	transport.Deliver(signaling.Message{
		Type:         signaling.MessageOffer,
		PeerClientID: oversized,
		Payload:      []byte("v=0 offer"),
	})

	assert.Equal(t, 0, eng.CallCountFor("CreateSession", oversized), "over-length peer_client_id never reaches CreateSession")
}

// An over-length correlation_id is likewise dropped with a logged warning.
func TestHandleInboundMessageDropsOverLengthCorrelationID(t *testing.T) {
	cfg := webrtcapp.DefaultConfig()
	_, eng, transport := newTestContext(t, cfg)

	oversized := string(make([]byte, webrtcapp.MaxCorrelationIDLen+1))
	transport.Deliver(signaling.Message{
		Type:          signaling.MessageOffer,
		PeerClientID:  "peer-overlong-corr",
		CorrelationID: oversized,
		Payload:       []byte("v=0 offer"),
	})

	assert.Equal(t, 0, eng.CallCountFor("CreateSession", "peer-overlong-corr"), "message with an over-length correlation_id never reaches CreateSession")
}
