package webrtcapp

import (
	"hash/crc32"
	"sync/atomic"
	"time"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
)

// fingerprint is a fast-equality short-circuit hash of a peer_id: the full
// peer_id string always remains the authoritative key, with the CRC-32 used
// only to shortcut equality checks in the secondary index.
func fingerprint(peerID string) uint32 {
	return crc32.ChecksumIEEE([]byte(peerID))
}

// Session is the core's per-peer record.
type Session struct {
	PeerID       string
	IsInitiator  bool
	terminate    atomic.Bool
	firstFrame   bool
	offerRecvAt  time.Time
	engineHandle engine.Session

	dataChannel dataChannelCallbacks

	shutdownCallback func(peerID string, userCtx interface{})
	shutdownUserCtx  interface{}
}

func newSession(peerID string, isInitiator bool, h engine.Session) *Session {
	return &Session{
		PeerID:      peerID,
		IsInitiator: isInitiator,
		offerRecvAt: time.Now(),
		engineHandle: h,
	}
}

// Terminated reports whether the monitor should reap this session.
func (s *Session) Terminated() bool { return s.terminate.Load() }

// MarkTerminated sets the session's terminate flag. Safe to call from any
// goroutine (engine state callback, dispatcher failure path, or free).
func (s *Session) MarkTerminated() { s.terminate.Store(true) }
