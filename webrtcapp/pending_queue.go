package webrtcapp

import "time"

// pendingQueue is a per-peer FIFO of orphan ICE candidates that arrived
// before their OFFER/ANSWER, generalized from a single peer's in-memory
// candidate buffer to a registry-wide map.
type pendingQueue struct {
	fingerprint uint32
	createdAt   time.Time
	messages    []SignalingMessage
}

// pendingQueues owns every peer's pendingQueue, keyed by fingerprint(peer_id).
type pendingQueues struct {
	byFP map[uint32]*pendingQueue
	ttl  time.Duration
}

func newPendingQueues(ttl time.Duration) *pendingQueues {
	return &pendingQueues{
		byFP: make(map[uint32]*pendingQueue),
		ttl:  ttl,
	}
}

// enqueue deep-copies msg and appends it to the peer's queue, creating the
// queue if this is the first orphan candidate for that peer. The payload is
// never retained by reference to the caller's buffer.
func (p *pendingQueues) enqueue(fp uint32, msg SignalingMessage) {
	q, ok := p.byFP[fp]
	if !ok {
		q = &pendingQueue{fingerprint: fp, createdAt: time.Now()}
		p.byFP[fp] = q
	}
	q.messages = append(q.messages, msg.clone())
}

// drain removes and returns the queue's messages in FIFO order, deleting the
// queue entirely. Called when an OFFER/ANSWER claims the peer.
func (p *pendingQueues) drain(fp uint32) []SignalingMessage {
	q, ok := p.byFP[fp]
	if !ok {
		return nil
	}
	delete(p.byFP, fp)
	return q.messages
}

// evictExpired frees every queue older than the TTL, preserving the rest. A
// map has no inherent order across its keys; the FIFO order that matters is
// within a queue's messages, which eviction never touches.
func (p *pendingQueues) evictExpired(now time.Time) (evicted int) {
	for fp, q := range p.byFP {
		if now.Sub(q.createdAt) > p.ttl {
			delete(p.byFP, fp)
			evicted++
		}
	}
	return evicted
}

func (p *pendingQueues) count() int { return len(p.byFP) }
