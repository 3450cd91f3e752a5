package webrtcapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingQueueFIFODrainOrder(t *testing.T) {
	q := newPendingQueues(30 * time.Second)
	fp := fingerprint("peer-1")

	q.enqueue(fp, SignalingMessage{PeerClientID: "peer-1", Payload: []byte("1")})
	q.enqueue(fp, SignalingMessage{PeerClientID: "peer-1", Payload: []byte("2")})
	q.enqueue(fp, SignalingMessage{PeerClientID: "peer-1", Payload: []byte("3")})

	drained := q.drain(fp)
	require.Len(t, drained, 3)
	assert.Equal(t, []byte("1"), drained[0].Payload)
	assert.Equal(t, []byte("2"), drained[1].Payload)
	assert.Equal(t, []byte("3"), drained[2].Payload)

	// Draining removes the queue entirely.
	assert.Nil(t, q.drain(fp))
}

func TestPendingQueueEnqueueDeepCopiesPayload(t *testing.T) {
	q := newPendingQueues(30 * time.Second)
	fp := fingerprint("peer-1")

	payload := []byte("original")
	q.enqueue(fp, SignalingMessage{PeerClientID: "peer-1", Payload: payload})
	payload[0] = 'X' // mutate the caller's buffer after enqueue

	drained := q.drain(fp)
	require.Len(t, drained, 1)
	assert.Equal(t, []byte("original"), drained[0].Payload, "enqueue must not retain the caller's buffer")
}

func TestPendingQueueEvictExpired(t *testing.T) {
	q := newPendingQueues(30 * time.Second)
	now := time.Now()

	fresh := fingerprint("fresh")
	stale := fingerprint("stale")
	q.enqueue(fresh, SignalingMessage{PeerClientID: "fresh"})
	q.enqueue(stale, SignalingMessage{PeerClientID: "stale"})
	q.byFP[stale].createdAt = now.Add(-31 * time.Second)

	evicted := q.evictExpired(now)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, q.count())
	_, ok := q.byFP[fresh]
	assert.True(t, ok, "queue younger than the TTL must survive eviction")
}

func TestPendingQueueExactTTLBoundaryNotEvicted(t *testing.T) {
	q := newPendingQueues(30 * time.Second)
	now := time.Now()
	fp := fingerprint("peer-1")
	q.enqueue(fp, SignalingMessage{PeerClientID: "peer-1"})
	q.byFP[fp].createdAt = now.Add(-30 * time.Second)

	// Exactly at the TTL boundary (not strictly greater than), the queue
	// must not yet be considered expired.
	evicted := q.evictExpired(now)
	assert.Equal(t, 0, evicted)
}
