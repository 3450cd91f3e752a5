package webrtcapp

// registry holds the session table and its secondary fingerprint hash.
// Callers must hold Context.mu before touching any of these fields; the
// registry itself does no locking.
type registry struct {
	// order preserves insertion order; the bounded session count makes a
	// plain slice acceptable here rather than a separate ordered structure.
	order []string
	byID  map[string]*Session
	byFP  map[uint32]string // fingerprint -> peer_id, for the O(1) short-circuit
}

func newRegistry() *registry {
	return &registry{
		byID: make(map[string]*Session),
		byFP: make(map[uint32]string),
	}
}

func (r *registry) count() int { return len(r.order) }

func (r *registry) get(peerID string) (*Session, bool) {
	s, ok := r.byID[peerID]
	return s, ok
}

func (r *registry) getByFingerprint(fp uint32) (*Session, bool) {
	peerID, ok := r.byFP[fp]
	if !ok {
		return nil, false
	}
	return r.get(peerID)
}

func (r *registry) insert(s *Session) {
	fp := fingerprint(s.PeerID)
	r.order = append(r.order, s.PeerID)
	r.byID[s.PeerID] = s
	r.byFP[fp] = s.PeerID
}

func (r *registry) remove(peerID string) {
	s, ok := r.byID[peerID]
	if !ok {
		return
	}
	delete(r.byID, peerID)
	delete(r.byFP, fingerprint(s.PeerID))
	for i, id := range r.order {
		if id == peerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// firstTerminated returns the first session whose terminate flag is set, for
// the monitor's restart-scan-after-mutation reap loop.
func (r *registry) firstTerminated() (*Session, bool) {
	for _, id := range r.order {
		if s := r.byID[id]; s.Terminated() {
			return s, true
		}
	}
	return nil, false
}

// all returns a snapshot slice of sessions in table order, safe to iterate
// without holding the context lock afterward.
func (r *registry) all() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
