package wssignal

import (
	"context"
	"time"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

// defaultSTUNURLs is returned immediately by GetICEServerByIdx(0, ...); TURN
// credentials are fetched in the background via turnSource, so the caller
// always gets at least a STUN server without blocking on the TURN fetch.
const defaultSTUNURLs = "stun:stun.l.google.com:19302"

// EnableProgressiveICE attaches a TURN credential source so this Transport
// implements signaling.ProgressiveICESource. Without this call, the core
// falls back to a static STUN server.
func (t *Transport) EnableProgressiveICE(turnSource *TURNCredentialSource, refreshInterval time.Duration) {
	t.mu.Lock()
	t.turnSource = turnSource
	t.refreshInterval = refreshInterval
	t.mu.Unlock()
}

// GetICEServerByIdx implements signaling.ProgressiveICESource. Index 0
// always returns the static STUN server immediately; haveMore signals that a
// TURN credential fetch is scheduled in the background when wantTURN and a
// turnSource are both present.
func (t *Transport) GetICEServerByIdx(ctx context.Context, index int, wantTURN bool) (signaling.ICEServer, bool, error) {
	t.mu.Lock()
	turnSource := t.turnSource
	t.mu.Unlock()

	if index == 0 {
		haveMore := wantTURN && turnSource != nil
		if haveMore {
			go t.fetchTURNInBackground(turnSource)
		}
		return signaling.ICEServer{URLs: defaultSTUNURLs}, haveMore, nil
	}

	if turnSource == nil {
		return signaling.ICEServer{}, false, nil
	}
	return turnSource.IssueICEServer("webrtcapp"), false, nil
}

func (t *Transport) fetchTURNInBackground(turnSource *TURNCredentialSource) {
	server := turnSource.IssueICEServer("webrtcapp")
	if len(server.URLs) > signaling.MaxICEConfigURILen {
		applog.Warn("wssignal: turn server url exceeds bound, dropping", map[string]interface{}{
			"len": len(server.URLs), "max": signaling.MaxICEConfigURILen,
		})
		return
	}

	t.mu.Lock()
	if len(t.iceServers) >= signaling.MaxICEServers {
		applog.Warn("wssignal: ice server count at bound, dropping oldest", map[string]interface{}{
			"max": signaling.MaxICEServers,
		})
		t.iceServers = t.iceServers[1:]
	}
	t.iceServers = append(t.iceServers, server)
	t.lastTURNFetch = time.Now()
	cb := t.onICEUpdate
	ud := t.iceUpdateUD
	count := len(t.iceServers)
	t.mu.Unlock()

	applog.Info("wssignal: background turn fetch complete", nil)
	if cb != nil {
		cb(ud, count)
	}
}

func (t *Transport) RefreshICEConfiguration(ctx context.Context) error {
	t.mu.Lock()
	turnSource := t.turnSource
	t.mu.Unlock()
	if turnSource == nil {
		return nil
	}
	go t.fetchTURNInBackground(turnSource)
	return nil
}

// IsICERefreshNeeded reports whether refreshInterval has elapsed since the
// last successful TURN fetch. On any ambiguity this defaults to true.
func (t *Transport) IsICERefreshNeeded() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.turnSource == nil {
		return true, nil
	}
	if t.refreshInterval == 0 {
		return true, nil
	}
	return time.Since(t.lastTURNFetch) >= t.refreshInterval, nil
}
