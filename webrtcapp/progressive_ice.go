package webrtcapp

import (
	"context"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

// defaultSTUNServer is used when the transport does not implement
// signaling.ProgressiveICESource.
const defaultSTUNServer = "stun:stun.l.google.com:19302"

// progressiveICE seeds STUN immediately, fetches TURN in the background, and
// propagates updates to the engine.
type progressiveICE struct {
	transport signaling.Transport
	eng       engine.Engine
}

func newProgressiveICE(transport signaling.Transport, eng engine.Engine) *progressiveICE {
	return &progressiveICE{transport: transport, eng: eng}
}

// trigger starts ICE server discovery for contextLabel (e.g. "new session",
// "answer processing" — used only for logging).
func (p *progressiveICE) trigger(ctx context.Context, contextLabel string, wantTURN bool) {
	src, ok := p.transport.(signaling.ProgressiveICESource)
	if !ok {
		p.fallbackStatic(contextLabel)
		return
	}

	server, haveMore, err := src.GetICEServerByIdx(ctx, 0, wantTURN)
	if err != nil {
		applog.Warn("progressive ice: GetICEServerByIdx failed, falling back to static stun", map[string]interface{}{
			"context": contextLabel, "error": err,
		})
		p.fallbackStatic(contextLabel)
		return
	}

	if err := p.eng.SetICEServers([]engine.ICEServer{{
		URLs:       server.URLs,
		Username:   server.Username,
		Credential: server.Credential,
	}}); err != nil {
		applog.Error("progressive ice: set_ice_servers failed", err, map[string]interface{}{"context": contextLabel})
	}

	if haveMore {
		applog.Info("progressive ice: background turn fetch scheduled", map[string]interface{}{"context": contextLabel})
	}
}

func (p *progressiveICE) fallbackStatic(contextLabel string) {
	err := p.eng.SetICEServers([]engine.ICEServer{{URLs: defaultSTUNServer}})
	if err != nil {
		applog.Error("progressive ice: static stun fallback failed", err, map[string]interface{}{"context": contextLabel})
		return
	}
	if src, ok := p.transport.(signaling.ProgressiveICESource); ok {
		_ = src.RefreshICEConfiguration(context.Background())
	}
}

// onICEServersUpdated is the callback installed into the transport via
// SetICEUpdateCallback.
func (p *progressiveICE) onICEServersUpdated(newCount int) {
	if newCount == 0 {
		return
	}
	servers, err := p.transport.GetICEServers()
	if err != nil {
		applog.Error("progressive ice: get_ice_servers failed after update", err, nil)
		return
	}

	valid := make([]engine.ICEServer, 0, len(servers))
	for _, s := range servers {
		if s.URLs == "" {
			continue // the signaling layer may leave holes; filter them out
		}
		if len(s.URLs) > MaxICEConfigURILen {
			applog.Warn("progressive ice: ice server url exceeds bound, dropping entry", map[string]interface{}{
				"len": len(s.URLs), "max": MaxICEConfigURILen,
			})
			continue
		}
		if len(valid) >= MaxICEServers {
			applog.Warn("progressive ice: ice server count exceeds bound, truncating", map[string]interface{}{
				"count": len(servers), "max": MaxICEServers,
			})
			break
		}
		valid = append(valid, engine.ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}
	if err := p.eng.SetICEServers(valid); err != nil {
		applog.Error("progressive ice: set_ice_servers failed on update", err, nil)
	}
}

// isICERefreshNeeded defaults to true on any failure.
func (p *progressiveICE) isICERefreshNeeded() bool {
	src, ok := p.transport.(signaling.ProgressiveICESource)
	if !ok {
		return true
	}
	needed, err := src.IsICERefreshNeeded()
	if err != nil {
		return true
	}
	return needed
}
