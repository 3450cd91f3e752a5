// Package webrtcapp implements the WebRTC application orchestration core: the
// subsystem that correlates asynchronous signaling messages with per-peer
// session state, drives each session through offer/answer and ICE
// negotiation, and exposes a stable outward API for data-channel traffic and
// lifecycle events.
package webrtcapp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

// Context is the typed handle returned from Init. There is no package-level
// singleton state; every public API call takes its Context explicitly.
type Context struct {
	cfg Config

	transport signaling.Transport
	eng       engine.Engine
	bridge    bool

	// mu guards sessions, pending, reconnect, recreateSignaling, and
	// pendingDataChannelCallbacks. It is a single non-recursive mutex;
	// Dispatch and the Monitor serialize on it.
	mu      sync.Mutex
	sessions *registry
	pending  *pendingQueues
	reconnect reconnectState
	recreateSignaling bool

	// pendingDataChannelCallbacks holds callbacks registered for a peer_id
	// before that peer's session exists.
	pendingDataChannelCallbacks map[string]dataChannelCallbacks

	ice *progressiveICE

	events *eventBus

	interrupted   atomic.Bool
	appTerminate  atomic.Bool
	connected     atomic.Bool

	runOnce   sync.Once
	running   atomic.Bool
	cancel    context.CancelFunc
	wakeCh    chan struct{}
	monitorWG sync.WaitGroup
}

// Init creates a Context from cfg and the two mandatory collaborators. It
// fails with ErrNullArg if either is nil. Bridge mode is controlled by
// cfg.BridgeMode directly, rather than inferred from whether the engine
// implements CreateSession meaningfully — Go interfaces have no
// null-function-pointer sentinel to detect structurally.
func Init(cfg Config, transport signaling.Transport, eng engine.Engine) (*Context, error) {
	const op = "webrtcapp.Init"
	if transport == nil || eng == nil {
		return nil, newErr(op, ErrNullArg)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.PendingQueueTTL <= 0 {
		cfg.PendingQueueTTL = 30 * time.Second
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 1 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.LogLevel < 0 || cfg.LogLevel > 8 {
		return nil, newErr(op, ErrInvalidArg)
	}

	c := &Context{
		cfg:                         cfg,
		transport:                   transport,
		eng:                         eng,
		bridge:                      cfg.BridgeMode,
		sessions:                    newRegistry(),
		pending:                     newPendingQueues(cfg.PendingQueueTTL),
		pendingDataChannelCallbacks: make(map[string]dataChannelCallbacks),
		events:                      newEventBus(),
		wakeCh:                      make(chan struct{}, 1),
	}
	c.ice = newProgressiveICE(transport, eng)

	if err := eng.Init(context.Background(), engine.Config{
		AudioCodec:   cfg.AudioCodec,
		VideoCodec:   cfg.VideoCodec,
		ReceiveMedia: cfg.ReceiveMedia,
	}); err != nil {
		return nil, wrapErr(op, ErrEngineCreate, "", err)
	}

	if err := transport.SetCallbacks(c, c.handleInboundMessage, c.handleSignalingStateWrapper, c.handleSignalingErrorWrapper); err != nil {
		return nil, wrapErr(op, ErrInternal, "", err)
	}
	if src, ok := transport.(signaling.ProgressiveICESource); ok {
		_ = src.SetICEUpdateCallback(c, func(customData interface{}, newCount int) {
			if ctx, ok := customData.(*Context); ok {
				ctx.ice.onICEServersUpdated(newCount)
			}
		})
	}

	c.events.Raise(Event{ID: EventInitialized})
	return c, nil
}

// handleSignalingStateWrapper adapts the signaling.StateChangedFunc shape
// (which passes customData back) to the Context method.
func (c *Context) handleSignalingStateWrapper(customData interface{}, state signaling.State) {
	c.onSignalingStateChanged(state)
}

func (c *Context) handleSignalingErrorWrapper(customData interface{}, category signaling.ErrorCategory, detail string) {
	c.onSignalingError(category, detail)
}

// Run spawns the Monitor Task and returns once it is registered; it does not
// block the caller.
func (c *Context) Run() error {
	const op = "webrtcapp.Run"
	if c.appTerminate.Load() {
		return newErr(op, ErrInvalidState)
	}
	if !c.running.CompareAndSwap(false, true) {
		return newErr(op, ErrInvalidState)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.monitorWG.Add(1)
	go c.monitorLoop(ctx)
	return nil
}

// Terminate is idempotent: it sets app_terminate, disconnects signaling,
// destroys every session, and frees the engine and transport.
func (c *Context) Terminate() error {
	c.runOnce.Do(func() {
		c.appTerminate.Store(true)
		if c.cancel != nil {
			c.cancel()
		}
		c.wake()
		c.monitorWG.Wait()

		_ = c.transport.Disconnect()
		_ = c.transport.Free()

		c.mu.Lock()
		for _, s := range c.sessions.all() {
			_ = c.eng.DestroySession(s.engineHandle)
		}
		c.mu.Unlock()
		_ = c.eng.Free()
	})
	return nil
}

func (c *Context) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// SetRole mutates the configuration snapshot.
func (c *Context) SetRole(r Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r != RoleMaster && r != RoleViewer {
		return newErr("webrtcapp.SetRole", ErrInvalidArg)
	}
	c.cfg.Role = r
	return nil
}

// SetICEConfig toggles trickle-ICE and TURN usage.
func (c *Context) SetICEConfig(trickleICE, useTURN bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.TrickleICE = trickleICE
	c.cfg.UseTURN = useTURN
}

// SetCodecs mutates the audio/video codec names in the configuration snapshot.
func (c *Context) SetCodecs(audio, video string) error {
	if audio == "" || video == "" {
		return newErr("webrtcapp.SetCodecs", ErrInvalidArg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.AudioCodec = audio
	c.cfg.VideoCodec = video
	return nil
}

// SetMediaType mutates the media kind.
func (c *Context) SetMediaType(kind MediaKind) error {
	if kind != MediaVideo && kind != MediaAudioVideo {
		return newErr("webrtcapp.SetMediaType", ErrInvalidArg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MediaKind = kind
	return nil
}

// EnableMediaReception toggles receive-media.
func (c *Context) EnableMediaReception(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.ReceiveMedia = enabled
}

// SetLogLevel validates and stores the log level (0..=8).
func (c *Context) SetLogLevel(level int) error {
	if level < 0 || level > 8 {
		return newErr("webrtcapp.SetLogLevel", ErrInvalidArg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.LogLevel = level
	return nil
}

// RegisterEventCallback atomically installs or clears the single subscriber.
func (c *Context) RegisterEventCallback(cb EventCallback, userCtx interface{}) {
	c.events.Register(cb, userCtx)
}

// IsICERefreshNeeded reports whether the Progressive ICE Controller's
// underlying source considers its cached servers stale. Defaults to true if
// the transport doesn't expose the query or the query itself fails.
func (c *Context) IsICERefreshNeeded() bool {
	return c.ice.isICERefreshNeeded()
}

// GetICEServers proxies to the signaling transport.
func (c *Context) GetICEServers() ([]ICEServer, error) {
	servers, err := c.transport.GetICEServers()
	if err != nil {
		return nil, wrapErr("webrtcapp.GetICEServers", ErrSignalingOther, "", err)
	}
	out := make([]ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}
	return out, nil
}
