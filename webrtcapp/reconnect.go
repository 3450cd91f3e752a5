package webrtcapp

import (
	"context"
	"time"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

// backoffTable is the saturating exponential back-off schedule.
var backoffTable = [5]time.Duration{
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	40 * time.Second,
	60 * time.Second,
}

// reconnectState is the Reconnect Controller's state. It lives as a field
// group on Context, never a package-level static, so a single process never
// races two monitor instances against shared globals.
type reconnectState struct {
	retryCount            uint32
	lastRetryTime         time.Time
	connectionStartTime   time.Time
	connectionInProgress  bool
}

func backoffFor(retryCount uint32) time.Duration {
	idx := retryCount
	if idx > uint32(len(backoffTable)-1) {
		idx = uint32(len(backoffTable) - 1)
	}
	return backoffTable[idx]
}

// reconnectStep runs one monitor-cycle iteration of the Reconnect Controller.
// Called with the Context mutex held, matching the single-monitor-task
// design. The mutex is released around the signaling Disconnect/Connect
// calls, whose state and error callbacks take it, and is held again when
// reconnectStep returns; Connect is bounded by ConnectTimeout.
func (c *Context) reconnectStep(now time.Time) {
	rc := &c.reconnect
	timeout := c.cfg.ConnectTimeout

	switch {
	case rc.connectionInProgress && now.Sub(rc.connectionStartTime) >= timeout:
		rc.connectionInProgress = false
		rc.retryCount++
		rc.lastRetryTime = now
		applog.Warn("reconnect: connection attempt timed out", map[string]interface{}{
			"retry_count": rc.retryCount,
		})
		// recreateSignaling stays set; next cycle retries.

	case !rc.connectionInProgress && (rc.lastRetryTime.IsZero() || now.Sub(rc.lastRetryTime) >= backoffFor(rc.retryCount)):
		rc.connectionInProgress = true
		rc.connectionStartTime = now

		c.mu.Unlock()
		_ = c.transport.Disconnect()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := c.transport.Connect(ctx)
		cancel()
		c.mu.Lock()
		if err != nil {
			rc.connectionInProgress = false
			rc.retryCount++
			rc.lastRetryTime = now
			applog.Warn("reconnect: connect failed immediately", map[string]interface{}{
				"retry_count": rc.retryCount, "error": err,
			})
		}

	default:
		// Waiting on back-off or an in-flight attempt; nothing to do.
	}
}

// onSignalingConnected resets the Reconnect Controller and clears
// recreateSignaling. Only this callback clears the flag; the Reconnect
// Controller itself never clears recreate_signaling on its own.
func (c *Context) onSignalingConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recreateSignaling = false
	c.reconnect = reconnectState{}
	c.connected.Store(true)
}

func (c *Context) onSignalingStateChanged(state signaling.State) {
	switch state {
	case signaling.StateConnected:
		c.onSignalingConnected()
		c.events.Raise(Event{ID: EventSignalingConnected})
	case signaling.StateConnecting:
		c.events.Raise(Event{ID: EventSignalingConnecting})
	case signaling.StateDisconnected:
		c.connected.Store(false)
		c.events.Raise(Event{ID: EventSignalingDisconnected})
	}
}

func (c *Context) onSignalingError(category signaling.ErrorCategory, detail string) {
	switch category {
	case signaling.ErrorIceRefreshFailed, signaling.ErrorReconnectFailed,
		signaling.ErrorConnectionLost, signaling.ErrorAuthFailed:
		c.mu.Lock()
		c.recreateSignaling = true
		c.mu.Unlock()
		c.wake()
	}
	c.events.Raise(Event{ID: EventSignalingError, Message: detail})
}
