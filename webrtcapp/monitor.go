package webrtcapp

import (
	"context"
	"time"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
)

// monitorLoop is the single long-lived Monitor Task: it runs until
// app_terminate, reaping terminated sessions, driving the Reconnect
// Controller, and evicting expired Pending Queues. The reap scan restarts
// after each mutation to avoid iterator invalidation.
func (c *Context) monitorLoop(ctx context.Context) {
	defer c.monitorWG.Done()

	ticker := time.NewTicker(c.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		if c.appTerminate.Load() {
			return
		}

		c.reapTerminatedSessions()

		c.mu.Lock()
		needsReconnect := c.recreateSignaling
		c.mu.Unlock()
		if needsReconnect {
			c.mu.Lock()
			c.reconnectStep(time.Now())
			c.mu.Unlock()
		}

		c.evictExpiredPending()

		select {
		case <-ctx.Done():
			return
		case <-c.wakeCh:
		case <-ticker.C:
		}
	}
}

// reapTerminatedSessions removes every session with terminate_flag=true,
// restarting the scan after each removal.
func (c *Context) reapTerminatedSessions() {
	for {
		c.mu.Lock()
		sess, found := c.sessions.firstTerminated()
		if !found {
			c.mu.Unlock()
			return
		}
		c.sessions.remove(sess.PeerID)
		c.mu.Unlock()

		if err := c.eng.DestroySession(sess.engineHandle); err != nil {
			applog.Error("monitor: destroy_session failed", err, map[string]interface{}{"peer": sess.PeerID})
		}
	}
}

// evictExpiredPending frees every Pending Queue older than the configured
// TTL.
func (c *Context) evictExpiredPending() {
	c.mu.Lock()
	n := c.pending.evictExpired(time.Now())
	c.mu.Unlock()
	if n > 0 {
		applog.Info("monitor: evicted expired pending queues", map[string]interface{}{"count": n})
	}
}
