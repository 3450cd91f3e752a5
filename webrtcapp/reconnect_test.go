package webrtcapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/fakeengine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/faketransport"
)

func TestBackoffForSaturatesAtTableEnd(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffFor(0))
	assert.Equal(t, 10*time.Second, backoffFor(1))
	assert.Equal(t, 20*time.Second, backoffFor(2))
	assert.Equal(t, 40*time.Second, backoffFor(3))
	assert.Equal(t, 60*time.Second, backoffFor(4))
	// Beyond the table, the schedule saturates at the last entry rather than
	// panicking or wrapping around.
	assert.Equal(t, 60*time.Second, backoffFor(5))
	assert.Equal(t, 60*time.Second, backoffFor(100))
}

func TestReconnectStepTimesOutInProgressAttempt(t *testing.T) {
	eng := fakeengine.New()
	transport := faketransport.New()
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 5 * time.Second

	c := &Context{cfg: cfg, transport: transport, eng: eng}
	start := time.Now()
	c.reconnect = reconnectState{
		connectionInProgress: true,
		connectionStartTime:  start,
	}

	c.reconnectStep(start.Add(6 * time.Second))

	assert.False(t, c.reconnect.connectionInProgress)
	assert.Equal(t, uint32(1), c.reconnect.retryCount)
}

func TestOnSignalingConnectedResetsState(t *testing.T) {
	c := &Context{events: newEventBus()}
	c.reconnect = reconnectState{retryCount: 3, connectionInProgress: true}
	c.recreateSignaling = true

	c.onSignalingConnected()

	assert.Equal(t, uint32(0), c.reconnect.retryCount)
	assert.False(t, c.recreateSignaling)
	assert.True(t, c.connected.Load())
}
