// Package faketransport is an in-memory signaling.Transport double used by
// the core's own tests, hand-written in the same style as fakeengine.
package faketransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

type Transport struct {
	mu sync.Mutex

	FailConnect bool
	ConnectCalls int

	customData interface{}
	onMessage  signaling.MessageReceivedFunc
	onState    signaling.StateChangedFunc
	onError    signaling.ErrorFunc

	Outbound []signaling.Message

	iceServers []signaling.ICEServer
}

func New() *Transport {
	return &Transport{}
}

func (t *Transport) Init(ctx context.Context, cfg signaling.Config) error { return nil }
func (t *Transport) Free() error                                         { return nil }

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.ConnectCalls++
	fail := t.FailConnect
	t.mu.Unlock()
	if fail {
		return fmt.Errorf("faketransport: connect forced failure")
	}
	return nil
}

func (t *Transport) Disconnect() error { return nil }

func (t *Transport) SendMessage(msg signaling.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Outbound = append(t.Outbound, msg)
	return nil
}

func (t *Transport) SetCallbacks(customData interface{}, onMessage signaling.MessageReceivedFunc, onState signaling.StateChangedFunc, onError signaling.ErrorFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.customData = customData
	t.onMessage = onMessage
	t.onState = onState
	t.onError = onError
	return nil
}

func (t *Transport) GetICEServers() ([]signaling.ICEServer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.iceServers, nil
}

// Deliver simulates an inbound message arriving from the remote signaling
// channel, as the transport's reader task would.
func (t *Transport) Deliver(msg signaling.Message) {
	t.mu.Lock()
	cb, cd := t.onMessage, t.customData
	t.mu.Unlock()
	if cb != nil {
		cb(cd, msg)
	}
}

// RaiseError simulates a transport-level error callback.
func (t *Transport) RaiseError(category signaling.ErrorCategory, detail string) {
	t.mu.Lock()
	cb, cd := t.onError, t.customData
	t.mu.Unlock()
	if cb != nil {
		cb(cd, category, detail)
	}
}

func (t *Transport) OutboundCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Outbound)
}

// SetICEServersForTest seeds the servers GetICEServers will report, for
// tests exercising the Progressive ICE Controller's update path.
func (t *Transport) SetICEServersForTest(servers []signaling.ICEServer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.iceServers = servers
}
