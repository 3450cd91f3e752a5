package wssignal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

func TestGetICEServerByIdxZeroReturnsStunImmediately(t *testing.T) {
	transport := New("ws://example.com/signal")
	transport.EnableProgressiveICE(&TURNCredentialSource{Secret: "s", URLs: "turn:example.com", TTL: time.Hour}, time.Minute)

	server, haveMore, err := transport.GetICEServerByIdx(context.Background(), 0, true)
	require.NoError(t, err)
	assert.Equal(t, defaultSTUNURLs, server.URLs)
	assert.True(t, haveMore, "a turn source configured with wantTURN=true must signal more servers coming")
}

func TestGetICEServerByIdxNoTurnSourceMeansNoMore(t *testing.T) {
	transport := New("ws://example.com/signal")

	_, haveMore, err := transport.GetICEServerByIdx(context.Background(), 0, true)
	require.NoError(t, err)
	assert.False(t, haveMore, "without a turn source there is nothing more to fetch")
}

func TestBackgroundTurnFetchUpdatesICEServersAndFiresCallback(t *testing.T) {
	transport := New("ws://example.com/signal")
	transport.EnableProgressiveICE(&TURNCredentialSource{Secret: "s", URLs: "turn:example.com", TTL: time.Hour}, time.Minute)

	updated := make(chan int, 1)
	require.NoError(t, transport.SetICEUpdateCallback(nil, func(customData interface{}, newCount int) {
		updated <- newCount
	}))

	_, haveMore, err := transport.GetICEServerByIdx(context.Background(), 0, true)
	require.NoError(t, err)
	require.True(t, haveMore)

	select {
	case count := <-updated:
		assert.Equal(t, 1, count)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background turn fetch callback")
	}
}

func TestIsICERefreshNeededDefaultsTrueWithoutTurnSource(t *testing.T) {
	transport := New("ws://example.com/signal")
	needed, err := transport.IsICERefreshNeeded()
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestIsICERefreshNeededRespectsInterval(t *testing.T) {
	transport := New("ws://example.com/signal")
	transport.EnableProgressiveICE(&TURNCredentialSource{Secret: "s", URLs: "turn:example.com", TTL: time.Hour}, time.Hour)
	transport.lastTURNFetch = time.Now()

	needed, err := transport.IsICERefreshNeeded()
	require.NoError(t, err)
	assert.False(t, needed, "freshly fetched turn credentials within the interval need no refresh")
}

func TestFetchTURNInBackgroundDropsOverLengthURL(t *testing.T) {
	transport := New("ws://example.com/signal")
	oversized := string(make([]byte, signaling.MaxICEConfigURILen+1))
	transport.EnableProgressiveICE(&TURNCredentialSource{Secret: "s", URLs: oversized, TTL: time.Hour}, time.Minute)

	transport.fetchTURNInBackground(transport.turnSource)

	servers, err := transport.GetICEServers()
	require.NoError(t, err)
	assert.Empty(t, servers, "an over-length turn server url is dropped rather than stored")
}

func TestFetchTURNInBackgroundTruncatesAtMaxICEServers(t *testing.T) {
	transport := New("ws://example.com/signal")
	transport.EnableProgressiveICE(&TURNCredentialSource{Secret: "s", URLs: "turn:example.com", TTL: time.Hour}, time.Minute)

	for i := 0; i < 20; i++ {
		transport.fetchTURNInBackground(transport.turnSource)
	}

	servers, err := transport.GetICEServers()
	require.NoError(t, err)
	assert.Len(t, servers, signaling.MaxICEServers, "ice server list never grows past the configured bound")
}
