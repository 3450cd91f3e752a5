package wssignal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTURNCredentialsDeterministicForSameSecondAndUser(t *testing.T) {
	u1, p1 := GenerateTURNCredentials("sharedsecret", "alice", time.Hour)
	u2, p2 := GenerateTURNCredentials("sharedsecret", "alice", time.Hour)

	// Username embeds an expiry timestamp in whole seconds, so two calls
	// issued within the same wall-clock second must match exactly.
	assert.Equal(t, u1, u2)
	assert.Equal(t, p1, p2)
}

func TestGenerateTURNCredentialsVariesBySecret(t *testing.T) {
	u, p1 := GenerateTURNCredentials("secret-a", "alice", time.Hour)
	_, p2 := GenerateTURNCredentials("secret-b", "alice", time.Hour)

	assert.NotEmpty(t, u)
	assert.NotEqual(t, p1, p2, "different shared secrets must produce different signatures")
}

func TestTURNCredentialSourceIssuesServerWithURLs(t *testing.T) {
	src := &TURNCredentialSource{Secret: "shh", URLs: "turn:turn.example.com:3478", TTL: time.Hour}
	server := src.IssueICEServer("bob")

	assert.Equal(t, "turn:turn.example.com:3478", server.URLs)
	assert.Contains(t, server.Username, "bob")
	assert.NotEmpty(t, server.Credential)
}
