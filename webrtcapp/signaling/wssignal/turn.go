package wssignal

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling"
)

// GenerateTURNCredentials issues a Coturn-style ephemeral TURN username and
// HMAC-SHA1-signed password.
func GenerateTURNCredentials(secret, user string, ttl time.Duration) (username, password string) {
	expires := time.Now().Add(ttl).Unix()
	username = fmt.Sprintf("%d:%s", expires, user)
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	password = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, password
}

// TURNCredentialSource issues a fresh TURN ICEServer for user, for use by
// the core's Progressive ICE Controller background fetch.
type TURNCredentialSource struct {
	Secret string
	URLs   string
	TTL    time.Duration
}

func (s *TURNCredentialSource) IssueICEServer(user string) signaling.ICEServer {
	username, password := GenerateTURNCredentials(s.Secret, user, s.TTL)
	return signaling.ICEServer{URLs: s.URLs, Username: username, Credential: password}
}
