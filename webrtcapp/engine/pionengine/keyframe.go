package pionengine

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/internal/applog"
)

// relayTrackKeyframes reads RTP packets off an incoming H264 track and
// requests a PLI until the first keyframe is seen. Audio tracks and non-H264
// video are drained without keyframe tracking.
func (e *Engine) relayTrackKeyframes(s *session, track *webrtc.TrackRemote) {
	isH264 := track.Codec().MimeType == webrtc.MimeTypeH264
	sawKeyframe := false

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if !isH264 || sawKeyframe {
			continue
		}
		if isH264KeyframeRTP(pkt) {
			sawKeyframe = true
			continue
		}
		if err := e.requestKeyframePLI(s, uint32(track.SSRC())); err != nil {
			applog.Warn("pionengine: pli request failed", map[string]interface{}{"peer": s.peerID, "error": err})
		}
	}
}

// requestKeyframePLI sends a Picture Loss Indication for ssrc on the given
// session's peer connection. The engine adapter is the one place in this
// module that touches RTP/RTCP packet headers directly; the orchestration
// core itself never parses media.
func (e *Engine) requestKeyframePLI(sess engine.Session, ssrc uint32) error {
	s, ok := sess.(*session)
	if !ok {
		return nil
	}
	return s.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: ssrc},
	})
}

// isH264KeyframeRTP reports whether an RTP packet carries the start of an
// H264 IDR (key) frame.
func isH264KeyframeRTP(pkt *rtp.Packet) bool {
	if len(pkt.Payload) < 2 {
		return false
	}
	naluType := pkt.Payload[0] & 0x1F
	switch naluType {
	case 5: // IDR slice
		return true
	case 28, 29: // FU-A / FU-B fragmentation unit
		if len(pkt.Payload) < 2 {
			return false
		}
		fragNALUType := pkt.Payload[1] & 0x1F
		startBit := pkt.Payload[1]&0x80 != 0
		return startBit && fragNALUType == 5
	default:
		return false
	}
}
