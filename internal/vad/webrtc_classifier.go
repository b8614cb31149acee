package vad

import (
	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// webrtcClassifier wraps go-webrtcvad. Its cgo layer can fail to
// initialize on unsupported platforms; ClassifyFrame reports ok=false in
// that case so callers fall back to the RMS threshold.
type webrtcClassifier struct {
	vad          *webrtcvad.VAD
	rmsThreshold float64
	healthy      bool
}

// NewWebRTCFallbackClassifier builds a frame classifier that attempts
// WebRTC VAD at the given aggressiveness (0-3) and falls back to an RMS
// threshold when the library is unavailable or errors.
func NewWebRTCFallbackClassifier(aggressiveness int, rmsThreshold float64) FrameClassifier {
	v, err := webrtcvad.New()
	if err != nil {
		return &webrtcClassifier{rmsThreshold: rmsThreshold, healthy: false}
	}
	if aggressiveness < 0 || aggressiveness > 3 {
		aggressiveness = 2
	}
	if err := v.SetMode(aggressiveness); err != nil {
		return &webrtcClassifier{rmsThreshold: rmsThreshold, healthy: false}
	}
	return &webrtcClassifier{vad: v, rmsThreshold: rmsThreshold, healthy: true}
}

// ClassifyFrame implements FrameClassifier. ok=false means the WebRTC path
// could not classify this frame (wrong size, unhealthy instance); the
// Processor then applies the RMS fallback itself.
func (c *webrtcClassifier) ClassifyFrame(frame []byte) (isSpeech bool, ok bool) {
	if !c.healthy || c.vad == nil || len(frame) != FrameBytes {
		return false, false
	}
	active, err := c.vad.Process(SampleRate, frame)
	if err != nil {
		return false, false
	}
	return active, true
}
