// Package vad implements the per-session frame-level voice-activity
// detector and sentence-end state machine. It is pure and
// single-threaded: one Processor belongs to exactly one session.
package vad

import "math"

// Frame duration/size constants for 16-bit mono PCM at 16 kHz.
const (
	SampleRate      = 16000
	BytesPerSample  = 2
	FrameDurationMs = 30
	FrameBytes      = SampleRate * FrameDurationMs / 1000 * BytesPerSample // 960
	speechFrameFrac = 0.3
)

// State is the VAD's own Idle/Speaking state, independent of the session
// buffer-full hard cap tracked in internal/session.
type State int

const (
	Idle State = iota
	Speaking
)

// Config carries the thresholds that drive classification.
type Config struct {
	SilenceThresholdRMS float64 // int16-scale RMS fallback threshold
	SilenceDurationMs   int     // silence required to declare sentence end
	Aggressiveness      int     // WebRTC-style VAD aggressiveness, 0-3
	MinSpeechFrames     int     // consecutive speech chunks to enter Speaking
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		SilenceThresholdRMS: 30,
		SilenceDurationMs:   350,
		Aggressiveness:      2,
		MinSpeechFrames:     3,
	}
}

// Processor runs the Idle/Speaking state machine over a
// sequence of audio chunks (each chunk is one or more 30ms frames).
type Processor struct {
	cfg Config

	state         State
	speechFrames  int
	silenceFrames int
	maxSilence    int

	classifier FrameClassifier
}

// FrameClassifier classifies one 30ms, 960-byte PCM frame as speech/silence.
// A WebRTC-style classifier is tried first, with an RMS threshold as the
// fallback. Tests can install a fake classifier via NewWithClassifier.
type FrameClassifier interface {
	ClassifyFrame(frame []byte) (isSpeech bool, ok bool)
}

// New constructs a Processor with the default (WebRTC-with-RMS-fallback)
// classifier at the configured aggressiveness.
func New(cfg Config) *Processor {
	return NewWithClassifier(cfg, NewWebRTCFallbackClassifier(cfg.Aggressiveness, cfg.SilenceThresholdRMS))
}

// NewWithClassifier lets callers (notably tests) supply a custom classifier.
func NewWithClassifier(cfg Config, classifier FrameClassifier) *Processor {
	maxSilence := cfg.SilenceDurationMs / FrameDurationMs
	if maxSilence < 1 {
		maxSilence = 1
	}
	return &Processor{
		cfg:        cfg,
		maxSilence: maxSilence,
		classifier: classifier,
	}
}

// Result is the outcome of processing one chunk.
type Result struct {
	HasSpeech   bool
	SentenceEnd bool
}

// ProcessChunk runs one chunk (a multiple of FrameBytes, tail frame may be
// short) through the frame classifier, classifies the chunk as speech iff
// the speech-frame fraction is >= 0.3, then advances the state machine.
func (p *Processor) ProcessChunk(chunk []byte) Result {
	isSpeech := p.classifyChunk(chunk)

	switch p.state {
	case Idle:
		if isSpeech {
			p.speechFrames++
			if p.speechFrames >= p.cfg.MinSpeechFrames {
				p.state = Speaking
			}
			return Result{HasSpeech: true, SentenceEnd: false}
		}
		p.speechFrames = 0
		return Result{HasSpeech: false, SentenceEnd: false}

	case Speaking:
		if isSpeech {
			p.silenceFrames = 0
			return Result{HasSpeech: true, SentenceEnd: false}
		}
		p.silenceFrames++
		if p.silenceFrames >= p.maxSilence {
			p.state = Idle
			p.speechFrames = 0
			p.silenceFrames = 0
			return Result{HasSpeech: false, SentenceEnd: true}
		}
		return Result{HasSpeech: false, SentenceEnd: false}
	}

	return Result{}
}

// FilterSpeech returns the concatenation of chunk's speech-classified 30ms
// frames, dropping silent frames embedded in a mostly-speech chunk.
func (p *Processor) FilterSpeech(chunk []byte) []byte {
	if len(chunk) == 0 {
		return chunk
	}
	out := make([]byte, 0, len(chunk))
	for i := 0; i < len(chunk); i += FrameBytes {
		end := i + FrameBytes
		if end > len(chunk) {
			end = len(chunk)
		}
		frame := chunk[i:end]
		if isSpeech, ok := p.classifier.ClassifyFrame(frame); ok && isSpeech {
			out = append(out, frame...)
		} else if !ok && rmsInt16(frame) >= p.cfg.SilenceThresholdRMS {
			out = append(out, frame...)
		}
	}
	return out
}

// Reset returns the processor to Idle with zero counters.
func (p *Processor) Reset() {
	p.state = Idle
	p.speechFrames = 0
	p.silenceFrames = 0
}

// State reports the current Idle/Speaking state (for tests/metrics).
func (p *Processor) State() State { return p.state }

func (p *Processor) classifyChunk(chunk []byte) bool {
	if len(chunk) == 0 {
		return false
	}
	speechFrames := 0
	totalFrames := 0
	for i := 0; i < len(chunk); i += FrameBytes {
		end := i + FrameBytes
		if end > len(chunk) {
			end = len(chunk)
		}
		frame := chunk[i:end]
		totalFrames++
		if isSpeech, ok := p.classifier.ClassifyFrame(frame); ok {
			if isSpeech {
				speechFrames++
			}
		} else if rmsInt16(frame) >= p.cfg.SilenceThresholdRMS {
			speechFrames++
		}
	}
	if totalFrames == 0 {
		return false
	}
	return float64(speechFrames)/float64(totalFrames) >= speechFrameFrac
}

// rmsInt16 computes RMS energy of a little-endian int16 PCM frame, on the
// native int16 scale (matching SilenceThresholdRMS's units).
func rmsInt16(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(uint16(frame[i]) | uint16(frame[i+1])<<8)
		f := float64(sample)
		sum += f * f
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
