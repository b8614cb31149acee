// Package tts turns translated text into speech: text in, MP3 bytes at
// 24 kHz plus a duration, out.
package tts

import "context"

// Result is one synthesized utterance.
type Result struct {
	AudioMP3   []byte
	DurationMs int64
}

// Synthesizer is implemented by each concrete TTS backend.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, targetLang string) (Result, error)
	Name() string
}

// SampleRateHz is the fixed server->client TTS sample rate.
const SampleRateHz = 24000
