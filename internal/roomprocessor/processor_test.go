package roomprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"speechrelay/internal/engine"
	"speechrelay/internal/roomcache"
	"speechrelay/internal/tts"
)

type fakeTranslator struct {
	fail map[string]bool
}

func (f fakeTranslator) Name() string { return "fake" }
func (f fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if f.fail[targetLang] {
		return "", errors.New("translation backend down")
	}
	return text + "-" + targetLang, nil
}

type fakeSynth struct{}

func (fakeSynth) Name() string { return "fake" }
func (fakeSynth) Synthesize(ctx context.Context, text, targetLang string) (tts.Result, error) {
	return tts.Result{AudioMP3: []byte("mp3:" + text), DurationMs: 500}, nil
}

// routedListener registers a bare participant id in the room listener
// registry the processor routes from.
type routedListener string

func (r routedListener) ListenerID() string { return string(r) }

func newTestProcessor(router *engine.Router, translator fakeTranslator) (*Processor, *roomcache.Registry) {
	cfg := Config{
		MinAudioDurationMs:        300,
		HallucinationRMSThreshold: 0.005,
		MinTTSTextLength:          2,
		FillerWords:               []string{"네", "uh"},
		ArtifactPatterns:          []string{"[music]"},
		STTTimeout:                time.Second,
		TranslationTimeout:        time.Second,
		TTSTimeout:                time.Second,
	}
	listeners := roomcache.NewRegistry()
	p := New(cfg,
		roomcache.New(time.Minute),
		roomcache.New(time.Minute),
		roomcache.New(time.Minute),
		listeners,
		router, translator, fakeSynth{}, NewPool(4))
	return p, listeners
}

func loudSamples(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 0.5
	}
	return s
}

type stubBackend struct{ text string }

func (s *stubBackend) Name() string { return "stub" }
func (s *stubBackend) Transcribe(ctx context.Context, samples []float32, language string) (engine.Result, error) {
	return engine.Result{Text: s.text, Confidence: 0.9}, nil
}

func TestProcessAudioFanOutPerLanguage(t *testing.T) {
	router := engine.NewRouter()
	router.Register("stub", &stubBackend{text: "안녕하세요"})
	router.SetFallback("stub")

	p, listeners := newTestProcessor(router, fakeTranslator{})
	listeners.Register("room2", routedListener("p1"), "en")
	listeners.Register("room2", routedListener("p2"), "ja")
	listeners.Register("room2", routedListener("p3"), "en")

	req := Request{
		RoomID:       "room2",
		SpeakerID:    "speaker1",
		SpeakerLang:  "ko",
		AudioSamples: loudSamples(16000),
		AudioBytes:   []byte("audio-bytes"),
		IsFinal:      true,
	}

	result := p.ProcessAudio(context.Background(), req, time.Now())
	if result.Transcript == nil {
		t.Fatalf("expected a transcript")
	}
	if len(result.Transcript.Translations) != 2 {
		t.Fatalf("expected 2 translation entries (en, ja), got %d", len(result.Transcript.Translations))
	}
	for _, tr := range result.Transcript.Translations {
		if tr.TargetLanguage == "en" && len(tr.TargetParticipantIDs) != 2 {
			t.Fatalf("expected en entry to list both listeners, got %v", tr.TargetParticipantIDs)
		}
	}
	if len(result.Audio) != 2 {
		t.Fatalf("expected 2 audio outputs, got %d", len(result.Audio))
	}
}

func TestProcessAudioFillerShortCircuit(t *testing.T) {
	router := engine.NewRouter()
	router.Register("stub", &stubBackend{text: "네"})
	router.SetFallback("stub")

	p, listeners := newTestProcessor(router, fakeTranslator{})
	listeners.Register("room3", routedListener("p1"), "en")
	req := Request{
		RoomID: "room3", SpeakerID: "s1", SpeakerLang: "ko",
		AudioSamples: loudSamples(16000), AudioBytes: []byte("x"),
		IsFinal: true,
	}
	result := p.ProcessAudio(context.Background(), req, time.Now())
	if result.Transcript == nil {
		t.Fatalf("expected transcript for filler")
	}
	if len(result.Transcript.Translations) != 0 {
		t.Fatalf("expected no translations for filler short-circuit")
	}
	if len(result.Audio) != 0 {
		t.Fatalf("expected no audio for filler short-circuit")
	}
}

func TestProcessAudioHallucinationDrop(t *testing.T) {
	router := engine.NewRouter()
	router.Register("stub", &stubBackend{text: "감사합니다 감사합니다 감사합니다 감사합니다 감사합니다"})
	router.SetFallback("stub")

	p, _ := newTestProcessor(router, fakeTranslator{})
	req := Request{
		RoomID: "room4", SpeakerID: "s1", SpeakerLang: "ko",
		AudioSamples: loudSamples(16000), AudioBytes: []byte("y"),
		IsFinal: true,
	}
	result := p.ProcessAudio(context.Background(), req, time.Now())
	if result.Transcript != nil {
		t.Fatalf("expected no transcript for hallucinated repetition")
	}
}

func TestProcessAudioDropsShortSilentSegment(t *testing.T) {
	router := engine.NewRouter()
	router.Register("stub", &stubBackend{text: "should not be called"})
	router.SetFallback("stub")

	p, _ := newTestProcessor(router, fakeTranslator{})
	req := Request{
		RoomID: "room5", SpeakerID: "s1", SpeakerLang: "ko",
		AudioSamples: make([]float32, 100), // silent, short
		AudioBytes:   []byte("z"),
	}
	result := p.ProcessAudio(context.Background(), req, time.Now())
	if result.Transcript != nil {
		t.Fatalf("expected no transcript for short silent segment")
	}
}

func TestProcessAudioTracksUtteranceCounters(t *testing.T) {
	router := engine.NewRouter()
	router.Register("stub", &stubBackend{text: "hello there"})
	router.SetFallback("stub")

	p, _ := newTestProcessor(router, fakeTranslator{})

	// A processed utterance.
	p.ProcessAudio(context.Background(), Request{
		RoomID: "room7", SpeakerID: "s1", SpeakerLang: "en",
		AudioSamples: loudSamples(16000), AudioBytes: []byte("a"),
		IsFinal: true,
	}, time.Now())

	// Dropped by preflight (too short/silent).
	p.ProcessAudio(context.Background(), Request{
		RoomID: "room7", SpeakerID: "s1", SpeakerLang: "en",
		AudioSamples: make([]float32, 10), AudioBytes: []byte("b"),
	}, time.Now())

	st := p.Stats()
	if st.UtterancesProcessed != 1 {
		t.Fatalf("expected 1 processed utterance, got %d", st.UtterancesProcessed)
	}
	if st.UtterancesDropped != 1 {
		t.Fatalf("expected 1 dropped utterance, got %d", st.UtterancesDropped)
	}
	if st.STTCache.Misses != 1 {
		t.Fatalf("expected 1 STT cache miss, got %d", st.STTCache.Misses)
	}
}

func TestProcessAudioPartialTranslationFailureIsolated(t *testing.T) {
	router := engine.NewRouter()
	router.Register("stub", &stubBackend{text: "hello there"})
	router.SetFallback("stub")

	p, listeners := newTestProcessor(router, fakeTranslator{fail: map[string]bool{"ja": true}})
	listeners.Register("room6", routedListener("p1"), "es")
	listeners.Register("room6", routedListener("p2"), "ja")
	req := Request{
		RoomID: "room6", SpeakerID: "s1", SpeakerLang: "en",
		AudioSamples: loudSamples(16000), AudioBytes: []byte("w"),
		IsFinal: true,
	}
	result := p.ProcessAudio(context.Background(), req, time.Now())
	if result.Transcript == nil {
		t.Fatalf("expected transcript")
	}
	if len(result.Transcript.Translations) != 1 || result.Transcript.Translations[0].TargetLanguage != "es" {
		t.Fatalf("expected only es translation to survive, got %+v", result.Transcript.Translations)
	}
	if len(result.Audio) != 1 {
		t.Fatalf("expected one audio output for the surviving translation, got %d", len(result.Audio))
	}
}
