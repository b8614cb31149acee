package roomprocessor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"speechrelay/internal/engine"
	"speechrelay/internal/roomcache"
	"speechrelay/internal/translate"
	"speechrelay/internal/tts"
)

// Config carries the pipeline's thresholds and per-stage timeouts. Each
// timeout bounds how long a caller waits on another caller's in-flight
// cache computation for the same key (roomcache.Cache.Get); the STT,
// translation and TTS backend calls themselves run under the caller's ctx
// and are not given these deadlines.
type Config struct {
	MinAudioDurationMs        int
	HallucinationRMSThreshold float64
	MinTTSTextLength          int
	FillerWords               []string
	ArtifactPatterns          []string

	STTTimeout         time.Duration
	TranslationTimeout time.Duration
	TTSTimeout         time.Duration
}

// sttCacheValue is the STT cache's stored value.
type sttCacheValue struct {
	Text       string
	Confidence float32
}

// ttsCacheValue is the TTS cache's stored value.
type ttsCacheValue struct {
	AudioMP3   []byte
	DurationMs int64
}

// Processor turns one detached utterance into transcript, translations,
// and synthesized audio: pre-flight checks, a deduplicated STT call,
// filler short-circuit, parallel translation fan-out, transcript emission,
// and parallel TTS fan-out, all bounded by one shared Pool.
type Processor struct {
	cfg Config

	sttCache         *roomcache.Cache
	translationCache *roomcache.Cache
	ttsCache         *roomcache.Cache
	listeners        *roomcache.Registry

	engine     *engine.Router
	translator translate.Translator
	synth      tts.Synthesizer

	pool *Pool

	utterancesProcessed atomic.Int64
	utterancesDropped   atomic.Int64
}

// Stats is a point-in-time snapshot of a Processor's lifetime utterance
// counters plus each cache's hit/miss figures, emitted on the periodic
// stats log line.
type Stats struct {
	UtterancesProcessed int64
	UtterancesDropped   int64
	STTCache            roomcache.Stats
	TranslationCache    roomcache.Stats
	TTSCache            roomcache.Stats
}

// Stats returns the processor's lifetime counters plus each cache's
// hit/miss snapshot.
func (p *Processor) Stats() Stats {
	return Stats{
		UtterancesProcessed: p.utterancesProcessed.Load(),
		UtterancesDropped:   p.utterancesDropped.Load(),
		STTCache:            p.sttCache.Stats(),
		TranslationCache:    p.translationCache.Stats(),
		TTSCache:            p.ttsCache.Stats(),
	}
}

// New constructs a Processor wired to the given caches, listener registry,
// backends, and pool.
func New(cfg Config, sttCache, translationCache, ttsCache *roomcache.Cache, listeners *roomcache.Registry, eng *engine.Router, translator translate.Translator, synth tts.Synthesizer, pool *Pool) *Processor {
	return &Processor{
		cfg:              cfg,
		sttCache:         sttCache,
		translationCache: translationCache,
		ttsCache:         ttsCache,
		listeners:        listeners,
		engine:           eng,
		translator:       translator,
		synth:            synth,
		pool:             pool,
	}
}

// CachesHealthy reports whether all three cache sweepers are keeping up.
func (p *Processor) CachesHealthy() bool {
	return p.sttCache.SweeperHealthy() && p.translationCache.SweeperHealthy() && p.ttsCache.SweeperHealthy()
}

// ProcessAudio runs the full pipeline for one detached utterance.
func (p *Processor) ProcessAudio(ctx context.Context, req Request, now time.Time) Result {
	if !engine.PassesPreflight(req.AudioSamples, 16000, engine.PreflightConfig{
		MinAudioDurationMs: p.cfg.MinAudioDurationMs,
	}) {
		p.utterancesDropped.Add(1)
		return Result{}
	}

	sttValue, _, err := p.sttCache.Get(
		roomcache.STTKey(req.RoomID, req.SpeakerID, req.AudioBytes),
		p.cfg.STTTimeout,
		func() (any, error) {
			return p.transcribe(ctx, req)
		},
	)
	if err != nil {
		p.utterancesDropped.Add(1)
		return Result{}
	}
	stt := sttValue.(sttCacheValue)
	if stt.Text == "" {
		p.utterancesDropped.Add(1)
		return Result{}
	}

	if engine.IsFiller(stt.Text, p.cfg.FillerWords) || len(strings.TrimSpace(stt.Text)) <= 1 {
		p.utterancesProcessed.Add(1)
		return Result{Transcript: &TranscriptOutput{
			ID:           newTranscriptID(),
			OriginalText: stt.Text,
			Confidence:   stt.Confidence,
			IsFinal:      req.IsFinal,
			TimestampMs:  now.UnixMilli(),
		}}
	}

	routing := p.routingSnapshot(req.RoomID, req.SpeakerLang)
	translations := p.fanOutTranslations(ctx, req, stt.Text, routing)

	transcript := &TranscriptOutput{
		ID:           newTranscriptID(),
		OriginalText: stt.Text,
		Confidence:   stt.Confidence,
		Translations: translations,
		IsFinal:      req.IsFinal,
		TimestampMs:  now.UnixMilli(),
	}

	audio := p.fanOutTTS(ctx, req, transcript.ID, translations)

	p.utterancesProcessed.Add(1)
	return Result{Transcript: transcript, Audio: audio}
}

func (p *Processor) transcribe(ctx context.Context, req Request) (sttCacheValue, error) {
	res, err := p.engine.Transcribe(ctx, req.AudioSamples, req.SpeakerLang)
	if err != nil {
		return sttCacheValue{}, err
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return sttCacheValue{}, nil
	}
	if engine.HasHighNoSpeechProb(res.NoSpeechProb) {
		return sttCacheValue{}, nil
	}
	if engine.IsArtifact(text, p.cfg.ArtifactPatterns) {
		return sttCacheValue{}, nil
	}
	if engine.IsHallucination(text) {
		return sttCacheValue{}, nil
	}
	rms := engine.RMS(req.AudioSamples)
	if engine.IsLowEnergyHallucination(rms, res.NoSpeechProb, len(text), p.cfg.HallucinationRMSThreshold) {
		return sttCacheValue{}, nil
	}

	return sttCacheValue{Text: text, Confidence: res.Confidence}, nil
}

// routingSnapshot reads the room's listener registry once per utterance:
// each active target language (differing from the source language) mapped
// to the participant ids subscribed to it. The registry is the routing
// authority; a settings change lands there and is picked up by the next
// utterance's snapshot.
func (p *Processor) routingSnapshot(roomID, sourceLang string) map[string][]string {
	routing := make(map[string][]string)
	for _, lang := range p.listeners.TargetLanguages(roomID) {
		if lang == sourceLang {
			continue
		}
		subscribed := p.listeners.ListenersForLanguage(roomID, lang)
		if len(subscribed) == 0 {
			continue
		}
		ids := make([]string, 0, len(subscribed))
		for _, l := range subscribed {
			ids = append(ids, l.ListenerID())
		}
		routing[lang] = ids
	}
	return routing
}

func (p *Processor) fanOutTranslations(ctx context.Context, req Request, text string, routing map[string][]string) []TranslationOutput {
	var mu sync.Mutex
	var out []TranslationOutput

	var g errgroup.Group
	for target, ids := range routing {
		target, ids := target, ids
		g.Go(func() error {
			return p.pool.Run(ctx, func() {
				value, wasCached, err := p.translationCache.Get(
					roomcache.TranslationKey(req.RoomID, req.SpeakerLang, target, text),
					p.cfg.TranslationTimeout,
					func() (any, error) {
						return p.translator.Translate(ctx, text, req.SpeakerLang, target)
					},
				)
				if err != nil {
					return // omit this target, others proceed
				}
				translated := value.(string)
				mu.Lock()
				out = append(out, TranslationOutput{
					TargetLanguage:       target,
					TranslatedText:       translated,
					TargetParticipantIDs: ids,
					WasCached:            wasCached,
				})
				mu.Unlock()
			})
		})
	}
	_ = g.Wait() // a cancelled ctx just means fewer targets in out
	return out
}

func (p *Processor) fanOutTTS(ctx context.Context, req Request, transcriptID string, translations []TranslationOutput) []AudioOutput {
	var mu sync.Mutex
	var out []AudioOutput

	var g errgroup.Group
	for _, tr := range translations {
		tr := tr
		trimmed := strings.TrimSpace(tr.TranslatedText)
		if len(trimmed) < p.cfg.MinTTSTextLength {
			continue
		}
		if engine.IsFiller(trimmed, p.cfg.FillerWords) {
			continue
		}

		g.Go(func() error {
			return p.pool.Run(ctx, func() {
				value, wasCached, err := p.ttsCache.Get(
					roomcache.TTSKey(req.RoomID, tr.TargetLanguage, trimmed),
					p.cfg.TTSTimeout,
					func() (any, error) {
						res, err := p.synth.Synthesize(ctx, trimmed, tr.TargetLanguage)
						if err != nil {
							return nil, err
						}
						return ttsCacheValue{AudioMP3: res.AudioMP3, DurationMs: res.DurationMs}, nil
					},
				)
				if err != nil {
					return // omit this audio response, transcript already delivered
				}
				cached := value.(ttsCacheValue)
				mu.Lock()
				out = append(out, AudioOutput{
					TranscriptID:         transcriptID,
					TargetLanguage:       tr.TargetLanguage,
					TargetParticipantIDs: tr.TargetParticipantIDs,
					AudioMP3:             cached.AudioMP3,
					DurationMs:           cached.DurationMs,
					WasCached:            wasCached,
				})
				mu.Unlock()
			})
		})
	}
	_ = g.Wait() // a cancelled ctx just means fewer audio responses in out
	return out
}

func newTranscriptID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
