// Package engine implements multi-backend STT routing: a
// language-specific model if one is registered, else a fallback model,
// else an error. Models are deduplicated by name so two languages routed
// to the same model share one instance.
package engine

import (
	"context"
	"fmt"
	"sync"
)

// Result is one transcription: text, a confidence in [0,1], and the
// no-speech probability the Whisper-family backend reports (used by the
// post-filters in filters.go).
type Result struct {
	Text         string
	Confidence   float32
	NoSpeechProb float32
}

// Backend is one opaque transcription engine (Whisper-family, Canary-family,
// or streaming cloud STT). samples are float32 PCM normalized to [-1, 1] at
// 16 kHz mono.
type Backend interface {
	Transcribe(ctx context.Context, samples []float32, language string) (Result, error)
	Name() string
}

// Router holds a name -> Backend instance table and a language -> name
// routing table sharing pointers, so two languages requesting the same
// model share one instance.
type Router struct {
	mu            sync.RWMutex
	instances     map[string]Backend // model name -> instance
	languageRoute map[string]string  // language -> model name
	fallback      string             // model name used when no language route exists
}

// NewRouter constructs an empty Router. Register backends with Register,
// then route languages to them with RouteLanguage or SetFallback.
func NewRouter() *Router {
	return &Router{
		instances:     make(map[string]Backend),
		languageRoute: make(map[string]string),
	}
}

// Register installs backend under modelName, deduplicating on re-registration
// of the same name (two languages routed to the same name share this
// instance; registering again is a no-op if the name already has a backend).
func (r *Router) Register(modelName string, backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[modelName]; exists {
		return
	}
	r.instances[modelName] = backend
}

// RouteLanguage directs lang's transcription requests at modelName, which
// must already be Register-ed.
func (r *Router) RouteLanguage(lang, modelName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languageRoute[lang] = modelName
}

// SetFallback names the model used for languages with no explicit route.
func (r *Router) SetFallback(modelName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = modelName
}

// Transcribe resolves lang to a backend (language-specific, else fallback,
// else error) and delegates to it.
func (r *Router) Transcribe(ctx context.Context, samples []float32, lang string) (Result, error) {
	backend, err := r.resolve(lang)
	if err != nil {
		return Result{}, err
	}
	return backend.Transcribe(ctx, samples, lang)
}

func (r *Router) resolve(lang string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.languageRoute[lang]; ok {
		if b, ok := r.instances[name]; ok {
			return b, nil
		}
	}
	if r.fallback != "" {
		if b, ok := r.instances[r.fallback]; ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("engine: no backend registered for language %q and no fallback configured", lang)
}
