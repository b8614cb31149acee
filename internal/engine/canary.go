package engine

import (
	"context"
	"fmt"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// CanaryBackend wraps an ONNX Canary-family offline recognizer via
// sherpa-onnx-go.
type CanaryBackend struct {
	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
	sampleRate int
}

// CanaryConfig names the on-disk NeMo Canary-family transducer model files.
type CanaryConfig struct {
	Encoder    string
	Decoder    string
	Joiner     string
	Tokens     string
	Provider   string // "cpu", "cuda", "coreml"; empty defaults to cpu
	NumThreads int
	SampleRate int
}

// NewCanaryBackend loads the ONNX model files named in cfg.
func NewCanaryBackend(cfg CanaryConfig) (*CanaryBackend, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "cpu"
	}
	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = 2
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	recognizerConfig := &sherpa.OfflineRecognizerConfig{}
	recognizerConfig.ModelConfig.Transducer.Encoder = cfg.Encoder
	recognizerConfig.ModelConfig.Transducer.Decoder = cfg.Decoder
	recognizerConfig.ModelConfig.Transducer.Joiner = cfg.Joiner
	recognizerConfig.ModelConfig.Tokens = cfg.Tokens
	recognizerConfig.ModelConfig.NumThreads = numThreads
	recognizerConfig.ModelConfig.Provider = provider
	recognizerConfig.ModelConfig.ModelType = "nemo_transducer"
	recognizerConfig.DecodingMethod = "greedy_search"

	recognizer := sherpa.NewOfflineRecognizer(recognizerConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("canary: failed to create offline recognizer from %s/%s/%s", cfg.Encoder, cfg.Decoder, cfg.Joiner)
	}

	return &CanaryBackend{recognizer: recognizer, sampleRate: sampleRate}, nil
}

func (b *CanaryBackend) Name() string { return "canary" }

// Transcribe decodes samples with a fresh offline stream. sherpa-onnx's
// OfflineRecognizer is not documented as safe for concurrent Decode calls
// on the same instance, so access is serialized per model.
func (b *CanaryBackend) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream := sherpa.NewOfflineStream(b.recognizer)
	if stream == nil {
		return Result{}, fmt.Errorf("canary: failed to create offline stream")
	}
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(b.sampleRate, samples)
	b.recognizer.Decode(stream)

	result := stream.GetResult()
	return Result{Text: result.Text, Confidence: 1, NoSpeechProb: 0}, nil
}

// Close releases the underlying recognizer.
func (b *CanaryBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(b.recognizer)
		b.recognizer = nil
	}
}
