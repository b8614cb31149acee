// Package config loads the frozen configuration record. It is read once
// at startup and never mutated afterward.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config enumerates every tunable of the pipeline plus the
// backend-selection and credential keys the concrete STT/translation/TTS
// backends need.
type Config struct {
	SampleRate      int
	BytesPerSample  int
	ChunkDurationMs int

	SentenceMaxDurationMs int
	SilenceDurationMs     int
	SilenceThresholdRMS   float64

	MinAudioDurationMs        int
	HallucinationRMSThreshold float64
	MinTTSTextLength          int

	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	STTTimeout         time.Duration
	TranslationTimeout time.Duration
	TTSTimeout         time.Duration

	MaxWorkers      int
	ParallelWorkers int

	GRPCAddr string
	WSAddr   string // empty disables the alternate WebSocket listener

	STTBackend         string // "multi" / "whisper" / "transcribe"
	TranslationBackend string // "aws" / "llm"

	FillerWords           []string
	AudioArtifactPatterns []string

	// Backend credentials and endpoints.
	WhisperServerURL string
	CanaryModelPath  string
	CloudSTTURL      string
	CloudSTTAPIKey   string

	AWSRegion    string
	OpenAIAPIKey string
	OpenAIModel  string

	TTSProviderURL string
	TTSAPIKey      string

	VADAggressiveness int
}

// Load parses flags (after loading any .env file into the process
// environment) and returns the frozen Config.
func Load() *Config {
	_ = godotenv.Load()

	grpcAddr := flag.String("grpc-addr", envOr("GRPC_ADDR", ":50051"), "gRPC listen address (host:port, unix:/path, or npipe:////./pipe/name)")
	wsAddr := flag.String("ws-addr", envOr("WS_ADDR", ""), "alternate WebSocket listen address (host:port); empty disables it")
	sttBackend := flag.String("stt-backend", envOr("STT_BACKEND", "multi"), "STT backend: multi/whisper/transcribe")
	translationBackend := flag.String("translation-backend", envOr("TRANSLATION_BACKEND", "aws"), "Translation backend: aws/llm")
	whisperURL := flag.String("whisper-server-url", envOr("WHISPER_SERVER_URL", "http://localhost:8088"), "whisper.cpp server base URL")
	canaryModel := flag.String("canary-model-path", envOr("CANARY_MODEL_PATH", ""), "ONNX Canary-family model path")
	cloudSTTURL := flag.String("cloud-stt-url", envOr("CLOUD_STT_URL", ""), "streaming cloud STT websocket URL")
	cloudSTTKey := flag.String("cloud-stt-api-key", envOr("CLOUD_STT_API_KEY", ""), "streaming cloud STT API key")
	awsRegion := flag.String("aws-region", envOr("AWS_REGION", "us-east-1"), "AWS region for Translate")
	openAIKey := flag.String("openai-api-key", envOr("OPENAI_API_KEY", ""), "OpenAI API key for LLM translation backend")
	openAIModel := flag.String("openai-model", envOr("OPENAI_MODEL", "gpt-4o-mini"), "OpenAI model for LLM translation backend")
	ttsURL := flag.String("tts-url", envOr("TTS_URL", ""), "streaming TTS websocket URL")
	ttsKey := flag.String("tts-api-key", envOr("TTS_API_KEY", ""), "TTS API key")
	vadAggr := flag.Int("vad-aggressiveness", envIntOr("VAD_AGGRESSIVENESS", 2), "WebRTC-style VAD aggressiveness (0-3)")

	flag.Parse()

	return &Config{
		SampleRate:      16000,
		BytesPerSample:  2,
		ChunkDurationMs: 1500,

		SentenceMaxDurationMs: 2500,
		SilenceDurationMs:     350,
		SilenceThresholdRMS:   30,

		MinAudioDurationMs:        300,
		HallucinationRMSThreshold: 0.005,
		MinTTSTextLength:          2,

		CacheTTL:             10 * time.Second,
		CacheCleanupInterval: 30 * time.Second,

		STTTimeout:         15 * time.Second,
		TranslationTimeout: 10 * time.Second,
		TTSTimeout:         8 * time.Second,

		MaxWorkers:      32,
		ParallelWorkers: 8,

		GRPCAddr: *grpcAddr,
		WSAddr:   *wsAddr,

		STTBackend:         *sttBackend,
		TranslationBackend: *translationBackend,

		FillerWords:           defaultFillerWords(),
		AudioArtifactPatterns: defaultArtifactPatterns(),

		WhisperServerURL: *whisperURL,
		CanaryModelPath:  *canaryModel,
		CloudSTTURL:      *cloudSTTURL,
		CloudSTTAPIKey:   *cloudSTTKey,

		AWSRegion:    *awsRegion,
		OpenAIAPIKey: *openAIKey,
		OpenAIModel:  *openAIModel,

		TTSProviderURL: *ttsURL,
		TTSAPIKey:      *ttsKey,

		VADAggressiveness: *vadAggr,
	}
}

func defaultFillerWords() []string {
	return []string{"uh", "um", "uh huh", "mhm", "네", "어", "음"}
}

func defaultArtifactPatterns() []string {
	return []string{"[music]", "[applause]", "[laughter]", "…", "♪", "[silence]"}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
