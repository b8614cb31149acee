// Command speechrelay runs the real-time multi-room speech-translation
// service: a bidirectional streaming gRPC endpoint backed by the
// VAD/session ingestion state machine, the room cache dedup layer, and the
// parallel translate/TTS fan-out pipeline.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"speechrelay/internal/config"
	"speechrelay/internal/engine"
	"speechrelay/internal/logging"
	"speechrelay/internal/roomcache"
	"speechrelay/internal/roomprocessor"
	"speechrelay/internal/rpc"
	"speechrelay/internal/session"
	"speechrelay/internal/translate"
	"speechrelay/internal/tts"
	"speechrelay/internal/vad"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC: %v", r)
			panic(r)
		}
	}()

	// 1. Load configuration.
	cfg := config.Load()
	logSink := logging.Default()

	// 2. Room cache: three TTL-bounded dedup caches plus their sweepers.
	sttCache := roomcache.New(cfg.CacheTTL)
	translationCache := roomcache.New(cfg.CacheTTL)
	ttsCache := roomcache.New(cfg.CacheTTL)
	stopSweepers := make(chan struct{})
	go sttCache.RunSweeper(cfg.CacheCleanupInterval, stopSweepers)
	go translationCache.RunSweeper(cfg.CacheCleanupInterval, stopSweepers)
	go ttsCache.RunSweeper(cfg.CacheCleanupInterval, stopSweepers)

	// 3. STT engine router.
	router, closeEngines, err := buildEngineRouter(cfg)
	if err != nil {
		log.Fatal("failed to build STT engine router:", err)
	}
	defer closeEngines()

	// 4. Translation backend, selected by TRANSLATION_BACKEND.
	translator, err := buildTranslator(cfg)
	if err != nil {
		log.Fatal("failed to build translation backend:", err)
	}

	// 5. TTS backend.
	synth := tts.NewStreamingBackend(cfg.TTSProviderURL, cfg.TTSAPIKey)
	defer synth.Close()

	// 6. Listener registry + shared worker pool + room processor. The
	// registry is the routing authority: the RPC layer registers listeners
	// into it and the processor snapshots it per utterance.
	listeners := roomcache.NewRegistry()
	pool := roomprocessor.NewPool(int64(cfg.ParallelWorkers))
	processor := roomprocessor.New(roomprocessor.Config{
		MinAudioDurationMs:        cfg.MinAudioDurationMs,
		HallucinationRMSThreshold: cfg.HallucinationRMSThreshold,
		MinTTSTextLength:          cfg.MinTTSTextLength,
		FillerWords:               cfg.FillerWords,
		ArtifactPatterns:          cfg.AudioArtifactPatterns,
		STTTimeout:                cfg.STTTimeout,
		TranslationTimeout:        cfg.TranslationTimeout,
		TTSTimeout:                cfg.TTSTimeout,
	}, sttCache, translationCache, ttsCache, listeners, router, translator, synth, pool)

	// 7. Session registry + RPC service.
	sessions := session.NewRegistry()
	sessionCfg := session.Config{
		SampleRate:            cfg.SampleRate,
		BytesPerSample:        cfg.BytesPerSample,
		SentenceMaxDurationMs: cfg.SentenceMaxDurationMs,
		MinFlushDurationMs:    300,
		MinDetachDurationMs:   500,
	}
	vadCfg := vad.Config{
		SilenceThresholdRMS: cfg.SilenceThresholdRMS,
		SilenceDurationMs:   cfg.SilenceDurationMs,
		Aggressiveness:      cfg.VADAggressiveness,
		MinSpeechFrames:     3,
	}
	server := rpc.NewServer(sessionCfg, vadCfg, sessions, listeners, processor, logSink)

	// Periodic aggregate counters, log-only.
	stopStats := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopStats:
				return
			case <-ticker.C:
				st := processor.Stats()
				logSink.Emit("stats", map[string]any{
					"utterances_processed":   st.UtterancesProcessed,
					"utterances_dropped":     st.UtterancesDropped,
					"stt_cache_hits":         st.STTCache.Hits,
					"stt_cache_misses":       st.STTCache.Misses,
					"translation_cache_hits": st.TranslationCache.Hits,
					"tts_cache_hits":         st.TTSCache.Hits,
					"live_sessions":          sessions.Count(),
				})
			}
		}
	}()

	lis, err := rpc.Listen(cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen:", err)
	}

	grpcServer := grpc.NewServer()
	rpc.RegisterTranslateServer(grpcServer, server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("speechrelay listening on %s", cfg.GRPCAddr)
		serveErr <- grpcServer.Serve(lis)
	}()

	// 8. Optional alternate WebSocket listener, driving the same session
	// protocol as the gRPC stream.
	var wsServer *http.Server
	if cfg.WSAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/chat", server.ServeWebsocket)
		wsServer = &http.Server{Addr: cfg.WSAddr, Handler: mux}
		go func() {
			log.Printf("speechrelay websocket listening on %s", cfg.WSAddr)
			if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("websocket server exited: %v", err)
			}
		}()
	}

	select {
	case err := <-serveErr:
		if err != nil {
			log.Fatal("gRPC server exited:", err)
		}
	case <-ctx.Done():
		log.Println("shutdown requested, draining sessions...")
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(drainCtx); err != nil {
			log.Printf("drain timed out: %v", err)
		}
		grpcServer.GracefulStop()
		if wsServer != nil {
			_ = wsServer.Shutdown(drainCtx)
		}
		cancel()
	}

	close(stopSweepers)
	close(stopStats)
	log.Println("speechrelay stopped")
	os.Exit(0)
}

// buildEngineRouter registers the Whisper-family, Canary-family, and
// streaming cloud-STT backends selected by STT_BACKEND and sets the
// fallback. No per-language route is configured, so every language goes to
// the fallback; in "multi" mode that is whisper, and the canary and cloud
// backends are registered but not reached.
func buildEngineRouter(cfg *config.Config) (*engine.Router, func(), error) {
	router := engine.NewRouter()
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	switch cfg.STTBackend {
	case "whisper":
		router.Register("whisper", engine.NewWhisperBackend(cfg.WhisperServerURL, ""))
		router.SetFallback("whisper")

	case "transcribe":
		cloud := engine.NewCloudSTTBackend(cfg.CloudSTTURL, cfg.CloudSTTAPIKey)
		closers = append(closers, func() { cloud.Close() })
		router.Register("cloud", cloud)
		router.SetFallback("cloud")

	default: // "multi"
		router.Register("whisper", engine.NewWhisperBackend(cfg.WhisperServerURL, ""))
		router.SetFallback("whisper")

		if cfg.CanaryModelPath != "" {
			canary, err := engine.NewCanaryBackend(engine.CanaryConfig{
				Encoder:  cfg.CanaryModelPath + "/encoder.onnx",
				Decoder:  cfg.CanaryModelPath + "/decoder.onnx",
				Joiner:   cfg.CanaryModelPath + "/joiner.onnx",
				Tokens:   cfg.CanaryModelPath + "/tokens.txt",
				Provider: "cpu",
			})
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, canary.Close)
			router.Register("canary", canary)
		}

		if cfg.CloudSTTURL != "" {
			cloud := engine.NewCloudSTTBackend(cfg.CloudSTTURL, cfg.CloudSTTAPIKey)
			closers = append(closers, func() { cloud.Close() })
			router.Register("cloud", cloud)
		}
	}

	return router, closeAll, nil
}

// buildTranslator selects the translation backend by TRANSLATION_BACKEND.
func buildTranslator(cfg *config.Config) (translate.Translator, error) {
	if cfg.TranslationBackend == "llm" {
		return translate.NewLLMBackend(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	return translate.NewAWSBackend(context.Background(), cfg.AWSRegion)
}
