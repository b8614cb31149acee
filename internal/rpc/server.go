package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speechrelay/internal/logging"
	"speechrelay/internal/roomcache"
	"speechrelay/internal/roomprocessor"
	"speechrelay/internal/session"
	"speechrelay/internal/topology"
	"speechrelay/internal/vad"
)

// chatStream is the minimal duplex handle Chat's session loop needs. Both
// Translate_ChatServer (a gRPC stream) and wsChatStream (a gorilla/websocket
// connection, ws_transport.go) satisfy it: gRPC and WebSocket are
// interchangeable stream transports for the same session protocol.
type chatStream interface {
	Send(*ChatResponse) error
	Recv() (*ChatRequest, error)
	Context() context.Context
}

// participantListener adapts a bare participant id to roomcache.Listener so
// the room's listener registry can track it without this package depending
// on anything beyond a string id.
type participantListener string

func (p participantListener) ListenerID() string { return string(p) }

// Server implements ChatServer and SettingsServer: it owns
// the process-wide session registry and drives each stream's session
// through internal/session, handing detached segments to a shared
// internal/roomprocessor.Processor and re-emitting its results.
type Server struct {
	UnimplementedTranslateServer

	SessionCfg session.Config
	VADCfg     vad.Config

	sessions  *session.Registry
	listeners *roomcache.Registry
	processor *roomprocessor.Processor
	log       *logging.Sink

	draining atomic.Bool
}

// NewServer wires a Server over an already-constructed Processor and
// listener registry; main builds the dependency graph bottom-up.
func NewServer(sessionCfg session.Config, vadCfg vad.Config, sessions *session.Registry, listeners *roomcache.Registry, processor *roomprocessor.Processor, log *logging.Sink) *Server {
	return &Server{
		SessionCfg: sessionCfg,
		VADCfg:     vadCfg,
		sessions:   sessions,
		listeners:  listeners,
		processor:  processor,
		log:        log,
	}
}

// Chat implements the bidirectional streaming endpoint. One call handles
// exactly one session end-to-end: session_init opens it, audio_chunk
// frames drive ingestion, session_end flushes and closes it. Transport
// errors and client-initiated stream close unconditionally deregister the
// session.
func (s *Server) Chat(stream Translate_ChatServer) error {
	return s.runChat(stream)
}

// runChat drives the session protocol over any chatStream, gRPC or
// WebSocket alike.
func (s *Server) runChat(stream chatStream) error {
	var sess *session.Session

	cleanup := func() {
		if sess != nil {
			s.deregisterListeners(sess)
			s.sessions.Remove(sess.ID)
		}
	}

	for {
		req, err := stream.Recv()
		if err != nil {
			cleanup()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch {
		case req.SessionInit != nil:
			if s.draining.Load() {
				return status.Error(codes.Unavailable, "server is draining, reconnect to another instance")
			}
			if sess != nil {
				cleanup()
			}
			sess = s.initSession(req)
			if err := stream.Send(s.readyResponse(req, sess)); err != nil {
				cleanup()
				return err
			}

		case req.SessionEnd != nil:
			if sess == nil {
				continue
			}
			if result := sess.Flush(); result.ShouldProcess {
				if err := s.emit(stream, req, sess, result.Segment, true); err != nil {
					cleanup()
					return err
				}
			}
			cleanup()
			return nil

		default: // audio_chunk
			if sess == nil {
				_ = stream.Send(&ChatResponse{
					SessionID: req.SessionID,
					RoomID:    req.RoomID,
					Error:     &ErrorResponse{Code: "NO_SESSION", Message: "audio_chunk received before session_init"},
				})
				continue
			}
			result := sess.IngestChunk(req.AudioChunk)
			if result.ShouldProcess {
				isFinal := result.Reason == session.ReasonSentenceEnd
				if err := s.emit(stream, req, sess, result.Segment, isFinal); err != nil {
					cleanup()
					return err
				}
			}
		}
	}
}

// emit runs one detached segment through the shared processor and sends its
// transcript (if any) strictly before any of its audio responses.
func (s *Server) emit(stream chatStream, req *ChatRequest, sess *session.Session, segment []byte, isFinal bool) error {
	pipelineReq := roomprocessor.Request{
		RoomID:       sess.RoomID,
		SpeakerID:    sess.Speaker.ParticipantID,
		SpeakerLang:  sess.Speaker.SourceLanguage,
		AudioSamples: pcm16ToFloat32(segment),
		AudioBytes:   segment,
		IsFinal:      isFinal,
	}

	result := s.processor.ProcessAudio(stream.Context(), pipelineReq, session.Now())
	if result.Transcript == nil {
		return nil
	}

	if err := stream.Send(&ChatResponse{
		SessionID:  req.SessionID,
		RoomID:     req.RoomID,
		Transcript: toTranscriptResult(result.Transcript, sess),
	}); err != nil {
		return err
	}

	for _, audio := range result.Audio {
		if err := stream.Send(&ChatResponse{
			SessionID: req.SessionID,
			RoomID:    req.RoomID,
			Audio:     toAudioResult(audio, sess),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) initSession(req *ChatRequest) *session.Session {
	init := req.SessionInit
	speaker := session.Speaker{
		ParticipantID:  init.Speaker.ParticipantID,
		Nickname:       init.Speaker.Nickname,
		ProfileImg:     init.Speaker.ProfileImg,
		SourceLanguage: init.Speaker.SourceLanguage,
	}
	participants := make([]session.Participant, 0, len(init.Participants))
	for _, p := range init.Participants {
		participants = append(participants, session.Participant{
			ParticipantID:      p.ParticipantID,
			Nickname:           p.Nickname,
			ProfileImg:         p.ProfileImg,
			TargetLanguage:     p.TargetLanguage,
			TranslationEnabled: p.TranslationEnabled,
		})
	}

	sess := session.New(req.SessionID, req.RoomID, s.SessionCfg, speaker, participants, s.VADCfg)
	s.sessions.Put(sess)
	s.registerListeners(sess, participants)
	return sess
}

func (s *Server) registerListeners(sess *session.Session, participants []session.Participant) {
	for _, p := range participants {
		if p.TranslationEnabled && p.TargetLanguage != sess.Speaker.SourceLanguage {
			s.listeners.Register(sess.RoomID, participantListener(p.ParticipantID), p.TargetLanguage)
		}
	}
}

func (s *Server) deregisterListeners(sess *session.Session) {
	for _, p := range sess.Participants() {
		s.listeners.Unregister(sess.RoomID, participantListener(p.ParticipantID))
	}
}

func (s *Server) readyResponse(req *ChatRequest, sess *session.Session) *ChatResponse {
	return &ChatResponse{
		SessionID: req.SessionID,
		RoomID:    req.RoomID,
		Status: &SessionStatus{
			Status:  StatusReady,
			Message: "session ready",
			BufferingStrategy: BufferingStrategy{
				SourceLanguage:        sess.Speaker.SourceLanguage,
				PrimaryTargetLanguage: primaryTargetLanguage(sess),
				Strategy:              strategyWireValue(sess.PrimaryStrategy),
				BufferSizeMs:          sess.BufferSizeHintMs(),
			},
		},
	}
}

func primaryTargetLanguage(sess *session.Session) string {
	for _, p := range sess.Participants() {
		if p.TranslationEnabled {
			return p.TargetLanguage
		}
	}
	return ""
}

func strategyWireValue(s topology.Strategy) BufferStrategyKind {
	if s == topology.SentenceBased {
		return SentenceBased
	}
	return ChunkBased
}

func toTranscriptResult(t *roomprocessor.TranscriptOutput, sess *session.Session) *TranscriptResult {
	translations := make([]TranslationEntry, 0, len(t.Translations))
	for _, tr := range t.Translations {
		translations = append(translations, TranslationEntry{
			TargetLanguage:     tr.TargetLanguage,
			TranslatedText:     tr.TranslatedText,
			TargetParticipants: tr.TargetParticipantIDs,
		})
	}
	return &TranscriptResult{
		ID:               t.ID,
		Speaker:          SpeakerInfo(sess.Speaker),
		OriginalText:     t.OriginalText,
		OriginalLanguage: sess.Speaker.SourceLanguage,
		Translations:     translations,
		IsFinal:          t.IsFinal,
		TimestampMs:      t.TimestampMs,
		Confidence:       t.Confidence,
	}
}

func toAudioResult(a roomprocessor.AudioOutput, sess *session.Session) *AudioResult {
	return &AudioResult{
		TranscriptID:         a.TranscriptID,
		TargetLanguage:       a.TargetLanguage,
		TargetParticipants:   a.TargetParticipantIDs,
		AudioData:            a.AudioMP3,
		Format:               "mp3",
		SampleRate:           24000,
		DurationMs:           a.DurationMs,
		SpeakerParticipantID: sess.Speaker.ParticipantID,
	}
}

// UpdateParticipantSettings updates the target language and
// translation_enabled flag of every live session matching
// (room_id, participant_id), taking effect for that session's next
// utterance. The room's listener registry entry is replaced
// remove-then-insert so the listener lands in exactly one language set.
func (s *Server) UpdateParticipantSettings(ctx context.Context, req *UpdateParticipantSettingsRequest) (*ParticipantSettingsResponse, error) {
	if req.RoomID == "" || req.ParticipantID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id and participant_id are required")
	}

	listener := participantListener(req.ParticipantID)
	s.listeners.Unregister(req.RoomID, listener)
	if req.TranslationEnabled {
		s.listeners.Register(req.RoomID, listener, req.TargetLanguage)
	}

	updated := s.sessions.UpdateParticipant(req.RoomID, req.ParticipantID, req.TargetLanguage, req.TranslationEnabled)
	if updated == 0 {
		return &ParticipantSettingsResponse{Success: false, Message: "no live session found for participant in room"}, nil
	}
	return &ParticipantSettingsResponse{Success: true}, nil
}

// Shutdown marks the server draining (new session_init calls are refused)
// and blocks until every registered session has flushed and deregistered
// or ctx expires, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.sessions.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Healthy reports whether the server is fit to take new sessions: false
// while Shutdown is draining, and false when any cache sweeper has
// stalled.
func (s *Server) Healthy() bool {
	return !s.draining.Load() && s.processor.CachesHealthy()
}

// Listen opens addr as a gRPC listener (tcp host:port, unix:/path, or
// npipe:////./pipe/name on Windows).
func Listen(addr string) (net.Listener, error) {
	return listenGRPC(addr)
}

// pcm16ToFloat32 converts the wire format (signed 16-bit little-endian
// PCM) to normalized [-1, 1] float32 samples, the form internal/engine
// backends and the preflight RMS check expect.
func pcm16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		lo := pcm[i*2]
		hi := pcm[i*2+1]
		sample := int16(uint16(lo) | uint16(hi)<<8)
		out[i] = float32(sample) / 32768
	}
	return out
}
