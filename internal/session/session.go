// Package session implements the per-stream ingestion state machine:
// accumulate audio in a session-owned buffer, drive it through the VAD,
// detach segments for the room processor on sentence-end or hard cap, and
// flush a residual segment on session_end.
package session

import (
	"sync"
	"time"

	"speechrelay/internal/topology"
	"speechrelay/internal/vad"
)

// DetachReason names why a segment was handed to the room processor.
type DetachReason string

const (
	ReasonSentenceEnd DetachReason = "sentence_end"
	ReasonBufferFull  DetachReason = "buffer_full"
	ReasonSessionEnd  DetachReason = "session_end"
)

// Config carries the buffer byte-accounting thresholds.
type Config struct {
	SampleRate            int
	BytesPerSample        int
	SentenceMaxDurationMs int // hard cap (2500ms default)
	MinFlushDurationMs    int // session_end flush floor (0.3s default)
	MinDetachDurationMs   int // sentence_end detach floor (0.5s default)
}

// Speaker identifies the session's active speaker.
type Speaker struct {
	ParticipantID  string
	Nickname       string
	ProfileImg     string
	SourceLanguage string
}

// Participant is one listener's subscription; mutable via the settings RPC.
type Participant struct {
	ParticipantID      string
	Nickname           string
	ProfileImg         string
	TargetLanguage     string
	TranslationEnabled bool
}

// Session is the per-stream state owned exclusively by its RPC handler,
// except for participants, which the process-wide UpdateParticipantSettings
// RPC mutates under the session lock.
type Session struct {
	ID      string
	RoomID  string
	Speaker Speaker

	cfg Config
	vad *vad.Processor

	mu           sync.Mutex
	participants map[string]Participant
	buffer       []byte

	PrimaryStrategy topology.Strategy
}

// New constructs a Session for speaker in room, with the given initial
// participants. The primary buffering strategy is computed once here and
// recomputed by SetParticipants on a settings update.
func New(id, roomID string, cfg Config, speaker Speaker, participants []Participant, vadCfg vad.Config) *Session {
	return NewWithVAD(id, roomID, cfg, speaker, participants, vad.New(vadCfg))
}

// NewWithVAD is New with a caller-supplied VAD processor, so tests can drive
// the ingestion state machine with a deterministic frame classifier.
func NewWithVAD(id, roomID string, cfg Config, speaker Speaker, participants []Participant, v *vad.Processor) *Session {
	s := &Session{
		ID:           id,
		RoomID:       roomID,
		Speaker:      speaker,
		cfg:          cfg,
		vad:          v,
		participants: make(map[string]Participant, len(participants)),
		buffer:       make([]byte, 0, cfg.SampleRate*cfg.BytesPerSample*3),
	}
	for _, p := range participants {
		s.participants[p.ParticipantID] = p
	}
	s.PrimaryStrategy = s.computeStrategy()
	return s
}

// SetParticipants replaces the participant for participantID in place and
// recomputes the primary strategy. The change takes effect for the next
// utterance; an in-flight utterance keeps the snapshot it was handed.
func (s *Session) SetParticipants(participantID, targetLanguage string, translationEnabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return false
	}
	p.TargetLanguage = targetLanguage
	p.TranslationEnabled = translationEnabled
	s.participants[participantID] = p
	s.PrimaryStrategy = s.computeStrategy()
	return true
}

func (s *Session) computeStrategy() topology.Strategy {
	var targets []string
	for _, p := range s.participants {
		if p.TranslationEnabled {
			targets = append(targets, p.TargetLanguage)
		}
	}
	return topology.SessionStrategy(s.Speaker.SourceLanguage, targets)
}

// Participants returns a copy of the current participant set.
func (s *Session) Participants() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	return out
}

// IngestResult tells the caller what, if anything, should be detached and
// sent to the room processor.
type IngestResult struct {
	ShouldProcess bool
	Reason        DetachReason
	Segment       []byte
}

// IngestChunk runs one inbound chunk through the VAD, conditionally
// appends filtered speech to the buffer, and decides whether to detach.
func (s *Session) IngestChunk(chunk []byte) IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	vadResult := s.vad.ProcessChunk(chunk)
	if vadResult.HasSpeech {
		s.buffer = append(s.buffer, s.vad.FilterSpeech(chunk)...)
	}

	bufferDurationMs := s.bufferDurationMs()

	if vadResult.SentenceEnd && bufferDurationMs >= s.cfg.MinDetachDurationMs {
		segment := s.detachLocked()
		return IngestResult{ShouldProcess: true, Reason: ReasonSentenceEnd, Segment: segment}
	}

	if bufferDurationMs >= s.cfg.SentenceMaxDurationMs {
		segment := s.detachLocked()
		s.vad.Reset()
		return IngestResult{ShouldProcess: true, Reason: ReasonBufferFull, Segment: segment}
	}

	return IngestResult{}
}

// Flush detaches a residual buffer of at least MinFlushDurationMs as a
// final segment on session_end.
func (s *Session) Flush() IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferDurationMs() < s.cfg.MinFlushDurationMs {
		return IngestResult{}
	}
	segment := s.detachLocked()
	return IngestResult{ShouldProcess: true, Reason: ReasonSessionEnd, Segment: segment}
}

func (s *Session) bufferDurationMs() int {
	bytesPerMs := s.cfg.SampleRate * s.cfg.BytesPerSample / 1000
	if bytesPerMs == 0 {
		return 0
	}
	return len(s.buffer) / bytesPerMs
}

func (s *Session) detachLocked() []byte {
	segment := s.buffer
	s.buffer = make([]byte, 0, s.cfg.SampleRate*s.cfg.BytesPerSample*3)
	return segment
}

// BufferSizeHintMs is the buffer-size hint advertised on session ready,
// derived from the session's primary strategy.
func (s *Session) BufferSizeHintMs() int {
	if s.PrimaryStrategy == topology.SentenceBased {
		return s.cfg.SentenceMaxDurationMs
	}
	return s.cfg.SentenceMaxDurationMs / 2
}

// Now returns the current wall-clock time (time.Now()); the RPC layer uses
// it to stamp each emitted transcript.
func Now() time.Time { return time.Now() }
