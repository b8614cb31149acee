package rpc

// Wire messages for the bidirectional Chat stream and the unary
// UpdateParticipantSettings call. These are exchanged as JSON (see
// grpc_codec.go) rather than generated protobuf types.

// ChatRequest is one client -> server frame. Exactly one of SessionInit,
// AudioChunk, or SessionEnd is populated.
type ChatRequest struct {
	SessionID     string       `json:"session_id"`
	RoomID        string       `json:"room_id"`
	ParticipantID string       `json:"participant_id"`
	SessionInit   *SessionInit `json:"session_init,omitempty"`
	AudioChunk    []byte       `json:"audio_chunk,omitempty"`
	SessionEnd    *SessionEnd  `json:"session_end,omitempty"`
}

// SessionInit opens a session: it names the speaker and the listener set.
type SessionInit struct {
	Speaker      SpeakerInfo       `json:"speaker"`
	Participants []ParticipantInfo `json:"participants"`
}

// SessionEnd flushes and tears down a session.
type SessionEnd struct{}

// SpeakerInfo describes the session's active speaker.
type SpeakerInfo struct {
	ParticipantID  string `json:"participant_id"`
	Nickname       string `json:"nickname"`
	ProfileImg     string `json:"profile_img"`
	SourceLanguage string `json:"source_language"`
}

// ParticipantInfo describes one listener at session-init time.
type ParticipantInfo struct {
	ParticipantID      string `json:"participant_id"`
	Nickname           string `json:"nickname"`
	ProfileImg         string `json:"profile_img"`
	TargetLanguage     string `json:"target_language"`
	TranslationEnabled bool   `json:"translation_enabled"`
}

// ChatResponse is one server -> client frame. Exactly one of Status,
// Transcript, Audio, or Error is populated.
type ChatResponse struct {
	SessionID  string            `json:"session_id"`
	RoomID     string            `json:"room_id"`
	Status     *SessionStatus    `json:"status,omitempty"`
	Transcript *TranscriptResult `json:"transcript,omitempty"`
	Audio      *AudioResult      `json:"audio,omitempty"`
	Error      *ErrorResponse    `json:"error,omitempty"`
}

// SessionStatusKind enumerates the lifecycle states reported in SessionStatus.
type SessionStatusKind string

const (
	StatusReady SessionStatusKind = "READY"
	StatusEnded SessionStatusKind = "ENDED"
)

// SessionStatus announces session readiness and its buffering strategy hint.
type SessionStatus struct {
	Status            SessionStatusKind `json:"status"`
	Message           string            `json:"message,omitempty"`
	BufferingStrategy BufferingStrategy `json:"buffering_strategy"`
}

// BufferStrategyKind is CHUNK_BASED or SENTENCE_BASED.
type BufferStrategyKind string

const (
	ChunkBased    BufferStrategyKind = "CHUNK_BASED"
	SentenceBased BufferStrategyKind = "SENTENCE_BASED"
)

// BufferingStrategy is the client-facing latency-tuning hint.
type BufferingStrategy struct {
	SourceLanguage        string             `json:"source_language"`
	PrimaryTargetLanguage string             `json:"primary_target_language"`
	Strategy              BufferStrategyKind `json:"strategy"`
	BufferSizeMs          int                `json:"buffer_size_ms"`
}

// TranscriptResult is emitted once per processed utterance, strictly before
// any of its AudioResults.
type TranscriptResult struct {
	ID               string             `json:"id"`
	Speaker          SpeakerInfo        `json:"speaker"`
	OriginalText     string             `json:"original_text"`
	OriginalLanguage string             `json:"original_language"`
	Translations     []TranslationEntry `json:"translations"`
	IsPartial        bool               `json:"is_partial"`
	IsFinal          bool               `json:"is_final"`
	TimestampMs      int64              `json:"timestamp_ms"`
	Confidence       float32            `json:"confidence"`
}

// TranslationEntry is one target language's translated text plus the
// listeners it should be routed to.
type TranslationEntry struct {
	TargetLanguage     string   `json:"target_language"`
	TranslatedText     string   `json:"translated_text"`
	TargetParticipants []string `json:"target_participant_ids"`
}

// AudioResult carries one synthesized audio response, bound to the
// transcript it was derived from.
type AudioResult struct {
	TranscriptID         string   `json:"transcript_id"`
	TargetLanguage       string   `json:"target_language"`
	TargetParticipants   []string `json:"target_participant_ids"`
	AudioData            []byte   `json:"audio_data"`
	Format               string   `json:"format"`
	SampleRate           int      `json:"sample_rate"`
	DurationMs           int64    `json:"duration_ms"`
	SpeakerParticipantID string   `json:"speaker_participant_id"`
}

// ErrorResponse terminates a stream after a protocol or session-fatal error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UpdateParticipantSettingsRequest mutates one participant's target
// language and translation flag across every live session in a room.
type UpdateParticipantSettingsRequest struct {
	RoomID             string `json:"room_id"`
	ParticipantID      string `json:"participant_id"`
	TargetLanguage     string `json:"target_language"`
	TranslationEnabled bool   `json:"translation_enabled"`
}

// ParticipantSettingsResponse reports whether any live session was updated.
type ParticipantSettingsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
