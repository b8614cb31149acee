package session

import (
	"testing"

	"speechrelay/internal/vad"
)

// scriptClassifier drives the ingestion state machine deterministically:
// every frame is classified speech or silence by a single flag, without the
// cgo WebRTC backend.
type scriptClassifier struct {
	speech bool
}

func (c *scriptClassifier) ClassifyFrame(frame []byte) (bool, bool) {
	return c.speech, true
}

func newIngestSession(t *testing.T) (*Session, *scriptClassifier) {
	t.Helper()
	cfg := Config{
		SampleRate:            16000,
		BytesPerSample:        2,
		SentenceMaxDurationMs: 2500,
		MinFlushDurationMs:    300,
		MinDetachDurationMs:   500,
	}
	fc := &scriptClassifier{speech: true}
	v := vad.NewWithClassifier(vad.Config{SilenceDurationMs: 90, MinSpeechFrames: 1}, fc)
	speaker := Speaker{ParticipantID: "speaker1", SourceLanguage: "ko"}
	participants := []Participant{
		{ParticipantID: "p1", TargetLanguage: "en", TranslationEnabled: true},
	}
	return NewWithVAD("sess1", "room1", cfg, speaker, participants, v), fc
}

// speechChunk is n 30ms frames of arbitrary non-zero PCM.
func speechChunk(frames int) []byte {
	chunk := make([]byte, frames*vad.FrameBytes)
	for i := 0; i < len(chunk); i += 2 {
		chunk[i] = 0x00
		chunk[i+1] = 0x40
	}
	return chunk
}

func TestIngestSentenceEndDetachesBufferedSpeech(t *testing.T) {
	s, fc := newIngestSession(t)

	// 20 speech frames = 600ms buffered, past the 500ms detach floor.
	if res := s.IngestChunk(speechChunk(20)); res.ShouldProcess {
		t.Fatalf("expected no detach while still speaking, got %+v", res)
	}

	// Three silent chunks reach maxSilence (90ms / 30ms) -> sentence end.
	fc.speech = false
	var res IngestResult
	for i := 0; i < 3; i++ {
		res = s.IngestChunk(speechChunk(1))
	}
	if !res.ShouldProcess || res.Reason != ReasonSentenceEnd {
		t.Fatalf("expected sentence_end detach, got %+v", res)
	}
	if len(res.Segment) != 20*vad.FrameBytes {
		t.Fatalf("expected 20 speech frames detached, got %d bytes", len(res.Segment))
	}

	// Buffer must be empty again after the detach.
	if res := s.Flush(); res.ShouldProcess {
		t.Fatalf("expected empty buffer after detach, got %+v", res)
	}
}

func TestIngestSentenceEndBelowFloorDoesNotDetach(t *testing.T) {
	s, fc := newIngestSession(t)

	// 10 speech frames = 300ms, below the 500ms sentence_end floor.
	s.IngestChunk(speechChunk(10))
	fc.speech = false
	var res IngestResult
	for i := 0; i < 3; i++ {
		res = s.IngestChunk(speechChunk(1))
	}
	if res.ShouldProcess {
		t.Fatalf("expected no detach below the sentence_end floor, got %+v", res)
	}

	// The short buffer still flushes at session end (300ms >= flush floor).
	flushed := s.Flush()
	if !flushed.ShouldProcess || flushed.Reason != ReasonSessionEnd {
		t.Fatalf("expected session_end flush of residual buffer, got %+v", flushed)
	}
}

func TestIngestBufferFullDetachesAndResetsVAD(t *testing.T) {
	s, _ := newIngestSession(t)

	// Continuous speech until the buffer crosses the 2500ms hard cap.
	var res IngestResult
	for i := 0; i < 10; i++ {
		res = s.IngestChunk(speechChunk(10)) // +300ms per chunk
		if res.ShouldProcess {
			break
		}
	}
	if !res.ShouldProcess || res.Reason != ReasonBufferFull {
		t.Fatalf("expected buffer_full detach under continuous speech, got %+v", res)
	}
	if got := len(res.Segment) / (16000 * 2 / 1000); got < 2500 {
		t.Fatalf("expected at least 2500ms detached, got %dms", got)
	}
	if s.vad.State() != vad.Idle {
		t.Fatalf("expected VAD reset to Idle after buffer_full detach")
	}
}

func TestFlushBelowFloorIsNoop(t *testing.T) {
	s, _ := newIngestSession(t)
	s.IngestChunk(speechChunk(5)) // 150ms, below the 300ms flush floor
	if res := s.Flush(); res.ShouldProcess {
		t.Fatalf("expected no flush below the floor, got %+v", res)
	}
}

func TestSetParticipantsRecomputesStrategy(t *testing.T) {
	s, _ := newIngestSession(t)
	// ko speaker with an en listener crosses word-order groups.
	if s.PrimaryStrategy.String() != "SENTENCE_BASED" {
		t.Fatalf("expected SENTENCE_BASED for ko->en, got %v", s.PrimaryStrategy)
	}

	if !s.SetParticipants("p1", "ja", true) {
		t.Fatalf("expected participant p1 updated")
	}
	if s.PrimaryStrategy.String() != "CHUNK_BASED" {
		t.Fatalf("expected CHUNK_BASED after listener moved to ja, got %v", s.PrimaryStrategy)
	}

	if s.SetParticipants("missing", "en", true) {
		t.Fatalf("expected unknown participant to report false")
	}
}
