package roomprocessor

// Request is one detached utterance ready for processing. The listeners it
// routes to are not carried here: the processor snapshots them from the
// room's listener registry when processing begins, so settings changes
// apply to the next utterance.
type Request struct {
	RoomID       string
	SpeakerID    string
	SpeakerLang  string
	AudioSamples []float32 // float32 normalized to [-1,1], 16kHz mono
	AudioBytes   []byte    // raw PCM16LE bytes, used as the STT cache key input
	IsFinal      bool
}

// TranslationOutput is one target language's translated text plus the
// listeners it routes to.
type TranslationOutput struct {
	TargetLanguage       string
	TranslatedText       string
	TargetParticipantIDs []string
	WasCached            bool
}

// TranscriptOutput is the transcript emitted strictly before any of its
// AudioOutputs.
type TranscriptOutput struct {
	ID           string
	OriginalText string
	Confidence   float32
	Translations []TranslationOutput
	IsFinal      bool
	TimestampMs  int64
}

// AudioOutput is one synthesized TTS result bound to its transcript id.
type AudioOutput struct {
	TranscriptID         string
	TargetLanguage       string
	TargetParticipantIDs []string
	AudioMP3             []byte
	DurationMs           int64
	WasCached            bool
}

// Result is the pipeline's output for one utterance. Transcript is nil when
// the segment was dropped by a pre-flight check, STT empty result, or a
// post-STT filter: nothing is emitted for that segment.
type Result struct {
	Transcript *TranscriptOutput
	Audio      []AudioOutput
}
