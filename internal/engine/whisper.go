package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// WhisperBackend talks to a running whisper.cpp server's /inference
// endpoint over HTTP. whisper.cpp is a batch engine, so each utterance
// becomes one multipart-form POST rather than a persistent stream.
type WhisperBackend struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// NewWhisperBackend builds a backend targeting serverURL (e.g.
// "http://localhost:8088"). model, if non-empty, is forwarded as a form hint.
func NewWhisperBackend(serverURL, model string) *WhisperBackend {
	return &WhisperBackend{
		serverURL:  serverURL,
		model:      model,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (b *WhisperBackend) Name() string { return "whisper" }

// whisperResponse mirrors the subset of whisper.cpp server's /inference JSON
// response this backend reads: overall text plus the first segment's
// no-speech probability, used by the repetition/hallucination filters.
type whisperResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		NoSpeechProb float32 `json:"no_speech_prob"`
	} `json:"segments"`
}

func (b *WhisperBackend) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	wav := encodeWAV(samples, 16000)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return Result{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if b.model != "" {
		if err := mw.WriteField("model", b.model); err != nil {
			return Result{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.serverURL+"/inference", &body)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var parsed whisperResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	var noSpeech float32
	if len(parsed.Segments) > 0 {
		noSpeech = parsed.Segments[0].NoSpeechProb
	}

	return Result{Text: parsed.Text, Confidence: 1 - noSpeech, NoSpeechProb: noSpeech}, nil
}

// encodeWAV wraps float32 [-1,1] PCM samples as a 16-bit signed
// little-endian mono RIFF/WAV container, the format whisper.cpp's server
// expects as a file upload.
func encodeWAV(samples []float32, sampleRate int) []byte {
	const channels = 1
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(samples) * 2

	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.Write(buf, binary.LittleEndian, int16(s*32767))
	}
	return buf.Bytes()
}
