package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// StreamingBackend synthesizes speech over a persistent websocket
// connection: a single mutex-guarded *websocket.Conn, JSON request frame,
// binary audio chunks accumulated until a text "EOS"/"ERR:" control
// frame. The mutex is held for the whole request/response exchange so
// concurrent fan-out callers queue instead of interleaving frames on the
// shared socket.
type StreamingBackend struct {
	providerURL string
	apiKey      string
	sampleRate  int

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewStreamingBackend builds a backend against providerURL (e.g.
// "wss://tts.example.com/ws").
func NewStreamingBackend(providerURL, apiKey string) *StreamingBackend {
	return &StreamingBackend{
		providerURL: providerURL,
		apiKey:      apiKey,
		sampleRate:  SampleRateHz,
	}
}

func (b *StreamingBackend) Name() string { return "streaming" }

func (b *StreamingBackend) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if b.conn != nil {
		return b.conn, nil
	}

	u, err := url.Parse(b.providerURL)
	if err != nil {
		return nil, fmt.Errorf("tts/streaming: parse provider URL: %w", err)
	}
	q := u.Query()
	q.Set("api_key", b.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tts/streaming: dial: %w", err)
	}
	b.conn = conn
	return conn, nil
}

func (b *StreamingBackend) dropConnLocked() {
	if b.conn != nil {
		b.conn.Close(websocket.StatusAbnormalClosure, "tts/streaming: connection error")
		b.conn = nil
	}
}

type synthesizeRequest struct {
	Text       string `json:"text"`
	Lang       string `json:"lang"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize sends text/targetLang over the shared connection and
// accumulates binary PCM chunks until the backend signals completion,
// encoding the accumulated PCM into MP3 locally.
func (b *StreamingBackend) Synthesize(ctx context.Context, text, targetLang string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.connLocked(ctx)
	if err != nil {
		return Result{}, err
	}

	req := synthesizeRequest{Text: text, Lang: targetLang, SampleRate: b.sampleRate}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		b.dropConnLocked()
		return Result{}, fmt.Errorf("tts/streaming: write request: %w", err)
	}

	var pcm []int16
	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			b.dropConnLocked()
			return Result{}, fmt.Errorf("tts/streaming: read: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			pcm = append(pcm, bytesToInt16LE(payload)...)
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				audio := pcmToMP3(pcm, b.sampleRate, 1)
				durationMs := int64(len(pcm)) * 1000 / int64(b.sampleRate)
				return Result{AudioMP3: audio, DurationMs: durationMs}, nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return Result{}, fmt.Errorf("tts/streaming: backend error: %s", msg)
			}
		}
	}
}

func bytesToInt16LE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Close tears down the persistent connection.
func (b *StreamingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		err := b.conn.Close(websocket.StatusNormalClosure, "")
		b.conn = nil
		return err
	}
	return nil
}
