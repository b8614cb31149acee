package engine

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"speechrelay/internal/asyncbridge"
)

// CloudSTTBackend is the streaming cloud-STT path: a single persistent
// websocket connection driven through an asyncbridge.Bridge so that only
// one goroutine ever reads/writes the connection at a time.
type CloudSTTBackend struct {
	endpoint string
	apiKey   string
	bridge   *asyncbridge.Bridge

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewCloudSTTBackend builds a backend against a streaming cloud STT
// endpoint, e.g. "wss://stt.example.com/v1/stream".
func NewCloudSTTBackend(endpoint, apiKey string) *CloudSTTBackend {
	return &CloudSTTBackend{
		endpoint: endpoint,
		apiKey:   apiKey,
		bridge:   asyncbridge.New(8),
	}
}

func (b *CloudSTTBackend) Name() string { return "cloud" }

type cloudSTTRequest struct {
	Audio    string `json:"audio_base64,omitempty"`
	Language string `json:"language"`
	Op       string `json:"op"`
}

type cloudSTTResponse struct {
	Text         string  `json:"text"`
	Confidence   float32 `json:"confidence"`
	NoSpeechProb float32 `json:"no_speech_prob"`
	Op           string  `json:"op"`
	Error        string  `json:"error,omitempty"`
}

// Transcribe submits one utterance to the cooperative executor, which owns
// the single websocket connection; concurrent callers queue rather than
// racing on the socket.
func (b *CloudSTTBackend) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	v, err := b.bridge.Submit(ctx, 15*time.Second, func(ctx context.Context) (any, error) {
		return b.transcribeOnConn(ctx, samples, language)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (b *CloudSTTBackend) transcribeOnConn(ctx context.Context, samples []float32, language string) (Result, error) {
	conn, err := b.getConn(ctx)
	if err != nil {
		return Result{}, err
	}

	pcm := floatToPCM16(samples)
	req := cloudSTTRequest{Audio: base64.StdEncoding.EncodeToString(pcm), Language: language, Op: "transcribe"}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		b.dropConn()
		return Result{}, fmt.Errorf("cloudstt: write request: %w", err)
	}

	var resp cloudSTTResponse
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		b.dropConn()
		return Result{}, fmt.Errorf("cloudstt: read response: %w", err)
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("cloudstt: backend error: %s", resp.Error)
	}

	return Result{Text: resp.Text, Confidence: resp.Confidence, NoSpeechProb: resp.NoSpeechProb}, nil
}

func (b *CloudSTTBackend) getConn(ctx context.Context) (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return b.conn, nil
	}

	u := url.URL{Scheme: "wss", Host: urlHost(b.endpoint), Path: urlPath(b.endpoint), RawQuery: "api_key=" + b.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("cloudstt: dial: %w", err)
	}
	b.conn = conn
	return conn, nil
}

func (b *CloudSTTBackend) dropConn() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close(websocket.StatusAbnormalClosure, "cloudstt: connection error")
		b.conn = nil
	}
}

// Close releases the persistent connection and stops the bridge.
func (b *CloudSTTBackend) Close() error {
	b.bridge.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		err := b.conn.Close(websocket.StatusNormalClosure, "")
		b.conn = nil
		return err
	}
	return nil
}

func floatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}

func urlHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return u.Host
}

func urlPath(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "/"
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
