package rpc

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// upgrader accepts any origin: this endpoint serves the same trusted
// clients as the gRPC listener, not a public browser-facing API.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsChatStream adapts a gorilla/websocket connection to chatStream, the
// alternate session transport. Writes are serialized since the emit path
// can send a transcript followed by several audio frames for one incoming
// request.
type wsChatStream struct {
	conn *websocket.Conn
	ctx  context.Context

	writeMu sync.Mutex
}

func (w *wsChatStream) Send(m *ChatResponse) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(m)
}

func (w *wsChatStream) Recv() (*ChatRequest, error) {
	req := new(ChatRequest)
	if err := w.conn.ReadJSON(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (w *wsChatStream) Context() context.Context { return w.ctx }

// ServeWebsocket upgrades an HTTP request to a WebSocket connection and runs
// the same session protocol Chat drives over gRPC. It is wired as an
// alternate entry point alongside the gRPC listener, not a replacement for
// it.
func (s *Server) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	stream := &wsChatStream{conn: conn, ctx: r.Context()}
	if err := s.runChat(stream); err != nil {
		s.log.Error("ws_chat_stream", err, nil)
	}
}
