package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/guilhermegouw/parley/internal/chat"
)

// maxFrameSize bounds one streamed message frame.
const maxFrameSize = 4 * 1024 * 1024

// WebSocketTransport opens exchanges as WebSocket connections.
type WebSocketTransport struct {
	url        string
	httpClient *http.Client
}

// NewWebSocketTransport creates a transport dialing url. httpClient may be
// nil.
func NewWebSocketTransport(url string, httpClient *http.Client) *WebSocketTransport {
	return &WebSocketTransport{url: url, httpClient: httpClient}
}

// Open dials the stream endpoint, authenticating with the request's
// credential.
func (t *WebSocketTransport) Open(ctx context.Context, req *Request) (Stream, error) {
	header := http.Header{}
	if !req.Credential.Empty() {
		header.Set("Authorization", "Bearer "+string(req.Credential))
	}

	conn, resp, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{
		HTTPClient: t.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dialing %s: %w", t.url, ErrUnauthorized)
		}
		return nil, fmt.Errorf("dialing %s: %w", t.url, err)
	}
	conn.SetReadLimit(maxFrameSize)
	return &wsStream{conn: conn}, nil
}

// ErrUnauthorized means the stream endpoint rejected the credential.
var ErrUnauthorized = errors.New("stream rejected credential")

type wsStream struct {
	conn *websocket.Conn
	// done is set once the connection is known to be closed.
	done bool
}

func (s *wsStream) Send(ctx context.Context, req *Request) error {
	return wsjson.Write(ctx, s.conn, req)
}

func (s *wsStream) Recv(ctx context.Context) (*chat.Message, error) {
	var m chat.Message
	err := wsjson.Read(ctx, s.conn, &m)
	if err == nil {
		return &m, nil
	}
	s.done = true
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil, io.EOF
	}
	return nil, err
}

func (s *wsStream) Close() error {
	if s.done {
		_ = s.conn.CloseNow()
		return nil
	}
	s.done = true
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
