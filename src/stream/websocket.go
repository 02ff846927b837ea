package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stake-plus/geo-sink/src/logging"
)

type WebSocketOptions struct {
	Endpoint     string
	Token        string
	OutputModule string
	// IdleTimeout bounds the wait for any frame. Defaults to 5 minutes.
	IdleTimeout time.Duration
	Dialer      *websocket.Dialer
	// Now is used for the token expiry check.
	Now func() time.Time
}

// WebSocketSource reads block frames from a substreams bridge.
type WebSocketSource struct {
	opts WebSocketOptions
}

func NewWebSocketSource(opts WebSocketOptions) (*WebSocketSource, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, &InvalidStreamConfigurationError{Reason: "stream endpoint is not set"}
	}
	if opts.OutputModule == "" {
		return nil, &InvalidStreamConfigurationError{Reason: "output module is not set"}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second, EnableCompression: true}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &WebSocketSource{opts: opts}, nil
}

type requestFrame struct {
	StartCursor  string `json:"startCursor,omitempty"`
	StartBlock   uint64 `json:"startBlock"`
	OutputModule string `json:"outputModule"`
}

type clockFrame struct {
	Number    uint64 `json:"number"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

type frame struct {
	Type            string          `json:"type"`
	Cursor          string          `json:"cursor"`
	Clock           clockFrame      `json:"clock"`
	Output          json.RawMessage `json:"output"`
	LastValidCursor string          `json:"lastValidCursor"`
	LastValidBlock  clockFrame      `json:"lastValidBlock"`
	Message         string          `json:"message"`
}

// checkToken rejects a JWT whose exp has passed. Opaque tokens pass.
func checkToken(token string, now time.Time) error {
	if token == "" {
		return nil
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return &AuthError{Err: fmt.Errorf("api token expired at %s", claims.ExpiresAt.UTC().Format(time.RFC3339))}
	}
	return nil
}

func (s *WebSocketSource) Open(ctx context.Context, start StartPoint) (Session, error) {
	if err := checkToken(s.opts.Token, s.opts.Now()); err != nil {
		return nil, err
	}

	header := http.Header{}
	if s.opts.Token != "" {
		header.Set("Authorization", "Bearer "+s.opts.Token)
	}
	conn, resp, err := s.opts.Dialer.DialContext(ctx, s.opts.Endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &AuthError{Err: fmt.Errorf("dial rejected with status %d", resp.StatusCode)}
		}
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	req, err := json.Marshal(requestFrame{
		StartCursor:  start.Cursor,
		StartBlock:   start.Block,
		OutputModule: s.opts.OutputModule,
	})
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, req)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send stream request: %w", err)
	}

	sess := &wsSession{conn: conn, idle: s.opts.IdleTimeout}
	sess.stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
	return sess, nil
}

type wsSession struct {
	conn *websocket.Conn
	idle time.Duration
	stop func() bool
}

func (s *wsSession) Recv(ctx context.Context) (*Message, error) {
	for {
		f, err := s.read(ctx)
		if err != nil {
			return nil, err
		}
		switch f.Type {
		case "data":
			out := []byte(f.Output)
			if string(out) == "null" {
				out = nil
			}
			return &Message{Type: MessageData, Cursor: f.Cursor, Clock: Clock(f.Clock), Output: out}, nil
		case "undo":
			return &Message{
				Type:            MessageUndo,
				LastValidCursor: f.LastValidCursor,
				LastValidBlock:  Clock(f.LastValidBlock),
			}, nil
		case "error":
			return nil, fmt.Errorf("stream error frame: %s", f.Message)
		default:
			logging.Debug().Str("type", f.Type).Msg("ignoring stream frame")
		}
	}
}

func (s *wsSession) read(ctx context.Context) (*frame, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.idle)); err != nil {
		return nil, err
	}
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil, io.EOF
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, &TimeoutError{Idle: s.idle}
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode stream frame: %w", err)
	}
	return &f, nil
}

func (s *wsSession) Close() error {
	if s.stop != nil {
		s.stop()
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}
