package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestCheckToken(t *testing.T) {
	now := time.Now()
	assert.NoError(t, checkToken("", now))
	assert.NoError(t, checkToken("opaque-api-key", now))
	assert.NoError(t, checkToken(signedToken(t, now.Add(time.Hour)), now))

	var authErr *AuthError
	assert.ErrorAs(t, checkToken(signedToken(t, now.Add(-time.Minute)), now), &authErr)
}

func TestNewWebSocketSourceValidates(t *testing.T) {
	var cfgErr *InvalidStreamConfigurationError
	_, err := NewWebSocketSource(WebSocketOptions{OutputModule: "geo_out"})
	assert.ErrorAs(t, err, &cfgErr)
	_, err = NewWebSocketSource(WebSocketOptions{Endpoint: "ws://x"})
	assert.ErrorAs(t, err, &cfgErr)
}

func TestWebSocketSourceFrames(t *testing.T) {
	var upgrader websocket.Upgrader
	requests := make(chan requestFrame, 1)
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req requestFrame
		_ = json.Unmarshal(raw, &req)
		requests <- req

		frames := []string{
			`{"type":"progress"}`,
			`{"type":"data","cursor":"c7","clock":{"number":7,"id":"0x07","timestamp":84},"output":{"spacesCreated":[]}}`,
			`{"type":"data","cursor":"c8","clock":{"number":8,"id":"0x08","timestamp":96},"output":null}`,
			`{"type":"undo","lastValidCursor":"c6","lastValidBlock":{"number":6,"id":"0x06"}}`,
		}
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	src, err := NewWebSocketSource(WebSocketOptions{Endpoint: wsURL(srv), Token: "api-key", OutputModule: "geo_out"})
	require.NoError(t, err)
	ctx := context.Background()
	sess, err := src.Open(ctx, StartPoint{Cursor: "c6", Block: 7})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, "Bearer api-key", <-auth)
	assert.Equal(t, requestFrame{StartCursor: "c6", StartBlock: 7, OutputModule: "geo_out"}, <-requests)

	m, err := sess.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, MessageData, m.Type)
	assert.Equal(t, Clock{Number: 7, ID: "0x07", Timestamp: 84}, m.Clock)
	assert.JSONEq(t, `{"spacesCreated":[]}`, string(m.Output))

	m, err = sess.Recv(ctx)
	require.NoError(t, err)
	assert.Nil(t, m.Output)

	m, err = sess.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, MessageUndo, m.Type)
	assert.Equal(t, "c6", m.LastValidCursor)
	assert.Equal(t, uint64(6), m.LastValidBlock.Number)

	_, err = sess.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWebSocketSourceIdleTimeout(t *testing.T) {
	var upgrader websocket.Upgrader
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	src, err := NewWebSocketSource(WebSocketOptions{
		Endpoint: wsURL(srv), OutputModule: "geo_out", IdleTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	sess, err := src.Open(context.Background(), StartPoint{Block: 1})
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Recv(context.Background())
	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Equal(t, 50*time.Millisecond, timeout.Idle)
}

func TestWebSocketSourceRejectsExpiredToken(t *testing.T) {
	src, err := NewWebSocketSource(WebSocketOptions{
		Endpoint: "ws://127.0.0.1:1", OutputModule: "geo_out",
		Token: signedToken(t, time.Now().Add(-time.Hour)),
	})
	require.NoError(t, err)
	_, err = src.Open(context.Background(), StartPoint{Block: 1})
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestWebSocketSourceUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src, err := NewWebSocketSource(WebSocketOptions{Endpoint: wsURL(srv), OutputModule: "geo_out"})
	require.NoError(t, err)
	_, err = src.Open(context.Background(), StartPoint{Block: 1})
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}
