package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, sessionID string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + sessionID
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req parley.ChatRequest) parley.ChatResponse {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	return readResponse(t, conn)
}

func readResponse(t *testing.T, conn *websocket.Conn) parley.ChatResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp parley.ChatResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestChatSocket_Conversation(t *testing.T) {
	srv := httptest.NewServer(NewHandler(newEngine(t)))
	defer srv.Close()

	conn := dial(t, srv, "ws-1", nil)

	resp := roundTrip(t, conn, parley.ChatRequest{Message: "start"})
	assert.Equal(t, "ws-1", resp.SessionID)
	require.NotNil(t, resp.CurrentStepID)
	assert.Equal(t, int64(1), *resp.CurrentStepID)
	assert.Contains(t, resp.Message, "Parley")

	resp = roundTrip(t, conn, parley.ChatRequest{Message: "ok"})
	require.NotNil(t, resp.CurrentStepID)
	assert.Equal(t, int64(2), *resp.CurrentStepID)
	assert.Equal(t, parley.MessageChoice, resp.MessageType)
	assert.Len(t, resp.Choices, 4)

	resp = roundTrip(t, conn, parley.ChatRequest{Message: "   "})
	assert.Equal(t, parley.MessageError, resp.MessageType)
	assert.Equal(t, parley.EmptyMessageText, resp.Message)
}

func TestChatSocket_RejectsOversizedInput(t *testing.T) {
	t.Setenv(parley.EnvMaxInputSize, "8")
	srv := httptest.NewServer(NewHandler(newEngine(t)))
	defer srv.Close()

	conn := dial(t, srv, "ws-big", nil)
	resp := roundTrip(t, conn, parley.ChatRequest{Message: "this message is too long"})
	assert.Equal(t, parley.MessageError, resp.MessageType)
	assert.Contains(t, resp.Message, "exceeds maximum")
}

func TestChatSocket_ReceivesRestTurns(t *testing.T) {
	server := NewServer(newEngine(t))
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	conn := dial(t, srv, "shared", nil)
	require.Eventually(t, func() bool { return server.Streams.Subscribers("shared") == 1 }, time.Second, 5*time.Millisecond)

	res, err := http.Post(srv.URL+"/api/scenarios/1/start?sessionId=shared", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	pushed := readResponse(t, conn)
	assert.Equal(t, "shared", pushed.SessionID)
	require.NotNil(t, pushed.CurrentStepID)
	assert.Equal(t, int64(1), *pushed.CurrentStepID)
}

func TestChatSocket_OriginCheck(t *testing.T) {
	srv := httptest.NewServer(NewHandler(newEngine(t), WithAllowedOrigins("https://chat.example.com")))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/o-1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, "o-1", http.Header{"Origin": {"https://CHAT.example.com"}})
	resp2 := roundTrip(t, conn, parley.ChatRequest{Message: "help"})
	assert.Equal(t, parley.MessageInfo, resp2.MessageType)
}
