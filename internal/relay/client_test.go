package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caesar-go/caesar/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (protocol.Envelope, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env, data
}

func TestSignallingCreateJoinForwardLeave(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("127.0.0.1:0", log, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	sender := dialWS(t, ts)
	defer sender.Close()
	require.NoError(t, sender.WriteJSON(protocol.NewCreate("")))

	env, data := readEnvelope(t, sender)
	require.Equal(t, protocol.ControlCreate, env.Type)
	var created protocol.CreateMessage
	require.NoError(t, json.Unmarshal(data, &created))
	require.NotEmpty(t, created.ID)

	receiver := dialWS(t, ts)
	defer receiver.Close()
	require.NoError(t, receiver.WriteJSON(protocol.NewJoinRequest(created.ID)))

	senderEnv, senderData := readEnvelope(t, sender)
	assert.Equal(t, protocol.ControlJoin, senderEnv.Type)
	var senderJoin protocol.JoinMessage
	require.NoError(t, json.Unmarshal(senderData, &senderJoin))
	assert.Nil(t, senderJoin.Size)

	receiverEnv, receiverData := readEnvelope(t, receiver)
	assert.Equal(t, protocol.ControlJoin, receiverEnv.Type)
	var receiverJoin protocol.JoinMessage
	require.NoError(t, json.Unmarshal(receiverData, &receiverJoin))
	require.NotNil(t, receiverJoin.Size)
	assert.Equal(t, 1, *receiverJoin.Size)

	require.NoError(t, sender.WriteMessage(websocket.BinaryMessage, protocol.EncodeFrame(1, []byte("payload"))))
	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := receiver.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(0), frame.Address)
	assert.Equal(t, []byte("payload"), frame.Body)

	require.NoError(t, sender.WriteJSON(protocol.NewLeaveRequest()))
	env, data = readEnvelope(t, receiver)
	assert.Equal(t, protocol.ControlLeave, env.Type)
	var leave protocol.LeaveMessage
	require.NoError(t, json.Unmarshal(data, &leave))
	require.NotNil(t, leave.Index)
	assert.Equal(t, 0, *leave.Index)
}

func TestJoinRejectsUnknownRoom(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("127.0.0.1:0", log, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(protocol.NewJoinRequest("no-such-room")))

	env, data := readEnvelope(t, conn)
	require.Equal(t, protocol.ControlError, env.Type)
	var msg protocol.ErrorMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "The room does not exist.", msg.Message)
}

func TestRoomFullRejectsThirdJoin(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("127.0.0.1:0", log, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	a := dialWS(t, ts)
	defer a.Close()
	require.NoError(t, a.WriteJSON(protocol.NewCreate("room-full")))
	readEnvelope(t, a)

	b := dialWS(t, ts)
	defer b.Close()
	require.NoError(t, b.WriteJSON(protocol.NewJoinRequest("room-full")))
	readEnvelope(t, a)
	readEnvelope(t, b)

	c := dialWS(t, ts)
	defer c.Close()
	require.NoError(t, c.WriteJSON(protocol.NewJoinRequest("room-full")))

	env, data := readEnvelope(t, c)
	require.Equal(t, protocol.ControlError, env.Type)
	var msg protocol.ErrorMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "The room is full.", msg.Message)
}
