package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/caesar-go/caesar/internal/protocol"
	"github.com/gorilla/websocket"
)

// lifecycle is the per-connection signalling state: Lobby → InRoom →
// Gone. Transitions are driven only by inbound control messages and
// connection close.
type lifecycle int

const (
	lobby lifecycle = iota
	inRoom
	gone
)

const outboxCapacity = 1000

// client runs the Lobby/InRoom/Gone state machine for one websocket
// connection. One reader goroutine (Serve) and one writer goroutine
// (writePump) own the connection; the writer is the only goroutine
// that calls conn.WriteMessage, serialising writes without exposing
// the raw sink as shared mutable state.
type client struct {
	state  *State
	log    *slog.Logger
	conn   *websocket.Conn
	member *member

	life   lifecycle
	roomID string
}

func newClient(state *State, conn *websocket.Conn, log *slog.Logger) *client {
	return &client{
		state: state,
		log:   log,
		conn:  conn,
		member: &member{
			conn:   conn,
			outbox: make(chan outboundMessage, outboxCapacity),
		},
		life: lobby,
	}
}

// Serve runs the connection to completion: starts the writer pump,
// reads messages until the connection closes or errors, then performs
// the InRoom leave cleanup if necessary.
func (c *client) Serve() {
	writerDone := make(chan struct{})
	go c.writePump(writerDone)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		switch msgType {
		case websocket.TextMessage:
			c.handleControl(data)
		case websocket.BinaryMessage:
			c.handleBinary(data)
		}
	}
	c.handleClose()
	close(c.member.outbox)
	<-writerDone
}

func (c *client) writePump(done chan<- struct{}) {
	defer close(done)
	for msg := range c.member.outbox {
		if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
			return
		}
	}
}

func (c *client) sendControl(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	enqueue(c.member, outboundMessage{kind: websocket.TextMessage, data: b})
}

func (c *client) handleControl(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return // malformed JSON: silently ignored, never terminates the connection
	}

	switch env.Type {
	case protocol.ControlCreate:
		var msg protocol.CreateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		c.handleCreate(msg)
	case protocol.ControlJoin:
		var msg protocol.JoinMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		c.handleJoin(msg)
	case protocol.ControlLeave:
		c.handleLeave()
	default:
		// Unknown control messages are silently ignored.
	}
}

func (c *client) handleCreate(msg protocol.CreateMessage) {
	if c.life != lobby {
		return // already a member of a room: ignore
	}
	id, err := c.state.createRoom(msg.ID, c.member)
	if err != nil {
		c.sendControl(protocol.NewError(err.Error()))
		return
	}
	c.life = inRoom
	c.roomID = id
	c.sendControl(protocol.NewCreate(id))
}

func (c *client) handleJoin(msg protocol.JoinMessage) {
	if c.life != lobby {
		return
	}
	snapshot, err := c.state.joinRoom(msg.ID, c.member)
	if err != nil {
		c.sendControl(protocol.NewError(err.Error()))
		return
	}
	c.life = inRoom
	c.roomID = msg.ID

	for _, m := range snapshot {
		if m == c.member {
			sendControl(m, protocol.NewJoinForNewcomer(len(snapshot)-1))
		} else {
			sendControl(m, protocol.NewJoinForExisting())
		}
	}
}

func (c *client) handleLeave() {
	if c.life != inRoom {
		return
	}
	c.leaveRoom()
}

func (c *client) handleClose() {
	if c.life == inRoom {
		c.leaveRoom()
	}
	c.life = gone
}

func (c *client) leaveRoom() {
	idx, remaining, ok := c.state.leaveRoom(c.roomID, c.member)
	c.life = lobby
	c.roomID = ""
	if !ok {
		return
	}
	for _, m := range remaining {
		sendControl(m, protocol.NewLeaveNotice(idx))
	}
}

func (c *client) handleBinary(data []byte) {
	if c.life != inRoom {
		return // Lobby or Gone: drop
	}
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return // malformed frame: silently dropped
	}
	rewritten, targets := c.state.forwardFrame(c.roomID, c.member, frame)
	if rewritten == nil {
		return
	}
	for _, m := range targets {
		enqueue(m, outboundMessage{kind: websocket.BinaryMessage, data: rewritten})
	}
}

// sendControl marshals v and enqueues it on m's outbox as a text
// message, the path used to notify members other than the caller's
// own connection (join/leave fan-out).
func sendControl(m *member, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	enqueue(m, outboundMessage{kind: websocket.TextMessage, data: b})
}

// enqueue pushes onto a member's bounded outbox. The channel backs up
// under a slow consumer, applying backpressure to whichever goroutine
// is forwarding traffic rather than dropping data; a send to an
// already-closed outbox (the member having just disconnected) is
// recovered and discarded.
func enqueue(m *member, msg outboundMessage) {
	defer func() { recover() }()
	m.outbox <- msg
}
