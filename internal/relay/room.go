package relay

import "github.com/gorilla/websocket"

// Capacity is the compile-time member limit of every room.
const Capacity = 2

// outboundMessage is one item queued for a member's writer goroutine:
// either a JSON control message (TextMessage) or a forwarded protocol
// frame (BinaryMessage).
type outboundMessage struct {
	kind int
	data []byte
}

// member is one occupant of a room: its websocket connection plus the
// bounded outbound channel its writer goroutine drains. The slice
// index within Room.members is the member's address for binary frame
// forwarding purposes.
type member struct {
	conn   *websocket.Conn
	outbox chan outboundMessage
}

// Room is a transient, at-most-Capacity meeting point. Its member
// list is ordered by join time; members are addressed by their
// zero-based index within that order.
type Room struct {
	id      string
	members []*member
}

func newRoom(id string) *Room {
	return &Room{id: id, members: make([]*member, 0, Capacity)}
}

// Size returns the current member count.
func (r *Room) Size() int { return len(r.members) }

// Full reports whether the room is at capacity.
func (r *Room) Full() bool { return len(r.members) >= Capacity }

// indexOf returns the member's index, or -1 if not present.
func (r *Room) indexOf(m *member) int {
	for i, mm := range r.members {
		if mm == m {
			return i
		}
	}
	return -1
}

// snapshot returns a copy of the current member slice. Callers must
// hold the registry lock while calling this; the copy stays valid
// after the lock is released and is unaffected by later mutations.
func (r *Room) snapshot() []*member {
	out := make([]*member, len(r.members))
	copy(out, r.members)
	return out
}
