// Package protocol defines the wire types exchanged between peers and
// the relay: the JSON control messages that drive the signalling
// state machine, and the binary packet union carried inside frame
// bodies once a connection is in a room.
package protocol

// ControlType discriminates a JSON control message.
type ControlType string

const (
	ControlCreate ControlType = "create"
	ControlJoin   ControlType = "join"
	ControlLeave  ControlType = "leave"
	ControlError  ControlType = "error"
)

// Envelope is decoded first to read the discriminator before
// unmarshalling into the concrete payload type.
type Envelope struct {
	Type ControlType `json:"type"`
}

// CreateMessage is sent client→relay to create a room (ID optional,
// a fresh UUID is assigned if absent) and relay→client to echo the
// assigned room ID back to the creator.
type CreateMessage struct {
	Type ControlType `json:"type"`
	ID   string      `json:"id,omitempty"`
}

// JoinMessage is sent client→relay naming the room to join, and
// relay→client on successful join. Size distinguishes the message's
// audience: present for the newcomer (count of peers already in the
// room), absent for existing members (a new peer arrived).
type JoinMessage struct {
	Type ControlType `json:"type"`
	ID   string      `json:"id,omitempty"`
	Size *int        `json:"size,omitempty"`
}

// LeaveMessage is sent client→relay to leave voluntarily, and
// relay→client reporting which member index departed.
type LeaveMessage struct {
	Type  ControlType `json:"type"`
	Index *int        `json:"index,omitempty"`
}

// ErrorMessage is sent relay→client reporting a signalling policy
// violation. The connection stays open and in Lobby.
type ErrorMessage struct {
	Type    ControlType `json:"type"`
	Message string      `json:"message"`
}

func NewCreate(id string) CreateMessage { return CreateMessage{Type: ControlCreate, ID: id} }

func NewJoinRequest(id string) JoinMessage { return JoinMessage{Type: ControlJoin, ID: id} }

func NewJoinForNewcomer(size int) JoinMessage {
	return JoinMessage{Type: ControlJoin, Size: &size}
}

func NewJoinForExisting() JoinMessage { return JoinMessage{Type: ControlJoin} }

func NewLeaveRequest() LeaveMessage { return LeaveMessage{Type: ControlLeave} }

func NewLeaveNotice(index int) LeaveMessage {
	return LeaveMessage{Type: ControlLeave, Index: &index}
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: ControlError, Message: message}
}
