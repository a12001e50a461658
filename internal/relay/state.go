package relay

import (
	"sync"

	"github.com/caesar-go/caesar/internal/protocol"
	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/google/uuid"
)

// State is the relay's entire mutable footprint: the room registry
// and the transfer advertisement list, both process-wide and held
// behind a single readers-writer lock. All mutations take the write
// lock and release it before any network I/O; broadcast fan-outs use
// snapshots of member handles taken while the lock was held.
type State struct {
	mu             sync.RWMutex
	rooms          map[string]*Room
	advertisements []Advertisement
}

// NewState returns an empty registry.
func NewState() *State {
	return &State{rooms: make(map[string]*Room)}
}

// Counts returns the current room and advertisement counts, used by
// the /status diagnostic endpoint.
func (s *State) Counts() (rooms, transfers int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms), len(s.advertisements)
}

// createRoom handles the Lobby "create{id?}" transition: allocates a
// fresh UUID-v4 if requestedID is empty, rejects a duplicate ID, and
// inserts who as member 0.
func (s *State) createRoom(requestedID string, who *member) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := requestedID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.rooms[id]; exists {
		return "", transfererrors.ErrDuplicateRoomID
	}
	room := newRoom(id)
	room.members = append(room.members, who)
	s.rooms[id] = room
	return id, nil
}

// joinRoom handles the Lobby "join{id}" transition: appends who to
// the named room and returns a snapshot of the full membership after
// the join, so the caller can notify the newcomer and existing
// members with the size-present/absent distinction.
func (s *State) joinRoom(id string, who *member) ([]*member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, transfererrors.ErrNoRoom
	}
	if room.Full() {
		return nil, transfererrors.ErrRoomFull
	}
	room.members = append(room.members, who)
	return room.snapshot(), nil
}

// leaveRoom handles the InRoom "leave"/connection-close transition:
// removes who from its room, deleting the room if it is now empty,
// and returns who's former index plus a snapshot of the members left
// behind.
func (s *State) leaveRoom(roomID string, who *member) (index int, remaining []*member, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[roomID]
	if !exists {
		return 0, nil, false
	}
	idx := room.indexOf(who)
	if idx < 0 {
		return 0, nil, false
	}
	room.members = append(room.members[:idx], room.members[idx+1:]...)
	if len(room.members) == 0 {
		delete(s.rooms, roomID)
	}
	return idx, room.snapshot(), true
}

// forwardFrame handles an InRoom binary frame: rewrites the address
// byte from destination-as-sent to source-as-delivered and resolves
// the delivery target(s). A destination naming no occupant yields a
// nil target slice; the caller drops the frame silently.
func (s *State) forwardFrame(roomID string, who *member, frame protocol.Frame) (rewritten []byte, targets []*member) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	srcIndex := room.indexOf(who)
	if srcIndex < 0 {
		return nil, nil
	}
	snapshot := room.snapshot()
	rewritten = protocol.EncodeFrame(byte(srcIndex), frame.Body)

	if frame.Address == protocol.Broadcast {
		targets = make([]*member, 0, len(snapshot)-1)
		for i, m := range snapshot {
			if i != srcIndex {
				targets = append(targets, m)
			}
		}
		return rewritten, targets
	}
	if int(frame.Address) < len(snapshot) {
		return rewritten, []*member{snapshot[frame.Address]}
	}
	return rewritten, nil
}
