package relay

import (
	"testing"

	"github.com/caesar-go/caesar/internal/protocol"
	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMember() *member {
	return &member{outbox: make(chan outboundMessage, outboxCapacity)}
}

func TestCreateRoomGeneratesIDWhenEmpty(t *testing.T) {
	s := NewState()
	who := newTestMember()

	id, err := s.createRoom("", who)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rooms, _ := s.Counts()
	assert.Equal(t, 1, rooms)
}

func TestCreateRoomRejectsDuplicateID(t *testing.T) {
	s := NewState()
	_, err := s.createRoom("fixed-id", newTestMember())
	require.NoError(t, err)

	_, err = s.createRoom("fixed-id", newTestMember())
	assert.ErrorIs(t, err, transfererrors.ErrDuplicateRoomID)
}

func TestJoinRoomEnforcesCapacityAndExistence(t *testing.T) {
	s := NewState()
	id, err := s.createRoom("", newTestMember())
	require.NoError(t, err)

	members, err := s.joinRoom(id, newTestMember())
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = s.joinRoom(id, newTestMember())
	assert.ErrorIs(t, err, transfererrors.ErrRoomFull)

	_, err = s.joinRoom("no-such-room", newTestMember())
	assert.ErrorIs(t, err, transfererrors.ErrNoRoom)
}

func TestLeaveRoomRemovesMemberAndDeletesEmptyRoom(t *testing.T) {
	s := NewState()
	first := newTestMember()
	id, err := s.createRoom("", first)
	require.NoError(t, err)
	second := newTestMember()
	_, err = s.joinRoom(id, second)
	require.NoError(t, err)

	idx, remaining, ok := s.leaveRoom(id, first)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Len(t, remaining, 1)

	_, _, ok = s.leaveRoom(id, second)
	require.True(t, ok)

	rooms, _ := s.Counts()
	assert.Equal(t, 0, rooms)
}

func TestForwardFrameRewritesSourceAndResolvesBroadcast(t *testing.T) {
	s := NewState()
	sender := newTestMember()
	id, err := s.createRoom("", sender)
	require.NoError(t, err)
	receiver := newTestMember()
	_, err = s.joinRoom(id, receiver)
	require.NoError(t, err)

	rewritten, targets := s.forwardFrame(id, sender, protocol.Frame{Address: 1, Body: []byte("hi")})
	require.Len(t, targets, 1)
	assert.Same(t, receiver, targets[0])
	frame, err := protocol.DecodeFrame(rewritten)
	require.NoError(t, err)
	assert.Equal(t, byte(0), frame.Address)
	assert.Equal(t, []byte("hi"), frame.Body)

	_, targets = s.forwardFrame(id, sender, protocol.Frame{Address: protocol.Broadcast, Body: []byte("all")})
	require.Len(t, targets, 1)
	assert.Same(t, receiver, targets[0])
}
