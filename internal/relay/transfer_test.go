package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeAdvertisementCreatesThenFills(t *testing.T) {
	s := NewState()

	merged, created := s.mergeAdvertisement(Advertisement{Name: "abc", IP: "10.0.0.5", RelayRoomID: "room-1"})
	assert.True(t, created)
	assert.Equal(t, "room-1", merged.RelayRoomID)
	assert.Empty(t, merged.LocalRoomID)

	merged, created = s.mergeAdvertisement(Advertisement{Name: "abc", LocalRoomID: "room-1"})
	assert.False(t, created)
	assert.Equal(t, "room-1", merged.RelayRoomID)
	assert.Equal(t, "room-1", merged.LocalRoomID)
}

func TestMergeAdvertisementFillsLocalFirstWhenPublishedFirst(t *testing.T) {
	s := NewState()

	s.mergeAdvertisement(Advertisement{Name: "xyz", LocalRoomID: "room-2"})
	merged, created := s.mergeAdvertisement(Advertisement{Name: "xyz", RelayRoomID: "room-2"})

	assert.False(t, created)
	assert.Equal(t, "room-2", merged.RelayRoomID)
}

func TestFindAndDeleteAdvertisement(t *testing.T) {
	s := NewState()
	s.mergeAdvertisement(Advertisement{Name: "findme", RelayRoomID: "r"})

	found, ok := s.findAdvertisement("findme")
	assert.True(t, ok)
	assert.Equal(t, "findme", found.Name)

	_, ok = s.findAdvertisement("missing")
	assert.False(t, ok)

	assert.True(t, s.deleteAdvertisement("findme"))
	assert.False(t, s.deleteAdvertisement("findme"))
}

func TestHashNameIsStableAndHex(t *testing.T) {
	a := HashName("transfer-one")
	b := HashName("transfer-one")
	c := HashName("transfer-two")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
