package relay

// Advertisement is the registry record a sender publishes so a
// receiver can look up its rendezvous coordinates by hashed name.
type Advertisement struct {
	Name        string `json:"name"`
	IP          string `json:"ip"`
	LocalRoomID string `json:"local_room_id"`
	RelayRoomID string `json:"relay_room_id"`
}

// mergeAdvertisement implements the PUT /upload merge rule: match by
// Name. If none exists, append and report created. If one exists and
// its relay_room_id is empty, overwrite relay_room_id with the
// incoming relay_room_id; otherwise overwrite local_room_id with the
// incoming local_room_id, even when that value is empty. Report merged.
//
// Callers must hold the registry write lock.
func (s *State) mergeAdvertisement(incoming Advertisement) (merged Advertisement, created bool) {
	for i, existing := range s.advertisements {
		if existing.Name != incoming.Name {
			continue
		}
		if existing.RelayRoomID == "" {
			existing.RelayRoomID = incoming.RelayRoomID
		} else {
			existing.LocalRoomID = incoming.LocalRoomID
		}
		s.advertisements[i] = existing
		return existing, false
	}
	s.advertisements = append(s.advertisements, incoming)
	return incoming, true
}

// findAdvertisement looks up an advertisement by hashed name.
//
// Callers must hold the registry lock.
func (s *State) findAdvertisement(name string) (Advertisement, bool) {
	for _, a := range s.advertisements {
		if a.Name == name {
			return a, true
		}
	}
	return Advertisement{}, false
}

// deleteAdvertisement removes an advertisement by hashed name and
// reports whether one was found.
//
// Callers must hold the registry write lock.
func (s *State) deleteAdvertisement(name string) bool {
	for i, a := range s.advertisements {
		if a.Name == name {
			s.advertisements = append(s.advertisements[:i], s.advertisements[i+1:]...)
			return true
		}
	}
	return false
}
