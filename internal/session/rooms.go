package session

import "sort"

type room struct {
	members []string // join order
	index   map[string]struct{}
}

// RoomTable maps a script ID to the users currently joined to it. A room
// exists only while it has members. Like Registry it relies on the Hub for
// synchronization.
type RoomTable struct {
	rooms map[string]*room
}

func NewRoomTable() *RoomTable { return &RoomTable{rooms: make(map[string]*room)} }

// Join adds userID to the room, creating it if needed. It reports whether
// the user was newly added.
func (t *RoomTable) Join(scriptID, userID string) bool {
	r, ok := t.rooms[scriptID]
	if !ok {
		r = &room{index: make(map[string]struct{})}
		t.rooms[scriptID] = r
	}
	if _, joined := r.index[userID]; joined {
		return false
	}
	r.index[userID] = struct{}{}
	r.members = append(r.members, userID)
	return true
}

// Leave removes userID and prunes the room once empty. It reports whether
// anything was removed.
func (t *RoomTable) Leave(scriptID, userID string) bool {
	r, ok := t.rooms[scriptID]
	if !ok {
		return false
	}
	if _, joined := r.index[userID]; !joined {
		return false
	}
	delete(r.index, userID)
	for i, id := range r.members {
		if id == userID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if len(r.members) == 0 {
		delete(t.rooms, scriptID)
	}
	return true
}

// RemoveEverywhere drops userID from every room and returns the affected
// script IDs in sorted order.
func (t *RoomTable) RemoveEverywhere(userID string) []string {
	var affected []string
	for scriptID, r := range t.rooms {
		if _, joined := r.index[userID]; joined {
			affected = append(affected, scriptID)
		}
	}
	sort.Strings(affected)
	for _, scriptID := range affected {
		t.Leave(scriptID, userID)
	}
	return affected
}

// Members returns a copy of the room's members in join order.
func (t *RoomTable) Members(scriptID string) []string {
	r, ok := t.rooms[scriptID]
	if !ok {
		return nil
	}
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

func (t *RoomTable) Exists(scriptID string) bool {
	_, ok := t.rooms[scriptID]
	return ok
}

func (t *RoomTable) Len() int { return len(t.rooms) }
