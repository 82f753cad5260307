// Package rooms implements named multicast groups over attached connection
// endpoints. It knows nothing about conversations or users: rooms and
// connections are opaque string keys.
package rooms

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Tyrowin/chatrouter/internal/wire"
)

// Endpoint is the outbound side of one live connection. Enqueue must not
// block; it reports false when the frame was dropped.
type Endpoint interface {
	Enqueue(frame []byte) bool
}

type set map[string]struct{}

// Fabric tracks room membership and delivers encoded events, best-effort and
// without acknowledgment.
type Fabric struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	members   map[string]set // room -> connections
	connRooms map[string]set // connection -> rooms
	log       *slog.Logger
}

func NewFabric(log *slog.Logger) *Fabric {
	return &Fabric{
		endpoints: make(map[string]Endpoint),
		members:   make(map[string]set),
		connRooms: make(map[string]set),
		log:       log,
	}
}

// Attach makes connID reachable.
func (f *Fabric) Attach(connID string, ep Endpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints[connID] = ep
}

// Detach removes connID from every room and forgets its endpoint. It returns
// the rooms the connection was in.
func (f *Fabric) Detach(connID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	left := sortedKeys(f.connRooms[connID])
	for _, room := range left {
		f.leaveLocked(connID, room)
	}
	delete(f.endpoints, connID)
	return left
}

// Join adds connID to room. Joining twice is a no-op.
func (f *Fabric) Join(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.members[room]; !ok {
		f.members[room] = make(set)
	}
	f.members[room][connID] = struct{}{}

	if _, ok := f.connRooms[connID]; !ok {
		f.connRooms[connID] = make(set)
	}
	f.connRooms[connID][room] = struct{}{}
}

// Leave removes connID from room.
func (f *Fabric) Leave(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaveLocked(connID, room)
}

func (f *Fabric) leaveLocked(connID, room string) {
	if members, ok := f.members[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(f.members, room)
		}
	}
	if rooms, ok := f.connRooms[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(f.connRooms, connID)
		}
	}
}

// RoomsOf lists the rooms connID is currently in, sorted.
func (f *Fabric) RoomsOf(connID string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedKeys(f.connRooms[connID])
}

// EmitToRoom delivers event to every connection in room and returns the
// number of endpoints that accepted the frame.
func (f *Fabric) EmitToRoom(room, event string, payload any) int {
	return f.emitToRoom("", room, event, payload)
}

// EmitToRoomExcept is EmitToRoom without echoing to connID.
func (f *Fabric) EmitToRoomExcept(connID, room, event string, payload any) int {
	return f.emitToRoom(connID, room, event, payload)
}

func (f *Fabric) emitToRoom(except, room, event string, payload any) int {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		f.log.Error("Encoding room event failed", "room", room, "event", event, "error", err)
		return 0
	}

	targets := f.snapshot(room, except)
	delivered := 0
	for connID, ep := range targets {
		if ep.Enqueue(frame) {
			delivered++
			continue
		}
		f.log.Warn("Dropped room event for slow connection", "room", room, "event", event, "connection_id", connID)
	}
	f.log.Debug("Room event delivered", "room", room, "event", event, "targets", len(targets), "delivered", delivered)
	return delivered
}

// EmitToConnection delivers event to a single connection.
func (f *Fabric) EmitToConnection(connID, event string, payload any) bool {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		f.log.Error("Encoding event failed", "connection_id", connID, "event", event, "error", err)
		return false
	}
	return f.send(connID, frame)
}

// Acknowledge answers request id on connID.
func (f *Fabric) Acknowledge(connID string, id int64, payload any) bool {
	frame, err := wire.EncodeAck(id, payload)
	if err != nil {
		f.log.Error("Encoding ack failed", "connection_id", connID, "error", err)
		return false
	}
	return f.send(connID, frame)
}

func (f *Fabric) send(connID string, frame []byte) bool {
	f.mu.RLock()
	ep, ok := f.endpoints[connID]
	f.mu.RUnlock()
	if !ok {
		return false
	}
	return ep.Enqueue(frame)
}

// snapshot copies the endpoints of room so delivery runs without the lock.
func (f *Fabric) snapshot(room, except string) map[string]Endpoint {
	f.mu.RLock()
	defer f.mu.RUnlock()

	targets := make(map[string]Endpoint, len(f.members[room]))
	for connID := range f.members[room] {
		if connID == except {
			continue
		}
		if ep, ok := f.endpoints[connID]; ok {
			targets[connID] = ep
		}
	}
	return targets
}

func sortedKeys(s set) []string {
	if len(s) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
