package room

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultHistoryLimit = 200

type room struct {
	id          string
	sessionType SessionType
	createdAt   time.Time
	slots       map[Role]*Participant
	history     *history // nil unless the room is a chat room
	ready       bool     // both roles occupied; re-armed when a slot empties
}

// indexEntry is a back-reference from a connection to its slot.
// The room's slots stay the source of truth.
type indexEntry struct {
	roomID string
	role   Role
}

// Registry owns every live room and the connection index.
// All methods are safe for concurrent use; each one is a single transaction.
type Registry struct {
	mu           sync.Mutex
	rooms        map[string]*room
	index        map[string]indexEntry
	historyLimit int
	now          func() time.Time
}

type Option func(*Registry)

// WithHistoryLimit caps the per-room chat history kept for catch-up
func WithHistoryLimit(limit int) Option {
	return func(r *Registry) {
		if limit > 0 {
			r.historyLimit = limit
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:        make(map[string]*room),
		index:        make(map[string]indexEntry),
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureRoom returns the room, creating it if needed
func (r *Registry) EnsureRoom(roomID string, sessionType SessionType) (RoomInfo, error) {
	if roomID == "" {
		return RoomInfo{}, ErrEmptyRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ensureLocked(roomID, sessionType).info(), nil
}

// AddParticipant puts connID into the role slot of an existing room.
// Whoever held the slot before is evicted and reported as Superseded.
func (r *Registry) AddParticipant(roomID string, role Role, participantID, connID string) (AddResult, error) {
	if err := validateSlot(roomID, role, connID); err != nil {
		return AddResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return AddResult{}, ErrRoomNotFound
	}
	return r.addLocked(rm, role, participantID, connID), nil
}

// Join creates the room if needed and adds the participant in one step
func (r *Registry) Join(roomID string, sessionType SessionType, role Role, participantID, connID string) (AddResult, error) {
	if err := validateSlot(roomID, role, connID); err != nil {
		return AddResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.ensureLocked(roomID, sessionType)
	return r.addLocked(rm, role, participantID, connID), nil
}

// RemoveParticipant drops whatever slot connID holds.
// It returns false when the connection is not in any room.
func (r *Registry) RemoveParticipant(connID string) (Removal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.index[connID]
	if !ok {
		return Removal{}, false
	}
	return r.removeLocked(entry, connID, false)
}

// Lookup returns the room and role a connection currently holds
func (r *Registry) Lookup(connID string) (roomID string, p Participant, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.index[connID]
	if !ok {
		return "", Participant{}, false
	}
	rm, ok := r.rooms[entry.roomID]
	if !ok {
		return "", Participant{}, false
	}
	slot, ok := rm.slots[entry.role]
	if !ok {
		return "", Participant{}, false
	}
	return rm.id, *slot, true
}

// Occupants returns the participants currently in a room
func (r *Registry) Occupants(roomID string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomID]; ok {
		return rm.occupants()
	}
	return nil
}

// AppendMessage records a chat message and returns the stored copy together
// with the occupants it should reach. Both are taken in the same critical
// section, so delivery order matches history order.
func (r *Registry) AppendMessage(roomID string, msg ChatMessage) (ChatMessage, []Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return ChatMessage{}, nil, ErrRoomNotFound
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = r.now()
	}
	msg.RoomID = roomID

	if rm.history != nil {
		rm.history.append(msg)
	}

	return msg, rm.occupants(), nil
}

// History returns the retained chat history of a room in send order
func (r *Registry) History(roomID string) []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok || rm.history == nil {
		return nil
	}
	return rm.history.messages()
}

// Room returns a snapshot of one room
func (r *Registry) Room(roomID string) (RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return RoomInfo{}, false
	}
	return rm.info(), true
}

// Rooms returns snapshots of all rooms, oldest first
func (r *Registry) Rooms() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RoomInfo, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm.info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len reports how many rooms are open
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Connections reports how many connections hold a slot
func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

func (r *Registry) ensureLocked(roomID string, sessionType SessionType) *room {
	if rm, ok := r.rooms[roomID]; ok {
		return rm
	}

	if sessionType == "" {
		sessionType = SessionChat
	}

	rm := &room{
		id:          roomID,
		sessionType: sessionType,
		createdAt:   r.now(),
		slots:       make(map[Role]*Participant, len(Roles)),
	}
	if sessionType == SessionChat {
		rm.history = newHistory(r.historyLimit)
	}
	r.rooms[roomID] = rm
	return rm
}

func (r *Registry) addLocked(rm *room, role Role, participantID, connID string) AddResult {
	var res AddResult

	// A connection belongs to one slot at a time
	if prev, ok := r.index[connID]; ok && (prev.roomID != rm.id || prev.role != role) {
		if removal, ok := r.removeLocked(prev, connID, prev.roomID == rm.id); ok {
			res.Left = &removal
		}
	}

	if old, ok := rm.slots[role]; ok && old.ConnID != connID {
		superseded := *old
		res.Superseded = &superseded
		delete(r.index, old.ConnID)
		delete(rm.slots, role)
		rm.ready = false
	}

	for other := range rm.slots {
		if other != role {
			res.OtherPresent = true
		}
	}

	rm.slots[role] = &Participant{
		Role:          role,
		ParticipantID: participantID,
		ConnID:        connID,
		JoinedAt:      r.now(),
	}
	r.index[connID] = indexEntry{roomID: rm.id, role: role}

	if len(rm.slots) == len(Roles) && !rm.ready {
		rm.ready = true
		res.BothReady = true
	}

	res.Room = rm.info()
	res.Occupants = rm.occupants()
	if rm.history != nil {
		res.History = rm.history.messages()
	}
	return res
}

// removeLocked frees the slot entry points at. An emptied room is destroyed
// unless keepRoom is set, which a role switch inside the same room needs.
func (r *Registry) removeLocked(entry indexEntry, connID string, keepRoom bool) (Removal, bool) {
	delete(r.index, connID)

	rm, ok := r.rooms[entry.roomID]
	if !ok {
		return Removal{}, false
	}

	p, ok := rm.slots[entry.role]
	if !ok || p.ConnID != connID {
		return Removal{}, false
	}
	delete(rm.slots, entry.role)
	rm.ready = false

	removal := Removal{
		RoomID:      rm.id,
		Participant: *p,
		Remaining:   rm.occupants(),
	}

	if len(rm.slots) > 0 || keepRoom {
		return removal, true
	}

	delete(r.rooms, rm.id)
	removal.RoomDeleted = true
	if rm.history != nil && rm.history.len() > 0 {
		removal.Transcript = &Transcript{
			RoomID:      rm.id,
			SessionType: rm.sessionType,
			CreatedAt:   rm.createdAt,
			ClosedAt:    r.now(),
			Messages:    rm.history.messages(),
		}
	}
	return removal, true
}

func (rm *room) occupants() []Participant {
	out := make([]Participant, 0, len(rm.slots))
	for _, role := range Roles {
		if p, ok := rm.slots[role]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (rm *room) info() RoomInfo {
	info := RoomInfo{
		ID:           rm.id,
		SessionType:  rm.sessionType,
		CreatedAt:    rm.createdAt,
		Participants: rm.occupants(),
		Ready:        rm.ready,
	}
	if rm.history != nil {
		info.HistorySize = rm.history.len()
	}
	return info
}

func validateSlot(roomID string, role Role, connID string) error {
	if roomID == "" {
		return ErrEmptyRoomID
	}
	if connID == "" {
		return ErrEmptyConnID
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	return nil
}
