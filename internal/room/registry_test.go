package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestRegistry_EnsureRoomIsIdempotent(t *testing.T) {
	r := NewRegistry(WithClock(fixedClock()))

	first, err := r.EnsureRoom("abc123", SessionVideo)
	require.NoError(t, err)

	second, err := r.EnsureRoom("abc123", SessionChat)
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, SessionVideo, second.SessionType, "session type is fixed by the first caller")
	assert.Equal(t, 1, r.Len())

	_, err = r.EnsureRoom("", SessionChat)
	assert.ErrorIs(t, err, ErrEmptyRoomID)
}

func TestRegistry_AddParticipantRequiresRoom(t *testing.T) {
	r := NewRegistry()

	_, err := r.AddParticipant("missing", RoleUser, "u1", "c1")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = r.EnsureRoom("r1", SessionVoice)
	require.NoError(t, err)

	res, err := r.AddParticipant("r1", RoleUser, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, res.OtherPresent)
	assert.Len(t, res.Occupants, 1)
}

func TestRegistry_JoinValidation(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		roomID  string
		role    Role
		connID  string
		wantErr error
	}{
		{name: "empty room", roomID: "", role: RoleUser, connID: "c1", wantErr: ErrEmptyRoomID},
		{name: "empty conn", roomID: "r", role: RoleUser, connID: "", wantErr: ErrEmptyConnID},
		{name: "bad role", roomID: "r", role: Role("admin"), connID: "c1", wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Join(tt.roomID, SessionChat, tt.role, "p", tt.connID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_BothReadyFiresOncePerTransition(t *testing.T) {
	r := NewRegistry()

	res, err := r.Join("abc123", SessionVideo, RoleUser, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, res.OtherPresent)
	assert.False(t, res.BothReady)

	res, err = r.Join("abc123", SessionVideo, RoleAstrologer, "a1", "c2")
	require.NoError(t, err)
	assert.True(t, res.OtherPresent)
	assert.True(t, res.BothReady)

	// same connection, same slot: no new transition
	res, err = r.Join("abc123", SessionVideo, RoleAstrologer, "a1", "c2")
	require.NoError(t, err)
	assert.False(t, res.BothReady)
	assert.Len(t, res.Occupants, 2)

	// drop to one occupant and come back: a fresh 1 -> 2 transition
	_, ok := r.RemoveParticipant("c2")
	require.True(t, ok)

	res, err = r.Join("abc123", SessionVideo, RoleAstrologer, "a1", "c3")
	require.NoError(t, err)
	assert.True(t, res.BothReady)
}

func TestRegistry_OccupancyNeverExceedsRoles(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 10; i++ {
		role := Roles[i%len(Roles)]
		_, err := r.Join("room", SessionVoice, role, fmt.Sprintf("p%d", i), fmt.Sprintf("c%d", i))
		require.NoError(t, err)

		occupants := r.Occupants("room")
		assert.LessOrEqual(t, len(occupants), len(Roles))
	}

	// only the last connection per role survives in the index
	assert.Equal(t, 2, r.Connections())
}

func TestRegistry_SupersedeSameRole(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("r", SessionVideo, RoleUser, "u1", "c1")
	require.NoError(t, err)
	_, err = r.Join("r", SessionVideo, RoleAstrologer, "a1", "c2")
	require.NoError(t, err)

	res, err := r.Join("r", SessionVideo, RoleAstrologer, "a1", "c3")
	require.NoError(t, err)

	require.NotNil(t, res.Superseded)
	assert.Equal(t, "c2", res.Superseded.ConnID)
	assert.True(t, res.OtherPresent)
	assert.True(t, res.BothReady, "the swap re-arms the ready edge")

	_, _, ok := r.Lookup("c2")
	assert.False(t, ok, "superseded connection must leave the index")

	_, ok = r.RemoveParticipant("c2")
	assert.False(t, ok, "stale disconnect must not evict the newer slot")

	roomID, p, ok := r.Lookup("c3")
	require.True(t, ok)
	assert.Equal(t, "r", roomID)
	assert.Equal(t, RoleAstrologer, p.Role)
}

func TestRegistry_RemoveParticipant(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("abc123", SessionVideo, RoleUser, "u1", "c1")
	require.NoError(t, err)
	_, err = r.Join("abc123", SessionVideo, RoleAstrologer, "a1", "c2")
	require.NoError(t, err)

	removal, ok := r.RemoveParticipant("c2")
	require.True(t, ok)
	assert.Equal(t, "abc123", removal.RoomID)
	assert.Equal(t, RoleAstrologer, removal.Participant.Role)
	assert.Equal(t, "a1", removal.Participant.ParticipantID)
	assert.False(t, removal.RoomDeleted)
	require.Len(t, removal.Remaining, 1)
	assert.Equal(t, "c1", removal.Remaining[0].ConnID)

	info, ok := r.Room("abc123")
	require.True(t, ok)
	assert.Len(t, info.Participants, 1)
	assert.False(t, info.Ready)

	// idempotent
	_, ok = r.RemoveParticipant("c2")
	assert.False(t, ok)

	removal, ok = r.RemoveParticipant("c1")
	require.True(t, ok)
	assert.True(t, removal.RoomDeleted)
	assert.Nil(t, removal.Transcript, "video rooms keep no chat history")

	_, ok = r.Room("abc123")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Connections())
}

func TestRegistry_JoiningAnotherRoomLeavesThePrevious(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("first", SessionChat, RoleUser, "u1", "c1")
	require.NoError(t, err)
	_, _, err = r.AppendMessage("first", ChatMessage{SenderType: RoleUser, SenderID: "u1", Body: "still there?"})
	require.NoError(t, err)

	res, err := r.Join("second", SessionChat, RoleUser, "u1", "c1")
	require.NoError(t, err)

	require.NotNil(t, res.Left)
	assert.Equal(t, "first", res.Left.RoomID)
	assert.Empty(t, res.Left.Remaining)
	assert.True(t, res.Left.RoomDeleted)
	require.NotNil(t, res.Left.Transcript)
	require.Len(t, res.Left.Transcript.Messages, 1)
	assert.Equal(t, "still there?", res.Left.Transcript.Messages[0].Body)

	_, ok := r.Room("first")
	assert.False(t, ok, "emptied room is destroyed")

	roomID, _, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "second", roomID)
}

func TestRegistry_RoleSwitchInSameRoomKeepsRoom(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("r1", SessionChat, RoleUser, "u1", "c1")
	require.NoError(t, err)
	_, _, err = r.AppendMessage("r1", ChatMessage{SenderType: RoleUser, SenderID: "u1", Body: "hello"})
	require.NoError(t, err)

	res, err := r.Join("r1", SessionChat, RoleAstrologer, "a1", "c1")
	require.NoError(t, err)

	require.NotNil(t, res.Left)
	assert.Equal(t, RoleUser, res.Left.Participant.Role)
	assert.False(t, res.Left.RoomDeleted)
	assert.Nil(t, res.Left.Transcript)
	assert.False(t, res.BothReady)
	assert.Len(t, res.History, 1, "history survives the switch")

	roomID, p, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "r1", roomID)
	assert.Equal(t, RoleAstrologer, p.Role)

	info, ok := r.Room("r1")
	require.True(t, ok)
	require.Len(t, info.Participants, 1)
	assert.Equal(t, "c1", info.Participants[0].ConnID)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, r.Connections())

	removal, ok := r.RemoveParticipant("c1")
	require.True(t, ok)
	assert.True(t, removal.RoomDeleted)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Connections())
}

func TestRegistry_ChatHistoryOrderAndCap(t *testing.T) {
	r := NewRegistry(WithHistoryLimit(3), WithClock(fixedClock()))

	_, err := r.Join("chat", SessionChat, RoleUser, "u1", "c1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		msg, recipients, err := r.AppendMessage("chat", ChatMessage{
			SenderType: RoleUser,
			SenderID:   "u1",
			Body:       fmt.Sprintf("m%d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, "chat", msg.RoomID)
		assert.False(t, msg.SentAt.IsZero())
		assert.Len(t, recipients, 1)
	}

	hist := r.History("chat")
	require.Len(t, hist, 3)
	assert.Equal(t, "m2", hist[0].Body)
	assert.Equal(t, "m3", hist[1].Body)
	assert.Equal(t, "m4", hist[2].Body)

	// a late joiner gets the retained history in order
	res, err := r.Join("chat", SessionChat, RoleAstrologer, "a1", "c2")
	require.NoError(t, err)
	require.Len(t, res.History, 3)
	assert.Equal(t, "m2", res.History[0].Body)

	_, ok := r.RemoveParticipant("c1")
	require.True(t, ok)
	removal, ok := r.RemoveParticipant("c2")
	require.True(t, ok)
	require.NotNil(t, removal.Transcript)
	assert.Len(t, removal.Transcript.Messages, 3)
	assert.Equal(t, SessionChat, removal.Transcript.SessionType)
}

func TestRegistry_AppendMessageToMissingRoom(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.AppendMessage("nope", ChatMessage{Body: "hi"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_ConcurrentJoinAndLeave(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			roomID := fmt.Sprintf("room-%d", i%5)
			role := Roles[i%len(Roles)]

			_, err := r.Join(roomID, SessionVoice, role, "p", connID)
			assert.NoError(t, err)
			r.RemoveParticipant(connID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Connections())
	assert.Equal(t, 0, r.Len(), "every room emptied and was destroyed")
}

func TestParseRoleAndSessionType(t *testing.T) {
	role, err := ParseRole("astrologer")
	require.NoError(t, err)
	assert.Equal(t, RoleAstrologer, role)

	_, err = ParseRole("guest")
	assert.ErrorIs(t, err, ErrInvalidRole)

	st, err := ParseSessionType("video")
	require.NoError(t, err)
	assert.Equal(t, SessionVideo, st)

	_, err = ParseSessionType("hologram")
	assert.ErrorIs(t, err, ErrInvalidSessionType)
}
