package websocket

import (
	"github.com/rx3lixir/astro_rtc/internal/chat"
	"github.com/rx3lixir/astro_rtc/internal/room"
)

// member returns the sender's slot when it sits in roomID, and tells the
// sender otherwise
func (h *Hub) member(client *Client, ev Event) (room.Participant, bool) {
	roomID, p, ok := h.registry.Lookup(client.id)
	if ok && roomID == ev.Room() {
		return p, true
	}

	h.metrics.EventsRejected.Add(1)
	client.log.Warn("event for a room the connection is not in",
		"type", ev.Kind(),
		"room_id", ev.Room(),
	)
	h.emitTo(client, NewError(CodeNotInRoom, "not a participant of room "+ev.Room()))
	return room.Participant{}, false
}

// handleSignal forwards an offer, answer or ICE candidate to the counterpart
func (h *Hub) handleSignal(client *Client, ev *Signal) {
	if _, ok := h.member(client, ev); !ok {
		return
	}
	h.emitToRoom(ev.RoomID, NewSignal(ev.Kind(), ev.RoomID, ev.Payload, client.id), client.id)
}

// handleChatMessage records the message, echoes it to the whole room,
// then hands it to the persistence bridge
func (h *Hub) handleChatMessage(client *Client, ev *SendMessage) {
	sender, ok := h.member(client, ev)
	if !ok {
		return
	}

	if (ev.SenderType != "" && ev.SenderType != string(sender.Role)) ||
		(ev.SenderID != "" && ev.SenderID != sender.ParticipantID) {
		client.log.Warn("chat sender does not match room slot",
			"room_id", ev.RoomID,
			"claimed_type", ev.SenderType,
			"claimed_id", ev.SenderID,
			"participant_type", sender.Role,
			"participant_id", sender.ParticipantID,
		)
	}

	msg, recipients, err := h.registry.AppendMessage(ev.RoomID, room.ChatMessage{
		SenderType:      sender.Role,
		SenderID:        sender.ParticipantID,
		Body:            ev.Message,
		ClientTimestamp: ev.ClientTimestamp(),
	})
	if err != nil {
		client.log.Error("failed to record chat message", "room_id", ev.RoomID, "error", err)
		h.emitTo(client, NewError(CodeNotInRoom, err.Error()))
		return
	}

	h.metrics.ChatMessages.Add(1)
	h.emitToParticipants(recipients, NewChatMessage(msg), "")

	if h.persister != nil {
		h.persister.Enqueue(msg.RoomID, chat.Message{
			ID:         msg.ID,
			SenderType: string(msg.SenderType),
			SenderID:   msg.SenderID,
			Body:       msg.Body,
			CreatedAt:  msg.SentAt,
		})
	}
}

func (h *Hub) handleTyping(client *Client, ev *Typing) {
	sender, ok := h.member(client, ev)
	if !ok {
		return
	}
	h.emitToRoom(ev.RoomID, NewTyping(ev.Stopped, ev.RoomID, sender.Role), client.id)
}

func (h *Hub) handleMediaState(client *Client, ev *MediaStateChange) {
	sender, ok := h.member(client, ev)
	if !ok {
		return
	}
	h.emitToRoom(ev.RoomID, NewMediaState(ev.RoomID, sender.Role, ev.MediaType, *ev.Enabled), client.id)
}

func (h *Hub) handleSyncTimer(client *Client, ev *SyncTimer) {
	sender, ok := h.member(client, ev)
	if !ok {
		return
	}
	h.emitToRoom(ev.RoomID, NewTimerSync(ev.RoomID, sender.Role, *ev.TimeRemaining), client.id)
}
