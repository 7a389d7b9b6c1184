package websocket

import (
	"errors"

	"github.com/coder/websocket"
	"github.com/rx3lixir/astro_rtc/internal/room"
)

var (
	errAdmissionMissing  = errors.New("admission token required")
	errAdmissionMismatch = errors.New("admission token does not cover this room slot")
	errAdmissionSession  = errors.New("admission token does not cover this session type")
)

func (h *Hub) handleJoin(client *Client, ev *JoinRoom) {
	log := client.log.With(
		"room_id", ev.RoomID,
		"participant_type", ev.Role(),
		"participant_id", ev.ParticipantID,
	)

	if h.config.RequireAdmission {
		if err := h.checkAdmission(ev); err != nil {
			h.metrics.EventsRejected.Add(1)
			log.Warn("join denied", "error", err)
			h.emitTo(client, NewError(CodeAdmissionDenied, err.Error()))
			return
		}
	}

	if roomID, p, ok := h.registry.Lookup(client.id); ok {
		if roomID == ev.RoomID && p.Role == ev.Role() && p.ParticipantID == ev.ParticipantID {
			// Repeated join of the slot this connection already holds
			if info, ok := h.registry.Room(roomID); ok {
				h.emitTo(client, NewRoomJoined(info, p.Role, len(info.Participants) > 1))
			}
			return
		}
	}

	res, err := h.registry.Join(ev.RoomID, ev.Session(), ev.Role(), ev.ParticipantID, client.id)
	if err != nil {
		log.Error("failed to join room", "error", err)
		h.emitTo(client, NewError(CodeJoinFailed, err.Error()))
		return
	}

	if res.Left != nil {
		h.departed(client.id, *res.Left, "switched slot")
	}

	if res.Superseded != nil {
		h.evict(res.Room.ID, *res.Superseded, client.id)
	}

	var joined room.Participant
	for _, p := range res.Occupants {
		if p.ConnID == client.id {
			joined = p
		}
	}

	h.emitToParticipants(res.Occupants, NewParticipantJoined(res.Room.ID, joined), client.id)
	h.emitTo(client, NewRoomJoined(res.Room, joined.Role, res.OtherPresent))

	if len(res.History) > 0 {
		h.emitTo(client, NewMessageHistory(res.Room.ID, res.History))
	}

	if res.BothReady {
		h.emitToParticipants(res.Occupants, NewBothReady(res.Room), "")
	}

	log.Info("participant joined",
		"session_type", res.Room.SessionType,
		"occupants", len(res.Occupants),
		"both_ready", res.BothReady,
	)
}

// evict closes a connection whose role slot was taken by a newer join
func (h *Hub) evict(roomID string, old room.Participant, newConnID string) {
	h.emitToRoom(roomID, NewParticipantLeft(roomID, old), newConnID)

	client, ok := h.clients[old.ConnID]
	if !ok {
		return
	}

	h.log.Info("connection superseded",
		"room_id", roomID,
		"conn_id", old.ConnID,
		"participant_type", old.Role,
		"new_conn_id", newConnID,
	)

	h.emitTo(client, NewError(CodeSuperseded, "another connection joined with the same role"))
	h.closeClient(client, websocket.StatusPolicyViolation, "superseded")
}

func (h *Hub) checkAdmission(ev *JoinRoom) error {
	if ev.Token == "" || h.admission == nil {
		return errAdmissionMissing
	}

	claims, err := h.admission.ValidateAdmissionToken(ev.Token)
	if err != nil {
		return err
	}
	if !claims.Admits(ev.RoomID, string(ev.Role()), ev.ParticipantID) {
		return errAdmissionMismatch
	}
	if !claims.AdmitsSession(string(ev.Session())) {
		return errAdmissionSession
	}
	return nil
}

func (h *Hub) handleLeave(client *Client, ev *LeaveRoom) {
	roomID, _, ok := h.registry.Lookup(client.id)
	if !ok || roomID != ev.RoomID {
		client.log.Debug("leave for a room the connection is not in", "room_id", ev.RoomID)
		return
	}
	h.leaveRoom(client, "left")
}

// leaveRoom runs the cleanup shared by leave-room and disconnects
func (h *Hub) leaveRoom(client *Client, reason string) {
	removal, ok := h.registry.RemoveParticipant(client.id)
	if !ok {
		return
	}
	h.departed(client.id, removal, reason)
}

// departed announces a freed slot and retires the room once it is gone
func (h *Hub) departed(connID string, removal room.Removal, reason string) {
	h.emitToParticipants(removal.Remaining, NewParticipantLeft(removal.RoomID, removal.Participant), "")

	h.log.Info("participant left",
		"room_id", removal.RoomID,
		"conn_id", connID,
		"participant_type", removal.Participant.Role,
		"reason", reason,
		"room_deleted", removal.RoomDeleted,
	)

	if !removal.RoomDeleted {
		return
	}
	if h.persister != nil {
		h.persister.Forget(removal.RoomID)
	}
	if removal.Transcript != nil && h.archiver != nil {
		h.archiver.Archive(*removal.Transcript)
	}
}
