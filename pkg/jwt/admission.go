package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Admission is what the web layer allows a participant to do
type Admission struct {
	RoomID        string `json:"room_id"`
	Role          string `json:"participant_type"`
	ParticipantID string `json:"participant_id"`
	SessionType   string `json:"session_type,omitempty"`
}

type AdmissionClaims struct {
	Admission
	jwt.RegisteredClaims
}

// GenerateAdmissionToken signs a short-lived room admission
func (s *Service) GenerateAdmissionToken(a Admission) (string, time.Time, error) {
	if a.RoomID == "" || a.Role == "" || a.ParticipantID == "" {
		return "", time.Time{}, fmt.Errorf("admission needs room_id, participant_type and participant_id")
	}

	claims := AdmissionClaims{
		Admission:        a,
		RegisteredClaims: s.registered(audienceAdmission, a.ParticipantID, s.admissionDuration, uuid.NewString()),
	}

	token, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign admission token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// ValidateAdmissionToken parses a room admission token
func (s *Service) ValidateAdmissionToken(tokenString string) (*AdmissionClaims, error) {
	claims := &AdmissionClaims{}
	if err := s.parse(tokenString, audienceAdmission, claims); err != nil {
		return nil, err
	}

	if claims.RoomID == "" || claims.Role == "" || claims.ParticipantID == "" {
		return nil, fmt.Errorf("%w: incomplete admission", ErrTokenInvalid)
	}

	return claims, nil
}

// Admits reports whether the claims cover the given room slot
func (c *AdmissionClaims) Admits(roomID, role, participantID string) bool {
	return c.RoomID == roomID && c.Role == role && c.ParticipantID == participantID
}

// AdmitsSession reports whether the claims allow the session type. A token
// minted without one admits any.
func (c *AdmissionClaims) AdmitsSession(sessionType string) bool {
	return c.SessionType == "" || c.SessionType == sessionType
}
