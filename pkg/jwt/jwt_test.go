package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionToken_RoundTrip(t *testing.T) {
	s := NewService("secret", time.Minute, time.Hour)

	token, exp, err := s.GenerateAdmissionToken(Admission{
		RoomID:        "abc123",
		Role:          "user",
		ParticipantID: "u1",
		SessionType:   "video",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := s.ValidateAdmissionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "abc123", claims.RoomID)
	assert.Equal(t, "video", claims.SessionType)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.Admits("abc123", "user", "u1"))
	assert.False(t, claims.Admits("abc123", "astrologer", "u1"))
	assert.False(t, claims.Admits("other", "user", "u1"))
	assert.True(t, claims.AdmitsSession("video"))
	assert.False(t, claims.AdmitsSession("chat"))

	claims.SessionType = ""
	assert.True(t, claims.AdmitsSession("chat"))
}

func TestAdmissionToken_Rejections(t *testing.T) {
	s := NewService("secret", time.Minute, time.Hour)

	valid, _, err := s.GenerateAdmissionToken(Admission{RoomID: "r", Role: "user", ParticipantID: "u1"})
	require.NoError(t, err)

	operator, err := s.GenerateOperatorToken("ops")
	require.NoError(t, err)

	expired := NewService("secret", time.Minute, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.GenerateAdmissionToken(Admission{RoomID: "r", Role: "user", ParticipantID: "u1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		service *Service
		token   string
	}{
		{name: "wrong secret", service: NewService("other", time.Minute, time.Hour), token: valid},
		{name: "operator token as admission", service: s, token: operator},
		{name: "expired", service: s, token: old},
		{name: "garbage", service: s, token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.service.ValidateAdmissionToken(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}

	_, _, err = s.GenerateAdmissionToken(Admission{RoomID: "r"})
	assert.Error(t, err)
}

func TestOperatorToken(t *testing.T) {
	s := NewService("secret", time.Minute, time.Hour)

	token, err := s.GenerateOperatorToken("ops-1")
	require.NoError(t, err)

	subject, err := s.ValidateOperatorToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", subject)

	admission, _, err := s.GenerateAdmissionToken(Admission{RoomID: "r", Role: "user", ParticipantID: "u1"})
	require.NoError(t, err)

	_, err = s.ValidateOperatorToken(admission)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
