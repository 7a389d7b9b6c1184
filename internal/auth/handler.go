package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/astro_rtc/internal/room"
	"github.com/rx3lixir/astro_rtc/pkg/httputil"
	"github.com/rx3lixir/astro_rtc/pkg/jwt"
	"github.com/rx3lixir/astro_rtc/pkg/password"
)

type SigninRequest struct {
	OperatorID string `json:"operator_id"`
	Secret     string `json:"secret"`
}

type SigninResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CreateAdmissionRequest struct {
	RoomID          string `json:"room_id"`
	ParticipantType string `json:"participant_type"`
	ParticipantID   string `json:"participant_id"`
	SessionType     string `json:"session_type,omitempty"`
}

type CreateAdmissionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Operator struct {
	ID         string
	SecretHash string
}

type Handler struct {
	jwt      *jwt.Service
	operator Operator
	log      *slog.Logger
}

func NewHandler(jwtService *jwt.Service, operator Operator, log *slog.Logger) *Handler {
	return &Handler{
		jwt:      jwtService,
		operator: operator,
		log:      log,
	}
}

// RegisterRoutes mounts the public sign-in route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/token", httputil.Handler(h.HandleSignin, h.log))
}

// RegisterAdmissionRoutes mounts admission minting; callers wrap it in Middleware
func (h *Handler) RegisterAdmissionRoutes(r chi.Router) {
	r.Post("/", httputil.Handler(h.HandleCreateAdmission, h.log))
}

// HandleSignin exchanges the operator secret for an ops API token
func (h *Handler) HandleSignin(w http.ResponseWriter, r *http.Request) error {
	req := new(SigninRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	h.log.Info("operator signin attempt", "operator_id", req.OperatorID)

	if req.OperatorID == "" || req.Secret == "" {
		return httputil.BadRequest("operator_id and secret are required")
	}

	if h.operator.SecretHash == "" {
		return httputil.Unavailable("Operator sign-in is not configured")
	}

	if req.OperatorID != h.operator.ID {
		h.log.Warn("signin failed - unknown operator", "operator_id", req.OperatorID)
		return httputil.Unauthorized("Invalid operator or secret")
	}

	ok, err := password.Verify(req.Secret, h.operator.SecretHash)
	if err != nil {
		return httputil.Internal(err)
	}
	if !ok {
		h.log.Warn("signin failed - secret is invalid", "operator_id", req.OperatorID)
		return httputil.Unauthorized("Invalid operator or secret")
	}

	token, err := h.jwt.GenerateOperatorToken(req.OperatorID)
	if err != nil {
		return httputil.Internal(err)
	}

	h.log.Info("operator signed in", "operator_id", req.OperatorID)

	return httputil.RespondJSON(w, http.StatusOK, SigninResponse{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

// HandleCreateAdmission mints a room admission token for one participant
func (h *Handler) HandleCreateAdmission(w http.ResponseWriter, r *http.Request) error {
	req := new(CreateAdmissionRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	req.RoomID = strings.TrimSpace(req.RoomID)
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	if req.RoomID == "" || req.ParticipantID == "" {
		return httputil.BadRequest("room_id and participant_id are required")
	}

	role, err := room.ParseRole(req.ParticipantType)
	if err != nil {
		return httputil.BadRequest("Invalid participant_type", err.Error())
	}

	if req.SessionType != "" {
		if _, err := room.ParseSessionType(req.SessionType); err != nil {
			return httputil.BadRequest("Invalid session_type", err.Error())
		}
	}

	token, expiresAt, err := h.jwt.GenerateAdmissionToken(jwt.Admission{
		RoomID:        req.RoomID,
		Role:          string(role),
		ParticipantID: req.ParticipantID,
		SessionType:   req.SessionType,
	})
	if err != nil {
		return httputil.Internal(err)
	}

	h.log.Info("admission issued",
		"room_id", req.RoomID,
		"participant_type", role,
		"participant_id", req.ParticipantID,
		"operator_id", GetOperatorID(r.Context()),
	)

	return httputil.RespondJSON(w, http.StatusCreated, CreateAdmissionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
