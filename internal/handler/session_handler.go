package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/internal/middleware"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
)

// SessionHandler opens dashboard sessions.
type SessionHandler struct {
	tokens *middleware.SessionTokens
	logger zerolog.Logger
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(tokens *middleware.SessionTokens, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		tokens: tokens,
		logger: logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("", h.open)
}

func (h *SessionHandler) open(c *fiber.Ctx) error {
	token, sessionID, expiresAt, err := h.tokens.Issue()
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to issue session token")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to open session")
	}

	requestLogger(h.logger, c).Info().Str("session_id", sessionID).Msg("dashboard session opened")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session opened", dto.SessionResponse{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	})
}
