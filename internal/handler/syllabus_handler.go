package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/service"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
)

// SyllabusHandler exposes the syllabus history.
type SyllabusHandler struct {
	service service.SyllabusService
	logger  zerolog.Logger
}

// NewSyllabusHandler constructs a syllabus handler.
func NewSyllabusHandler(service service.SyllabusService, logger zerolog.Logger) *SyllabusHandler {
	return &SyllabusHandler{
		service: service,
		logger:  logger.With().Str("component", "syllabus_handler").Logger(),
	}
}

// Register wires syllabus routes.
func (h *SyllabusHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Delete("/:id", h.delete)
}

func (h *SyllabusHandler) list(c *fiber.Ctx) error {
	result, err := h.service.List(requestContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load syllabi")
	}
	return utils.SendSuccess(c, "syllabi", result)
}

func (h *SyllabusHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err, "syllabus could not be deleted")
	}
	return utils.SendSuccess(c, "syllabus deleted", fiber.Map{"id": id})
}
