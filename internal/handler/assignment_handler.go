package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/internal/service"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
)

// AssignmentHandler exposes the assignment list, upcoming window and edits.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register wires assignment routes.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/upcoming", h.upcoming)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	query, err := parseListQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.List(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load assignments")
	}
	return utils.SendSuccess(c, "assignments", result)
}

func (h *AssignmentHandler) upcoming(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	result, err := h.service.Upcoming(requestContext(c), days)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load upcoming assignments")
	}
	return utils.SendSuccess(c, "upcoming assignments", result)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "assignment could not be updated")
	}
	return utils.SendSuccess(c, "assignment updated", result)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err, "assignment could not be deleted")
	}
	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": id})
}

func parseListQuery(c *fiber.Ctx) (dto.AssignmentListQuery, error) {
	syllabusID, err := parseQueryUint(c, "syllabus_id")
	if err != nil {
		return dto.AssignmentListQuery{}, err
	}
	return dto.AssignmentListQuery{
		Search:     c.Query("search"),
		Type:       strings.ToLower(strings.TrimSpace(c.Query("type"))),
		SyllabusID: syllabusID,
		Sort:       strings.TrimSpace(c.Query("sort")),
	}, nil
}
