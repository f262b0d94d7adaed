package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/middleware"
	"github.com/noah-isme/syllabus-dashboard/internal/service"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
)

// DashboardHandler serves the composed dashboard and the statistics panel.
type DashboardHandler struct {
	dashboard   service.DashboardService
	assignments service.AssignmentService
	logger      zerolog.Logger
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(dashboard service.DashboardService, assignments service.AssignmentService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard:   dashboard,
		assignments: assignments,
		logger:      logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register wires GET /dashboard.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("", h.get)
}

// RegisterStats wires GET /stats.
func (h *DashboardHandler) RegisterStats(router fiber.Router) {
	router.Get("", h.stats)
}

func (h *DashboardHandler) get(c *fiber.Ctx) error {
	query, err := parseListQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.dashboard.Get(requestContext(c), middleware.SessionID(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load dashboard")
	}
	return utils.SendSuccess(c, "dashboard", result)
}

func (h *DashboardHandler) stats(c *fiber.Ctx) error {
	result, err := h.assignments.Stats(requestContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load statistics")
	}
	return utils.SendSuccess(c, "statistics", result)
}
