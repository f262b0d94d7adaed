package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/service"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
)

// ExportHandler redirects the browser to the upstream export download.
type ExportHandler struct {
	service service.ExportService
	logger  zerolog.Logger
}

// NewExportHandler constructs an export handler.
func NewExportHandler(service service.ExportService, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		service: service,
		logger:  logger.With().Str("component", "export_handler").Logger(),
	}
}

// Register wires export routes.
func (h *ExportHandler) Register(router fiber.Router) {
	router.Get("", h.links)
	router.Get("/:format", h.download)
}

func (h *ExportHandler) links(c *fiber.Ctx) error {
	syllabusID, err := parseQueryUint(c, "syllabus_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	return utils.SendSuccess(c, "export links", h.service.Links(syllabusID))
}

func (h *ExportHandler) download(c *fiber.Ctx) error {
	syllabusID, err := parseQueryUint(c, "syllabus_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	link, err := h.service.Link(c.Params("format"), syllabusID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "export link could not be built")
	}
	return c.Redirect(link, fiber.StatusFound)
}
