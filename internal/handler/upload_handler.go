package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/ingestion"
	"github.com/noah-isme/syllabus-dashboard/internal/middleware"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/observability"
	"github.com/noah-isme/syllabus-dashboard/internal/service"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
)

const streamPingInterval = 30 * time.Second

// UploadHandler drives the ingestion state of the caller's session.
type UploadHandler struct {
	service        service.UploadService
	maxUploadBytes int64
	uploadLimiter  fiber.Handler
	logger         zerolog.Logger
}

// NewUploadHandler constructs an upload handler. limiter may be nil.
func NewUploadHandler(service service.UploadService, maxUploadBytes int64, limiter fiber.Handler, logger zerolog.Logger) *UploadHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = ingestion.DefaultMaxUploadBytes
	}
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &UploadHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		uploadLimiter:  limiter,
		logger:         logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Post("", h.uploadLimiter, h.submit)
	router.Get("/current", h.current)
	router.Post("/reset", h.reset)
	router.Get("/attempts", h.attempts)
	router.Get("/ws", websocket.New(h.stream))
}

func (h *UploadHandler) submit(c *fiber.Ctx) error {
	sessionID := middleware.SessionID(c)

	var files []models.UploadFile
	form, err := c.MultipartForm()
	if err == nil {
		files, err = h.readFiles(form.File["file"])
		if err != nil {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to read uploaded file")
			return utils.SendError(c, fiber.StatusBadRequest, "uploaded file could not be read")
		}
	}

	result, err := h.service.Submit(requestContext(c), sessionID, files)
	if err != nil {
		var validationErr *ingestion.ValidationError
		switch {
		case errors.As(err, &validationErr) && validationErr.Reason == ingestion.ReasonSize:
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, validationErr.Message)
		case errors.As(err, &validationErr):
			return utils.SendError(c, fiber.StatusBadRequest, validationErr.Message)
		case errors.Is(err, ingestion.ErrBusy), errors.Is(err, ingestion.ErrNotIdle):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("upload submission failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "upload failed")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "upload accepted", result)
}

// readFiles loads the submitted parts. Parts over the limit are passed on by size only so
// validation can reject them without buffering.
func (h *UploadHandler) readFiles(headers []*multipart.FileHeader) ([]models.UploadFile, error) {
	files := make([]models.UploadFile, 0, len(headers))
	for _, header := range headers {
		file := models.UploadFile{Name: header.Filename, Size: header.Size}
		if header.Size <= h.maxUploadBytes {
			handle, err := header.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(io.LimitReader(handle, h.maxUploadBytes+1))
			_ = handle.Close()
			if err != nil {
				return nil, err
			}
			file.Data = data
		}
		files = append(files, file)
	}
	return files, nil
}

func (h *UploadHandler) current(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "upload state", h.service.Current(middleware.SessionID(c)))
}

func (h *UploadHandler) reset(c *fiber.Ctx) error {
	result, err := h.service.Reset(middleware.SessionID(c))
	if err != nil {
		if errors.Is(err, ingestion.ErrNotTerminal) {
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("reset failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "reset failed")
	}
	return utils.SendSuccess(c, "upload reset", result)
}

func (h *UploadHandler) attempts(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	result, err := h.service.Attempts(requestContext(c), middleware.SessionID(c), page, pageSize)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list upload attempts")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list upload attempts")
	}
	return utils.SendSuccess(c, "upload attempts", result)
}

// stream pushes the session's upload state on connect and after every change.
func (h *UploadHandler) stream(conn *websocket.Conn) {
	sessionID, _ := conn.Locals("session_id").(string)
	if sessionID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session missing"))
		_ = conn.Close()
		return
	}

	observability.StateStreamClientsActive().Inc()
	defer observability.StateStreamClientsActive().Dec()

	logger := h.logger.With().Str("session_id", sessionID).Logger()
	logger.Debug().Msg("upload stream connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		state, changed := h.service.Watch(sessionID)
		if err := conn.WriteJSON(state); err != nil {
			logger.Debug().Err(err).Msg("upload stream write failed")
			return
		}

		for waiting := true; waiting; {
			select {
			case <-closed:
				logger.Debug().Msg("upload stream disconnected")
				return
			case <-changed:
				waiting = false
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}
}
