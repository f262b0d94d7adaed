// Package syllabusapi is the HTTP client for the syllabus extraction service.
package syllabusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/observability"
)

// ExportFormat names a download format offered by the service.
type ExportFormat string

const (
	ExportICS  ExportFormat = "ics"
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

var (
	// ErrNotFound indicates the service answered 404.
	ErrNotFound = errors.New("resource not found")
	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Operation, e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Operation, e.StatusCode)
}

// UserMessage returns the reason supplied by the service, if any.
func (e *APIError) UserMessage() string {
	return e.Detail
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Config contains connection settings for the service.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// CorrelationID, when set, supplies the X-Correlation-ID header forwarded upstream.
	CorrelationID func(ctx context.Context) string
}

// Client talks to the syllabus extraction service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
	tracer     trace.Tracer
	correlate  func(ctx context.Context) string
}

// New constructs a client. The base URL is the API root, e.g. http://extractor:8000/api.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("syllabus api base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid syllabus api base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:    logger.With().Str("component", "syllabus_api_client").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/syllabus-dashboard/pkg/syllabusapi"),
		correlate: cfg.CorrelationID,
	}, nil
}

// SubmitUpload sends a document for extraction.
func (c *Client) SubmitUpload(ctx context.Context, file models.UploadFile) (models.UploadReceipt, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return models.UploadReceipt{}, err
	}
	if _, err := part.Write(file.Data); err != nil {
		return models.UploadReceipt{}, err
	}
	if err := writer.Close(); err != nil {
		return models.UploadReceipt{}, err
	}

	var receipt models.UploadReceipt
	err = c.do(ctx, "submit_upload", http.MethodPost, "/upload/syllabus", nil, body, writer.FormDataContentType(), &receipt,
		attribute.String("upload.file_name", file.Name),
		attribute.Int("upload.size_bytes", len(file.Data)),
	)
	return receipt, err
}

// GetStatus reads the processing status of an accepted upload. The payload is schema-checked.
func (c *Client) GetStatus(ctx context.Context, syllabusID uint) (models.ProcessingStatus, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/upload/status/%d", syllabusID)
	if err := c.do(ctx, "get_status", http.MethodGet, path, nil, nil, "", &raw, attribute.Int("syllabus.id", int(syllabusID))); err != nil {
		return models.ProcessingStatus{}, err
	}

	if err := validateStatusPayload(raw); err != nil {
		return models.ProcessingStatus{}, err
	}

	var status models.ProcessingStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return models.ProcessingStatus{}, fmt.Errorf("decode status payload: %w", err)
	}
	return status, nil
}

// ListAssignments returns assignments, optionally limited to one syllabus.
func (c *Client) ListAssignments(ctx context.Context, syllabusID *uint) ([]models.Assignment, error) {
	query := url.Values{}
	if syllabusID != nil {
		query.Set("syllabus_id", strconv.FormatUint(uint64(*syllabusID), 10))
	}

	var assignments []models.Assignment
	if err := c.do(ctx, "list_assignments", http.MethodGet, "/assignments", query, nil, "", &assignments); err != nil {
		return nil, err
	}
	for i := range assignments {
		assignments[i].AssignmentType = models.NormalizeAssignmentType(string(assignments[i].AssignmentType))
	}
	return assignments, nil
}

// ListSyllabi returns the upload history.
func (c *Client) ListSyllabi(ctx context.Context) ([]models.Syllabus, error) {
	var syllabi []models.Syllabus
	if err := c.do(ctx, "list_syllabi", http.MethodGet, "/upload/history", nil, nil, "", &syllabi); err != nil {
		return nil, err
	}
	return syllabi, nil
}

// GetStats returns aggregate statistics.
func (c *Client) GetStats(ctx context.Context) (models.AssignmentStats, error) {
	var stats models.AssignmentStats
	err := c.do(ctx, "get_stats", http.MethodGet, "/assignments/stats", nil, nil, "", &stats)
	return stats, err
}

// UpdateAssignment applies a partial update and returns the stored assignment.
func (c *Client) UpdateAssignment(ctx context.Context, id uint, patch models.AssignmentPatch) (models.Assignment, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return models.Assignment{}, err
	}

	var assignment models.Assignment
	path := fmt.Sprintf("/assignments/%d", id)
	if err := c.do(ctx, "update_assignment", http.MethodPut, path, nil, bytes.NewReader(payload), "application/json", &assignment); err != nil {
		return models.Assignment{}, err
	}
	assignment.AssignmentType = models.NormalizeAssignmentType(string(assignment.AssignmentType))
	return assignment, nil
}

// DeleteAssignment removes one assignment.
func (c *Client) DeleteAssignment(ctx context.Context, id uint) error {
	return c.do(ctx, "delete_assignment", http.MethodDelete, fmt.Sprintf("/assignments/%d", id), nil, nil, "", nil)
}

// DeleteSyllabus removes a syllabus; the service cascades to its assignments.
func (c *Client) DeleteSyllabus(ctx context.Context, id uint) error {
	return c.do(ctx, "delete_syllabus", http.MethodDelete, fmt.Sprintf("/upload/%d", id), nil, nil, "", nil)
}

// ExportURL builds the download location for an export. Retrieval is left to the browser.
func (c *Client) ExportURL(format ExportFormat, syllabusID *uint) (string, error) {
	switch format {
	case ExportICS, ExportJSON, ExportCSV:
	default:
		return "", ErrUnsupportedFormat
	}

	target := c.endpoint("/export/" + string(format))
	if syllabusID != nil {
		query := url.Values{}
		query.Set("syllabus_id", strconv.FormatUint(uint64(*syllabusID), 10))
		target.RawQuery = query.Encode()
	}
	return target.String(), nil
}

func (c *Client) endpoint(path string) *url.URL {
	target := *c.baseURL
	target.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	return &target
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body io.Reader, contentType string, out interface{}, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, "syllabusapi."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	target := c.endpoint(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.correlate != nil {
		if id := c.correlate(ctx); id != "" {
			req.Header.Set("X-Correlation-ID", id)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.UpstreamRequests().WithLabelValues(operation, "transport_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failed")
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.UpstreamRequests().WithLabelValues(operation, "transport_error").Inc()
		span.RecordError(err)
		return fmt.Errorf("%s: read body: %w", operation, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		observability.UpstreamRequests().WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()
		apiErr := &APIError{Operation: operation, StatusCode: resp.StatusCode, Detail: errorDetail(payload)}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "unexpected status")
		c.logger.Debug().Str("operation", operation).Int("status", resp.StatusCode).Msg("upstream request rejected")
		return apiErr
	}

	observability.UpstreamRequests().WithLabelValues(operation, "ok").Inc()
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

// errorDetail extracts the human-readable reason from an error body ({"detail": "..."}).
func errorDetail(payload []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return strings.TrimSpace(string(payload))
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil && detail != "" {
		return detail
	}
	if body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(body.Detail))
}
