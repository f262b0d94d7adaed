// Package ingestion drives one syllabus upload from submission to a terminal state.
//
// A Controller owns the state machine idle → uploading → processing → complete|error. Every run
// is tagged with a generation; results from a run whose generation is no longer current are
// dropped, so a reset can never be overwritten by a late poll.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/observability"
	"github.com/noah-isme/syllabus-dashboard/internal/store"
)

// State is a node of the ingestion state machine.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// Terminal reports whether the state only leaves through a reset.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// InFlight reports whether an upload is being sent or processed.
func (s State) InFlight() bool {
	return s == StateUploading || s == StateProcessing
}

// ErrNotIdle indicates a submission from a terminal state that was not reset first.
var ErrNotIdle = errors.New("reset the previous upload before submitting another")

// Uploader is the part of the extraction service the controller drives.
type Uploader interface {
	SubmitUpload(ctx context.Context, file models.UploadFile) (models.UploadReceipt, error)
	GetStatus(ctx context.Context, syllabusID uint) (models.ProcessingStatus, error)
}

// Refresher invalidates and reloads the shared collections once processing completes.
type Refresher interface {
	Invalidate(ctx context.Context, scopes ...store.Scope) error
	Refetch(ctx context.Context, scopes ...store.Scope) error
}

// Config tunes a controller.
type Config struct {
	// PollInterval is the delay between a status response and the next poll.
	PollInterval time.Duration
	// ProcessingTimeout bounds the processing state. Zero waits indefinitely.
	ProcessingTimeout time.Duration
	MaxUploadBytes    int64
	// Observer, when set, receives every snapshot after it is applied.
	Observer func(Snapshot)
}

// Snapshot is the externally visible state of a controller.
type Snapshot struct {
	State           State                    `json:"state"`
	Generation      uint64                   `json:"generation"`
	FileName        string                   `json:"file_name,omitempty"`
	SizeBytes       int64                    `json:"size_bytes,omitempty"`
	SyllabusID      *uint                    `json:"syllabus_id,omitempty"`
	LastStatus      *models.ProcessingStatus `json:"last_status,omitempty"`
	AssignmentCount *int                     `json:"assignment_count,omitempty"`
	CourseName      string                   `json:"course_name,omitempty"`
	Error           string                   `json:"error,omitempty"`
	Polls           int                      `json:"polls"`
	StartedAt       *time.Time               `json:"started_at,omitempty"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// Message renders the user-facing line for the snapshot.
func (s Snapshot) Message() string {
	switch s.State {
	case StateUploading:
		return "Uploading..."
	case StateProcessing:
		return "Extracting assignments and due dates"
	case StateComplete:
		count := 0
		if s.AssignmentCount != nil {
			count = *s.AssignmentCount
		}
		if s.CourseName != "" {
			return fmt.Sprintf("Found %d assignments in %s", count, s.CourseName)
		}
		return fmt.Sprintf("Found %d assignments", count)
	case StateError:
		return s.Error
	default:
		return s.Error
	}
}

// Controller runs the ingestion state machine for one dashboard session.
type Controller struct {
	uploader  Uploader
	refresher Refresher
	cfg       Config
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	snapshot Snapshot
	cancel   context.CancelFunc
	changed  chan struct{}
}

// NewController constructs an idle controller.
func NewController(uploader Uploader, refresher Refresher, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	c := &Controller{
		uploader:  uploader,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "ingestion_controller").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/syllabus-dashboard/internal/ingestion"),
		now:       time.Now,
		sleep:     sleepContext,
		changed:   make(chan struct{}),
	}
	c.snapshot = Snapshot{State: StateIdle, UpdatedAt: c.now().UTC()}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Watch returns the current state and a channel closed on the next change.
func (c *Controller) Watch() (Snapshot, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.changed
}

// Await blocks until no upload is in flight or ctx ends.
func (c *Controller) Await(ctx context.Context) (Snapshot, error) {
	for {
		snapshot, changed := c.Watch()
		if !snapshot.State.InFlight() {
			return snapshot, nil
		}
		select {
		case <-ctx.Done():
			return snapshot, ctx.Err()
		case <-changed:
		}
	}
}

// Submit validates files and, when they pass, starts uploading in the background. Validation
// failures leave the controller idle with the reason recorded in the snapshot.
func (c *Controller) Submit(ctx context.Context, files []models.UploadFile) (Snapshot, error) {
	c.mu.Lock()

	switch {
	case c.snapshot.State.InFlight():
		snapshot := c.snapshot
		c.mu.Unlock()
		return snapshot, ErrBusy
	case c.snapshot.State.Terminal():
		snapshot := c.snapshot
		c.mu.Unlock()
		return snapshot, ErrNotIdle
	}

	file, err := ValidateFiles(files, c.cfg.MaxUploadBytes)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			observability.UploadRejected().WithLabelValues(string(validationErr.Reason)).Inc()
		}
		c.snapshot.Error = err.Error()
		c.snapshot.UpdatedAt = c.now().UTC()
		snapshot := c.commitLocked()
		c.mu.Unlock()
		c.observe(snapshot)
		return snapshot, err
	}

	startedAt := c.now().UTC()
	generation := c.snapshot.Generation + 1
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.snapshot = Snapshot{
		State:      StateUploading,
		Generation: generation,
		FileName:   file.Name,
		SizeBytes:  file.EffectiveSize(),
		StartedAt:  &startedAt,
		UpdatedAt:  startedAt,
	}
	observability.IngestionTransitions().WithLabelValues(string(StateUploading)).Inc()
	snapshot := c.commitLocked()
	c.mu.Unlock()

	c.observe(snapshot)
	c.logger.Info().Str("file_name", file.Name).Uint64("generation", generation).Msg("upload submitted")

	go c.run(runCtx, generation, file)
	return snapshot, nil
}

// Reset returns a finished controller to idle, clearing every transient field.
func (c *Controller) Reset() (Snapshot, error) {
	c.mu.Lock()
	if c.snapshot.State.InFlight() {
		snapshot := c.snapshot
		c.mu.Unlock()
		return snapshot, ErrNotTerminal
	}
	snapshot := c.resetLocked()
	c.mu.Unlock()

	c.observe(snapshot)
	return snapshot, nil
}

// Abandon returns to idle from any state and stops the running upload, if any. Results of the
// abandoned run are discarded.
func (c *Controller) Abandon() Snapshot {
	c.mu.Lock()
	snapshot := c.resetLocked()
	c.mu.Unlock()

	c.observe(snapshot)
	return snapshot
}

func (c *Controller) resetLocked() Snapshot {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.snapshot.State != StateIdle {
		observability.IngestionTransitions().WithLabelValues(string(StateIdle)).Inc()
	}
	c.snapshot = Snapshot{
		State:      StateIdle,
		Generation: c.snapshot.Generation + 1,
		UpdatedAt:  c.now().UTC(),
	}
	return c.commitLocked()
}

// commitLocked publishes the current snapshot to watchers. c.mu must be held.
func (c *Controller) commitLocked() Snapshot {
	close(c.changed)
	c.changed = make(chan struct{})
	return c.snapshot
}

func (c *Controller) observe(snapshot Snapshot) {
	if c.cfg.Observer != nil {
		c.cfg.Observer(snapshot)
	}
}

// apply mutates the snapshot if generation is still current and reports whether it was.
func (c *Controller) apply(generation uint64, mutate func(*Snapshot)) bool {
	c.mu.Lock()
	if c.snapshot.Generation != generation {
		c.mu.Unlock()
		return false
	}

	previous := c.snapshot.State
	mutate(&c.snapshot)
	c.snapshot.UpdatedAt = c.now().UTC()
	if c.snapshot.State != previous {
		observability.IngestionTransitions().WithLabelValues(string(c.snapshot.State)).Inc()
		if c.snapshot.State.Terminal() {
			c.cancel = nil
			if c.snapshot.StartedAt != nil {
				observability.IngestionDuration().WithLabelValues(string(c.snapshot.State)).
					Observe(c.snapshot.UpdatedAt.Sub(*c.snapshot.StartedAt).Seconds())
			}
		}
	}
	snapshot := c.commitLocked()
	c.mu.Unlock()

	c.observe(snapshot)
	return true
}

func (c *Controller) fail(generation uint64, message string, cause error) {
	if c.apply(generation, func(s *Snapshot) {
		s.State = StateError
		s.Error = message
	}) {
		c.logger.Warn().Err(cause).Uint64("generation", generation).Str("reason", message).Msg("upload failed")
	}
}

func (c *Controller) run(ctx context.Context, generation uint64, file models.UploadFile) {
	ctx, span := c.tracer.Start(ctx, "ingestion.run", trace.WithAttributes(
		attribute.String("upload.file_name", file.Name),
		attribute.Int64("upload.size_bytes", file.EffectiveSize()),
	))
	defer span.End()

	receipt, err := c.uploader.SubmitUpload(ctx, file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		c.fail(generation, submissionMessage(err), &SubmissionError{Message: submissionMessage(err), Err: err})
		return
	}

	syllabusID := receipt.ID
	span.SetAttributes(attribute.Int("syllabus.id", int(syllabusID)))
	if !c.apply(generation, func(s *Snapshot) {
		s.State = StateProcessing
		s.SyllabusID = &syllabusID
	}) {
		return
	}
	c.logger.Info().Uint("syllabus_id", syllabusID).Msg("upload accepted, polling for status")

	processingStarted := c.now()
	for {
		status, err := c.uploader.GetStatus(ctx, syllabusID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			observability.IngestionPolls().WithLabelValues("transport_error").Inc()
			span.RecordError(err)
			c.fail(generation, MessageStatusCheckFailed, &PollTransportError{SyllabusID: syllabusID, Err: err})
			return
		}

		switch {
		case status.IsCompleted():
			observability.IngestionPolls().WithLabelValues("completed").Inc()
			if !c.apply(generation, recordStatus(status)) {
				return
			}
			if err := c.refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				span.RecordError(err)
				c.fail(generation, MessageRefreshFailed, err)
				return
			}
			if c.apply(generation, func(s *Snapshot) {
				s.State = StateComplete
				s.AssignmentCount = status.AssignmentCount
				if status.CourseName != nil {
					s.CourseName = *status.CourseName
				}
			}) {
				span.SetStatus(codes.Ok, "completed")
				c.logger.Info().Uint("syllabus_id", syllabusID).Msg("syllabus processed")
			}
			return
		case status.IsFailed():
			observability.IngestionPolls().WithLabelValues("failed").Inc()
			c.apply(generation, recordStatus(status))
			span.SetStatus(codes.Error, status.Status)
			c.fail(generation, status.Status, &ProcessingFailure{SyllabusID: syllabusID, Status: status.Status})
			return
		default:
			observability.IngestionPolls().WithLabelValues("processing").Inc()
			if !c.apply(generation, recordStatus(status)) {
				return
			}
		}

		if c.cfg.ProcessingTimeout > 0 && c.now().Sub(processingStarted) >= c.cfg.ProcessingTimeout {
			c.fail(generation, MessageTimedOut, fmt.Errorf("syllabus %d still processing after %s", syllabusID, c.cfg.ProcessingTimeout))
			return
		}

		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return
		}
	}
}

// refresh invalidates the collections touched by a new syllabus and reloads them.
func (c *Controller) refresh(ctx context.Context) error {
	scopes := []store.Scope{store.ScopeAssignments, store.ScopeSyllabi, store.ScopeStats}
	if err := c.refresher.Invalidate(ctx, scopes...); err != nil {
		return err
	}
	return c.refresher.Refetch(ctx, scopes...)
}

func recordStatus(status models.ProcessingStatus) func(*Snapshot) {
	return func(s *Snapshot) {
		recorded := status
		s.LastStatus = &recorded
		s.Polls++
	}
}

func submissionMessage(err error) string {
	var detailed interface{ UserMessage() string }
	if errors.As(err, &detailed) && detailed.UserMessage() != "" {
		return detailed.UserMessage()
	}
	return MessageUploadFailed
}
