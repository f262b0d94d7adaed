package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/observability"
)

// Factory builds the controller for a new dashboard session.
type Factory func(sessionID string) *Controller

type registryEntry struct {
	controller *Controller
	lastSeen   time.Time
}

// Registry keeps one controller per dashboard session.
type Registry struct {
	factory Factory
	logger  zerolog.Logger
	now     func() time.Time

	mu          sync.Mutex
	controllers map[string]*registryEntry
}

// NewRegistry constructs an empty registry.
func NewRegistry(factory Factory, logger zerolog.Logger) *Registry {
	return &Registry{
		factory:     factory,
		logger:      logger.With().Str("component", "ingestion_registry").Logger(),
		now:         time.Now,
		controllers: make(map[string]*registryEntry),
	}
}

// Get returns the session's controller, creating it on first use.
func (r *Registry) Get(sessionID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.controllers[sessionID]
	if !ok {
		entry = &registryEntry{controller: r.factory(sessionID)}
		r.controllers[sessionID] = entry
		observability.IngestionSessionsActive().Inc()
	}
	entry.lastSeen = r.now()
	return entry.controller
}

// Lookup returns the session's controller without creating one.
func (r *Registry) Lookup(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.controllers[sessionID]
	if !ok {
		return nil, false
	}
	entry.lastSeen = r.now()
	return entry.controller, true
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// Evict drops sessions idle for longer than ttl. Sessions with an upload in flight are kept.
func (r *Registry) Evict(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var evicted []*Controller
	for sessionID, entry := range r.controllers {
		if entry.lastSeen.After(cutoff) || entry.controller.Snapshot().State.InFlight() {
			continue
		}
		delete(r.controllers, sessionID)
		evicted = append(evicted, entry.controller)
	}
	r.mu.Unlock()

	for _, controller := range evicted {
		controller.Abandon()
		observability.IngestionSessionsActive().Dec()
	}
	if len(evicted) > 0 {
		r.logger.Debug().Int("evicted", len(evicted)).Msg("idle ingestion sessions evicted")
	}
	return len(evicted)
}

// Run evicts idle sessions every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(ttl)
		}
	}
}
