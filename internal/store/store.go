// Package store holds the shared read cache for assignments, syllabi and stats.
//
// Readers always receive a complete snapshot. The only writer path is Invalidate followed by
// Refetch, which swaps in freshly fetched data under a single lock. A load on a cache miss is
// kept only when no invalidation or refetch happened while it was in flight.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/observability"
)

// Scope names one cached collection.
type Scope string

const (
	ScopeAssignments Scope = "assignments"
	ScopeSyllabi     Scope = "syllabi"
	ScopeStats       Scope = "stats"
)

// AllScopes lists every cached collection.
var AllScopes = []Scope{ScopeAssignments, ScopeSyllabi, ScopeStats}

const allAssignmentsKey = "all"

// Source is the authoritative data provider behind the cache.
type Source interface {
	ListAssignments(ctx context.Context, syllabusID *uint) ([]models.Assignment, error)
	ListSyllabi(ctx context.Context) ([]models.Syllabus, error)
	GetStats(ctx context.Context) (models.AssignmentStats, error)
}

// Options configures the optional Redis mirror and broadcast channels.
type Options struct {
	Redis       *redis.Client
	NATS        *nats.Conn
	ChannelBase string
	TTL         time.Duration
}

type assignmentEntry struct {
	syllabusID *uint
	items      []models.Assignment
	valid      bool
}

type invalidationEvent struct {
	Source string    `json:"source"`
	Scopes []Scope   `json:"scopes"`
	SentAt time.Time `json:"sent_at"`
}

// Store caches upstream collections and coordinates invalidation across replicas.
type Store struct {
	source Source

	redis        *redis.Client
	redisPrefix  string
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	ttl          time.Duration

	mu           sync.RWMutex
	epoch        uint64
	assignments  map[string]*assignmentEntry
	syllabi      []models.Syllabus
	syllabiValid bool
	stats        models.AssignmentStats
	statsValid   bool

	logger zerolog.Logger
	tracer trace.Tracer
	nodeID string
}

// New constructs a store backed by source.
func New(source Source, opts Options, logger zerolog.Logger) *Store {
	s := &Store{
		source:      source,
		redis:       opts.Redis,
		nats:        opts.NATS,
		ttl:         opts.TTL,
		assignments: make(map[string]*assignmentEntry),
		logger:      logger.With().Str("component", "assignment_store").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/syllabus-dashboard/internal/store"),
		nodeID:      uuid.NewString(),
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	if base := strings.TrimSpace(opts.ChannelBase); base != "" {
		s.redisPrefix = base + ":cache"
		s.redisChannel = base + ":invalidations"
		s.natsSubject = strings.ReplaceAll(base, ":", ".") + ".invalidations"
	}
	return s
}

// Start consumes invalidation events from peer replicas until ctx is cancelled.
func (s *Store) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func assignmentKey(syllabusID *uint) string {
	if syllabusID == nil {
		return allAssignmentsKey
	}
	return fmt.Sprintf("syllabus:%d", *syllabusID)
}

// Assignments returns the cached collection for the scope, loading it on a miss.
func (s *Store) Assignments(ctx context.Context, syllabusID *uint) ([]models.Assignment, error) {
	key := assignmentKey(syllabusID)

	s.mu.RLock()
	entry, ok := s.assignments[key]
	if ok && entry.valid {
		items := slices.Clone(entry.items)
		s.mu.RUnlock()
		return items, nil
	}
	epoch := s.epoch
	s.mu.RUnlock()

	var items []models.Assignment
	if s.readMirror(ctx, ScopeAssignments, key, &items) {
		s.storeAssignments(epoch, key, &assignmentEntry{syllabusID: syllabusID, items: items, valid: true})
		return slices.Clone(items), nil
	}

	items, err := s.source.ListAssignments(ctx, syllabusID)
	if err != nil {
		return nil, err
	}
	if s.storeAssignments(epoch, key, &assignmentEntry{syllabusID: syllabusID, items: items, valid: true}) {
		s.writeMirror(ctx, ScopeAssignments, key, items)
	}

	return slices.Clone(items), nil
}

// Syllabi returns the cached upload history, loading it on a miss.
func (s *Store) Syllabi(ctx context.Context) ([]models.Syllabus, error) {
	s.mu.RLock()
	if s.syllabiValid {
		items := slices.Clone(s.syllabi)
		s.mu.RUnlock()
		return items, nil
	}
	epoch := s.epoch
	s.mu.RUnlock()

	var items []models.Syllabus
	mirrored := s.readMirror(ctx, ScopeSyllabi, allAssignmentsKey, &items)
	if !mirrored {
		fetched, err := s.source.ListSyllabi(ctx)
		if err != nil {
			return nil, err
		}
		items = fetched
	}

	s.mu.Lock()
	stored := s.epoch == epoch
	if stored {
		s.syllabi = items
		s.syllabiValid = true
	}
	s.mu.Unlock()

	if stored && !mirrored {
		s.writeMirror(ctx, ScopeSyllabi, allAssignmentsKey, items)
	}
	return slices.Clone(items), nil
}

// Stats returns the cached aggregate statistics, loading them on a miss.
func (s *Store) Stats(ctx context.Context) (models.AssignmentStats, error) {
	s.mu.RLock()
	if s.statsValid {
		stats := s.stats
		s.mu.RUnlock()
		return stats, nil
	}
	epoch := s.epoch
	s.mu.RUnlock()

	var stats models.AssignmentStats
	mirrored := s.readMirror(ctx, ScopeStats, allAssignmentsKey, &stats)
	if !mirrored {
		fetched, err := s.source.GetStats(ctx)
		if err != nil {
			return models.AssignmentStats{}, err
		}
		stats = fetched
	}

	s.mu.Lock()
	stored := s.epoch == epoch
	if stored {
		s.stats = stats
		s.statsValid = true
	}
	s.mu.Unlock()

	if stored && !mirrored {
		s.writeMirror(ctx, ScopeStats, allAssignmentsKey, stats)
	}
	return stats, nil
}

// Invalidate marks the scopes stale locally, drops the Redis mirror and notifies peer replicas.
func (s *Store) Invalidate(ctx context.Context, scopes ...Scope) error {
	ctx, span := s.tracer.Start(ctx, "store.invalidate")
	defer span.End()

	s.invalidateLocal(scopes)

	if s.redis != nil && s.redisPrefix != "" {
		keys := make([]string, 0, len(scopes))
		for _, scope := range scopes {
			keys = append(keys, s.mirrorKey(scope))
		}
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drop cache mirror")
		}
	}

	if err := s.broadcast(ctx, scopes); err != nil {
		s.logger.Warn().Err(err).Msg("failed to broadcast cache invalidation")
	}

	for _, scope := range scopes {
		observability.CacheInvalidations().WithLabelValues(string(scope)).Inc()
	}
	return nil
}

// Refetch loads fresh data for the scopes from the source and replaces the cached values at once.
// Nothing is replaced when any fetch fails.
func (s *Store) Refetch(ctx context.Context, scopes ...Scope) error {
	ctx, span := s.tracer.Start(ctx, "store.refetch")
	defer span.End()

	var (
		assignments map[string]*assignmentEntry
		syllabi     []models.Syllabus
		stats       models.AssignmentStats
		want        = make(map[Scope]bool, len(scopes))
	)
	for _, scope := range scopes {
		want[scope] = true
	}
	span.SetAttributes(attribute.Int("store.scopes", len(want)))

	if want[ScopeAssignments] {
		fetched, err := s.fetchAssignments(ctx)
		if err != nil {
			return s.refetchFailed(span, ScopeAssignments, err)
		}
		assignments = fetched
	}
	if want[ScopeSyllabi] {
		fetched, err := s.source.ListSyllabi(ctx)
		if err != nil {
			return s.refetchFailed(span, ScopeSyllabi, err)
		}
		syllabi = fetched
	}
	if want[ScopeStats] {
		fetched, err := s.source.GetStats(ctx)
		if err != nil {
			return s.refetchFailed(span, ScopeStats, err)
		}
		stats = fetched
	}

	s.mu.Lock()
	s.epoch++
	if want[ScopeAssignments] {
		s.assignments = assignments
	}
	if want[ScopeSyllabi] {
		s.syllabi = syllabi
		s.syllabiValid = true
	}
	if want[ScopeStats] {
		s.stats = stats
		s.statsValid = true
	}
	s.mu.Unlock()

	for key, entry := range assignments {
		s.writeMirror(ctx, ScopeAssignments, key, entry.items)
	}
	if want[ScopeSyllabi] {
		s.writeMirror(ctx, ScopeSyllabi, allAssignmentsKey, syllabi)
	}
	if want[ScopeStats] {
		s.writeMirror(ctx, ScopeStats, allAssignmentsKey, stats)
	}

	for scope := range want {
		observability.CacheRefetches().WithLabelValues(string(scope), "ok").Inc()
	}
	span.SetStatus(codes.Ok, "refetched")
	return nil
}

func (s *Store) refetchFailed(span trace.Span, scope Scope, err error) error {
	observability.CacheRefetches().WithLabelValues(string(scope), "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "refetch failed")
	return fmt.Errorf("refetch %s: %w", scope, err)
}

// fetchAssignments reloads every assignment scope that has been requested so far, plus the
// unscoped collection.
func (s *Store) fetchAssignments(ctx context.Context) (map[string]*assignmentEntry, error) {
	s.mu.RLock()
	targets := map[string]*uint{allAssignmentsKey: nil}
	for key, entry := range s.assignments {
		targets[key] = entry.syllabusID
	}
	s.mu.RUnlock()

	fresh := make(map[string]*assignmentEntry, len(targets))
	for key, syllabusID := range targets {
		items, err := s.source.ListAssignments(ctx, syllabusID)
		if err != nil {
			return nil, err
		}
		fresh[key] = &assignmentEntry{syllabusID: syllabusID, items: items, valid: true}
	}
	return fresh, nil
}

// storeAssignments caches a miss load unless the cache moved on since epoch was read.
func (s *Store) storeAssignments(epoch uint64, key string, entry *assignmentEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.assignments[key] = entry
	return true
}

func (s *Store) invalidateLocal(scopes []Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	for _, scope := range scopes {
		switch scope {
		case ScopeAssignments:
			for _, entry := range s.assignments {
				entry.valid = false
			}
		case ScopeSyllabi:
			s.syllabiValid = false
		case ScopeStats:
			s.statsValid = false
		}
	}
}

func (s *Store) mirrorKey(scope Scope) string {
	return s.redisPrefix + ":" + string(scope)
}

func (s *Store) readMirror(ctx context.Context, scope Scope, field string, target interface{}) bool {
	if s.redis == nil || s.redisPrefix == "" {
		return false
	}

	payload, err := s.redis.HGet(ctx, s.mirrorKey(scope), field).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("scope", string(scope)).Msg("failed to read cache mirror")
		}
		return false
	}

	if err := json.Unmarshal([]byte(payload), target); err != nil {
		s.logger.Warn().Err(err).Str("scope", string(scope)).Msg("invalid cache mirror payload")
		return false
	}

	s.logger.Debug().Str("scope", string(scope)).Str("field", field).Msg("cache mirror hit")
	return true
}

func (s *Store) writeMirror(ctx context.Context, scope Scope, field string, value interface{}) {
	if s.redis == nil || s.redisPrefix == "" {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	key := s.mirrorKey(scope)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, field, payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Str("scope", string(scope)).Msg("failed to store cache mirror")
	}
}

func (s *Store) broadcast(ctx context.Context, scopes []Scope) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(invalidationEvent{Source: s.nodeID, Scopes: scopes, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("invalidation redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *Store) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats invalidation subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain invalidation nats subscription")
		}
	}()
}

func (s *Store) handleEvent(payload []byte) {
	var event invalidationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid cache invalidation payload")
		return
	}
	if event.Source == s.nodeID {
		return
	}

	s.invalidateLocal(event.Scopes)
	s.logger.Debug().Str("source", event.Source).Int("scopes", len(event.Scopes)).Msg("peer invalidation applied")
}
