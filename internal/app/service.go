// Package app runs the sync pass: events first, then participants per
// event, translating ids through the mapping store so re-runs create
// nothing that already exists.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/roster/internal/adapters/gateway"
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/adapters/token"
	"github.com/okian/roster/internal/domain/dedupe"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/retry"
	"github.com/okian/roster/internal/domain/transform"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// Service orchestrates a single synchronization pass from the source
// platform to the target platform.
type Service struct {
	logger   logger.Logger
	mappings repository.Store
	source   gateway.Source
	target   gateway.Target
	policy   *retry.Policy
	pairs    dedupe.Deduper
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMappings sets the mapping store.
func WithMappings(store repository.Store) Option {
	return func(s *Service) {
		s.mappings = store
	}
}

// WithSource sets the source platform gateway.
func WithSource(src gateway.Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithTarget sets the target platform gateway.
func WithTarget(tgt gateway.Target) Option {
	return func(s *Service) {
		s.target = tgt
	}
}

// WithRetryPolicy sets the retry policy applied to target platform writes.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithDeduper replaces the in-run registration pair tracker.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.pairs = d
		}
	}
}

// New creates the orchestrator. The mapping store and both gateways are
// required.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger: logger.Get().Named("orchestrator"),
		policy: retry.NewPolicy(),
		pairs:  dedupe.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch {
	case s.mappings == nil:
		return nil, fmt.Errorf("%w: mapping store", ErrMissingDependency)
	case s.source == nil:
		return nil, fmt.Errorf("%w: source gateway", ErrMissingDependency)
	case s.target == nil:
		return nil, fmt.Errorf("%w: target gateway", ErrMissingDependency)
	}
	return s, nil
}

// Summary reports what a sync pass did. Skips count records that failed and
// were left behind; they do not fail the run.
type Summary struct {
	RunID                  string
	EventsCreated          int
	EventsReused           int
	EventsSkipped          int
	ConstituentsCreated    int
	ConstituentsAdopted    int
	ConstituentsReused     int
	Registrations          int
	DuplicateRegistrations int
	ParticipantsSkipped    int
	Duration               time.Duration
}

// Run executes one full sync pass. Individual record failures are logged,
// counted in the summary, and skipped. Run returns an error only when the
// pass cannot continue at all: a dead credential, a cancelled context, or a
// source listing failure.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	log := s.logger.Named(runID)
	start := time.Now()

	summary := &Summary{RunID: runID}
	defer func() {
		summary.Duration = time.Since(start)
		metrics.ObserveRunDuration(summary.Duration.Seconds())
	}()

	log.Info(ctx, "sync pass starting")

	events, err := retry.Do(ctx, s.policy, gateway.Retryable, func() ([]model.EventRecord, error) {
		return s.source.ListEvents(ctx)
	})
	if err != nil {
		return summary, fmt.Errorf("listing source events: %w", err)
	}
	log.Info(ctx, "fetched source events", logger.Int("count", len(events)))

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("%w: %w", ErrRunAborted, err)
		}

		targetEventID, err := s.ensureEvent(ctx, log, event, summary)
		if err != nil {
			if fatal(err) {
				return summary, fmt.Errorf("%w: event %s: %w", ErrRunAborted, event.ID, err)
			}
			reason := skipReason(err)
			log.Error(ctx, "skipping event",
				logger.String("event_id", event.ID),
				logger.String("reason", reason),
				logger.Int("max_attempts", s.policy.MaxAttempts()),
				logger.Error(err))
			metrics.RecordEventSkipped(reason)
			summary.EventsSkipped++
			continue
		}

		if err := s.syncParticipants(ctx, log, event, targetEventID, summary); err != nil {
			return summary, err
		}
	}

	log.Info(ctx, "sync pass complete",
		logger.Int("events_created", summary.EventsCreated),
		logger.Int("events_reused", summary.EventsReused),
		logger.Int("events_skipped", summary.EventsSkipped),
		logger.Int("constituents_created", summary.ConstituentsCreated),
		logger.Int("registrations", summary.Registrations),
		logger.Int("participants_skipped", summary.ParticipantsSkipped),
		logger.Duration("elapsed", time.Since(start)))

	return summary, nil
}

// ensureEvent returns the target id for a source event, creating the event
// on the target platform if no mapping exists yet.
func (s *Service) ensureEvent(ctx context.Context, log logger.Logger, event model.EventRecord, summary *Summary) (string, error) {
	targetID, err := s.mappings.Lookup(ctx, model.KindEvent, event.ID)
	if err == nil {
		log.Debug(ctx, "event already mapped",
			logger.String("event_id", event.ID),
			logger.String("target_id", targetID))
		metrics.RecordEventReused()
		summary.EventsReused++
		return targetID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("looking up event mapping: %w", err)
	}

	if err := event.Validate(); err != nil {
		return "", err
	}

	targetID, err = retry.Do(ctx, s.policy, gateway.Retryable, func() (string, error) {
		return s.target.CreateEvent(ctx, event)
	})
	if err != nil {
		return "", fmt.Errorf("creating event: %w", err)
	}

	if err := s.mappings.Record(ctx, model.KindEvent, event.ID, targetID); err != nil {
		// The event now exists on the target but its mapping did not
		// stick. A conflict here means two source events raced for the
		// same target id and needs operator attention.
		return "", fmt.Errorf("recording event mapping %s -> %s: %w", event.ID, targetID, err)
	}

	log.Info(ctx, "created event",
		logger.String("event_id", event.ID),
		logger.String("target_id", targetID),
		logger.String("name", event.Name))
	metrics.RecordEventCreated()
	summary.EventsCreated++
	return targetID, nil
}

// syncParticipants registers every participant of one event. Per-record
// failures are skipped; only run-fatal conditions return an error.
func (s *Service) syncParticipants(ctx context.Context, log logger.Logger, event model.EventRecord, targetEventID string, summary *Summary) error {
	participants, err := retry.Do(ctx, s.policy, gateway.Retryable, func() ([]model.ParticipantRecord, error) {
		return s.source.ListParticipants(ctx, event.ID)
	})
	if err != nil {
		if fatal(err) {
			return fmt.Errorf("%w: listing participants of %s: %w", ErrRunAborted, event.ID, err)
		}
		log.Error(ctx, "skipping participants of event",
			logger.String("event_id", event.ID),
			logger.Error(err))
		metrics.RecordParticipantSkipped(skipReason(err))
		summary.ParticipantsSkipped++
		return nil
	}

	for _, participant := range participants {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrRunAborted, err)
		}

		if err := s.syncParticipant(ctx, log, targetEventID, participant, summary); err != nil {
			if fatal(err) {
				return fmt.Errorf("%w: participant %s: %w", ErrRunAborted, participant.MemberID, err)
			}
			reason := skipReason(err)
			log.Error(ctx, "skipping participant",
				logger.String("event_id", event.ID),
				logger.String("member_id", participant.MemberID),
				logger.String("reason", reason),
				logger.Int("max_attempts", s.policy.MaxAttempts()),
				logger.Error(err))
			metrics.RecordParticipantSkipped(reason)
			summary.ParticipantsSkipped++
		}
	}
	return nil
}

// syncParticipant resolves the participant to a target constituent and
// registers them for the event.
func (s *Service) syncParticipant(ctx context.Context, log logger.Logger, targetEventID string, participant model.ParticipantRecord, summary *Summary) error {
	if participant.MemberID == "" {
		return model.ErrMissingID
	}

	s.enrich(ctx, log, &participant)
	if err := participant.Validate(); err != nil {
		return err
	}

	constituentID, err := s.ensureConstituent(ctx, log, participant, summary)
	if err != nil {
		return err
	}

	if s.pairs.SeenAndRecord(ctx, targetEventID, constituentID) {
		log.Debug(ctx, "registration already issued this run",
			logger.String("target_event_id", targetEventID),
			logger.String("constituent_id", constituentID))
		metrics.RecordDuplicateRegistration()
		summary.DuplicateRegistrations++
		return nil
	}

	rsvp := transform.RSVPStatus(participant.Status)
	_, err = retry.Do(ctx, s.policy, gateway.Retryable, func() (struct{}, error) {
		return struct{}{}, s.target.RegisterParticipant(ctx, targetEventID, constituentID, rsvp)
	})
	switch {
	case errors.Is(err, gateway.ErrAlreadyRegistered):
		log.Debug(ctx, "participant already registered",
			logger.String("target_event_id", targetEventID),
			logger.String("constituent_id", constituentID))
		metrics.RecordDuplicateRegistration()
		summary.DuplicateRegistrations++
		return nil
	case err != nil:
		return fmt.Errorf("registering participant: %w", err)
	}

	log.Info(ctx, "registered participant",
		logger.String("target_event_id", targetEventID),
		logger.String("constituent_id", constituentID),
		logger.String("rsvp", rsvp))
	metrics.RecordRegistration()
	summary.Registrations++
	return nil
}

// enrich backfills sparse listing rows from the member profile. Enrichment
// is best effort; a failed lookup leaves the row as listed.
func (s *Service) enrich(ctx context.Context, log logger.Logger, participant *model.ParticipantRecord) {
	if participant.FirstName != "" && participant.LastName != "" && participant.Email != "" {
		return
	}

	details, err := retry.Do(ctx, s.policy, gateway.Retryable, func() (model.ParticipantRecord, error) {
		return s.source.MemberDetails(ctx, participant.MemberID)
	})
	if err != nil {
		log.Warn(ctx, "member detail lookup failed",
			logger.String("member_id", participant.MemberID),
			logger.Error(err))
		return
	}
	participant.Merge(details)
}

// ensureConstituent returns the target constituent id for a member, adopting
// an existing constituent by identity match or creating a new one. The
// mapping is recorded before the first registration attempt, so a later
// failure never orphans the created constituent.
func (s *Service) ensureConstituent(ctx context.Context, log logger.Logger, participant model.ParticipantRecord, summary *Summary) (string, error) {
	constituentID, err := s.mappings.Lookup(ctx, model.KindConstituent, participant.MemberID)
	if err == nil {
		metrics.RecordConstituentReused()
		summary.ConstituentsReused++
		return constituentID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("looking up constituent mapping: %w", err)
	}

	identity := participant.Identity()
	constituentID, err = retry.Do(ctx, s.policy, gateway.Retryable, func() (string, error) {
		return s.target.FindConstituent(ctx, identity)
	})
	switch {
	case err == nil:
		log.Info(ctx, "adopted existing constituent",
			logger.String("member_id", participant.MemberID),
			logger.String("constituent_id", constituentID))
		metrics.RecordConstituentAdopted()
		summary.ConstituentsAdopted++
	case errors.Is(err, gateway.ErrNotFound):
		constituentID, err = retry.Do(ctx, s.policy, gateway.Retryable, func() (string, error) {
			return s.target.CreateConstituent(ctx, identity)
		})
		if err != nil {
			return "", fmt.Errorf("creating constituent: %w", err)
		}
		log.Info(ctx, "created constituent",
			logger.String("member_id", participant.MemberID),
			logger.String("constituent_id", constituentID))
		metrics.RecordConstituentCreated()
		summary.ConstituentsCreated++
	default:
		return "", fmt.Errorf("searching constituents: %w", err)
	}

	if err := s.mappings.Record(ctx, model.KindConstituent, participant.MemberID, constituentID); err != nil {
		return "", fmt.Errorf("recording constituent mapping %s -> %s: %w", participant.MemberID, constituentID, err)
	}
	return constituentID, nil
}

// fatal reports whether an error must stop the whole pass instead of
// skipping one record.
func fatal(err error) bool {
	return token.IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// skipReason labels a per-record failure for metrics and logs.
func skipReason(err error) string {
	switch {
	case errors.Is(err, gateway.ErrValidation),
		errors.Is(err, model.ErrMissingID),
		errors.Is(err, model.ErrMissingName):
		return "validation"
	case errors.Is(err, gateway.ErrPermission):
		return "permission"
	case errors.Is(err, gateway.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrConflict):
		return "mapping_conflict"
	case errors.Is(err, gateway.ErrRateLimited), errors.Is(err, gateway.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
