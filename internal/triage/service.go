package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/docbox/internal/mailbox"
)

// Notification is a notable pipeline outcome forwarded to a Notifier.
type Notification struct {
	Event  string
	Vector *StateVector
	Zone   Zone
}

// Notification events.
const (
	NotifyStatIngested = "stat_ingested"
	NotifyEscalated    = "escalated"
)

// Notifier receives notable pipeline outcomes. Implementations must be safe
// for concurrent use; delivery is best-effort and asynchronous.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// Service is the business boundary for the triage pipeline: ingestion,
// escalation, corrections, and grid reads.
type Service struct {
	store          Store
	oracle         *Oracle
	lexical        *Lexical
	logger         log.Logger
	metrics        *Metrics
	notifier       Notifier
	escalationRole string
	now            func() time.Time
	backoff        time.Duration
}

// ServiceOptions adjusts optional service behavior.
type ServiceOptions struct {
	// Metrics may be nil (e.g. in tests).
	Metrics *Metrics

	// Notifier may be nil to disable notifications.
	Notifier Notifier

	// EscalationRole is the owner assigned by manual escalation.
	// Defaults to lead_doctor.
	EscalationRole string

	// Now overrides the clock, for tests.
	Now func() time.Time

	// RetryBackoff overrides the base backoff between retry attempts,
	// for tests. Defaults to 500ms.
	RetryBackoff time.Duration
}

// NewService wires the pipeline together. store is required; oracle may be
// unconfigured (lexical fallback then always applies).
func NewService(store Store, oracle *Oracle, lexical *Lexical, logger log.Logger, opts ServiceOptions) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if oracle == nil {
		oracle = NewOracle(nil, logger)
	}
	if lexical == nil {
		lexical = NewLexical(store, logger)
	}
	if opts.EscalationRole == "" {
		opts.EscalationRole = RoleLeadDoctor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = retryBackoff
	}
	return &Service{
		store:          store,
		oracle:         oracle,
		lexical:        lexical,
		logger:         logger,
		metrics:        opts.Metrics,
		notifier:       opts.Notifier,
		escalationRole: opts.EscalationRole,
		now:            opts.Now,
		backoff:        opts.RetryBackoff,
	}
}

// Ingest classifies one raw message into a durable state vector: oracle with
// bounded retries, lexical fallback, routing, context-blob assembly, then a
// retried insert. Either one vector is created and returned, or the error is
// propagated with nothing written.
func (s *Service) Ingest(ctx context.Context, msg *mailbox.Message) (*StateVector, error) {
	start := s.now()
	rawText := msg.RawText()

	L := s.logger.With("sender", msg.Sender, "origin_id", msg.OriginID)

	draft := s.vectorize(ctx, L, msg, rawText)
	route := Route(draft.Intent, draft.RiskScore)

	owner := draft.OwnerRole
	if owner == "" {
		owner = route.OwnerRole
	}

	now := s.now().UTC()
	sourceID := msg.SourceID
	if sourceID == "" {
		sourceID = ulid.Make().String()
	}
	originID := msg.OriginID
	if originID == "" {
		originID = "manual"
	}

	v := &StateVector{
		ID:              ulid.Make().String(),
		SourceMessageID: sourceID,
		OriginID:        originID,
		Intent:          draft.Intent,
		RiskScore:       clamp01(draft.RiskScore),
		Context:         s.buildContext(msg, draft),
		Summary:         draft.Summary,
		OwnerRole:       owner,
		DeadlineAt:      draft.Deadline,
		Lifecycle:       draft.Lifecycle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := retryLinear(ctx, retryAttempts, s.backoff,
		func(err error) bool { return !errors.Is(err, ErrDuplicateSource) },
		func(ctx context.Context) error { return s.store.Create(ctx, v) },
	)
	if err != nil {
		s.observeIngest(ingestOutcome(err), start)
		L.Error(ctx, err, "state vector insert failed", "source_message_id", sourceID)
		return nil, fmt.Errorf("persist state vector: %w", err)
	}

	s.observeIngest("created", start)
	L.Info(ctx, "state vector created",
		"vector_id", v.ID,
		"intent", v.Intent,
		"risk_score", v.RiskScore,
		"owner_role", v.OwnerRole,
		"lifecycle", v.Lifecycle,
		"routing_reason", route.Reason,
	)

	if zone := VectorZone(v, now); zone == ZoneStat {
		s.notify(ctx, &Notification{Event: NotifyStatIngested, Vector: v, Zone: zone})
	}
	return v, nil
}

// vectorize runs the oracle with bounded retries and falls back to the
// lexical classifier. It always produces a draft.
func (s *Service) vectorize(ctx context.Context, L log.Logger, msg *mailbox.Message, rawText string) *VectorDraft {
	if s.oracle.Configured() && rawText != "" {
		var draft *VectorDraft
		err := retryLinear(ctx, retryAttempts, s.backoff, nil, func(ctx context.Context) error {
			start := s.now()
			d, err := s.oracle.Vectorize(ctx, rawText)
			s.observeOracle(err, start)
			if err != nil {
				return err
			}
			draft = d
			return nil
		})
		if err == nil {
			return draft
		}
		L.Warn(ctx, "oracle exhausted, falling back to lexical classifier", "error", err)
	}

	if s.metrics != nil {
		s.metrics.FallbacksTotal.Inc()
	}
	draft := s.lexical.HeuristicDraft(rawText)
	cls := s.lexical.Classify(ctx, msg.Sender, msg.SenderDomain(), msg.Subject, msg.Text())
	draft.classification = &cls
	return draft
}

// buildContext assembles the context blob, guaranteeing subject, snippet,
// and sender as fallback keys even when the oracle embedded its own vector.
func (s *Service) buildContext(msg *mailbox.Message, draft *VectorDraft) ContextBlob {
	blob := ContextBlob{
		Vector:         draft.Raw,
		Classification: draft.classification,
		Heuristic:      draft.Heuristic,
		Matches:        draft.Matches,
	}
	if blob.Subject == "" {
		blob.Subject = msg.Subject
	}
	if blob.Snippet == "" {
		blob.Snippet = msg.Text()
	}
	if blob.Sender == "" {
		blob.Sender = msg.Sender
	}
	return blob
}

// Get retrieves a state vector by id.
func (s *Service) Get(ctx context.Context, id string) (*StateVector, bool, error) {
	return s.store.Get(ctx, id)
}

// Escalate forces a vector to OVERDUE, reassigns it to the configured
// escalation owner, and appends an ESCALATED event. Returns ErrNotFound for
// unknown ids.
func (s *Service) Escalate(ctx context.Context, id string) (*StateVector, error) {
	v, ok, err := s.store.UpdateLifecycle(ctx, id, LifecycleOverdue, s.escalationRole)
	if err != nil {
		return nil, fmt.Errorf("escalate %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	ev := &MessageEvent{
		ID:          ulid.Make().String(),
		VectorID:    id,
		EventType:   EventEscalated,
		Description: "Manual escalation",
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		// The lifecycle change already landed; an audit gap is logged, not fatal.
		s.logger.Error(ctx, err, "failed to append escalation event", "vector_id", id)
	}

	if s.metrics != nil {
		s.metrics.EscalationsTotal.Inc()
	}
	s.logger.Info(ctx, "state vector escalated", "vector_id", id, "owner_role", s.escalationRole)

	s.notify(ctx, &Notification{Event: NotifyEscalated, Vector: v, Zone: VectorZone(v, s.now())})
	return v, nil
}

// Correct records a human zone correction: the vector's sender learns a
// forced zone that the lexical classifier will honor from now on. The upsert
// is idempotent; last writer wins.
func (s *Service) Correct(ctx context.Context, id string, zone Zone) (*StateVector, error) {
	if !ValidZone(zone) {
		return nil, fmt.Errorf("invalid zone %q", zone)
	}
	v, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("correct %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	sender := v.Context.Sender
	if sender == "" {
		return nil, fmt.Errorf("vector %s has no sender recorded", id)
	}

	if err := s.store.SetOverride(ctx, SenderKey(sender), zone); err != nil {
		return nil, fmt.Errorf("set override: %w", err)
	}

	ev := &MessageEvent{
		ID:          ulid.Make().String(),
		VectorID:    id,
		EventType:   EventCorrected,
		Description: fmt.Sprintf("Zone corrected to %s for %s", zone, sender),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		s.logger.Error(ctx, err, "failed to append correction event", "vector_id", id)
	}

	if s.metrics != nil {
		s.metrics.CorrectionsTotal.Inc()
	}
	s.logger.Info(ctx, "zone correction learned", "vector_id", id, "zone", zone, "sender", sender)
	return v, nil
}

// Grid builds the four-zone preview over open vectors. ownerFilter restricts
// to a single owner role or origin id; previewLimit is clamped to 1..50.
func (s *Service) Grid(ctx context.Context, ownerFilter string, previewLimit int) (*Grid, error) {
	start := s.now()
	vectors, err := s.store.ListOpen(ctx, ownerFilter)
	if err != nil {
		return nil, fmt.Errorf("list open vectors: %w", err)
	}
	grid := BuildGrid(vectors, previewLimit, s.now())
	if s.metrics != nil {
		s.metrics.GridBuildDuration.Observe(s.now().Sub(start).Seconds())
		s.metrics.GridOpenVectors.Observe(float64(len(vectors)))
	}
	return grid, nil
}

func (s *Service) notify(ctx context.Context, n *Notification) {
	if s.notifier == nil {
		return
	}
	go func(ctx context.Context) {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error(ctx, err, "notification failed", "event", n.Event, "vector_id", n.Vector.ID)
		}
	}(context.WithoutCancel(ctx))
}

func (s *Service) observeIngest(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IngestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.IngestDuration.Observe(s.now().Sub(start).Seconds())
}

func (s *Service) observeOracle(err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "unavailable"
	}
	s.metrics.OracleCallsTotal.WithLabelValues(outcome).Inc()
	s.metrics.OracleDuration.Observe(s.now().Sub(start).Seconds())
}

func ingestOutcome(err error) string {
	if errors.Is(err, ErrDuplicateSource) {
		return "duplicate"
	}
	return "failed"
}
