// Package screening orchestrates the decision pipeline: pin a list snapshot,
// match, score, evaluate policy, persist, then answer. The decision log write
// happens before the response leaves the service; an unpersisted decision is
// never returned.
package screening

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chainscreen/internal/audit"
	"chainscreen/internal/decisionlog"
	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	"chainscreen/internal/platform/metrics"
	"chainscreen/internal/policy"
	"chainscreen/internal/scoring"
	"chainscreen/pkg/canonical"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

const defaultBatchWorkers = 8

// Service is the screening orchestrator.
type Service struct {
	lists   *liststore.Store
	matcher matcher.Matcher
	scorer  *scoring.Engine
	policy  *policy.Engine
	log     decisionlog.Store

	publisher    *audit.Publisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
	clock        func() time.Time
	batchWorkers int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables screening metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher enables audit event emission.
func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the clock for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithBatchWorkers bounds batch screening concurrency.
func WithBatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

// New creates the screening service.
func New(lists *liststore.Store, m matcher.Matcher, scorer *scoring.Engine, pol *policy.Engine, log decisionlog.Store, opts ...Option) (*Service, error) {
	if lists == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "screening service requires a list store")
	}
	if m == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "screening service requires a matcher")
	}
	if scorer == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "screening service requires a scoring engine")
	}
	if pol == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "screening service requires a policy engine")
	}
	if log == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "screening service requires a decision log")
	}

	s := &Service{
		lists:        lists,
		matcher:      m,
		scorer:       scorer,
		policy:       pol,
		log:          log,
		tracer:       otel.Tracer("chainscreen/screening"),
		clock:        time.Now,
		batchWorkers: defaultBatchWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Screen runs the full pipeline for one request.
func (s *Service) Screen(ctx context.Context, req Request) (Decision, error) {
	view, err := s.resolveView(req)
	if err != nil {
		return Decision{}, err
	}
	return s.screenOnView(ctx, view, req)
}

// ScreenBatch screens all requests against one pinned snapshot so every
// element sees the same list version. Results are positionally aligned with
// the requests; an element failure lands in its slot, it never aborts the
// batch. Only context cancellation returns an error; elements persisted
// before the cancellation remain in the decision log and can be recovered
// from it.
func (s *Service) ScreenBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, dErrors.NewField(dErrors.CodeInvalidInput, "requests", "batch must not be empty")
	}

	view := s.lists.Current()
	if view == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no list snapshot loaded")
	}
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchWorkers)
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decision, err := s.screenOnView(gctx, view, req)
			if err != nil {
				items[i] = BatchItem{Err: err}
				return nil
			}
			items[i] = BatchItem{Decision: &decision}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch screening aborted")
	}
	return items, nil
}

func (s *Service) resolveView(req Request) (*liststore.View, error) {
	if req.SnapshotID.IsNil() {
		view := s.lists.Current()
		if view == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "no list snapshot loaded")
		}
		return view, nil
	}
	return s.lists.At(req.SnapshotID)
}

func (s *Service) screenOnView(ctx context.Context, view *liststore.View, req Request) (Decision, error) {
	ctx, span := s.tracer.Start(ctx, "screening.Screen",
		trace.WithAttributes(
			attribute.String("subject_type", string(req.Type)),
			attribute.String("snapshot_id", view.ID().String()),
		),
	)
	defer span.End()

	start := s.clock()
	decision, err := s.decide(ctx, view, req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ScreeningFailures.Inc()
		}
		span.RecordError(err)
		return Decision{}, err
	}

	span.SetAttributes(
		attribute.String("verdict", string(decision.Verdict)),
		attribute.Int("score", decision.Score.Score),
	)
	if s.metrics != nil {
		s.metrics.ObserveScreen(string(decision.Verdict), s.clock().Sub(start))
	}
	s.emitDecision(ctx, decision)
	return decision, nil
}

func (s *Service) decide(ctx context.Context, view *liststore.View, req Request) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}

	candidates, err := s.matcher.Match(ctx, view, req.Identifier, req.Type, req.MinConfidence)
	if err != nil {
		return Decision{}, err
	}

	in := scoring.Input{Candidates: candidates}
	var tx TransactionContext
	if req.Transaction != nil {
		tx = *req.Transaction
		in.HasTransaction = true
		in.Origin = tx.Origin
		in.Destination = tx.Destination
		in.Amount = tx.Amount
		in.RapidMovement = tx.RapidMovement
		in.RoundTrip = tx.RoundTrip
		in.Counterparties = tx.Counterparties
	}

	composite, err := s.scorer.Score(ctx, view, in, req.ScoreVersion)
	if err != nil {
		return Decision{}, err
	}

	maxConfidence := 0.0
	if len(candidates) > 0 {
		maxConfidence = candidates[0].Confidence
	}
	result := s.policy.Decide(policy.Input{
		Score:              composite.Score,
		MaxMatchConfidence: maxConfidence,
		Amount:             tx.Amount,
		Origin:             tx.Origin,
		Destination:        tx.Destination,
		Originator:         tx.Originator,
		Beneficiary:        tx.Beneficiary,
	})

	decision := Decision{
		ID:            id.NewDecisionID(),
		Subject:       req.Identifier,
		SubjectType:   req.Type,
		Verdict:       result.Verdict,
		Score:         composite,
		Candidates:    candidates,
		Policy:        result,
		SnapshotID:    view.ID(),
		SnapshotLabel: view.Label(),
		LoggedAt:      s.clock().UTC(),
	}

	payload, err := decision.Canonical()
	if err != nil {
		return Decision{}, err
	}
	decision.Fingerprint = canonical.HashBytes(payload)

	rec := decisionlog.Record{
		ID:          decision.ID,
		Fingerprint: decision.Fingerprint,
		Verdict:     string(decision.Verdict),
		Subject:     decision.Subject,
		SnapshotID:  decision.SnapshotID,
		Payload:     payload,
		LoggedAt:    decision.LoggedAt,
	}
	if err := s.log.Append(ctx, rec); err != nil {
		// Write-before-respond: without a durable record there is no decision.
		return Decision{}, dErrors.Wrap(err, dErrors.CodePersistence, "persisting decision")
	}
	return decision, nil
}

func (s *Service) emitDecision(ctx context.Context, decision Decision) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "screening decision",
			"log_type", "audit",
			"decision_id", decision.ID.String(),
			"verdict", decision.Verdict,
			"score", decision.Score.Score,
			"snapshot_id", decision.SnapshotID.String(),
			"fingerprint", decision.Fingerprint,
		)
	}
	if s.publisher == nil {
		return
	}
	err := s.publisher.Emit(ctx, audit.Event{
		Action:      audit.ActionDecision,
		DecisionID:  decision.ID,
		Subject:     decision.Subject,
		Verdict:     string(decision.Verdict),
		Score:       decision.Score.Score,
		SnapshotID:  decision.SnapshotID,
		Fingerprint: decision.Fingerprint,
	})
	if err != nil && s.logger != nil {
		// The decision is already durable in the log; a lost broker event is
		// recoverable from there.
		s.logger.WarnContext(ctx, "audit emit failed",
			"decision_id", decision.ID.String(),
			"error", err,
		)
	}
}

// LoadSnapshot installs a new list snapshot and reports its version ID.
func (s *Service) LoadSnapshot(ctx context.Context, snap liststore.Snapshot) (id.SnapshotID, error) {
	snapshotID, err := s.lists.Load(ctx, snap)
	if err != nil {
		return id.SnapshotID{}, err
	}

	view := s.lists.Current()
	if s.metrics != nil {
		s.metrics.SnapshotLoads.Inc()
		s.metrics.SnapshotEntries.Set(float64(view.EntryCount()))
	}
	if s.publisher != nil {
		if err := s.publisher.Emit(ctx, audit.Event{
			Action:     audit.ActionSnapshotLoaded,
			SnapshotID: snapshotID,
			Detail:     snap.VersionLabel,
		}); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "audit emit failed", "error", err)
		}
	}
	return snapshotID, nil
}

// Decision returns one logged decision by ID.
func (s *Service) Decision(ctx context.Context, decisionID id.DecisionID) (decisionlog.Record, error) {
	return s.log.Get(ctx, decisionID)
}

// Decisions lists logged decisions strictly after since, up to limit.
func (s *Service) Decisions(ctx context.Context, since time.Time, limit int) ([]decisionlog.Record, error) {
	return s.log.ListSince(ctx, since, limit)
}

// CurrentSnapshot describes the list version screenings currently run
// against.
func (s *Service) CurrentSnapshot() *liststore.View {
	return s.lists.Current()
}
