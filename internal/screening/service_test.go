package screening

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chainscreen/internal/audit"
	"chainscreen/internal/decisionlog"
	"chainscreen/internal/jurisdiction"
	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	"chainscreen/internal/policy"
	"chainscreen/internal/scoring"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

const sanctionedAddr = "0x8576acc5c05d6ce88f4e49bf65bdf0c62f91353c"

type failingLog struct {
	decisionlog.Store
	err error
}

func (f *failingLog) Append(context.Context, decisionlog.Record) error { return f.err }

// cancellingLog persists normally, then cancels the batch after its first
// successful append.
type cancellingLog struct {
	decisionlog.Store
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingLog) Append(ctx context.Context, rec decisionlog.Record) error {
	err := c.Store.Append(ctx, rec)
	c.once.Do(c.cancel)
	return err
}

type ServiceSuite struct {
	suite.Suite
	lists   *liststore.Store
	log     *decisionlog.MemoryStore
	sink    *audit.MemorySink
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.lists = liststore.New()
	s.log = decisionlog.NewMemoryStore()
	s.sink = audit.NewMemorySink()

	_, err := s.lists.Load(s.ctx, liststore.Snapshot{
		VersionLabel: "ofac-2024-06-01",
		Entries: []liststore.ListEntry{
			{Identifier: sanctionedAddr, Type: liststore.EntryTypeAddress, Source: liststore.SourceOFAC, SourceRef: "SDN-37155"},
			{Identifier: "John Smith", Type: liststore.EntryTypeEntity, Source: liststore.SourceOFAC, SourceRef: "SDN-10001", Aliases: []string{"Jack Smith"}},
			{Identifier: "Evil Corp", Type: liststore.EntryTypeEntity, Source: liststore.SourceInternal},
		},
	})
	s.Require().NoError(err)

	s.service = s.buildService(s.log)
}

func (s *ServiceSuite) buildService(log decisionlog.Store, opts ...Option) *Service {
	scorer, err := scoring.NewEngine(scoring.NewRegistry(), jurisdiction.NewTable(), matcher.New())
	s.Require().NoError(err)
	pol, err := policy.NewEngine(policy.DefaultConfig(), jurisdiction.NewTable())
	s.Require().NoError(err)

	opts = append([]Option{
		WithAuditPublisher(audit.NewPublisher(s.sink)),
		WithClock(func() time.Time { return s.now }),
	}, opts...)
	svc, err := New(s.lists, matcher.New(), scorer, pol, log, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) TestCleanSubjectClears() {
	decision, err := s.service.Screen(s.ctx, Request{
		Identifier: "0x1111111111111111111111111111111111111111",
		Type:       liststore.EntryTypeAddress,
	})
	s.Require().NoError(err)

	s.Equal(policy.VerdictClear, decision.Verdict)
	s.Empty(decision.Candidates)
	s.NotEmpty(decision.Fingerprint)
	s.False(decision.ID.IsNil())

	// Durable before returned.
	rec, err := s.log.Get(s.ctx, decision.ID)
	s.Require().NoError(err)
	s.Equal(decision.Fingerprint, rec.Fingerprint)

	// Audit trail carries the same identifiers.
	events := s.sink.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionDecision, events[0].Action)
	s.Equal(decision.ID, events[0].DecisionID)
}

func (s *ServiceSuite) TestSanctionedAddressBlocks() {
	decision, err := s.service.Screen(s.ctx, Request{
		Identifier: sanctionedAddr,
		Type:       liststore.EntryTypeAddress,
	})
	s.Require().NoError(err)

	s.Equal(policy.VerdictBlock, decision.Verdict)
	s.Equal(100, decision.Score.Score)
	s.Equal(scoring.LevelProhibited, decision.Score.Level)
	s.Require().NotEmpty(decision.Candidates)
	s.Equal(matcher.MethodExact, decision.Candidates[0].Method)
}

func (s *ServiceSuite) TestAliasHitBlocksViaOverride() {
	decision, err := s.service.Screen(s.ctx, Request{
		Identifier: "Jack Smith",
		Type:       liststore.EntryTypeEntity,
	})
	s.Require().NoError(err)

	// Alias confidence 0.95 meets the override threshold even though the
	// composite alone sits below the block band.
	s.Equal(policy.VerdictBlock, decision.Verdict)
	s.Less(decision.Score.Score, 70)
}

func (s *ServiceSuite) TestDecisionIsReproducible() {
	req := Request{
		Identifier: "John Smith",
		Type:       liststore.EntryTypeEntity,
		Transaction: &TransactionContext{
			Amount:      9500,
			Origin:      "US",
			Destination: "GB",
		},
	}

	first, err := s.service.Screen(s.ctx, req)
	s.Require().NoError(err)
	second, err := s.service.Screen(s.ctx, req)
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.Equal(first.Fingerprint, second.Fingerprint)

	firstBytes, err := first.Canonical()
	s.Require().NoError(err)
	secondBytes, err := second.Canonical()
	s.Require().NoError(err)
	s.Equal(firstBytes, secondBytes)
}

func (s *ServiceSuite) TestTravelRuleObligationsOnDecision() {
	decision, err := s.service.Screen(s.ctx, Request{
		Identifier: "0x1111111111111111111111111111111111111111",
		Type:       liststore.EntryTypeAddress,
		Transaction: &TransactionContext{
			Amount:      5000,
			Origin:      "US",
			Destination: "GB",
			Originator:  policy.PartyInfo{Name: "Alice Example"},
		},
	})
	s.Require().NoError(err)

	s.Equal(policy.VerdictClear, decision.Verdict)
	s.Equal(policy.TravelRuleMissingInfo, decision.Policy.TravelRule.Status)
	s.NotEmpty(decision.Policy.TravelRule.MissingFields)
}

func (s *ServiceSuite) TestPersistenceFailureReturnsNoDecision() {
	svc := s.buildService(&failingLog{err: errors.New("disk full")})

	_, err := svc.Screen(s.ctx, Request{
		Identifier: "0x1111111111111111111111111111111111111111",
		Type:       liststore.EntryTypeAddress,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePersistence))
}

func (s *ServiceSuite) TestInvalidRequestRejected() {
	_, err := s.service.Screen(s.ctx, Request{Type: liststore.EntryTypeAddress})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.log.ListSince(s.ctx, time.Time{}, 10)
	s.Require().NoError(err)
	events := s.sink.Events()
	s.Empty(events, "a rejected request must leave no trace of a decision")
}

func (s *ServiceSuite) TestPinnedSnapshotSurvivesReload() {
	pinned := s.lists.Current().ID()

	_, err := s.lists.Load(s.ctx, liststore.Snapshot{
		VersionLabel: "ofac-2024-06-02",
		Entries: []liststore.ListEntry{
			{Identifier: "Someone Else", Type: liststore.EntryTypeEntity, Source: liststore.SourceEU},
		},
	})
	s.Require().NoError(err)

	decision, err := s.service.Screen(s.ctx, Request{
		Identifier: sanctionedAddr,
		Type:       liststore.EntryTypeAddress,
		SnapshotID: pinned,
	})
	s.Require().NoError(err)
	s.Equal(pinned, decision.SnapshotID)
	s.Equal(policy.VerdictBlock, decision.Verdict)
}

func (s *ServiceSuite) TestEvictedSnapshotRejected() {
	evicted := s.lists.Current().ID()

	for _, label := range []string{"v2", "v3"} {
		_, err := s.lists.Load(s.ctx, liststore.Snapshot{
			VersionLabel: label,
			Entries: []liststore.ListEntry{
				{Identifier: "Someone Else", Type: liststore.EntryTypeEntity, Source: liststore.SourceEU},
			},
		})
		s.Require().NoError(err)
	}

	_, err := s.service.Screen(s.ctx, Request{
		Identifier: sanctionedAddr,
		Type:       liststore.EntryTypeAddress,
		SnapshotID: evicted,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStaleVersion))
}

func (s *ServiceSuite) TestBatchPreservesOrderAndElementErrors() {
	items, err := s.service.ScreenBatch(s.ctx, []Request{
		{Identifier: sanctionedAddr, Type: liststore.EntryTypeAddress},
		{Identifier: "0xZZZZ", Type: liststore.EntryTypeAddress},
		{Identifier: "0x1111111111111111111111111111111111111111", Type: liststore.EntryTypeAddress},
	})
	s.Require().NoError(err)
	s.Require().Len(items, 3)

	s.Require().NotNil(items[0].Decision)
	s.Equal(policy.VerdictBlock, items[0].Decision.Verdict)

	s.Nil(items[1].Decision)
	s.Require().Error(items[1].Err)
	s.True(dErrors.HasCode(items[1].Err, dErrors.CodeInvalidInput))

	s.Require().NotNil(items[2].Decision)
	s.Equal(policy.VerdictClear, items[2].Decision.Verdict)
}

func (s *ServiceSuite) TestBatchSharesOneSnapshot() {
	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{
			Identifier: "0x1111111111111111111111111111111111111111",
			Type:       liststore.EntryTypeAddress,
		}
	}

	items, err := s.service.ScreenBatch(s.ctx, reqs)
	s.Require().NoError(err)

	want := items[0].Decision.SnapshotID
	for _, item := range items {
		s.Require().NotNil(item.Decision)
		s.Equal(want, item.Decision.SnapshotID)
	}
}

func (s *ServiceSuite) TestBatchCancellationKeepsPersistedDecisions() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	store := decisionlog.NewMemoryStore()
	svc := s.buildService(&cancellingLog{Store: store, cancel: cancel}, WithBatchWorkers(1))

	req := Request{
		Identifier: "0x1111111111111111111111111111111111111111",
		Type:       liststore.EntryTypeAddress,
	}
	_, err := svc.ScreenBatch(ctx, []Request{req, req, req})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// The element persisted before the cancellation stays recoverable.
	recs, err := store.ListSince(s.ctx, time.Time{}, 10)
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *ServiceSuite) TestEmptyBatchRejected() {
	_, err := s.service.ScreenBatch(s.ctx, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestLoadSnapshotEmitsAudit() {
	snapshotID, err := s.service.LoadSnapshot(s.ctx, liststore.Snapshot{
		VersionLabel: "ofac-2024-06-02",
		Entries: []liststore.ListEntry{
			{Identifier: "Someone Else", Type: liststore.EntryTypeEntity, Source: liststore.SourceUN},
		},
	})
	s.Require().NoError(err)
	s.False(snapshotID.IsNil())
	s.Equal(snapshotID, s.service.CurrentSnapshot().ID())

	events := s.sink.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionSnapshotLoaded, events[0].Action)
	s.Equal(snapshotID, events[0].SnapshotID)
}

func (s *ServiceSuite) TestDecisionsCursor() {
	for i := 0; i < 3; i++ {
		s.now = s.now.Add(time.Second)
		_, err := s.service.Screen(s.ctx, Request{
			Identifier: "0x1111111111111111111111111111111111111111",
			Type:       liststore.EntryTypeAddress,
		})
		s.Require().NoError(err)
	}

	recs, err := s.service.Decisions(s.ctx, s.now.Add(-2*time.Second), 10)
	s.Require().NoError(err)
	s.Len(recs, 2)

	var unknown id.DecisionID
	copy(unknown[:], []byte("0123456789abcdef"))
	_, err = s.service.Decision(s.ctx, unknown)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
