package screening

//go:generate mockgen -destination=mocks/mocks.go -package=mocks chainscreen/internal/decisionlog Store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"chainscreen/internal/audit"
	"chainscreen/internal/decisionlog"
	"chainscreen/internal/jurisdiction"
	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	"chainscreen/internal/policy"
	"chainscreen/internal/scoring"
	"chainscreen/internal/screening/mocks"
	"chainscreen/pkg/canonical"
	dErrors "chainscreen/pkg/domain-errors"
)

type DecisionLogContractSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	mockLog *mocks.MockStore
	sink    *audit.MemorySink
	service *Service
	ctx     context.Context
}

func TestDecisionLogContractSuite(t *testing.T) {
	suite.Run(t, new(DecisionLogContractSuite))
}

func (s *DecisionLogContractSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockLog = mocks.NewMockStore(s.ctrl)
	s.sink = audit.NewMemorySink()
	s.ctx = context.Background()

	lists := liststore.New()
	_, err := lists.Load(s.ctx, liststore.Snapshot{
		VersionLabel: "test",
		Entries: []liststore.ListEntry{
			{Identifier: "Evil Corp", Type: liststore.EntryTypeEntity, Source: liststore.SourceOFAC},
		},
	})
	s.Require().NoError(err)

	table := jurisdiction.NewTable()
	scorer, err := scoring.NewEngine(scoring.NewRegistry(), table, matcher.New())
	s.Require().NoError(err)
	pol, err := policy.NewEngine(policy.DefaultConfig(), table)
	s.Require().NoError(err)

	s.service, err = New(lists, matcher.New(), scorer, pol, s.mockLog,
		WithAuditPublisher(audit.NewPublisher(s.sink)),
	)
	s.Require().NoError(err)
}

func (s *DecisionLogContractSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DecisionLogContractSuite) TestAppendedRecordMatchesDecision() {
	var appended decisionlog.Record
	s.mockLog.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec decisionlog.Record) error {
			appended = rec
			return nil
		})

	decision, err := s.service.Screen(s.ctx, Request{
		Identifier: "Evil Corp",
		Type:       liststore.EntryTypeEntity,
	})
	s.Require().NoError(err)

	s.Equal(decision.ID, appended.ID)
	s.Equal(string(decision.Verdict), appended.Verdict)
	s.Equal(decision.SnapshotID, appended.SnapshotID)

	// The stored payload must hash to the fingerprint on the record.
	s.Equal(appended.Fingerprint, canonical.HashBytes(appended.Payload))
	s.Equal(decision.Fingerprint, appended.Fingerprint)
}

func (s *DecisionLogContractSuite) TestNoAuditEmitWhenPersistFails() {
	s.mockLog.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	_, err := s.service.Screen(s.ctx, Request{
		Identifier: "Evil Corp",
		Type:       liststore.EntryTypeEntity,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePersistence))
	s.Empty(s.sink.Events(), "an unpersisted decision must not reach the audit stream")
}

func (s *DecisionLogContractSuite) TestDecisionsDelegatesCursor() {
	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.mockLog.EXPECT().
		ListSince(gomock.Any(), since, 25).
		Return([]decisionlog.Record{}, nil)

	_, err := s.service.Decisions(s.ctx, since, 25)
	s.Require().NoError(err)
}
