//go:build integration

package decisionlog_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chainscreen/internal/decisionlog"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
	"chainscreen/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *decisionlog.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = decisionlog.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "decision_log"))
}

func testRecord(loggedAt time.Time) decisionlog.Record {
	return decisionlog.Record{
		ID:          id.NewDecisionID(),
		Fingerprint: "deadbeef",
		Verdict:     "block",
		Subject:     "0xabc",
		SnapshotID:  id.NewSnapshotID(),
		Payload:     json.RawMessage(`{"verdict":"block","score":100}`),
		LoggedAt:    loggedAt,
	}
}

func (s *PostgresStoreSuite) TestAppendAndGetRoundTrip() {
	ctx := context.Background()
	rec := testRecord(time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(s.store.Append(ctx, rec))

	got, err := s.store.Get(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.ID, got.ID)
	s.Equal(rec.Fingerprint, got.Fingerprint)
	s.Equal(rec.SnapshotID, got.SnapshotID)
	s.JSONEq(string(rec.Payload), string(got.Payload))
	s.WithinDuration(rec.LoggedAt, got.LoggedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestDuplicateIDRejected() {
	ctx := context.Background()
	rec := testRecord(time.Now().UTC())
	s.Require().NoError(s.store.Append(ctx, rec))

	err := s.store.Append(ctx, rec)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PostgresStoreSuite) TestGetUnknownID() {
	_, err := s.store.Get(context.Background(), id.NewDecisionID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestListSinceOrderAndCursor() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	var ids []id.DecisionID
	for i := 0; i < 4; i++ {
		rec := testRecord(base.Add(time.Duration(i) * time.Second))
		ids = append(ids, rec.ID)
		s.Require().NoError(s.store.Append(ctx, rec))
	}

	got, err := s.store.ListSince(ctx, base, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 3, "boundary record is excluded")
	s.Equal(ids[1], got[0].ID)
	s.Equal(ids[3], got[2].ID)

	// Resume from the last seen record.
	got, err = s.store.ListSince(ctx, got[0].LoggedAt, 10)
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *PostgresStoreSuite) TestListSinceLimit() {
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Append(ctx, testRecord(base.Add(time.Duration(i)*time.Second))))
	}

	got, err := s.store.ListSince(ctx, base.Add(-time.Minute), 2)
	s.Require().NoError(err)
	s.Len(got, 2)
}
