package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chainscreen/internal/decisionlog"
	"chainscreen/internal/jurisdiction"
	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	"chainscreen/internal/policy"
	"chainscreen/internal/scoring"
	"chainscreen/internal/screening"
)

const sanctionedAddr = "0x8576acc5c05d6ce88f4e49bf65bdf0c62f91353c"

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	lists  *liststore.Store
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.lists = liststore.New()
	_, err := s.lists.Load(context.Background(), liststore.Snapshot{
		VersionLabel: "ofac-2024-06-01",
		Entries: []liststore.ListEntry{
			{Identifier: sanctionedAddr, Type: liststore.EntryTypeAddress, Source: liststore.SourceOFAC, SourceRef: "SDN-37155"},
			{Identifier: "John Smith", Type: liststore.EntryTypeEntity, Source: liststore.SourceOFAC, SourceRef: "SDN-10001"},
		},
	})
	s.Require().NoError(err)

	table := jurisdiction.NewTable()
	scorer, err := scoring.NewEngine(scoring.NewRegistry(), table, matcher.New())
	s.Require().NoError(err)
	pol, err := policy.NewEngine(policy.DefaultConfig(), table)
	s.Require().NoError(err)
	svc, err := screening.New(s.lists, matcher.New(), scorer, pol, decisionlog.NewMemoryStore())
	s.Require().NoError(err)

	handler := NewHandler(svc, table,
		WithHealthCheck("decision_log", func(context.Context) error { return nil }),
	)
	s.router = NewRouter(handler)
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&out))
	return out
}

func (s *HandlerSuite) TestScreenBlocksSanctionedAddress() {
	w := s.do(http.MethodPost, "/v1/screen", screening.Request{
		Identifier: sanctionedAddr,
		Type:       liststore.EntryTypeAddress,
	})
	s.Require().Equal(http.StatusOK, w.Code)

	body := s.decode(w)
	s.Equal("block", body["verdict"])
	s.NotEmpty(body["fingerprint"])
	s.NotEmpty(body["id"])
}

func (s *HandlerSuite) TestScreenRejectsMalformedIdentifier() {
	w := s.do(http.MethodPost, "/v1/screen", screening.Request{
		Identifier: "0xZZZZ",
		Type:       liststore.EntryTypeAddress,
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)

	body := s.decode(w)
	s.Equal("invalid_input", body["error"])
	s.Equal("identifier", body["field"])
}

func (s *HandlerSuite) TestScreenRejectsUnknownFields() {
	w := s.do(http.MethodPost, "/v1/screen", map[string]any{
		"identifier": sanctionedAddr,
		"type":       "address",
		"surprise":   true,
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestBatchAlignsResultsWithRequests() {
	w := s.do(http.MethodPost, "/v1/screen/batch", map[string]any{
		"requests": []screening.Request{
			{Identifier: sanctionedAddr, Type: liststore.EntryTypeAddress},
			{Identifier: "0xZZZZ", Type: liststore.EntryTypeAddress},
		},
	})
	s.Require().Equal(http.StatusOK, w.Code)

	var body struct {
		Results []struct {
			Decision *screening.Decision `json:"decision"`
			Error    *struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"results"`
	}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Require().Len(body.Results, 2)

	s.Require().NotNil(body.Results[0].Decision)
	s.Equal(policy.VerdictBlock, body.Results[0].Decision.Verdict)
	s.Nil(body.Results[0].Error)

	s.Nil(body.Results[1].Decision)
	s.Require().NotNil(body.Results[1].Error)
	s.Equal("invalid_input", body.Results[1].Error.Code)
}

func (s *HandlerSuite) TestSnapshotLoadAndInspect() {
	w := s.do(http.MethodPost, "/v1/lists/snapshot", liststore.Snapshot{
		VersionLabel: "ofac-2024-06-02",
		Entries: []liststore.ListEntry{
			{Identifier: "New Entity", Type: liststore.EntryTypeEntity, Source: liststore.SourceEU},
		},
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	created := s.decode(w)
	s.NotEmpty(created["snapshot_id"])

	w = s.do(http.MethodGet, "/v1/lists/current", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("ofac-2024-06-02", body["version_label"])
	s.Equal(created["snapshot_id"], body["snapshot_id"])
	s.EqualValues(1, body["entries"])
}

func (s *HandlerSuite) TestSnapshotValidationError() {
	w := s.do(http.MethodPost, "/v1/lists/snapshot", liststore.Snapshot{
		VersionLabel: "empty",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("validation", s.decode(w)["error"])
}

func (s *HandlerSuite) TestSearch() {
	w := s.do(http.MethodGet, "/v1/lists/search?q=smith", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var body struct {
		Entries []liststore.ListEntry `json:"entries"`
	}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Require().Len(body.Entries, 1)
	s.Equal("john smith", body.Entries[0].Identifier)

	w = s.do(http.MethodGet, "/v1/lists/search", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestJurisdictionLookup() {
	w := s.do(http.MethodGet, "/v1/jurisdictions/us", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("US", body["code"])
	s.Equal("compliant", body["fatf_status"])

	w = s.do(http.MethodGet, "/v1/jurisdictions/XX", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestDecisionLogEndpoints() {
	w := s.do(http.MethodPost, "/v1/screen", screening.Request{
		Identifier: sanctionedAddr,
		Type:       liststore.EntryTypeAddress,
	})
	s.Require().Equal(http.StatusOK, w.Code)
	decisionID := s.decode(w)["id"].(string)

	w = s.do(http.MethodGet, "/v1/decisions/"+decisionID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(decisionID, s.decode(w)["id"])

	w = s.do(http.MethodGet, "/v1/decisions/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	since := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	w = s.do(http.MethodGet, "/v1/decisions?since="+since+"&limit=10", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var listing struct {
		Decisions []decisionlog.Record `json:"decisions"`
	}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&listing))
	s.Len(listing.Decisions, 1)

	w = s.do(http.MethodGet, "/v1/decisions?since=yesterday", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestHealth() {
	w := s.do(http.MethodGet, "/healthz", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("ok", s.decode(w)["status"])
}

func (s *HandlerSuite) TestHealthDegraded() {
	table := jurisdiction.NewTable()
	scorer, err := scoring.NewEngine(scoring.NewRegistry(), table, matcher.New())
	s.Require().NoError(err)
	pol, err := policy.NewEngine(policy.DefaultConfig(), table)
	s.Require().NoError(err)
	svc, err := screening.New(s.lists, matcher.New(), scorer, pol, decisionlog.NewMemoryStore())
	s.Require().NoError(err)

	handler := NewHandler(svc, table,
		WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	)
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal("degraded", s.decode(w)["status"])
}

func (s *HandlerSuite) TestRequestIDEchoed() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal("req-123", w.Header().Get("X-Request-ID"))
}
