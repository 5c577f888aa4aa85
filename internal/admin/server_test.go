package admin

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/neurogov/internal/governance"
	"github.com/polisai/neurogov/pkg/domain"
	"github.com/polisai/neurogov/pkg/dreamnet"
	"github.com/polisai/neurogov/pkg/policy"
)

type testServer struct {
	*Server
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kernel := governance.NewSafetyKernel(governance.WithKernelLogger(logger))
	metrics := NewMetrics()
	require.NoError(t, metrics.RegisterKernel(kernel))

	s := NewServer(Options{
		Engine:   policy.NewConsensusEngine(policy.WithLogger(logger)),
		Kernel:   kernel,
		Dreamnet: dreamnet.NewIndex(dreamnet.DefaultCarbonLimit),
		Metrics:  metrics,
		Logger:   logger,
	})
	return &testServer{Server: s, handler: s.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) propose(t *testing.T, tags ...string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/v1/decisions", proposeRequest{Description: "raise power ceiling", Tags: tags})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp proposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, strings.HasPrefix(resp.ID, "DEC-"))
	return resp.ID
}

func (ts *testServer) vote(t *testing.T, id, role, identifier string, approval bool) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/v1/decisions/"+id+"/votes", voteRequest{
		Role: role, Identifier: identifier, Approval: approval, Rationale: "because",
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorResponse {
	t.Helper()
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDecisionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "neurorights.privacy")

	require.Equal(t, http.StatusCreated, ts.vote(t, id, "clinician", "c1", true).Code)
	require.Equal(t, http.StatusCreated, ts.vote(t, id, "engineer", "e1", true).Code)
	require.Equal(t, http.StatusCreated, ts.vote(t, id, "ethicist", "x1", false).Code)

	rec := ts.do(t, http.MethodGet, "/v1/decisions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got decisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Votes, 3)
	assert.InDelta(t, 2.0/3.0, got.ApprovalRatio, 1e-9)
	assert.False(t, got.WouldPass)
	assert.Equal(t, domain.RoleClinician, got.Votes[0].Role)

	rec = ts.do(t, http.MethodPost, "/v1/decisions/"+id+"/finalize", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fin finalizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fin))
	assert.False(t, fin.Approved)

	rec = ts.do(t, http.MethodGet, "/v1/compliance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.ComplianceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalDecisions)
	assert.Equal(t, 0, report.ApprovedDecisions)
	assert.Equal(t, 1, report.TagDistribution["neurorights.privacy"])
}

func TestProposeInvalidTag(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/decisions", proposeRequest{Tags: []string{"privacy"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeInvalidTag, decodeError(t, rec).Code)
}

func TestProposeMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeBadRequest, decodeError(t, rec).Code)
}

func TestVoteErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t)

	rec := ts.vote(t, "DEC-missing", "clinician", "c1", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeUnknownDecision, decodeError(t, rec).Code)

	rec = ts.vote(t, id, "surgeon", "s1", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeInvalidRole, decodeError(t, rec).Code)

	require.Equal(t, http.StatusCreated, ts.vote(t, id, "clinician", "c1", true).Code)
	rec = ts.vote(t, id, "clinician", "c1", false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.CodeDuplicateVote, decodeError(t, rec).Code)
}

func TestListDecisionsByTag(t *testing.T) {
	ts := newTestServer(t)
	first := ts.propose(t, "neurorights.agency")
	ts.propose(t, "neurorights.identity")

	rec := ts.do(t, http.MethodGet, "/v1/decisions?tag=neurorights.agency", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var decisions []domain.GovernanceDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decisions))
	require.Len(t, decisions, 1)
	assert.Equal(t, first, decisions[0].ID)

	rec = ts.do(t, http.MethodGet, "/v1/decisions?tag=neurorights.freedom", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/decisions", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decisions))
	assert.Len(t, decisions, 2)
}

func TestKernelEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/v1/kernel/axes/power", axisValueRequest{Value: 800})
	require.Equal(t, http.StatusOK, rec.Code)
	var c domain.SafetyConstraint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.True(t, c.Violated)
	assert.Equal(t, domain.AxisPower, c.Axis)

	rec = ts.do(t, http.MethodGet, "/v1/kernel/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Above maximum by 50.000")

	rec = ts.do(t, http.MethodGet, "/v1/kernel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var k kernelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &k))
	assert.Len(t, k.Constraints, domain.AxisCount)
	assert.Equal(t, 1, k.Violations)

	rec = ts.do(t, http.MethodPut, "/v1/kernel/axes/temperature", axisValueRequest{Value: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeUnknownAxis, decodeError(t, rec).Code)
}

func TestViabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/kernel/viability", viabilityRequest{Action: []float64{0.5, 0.4, 50, 300, 0.5, 0.3, 0.5}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"viable":true}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/v1/kernel/viability", viabilityRequest{Action: []float64{0.5}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"viable":false}`, rec.Body.String())
}

func TestSetBoundsRequiresApprovedDecision(t *testing.T) {
	ts := newTestServer(t)
	path := "/v1/kernel/axes/power/bounds"

	rec := ts.do(t, http.MethodPut, path, boundsRequest{Min: 0, Max: 900})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, domain.CodeDecisionNotApproved, decodeError(t, rec).Code)

	rec = ts.do(t, http.MethodPut, path, boundsRequest{Min: 0, Max: 900, DecisionID: "DEC-missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := ts.propose(t, "neurorights.protection")
	rec = ts.do(t, http.MethodPut, path, boundsRequest{Min: 0, Max: 900, DecisionID: id})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	for _, role := range domain.StakeholderRoles() {
		require.Equal(t, http.StatusCreated, ts.vote(t, id, role.String(), "v-"+role.String(), true).Code)
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/decisions/"+id+"/finalize", nil).Code)

	rec = ts.do(t, http.MethodPut, path, boundsRequest{Min: 10, Max: 1, DecisionID: id})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeInvalidBounds, decodeError(t, rec).Code)

	rec = ts.do(t, http.MethodPut, path, boundsRequest{Min: 0, Max: 900, DecisionID: id})
	require.Equal(t, http.StatusOK, rec.Code)
	power, err := ts.kernel.Constraint(domain.AxisPower)
	require.NoError(t, err)
	assert.Equal(t, 900.0, power.Max)
}

func TestDreamnetEndpoints(t *testing.T) {
	ts := newTestServer(t)
	start := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)

	rec := ts.do(t, http.MethodPost, "/v1/dreamnet/sessions", dreamnet.Session{
		Start:             start,
		End:               start.Add(2 * time.Hour),
		ComputePowerWatts: 100,
		SleepStage:        "N3",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sr sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	assert.InDelta(t, 0.008, sr.CarbonIndex, 1e-12)
	assert.True(t, sr.Compliant)

	rec = ts.do(t, http.MethodGet, "/v1/dreamnet/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats dreamnetStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, 1, stats.CompliantSessions)
	assert.Equal(t, dreamnet.DefaultCarbonLimit, stats.CarbonLimit)

	rec = ts.do(t, http.MethodPost, "/v1/dreamnet/sessions", dreamnet.Session{Start: start, End: start.Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/dreamnet/windows?hours=24", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var windows []time.Time
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &windows))
	assert.NotEmpty(t, windows)
	assert.LessOrEqual(t, len(windows), 9)

	rec = ts.do(t, http.MethodGet, "/v1/dreamnet/windows?hours=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidTag, http.StatusBadRequest},
		{domain.ErrInvalidRole, http.StatusBadRequest},
		{domain.ErrInvalidBounds, http.StatusBadRequest},
		{domain.NewError(domain.ErrUnknownDecision, domain.CodeUnknownDecision, nil, "x"), http.StatusNotFound},
		{domain.ErrDuplicateVote, http.StatusConflict},
		{domain.ErrDecisionNotApproved, http.StatusPreconditionFailed},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
