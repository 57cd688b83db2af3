package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hydrochat/hydrochat/pkg/backendclient"
	"github.com/hydrochat/hydrochat/pkg/config"
	"github.com/hydrochat/hydrochat/pkg/graph"
	"github.com/hydrochat/hydrochat/pkg/intent"
	"github.com/hydrochat/hydrochat/pkg/masking"
	"github.com/hydrochat/hydrochat/pkg/metrics"
	"github.com/hydrochat/hydrochat/pkg/namecache"
	"github.com/hydrochat/hydrochat/pkg/session"
)

type fakeTool struct {
	patients map[int64]*backendclient.Patient
	nextID   int64
}

func newFakeTool() *fakeTool {
	return &fakeTool{patients: map[int64]*backendclient.Patient{}, nextID: 1}
}

func (f *fakeTool) CreatePatient(_ context.Context, fields map[string]string) backendclient.Result {
	id := f.nextID
	f.nextID++
	p := &backendclient.Patient{ID: id, FirstName: fields["first_name"], LastName: fields["last_name"], NationalID: fields["national_id"]}
	f.patients[id] = p
	return backendclient.Result{Outcome: backendclient.Ok, Payload: p}
}

func (f *fakeTool) GetPatient(_ context.Context, id int64) backendclient.Result {
	if p, ok := f.patients[id]; ok {
		return backendclient.Result{Outcome: backendclient.Ok, Payload: p}
	}
	return backendclient.Result{Outcome: backendclient.NotFound}
}

func (f *fakeTool) UpdatePatient(_ context.Context, id int64, fields map[string]string) backendclient.Result {
	p, ok := f.patients[id]
	if !ok {
		return backendclient.Result{Outcome: backendclient.NotFound}
	}
	for k, v := range fields {
		switch k {
		case "first_name":
			p.FirstName = v
		case "last_name":
			p.LastName = v
		}
	}
	return backendclient.Result{Outcome: backendclient.Ok, Payload: p}
}

func (f *fakeTool) DeletePatient(_ context.Context, id int64) backendclient.Result {
	delete(f.patients, id)
	return backendclient.Result{Outcome: backendclient.Ok}
}

func (f *fakeTool) ListPatients(_ context.Context) backendclient.Result {
	var out []backendclient.Patient
	for _, p := range f.patients {
		out = append(out, *p)
	}
	return backendclient.Result{Outcome: backendclient.Ok, Payload: out}
}

func (f *fakeTool) ListScans(_ context.Context, _ *int64, _ *int) backendclient.Result {
	return backendclient.Result{Outcome: backendclient.Ok, Payload: []backendclient.ScanRecord{}}
}

type fakeNames struct{ byID map[int64]backendclient.Patient }

func newFakeNames() *fakeNames { return &fakeNames{byID: map[int64]backendclient.Patient{}} }

func (n *fakeNames) Resolve(_ context.Context, fullName string) namecache.ResolveResult {
	var matches []backendclient.Patient
	for _, p := range n.byID {
		if namecache.Normalize(p.FirstName+" "+p.LastName) == namecache.Normalize(fullName) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 1 {
		return namecache.ResolveResult{Resolution: namecache.Unique, Patient: &matches[0]}
	}
	if len(matches) > 1 {
		return namecache.ResolveResult{Resolution: namecache.Ambiguous, Candidates: matches}
	}
	return namecache.ResolveResult{Resolution: namecache.None}
}

func (n *fakeNames) Lookup(_ context.Context, id int64) (backendclient.Patient, bool) {
	p, ok := n.byID[id]
	return p, ok
}
func (n *fakeNames) Invalidate()                      {}
func (n *fakeNames) Snapshot() []backendclient.Patient { return nil }
func (n *fakeNames) IsFresh() bool                     { return true }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	m, err := metrics.New(sdkmetric.NewMeterProvider(), 100, time.Hour)
	require.NoError(t, err)

	exec := graph.New(graph.Deps{
		Tool:       newFakeTool(),
		Names:      newFakeNames(),
		Classifier: intent.New(nil),
		Metrics:    m,
		Masking:    masking.NewService(),
	})

	cfg := &config.Config{
		AuthBearerToken: "test-token",
		TurnDeadline:    2 * time.Second,
	}
	store := session.NewInMemoryStore(30*time.Minute, 100)

	return New(cfg, store, exec, m)
}

func TestHealth_Unauthenticated(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/hydrochat/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConverse_MissingAuthRejected(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(ConverseRequest{Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/hydrochat/converse/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConverse_WrongTokenRejected(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(ConverseRequest{Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/hydrochat/converse/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConverse_EmptyMessageRejected(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(ConverseRequest{Message: ""})
	req := httptest.NewRequest(http.MethodPost, "/hydrochat/converse/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConverse_CreatePatientRoundTrip(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(ConverseRequest{Message: "create patient Jane Tan NRIC S1234567A"})
	req := httptest.NewRequest(http.MethodPost, "/hydrochat/converse/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ConverseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Create", resp.AgentOp)
	require.Len(t, resp.Messages, 1)
	assert.Contains(t, resp.Messages[0].Content, "S*******A")
}

func TestStats_ReturnsSummary(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/hydrochat/stats/", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
