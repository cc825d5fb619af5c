package seeder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/guardrail/common/logging"
)

type received struct {
	path string
	ip   string
	body map[string]interface{}
}

func recorder(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []received
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		got = append(got, received{path: r.URL.Path, ip: r.Header.Get("X-Forwarded-For"), body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func TestParseScenario(t *testing.T) {
	for name := range Scenarios() {
		sc, err := ParseScenario(string(name))
		require.NoError(t, err)
		assert.Equal(t, name, sc)
	}

	_, err := ParseScenario("ddos")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brute-force")
}

func TestRun_BruteForce(t *testing.T) {
	srv, got := recorder(t, http.StatusOK)
	r := NewRunner(srv.URL+"/", 42, logging.Discard())

	sum, err := r.Run(context.Background(), ScenarioBruteForce, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Sent)
	assert.Equal(t, 6, sum.ByStatus[http.StatusOK])

	reqs := got()
	require.Len(t, reqs, 6)
	for _, req := range reqs {
		assert.Equal(t, "/api/v1/enhanced-security-monitoring", req.path)
		assert.Equal(t, reqs[0].ip, req.ip, "one attacker address")
		assert.Equal(t, "login_failed", req.body["eventType"])
		data := req.body["eventData"].(map[string]interface{})
		assert.Equal(t, reqs[0].body["eventData"].(map[string]interface{})["username"], data["username"], "one victim")
	}
}

func TestRun_Scenarios(t *testing.T) {
	tests := []struct {
		scenario  Scenario
		path      string
		typeField string
	}{
		{ScenarioPageViews, "/api/v1/log-security-event", "event_type"},
		{ScenarioClientLog, "/api/v1/log-security-event", "event_type"},
		{ScenarioInjection, "/api/v1/enhanced-security-monitoring", "eventType"},
	}
	for _, tt := range tests {
		t.Run(string(tt.scenario), func(t *testing.T) {
			srv, got := recorder(t, http.StatusOK)
			sum, err := NewRunner(srv.URL, 7, logging.Discard()).Run(context.Background(), tt.scenario, 4)
			require.NoError(t, err)
			assert.Equal(t, 4, sum.Sent)

			for _, req := range got() {
				assert.Equal(t, tt.path, req.path)
				assert.NotEmpty(t, req.body[tt.typeField])
				assert.NotEmpty(t, req.ip)
			}
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	srvA, gotA := recorder(t, http.StatusOK)
	srvB, gotB := recorder(t, http.StatusOK)

	_, err := NewRunner(srvA.URL, 99, logging.Discard()).Run(context.Background(), ScenarioPageViews, 3)
	require.NoError(t, err)
	_, err = NewRunner(srvB.URL, 99, logging.Discard()).Run(context.Background(), ScenarioPageViews, 3)
	require.NoError(t, err)

	a, b := gotA(), gotB()
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].ip, b[i].ip)
	}
}

func TestRun_CountsStatuses(t *testing.T) {
	srv, _ := recorder(t, http.StatusTooManyRequests)
	sum, err := NewRunner(srv.URL, 1, logging.Discard()).Run(context.Background(), ScenarioClientLog, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.ByStatus[http.StatusTooManyRequests])
	assert.Zero(t, sum.Failed)
}

func TestRun_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sum, err := NewRunner(url, 1, logging.Discard()).Run(context.Background(), ScenarioPageViews, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
}

func TestRun_Cancelled(t *testing.T) {
	srv, got := recorder(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(srv.URL, 1, logging.Discard()).Run(ctx, ScenarioPageViews, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got())
}
