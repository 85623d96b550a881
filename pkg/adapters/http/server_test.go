package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/loader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *parley.Engine {
	t.Helper()
	store, err := loader.LoadFile("../../../examples/demo/scenarios.yaml")
	require.NoError(t, err)
	eng, err := parley.New(parley.WithScenarioStore(store))
	require.NoError(t, err)
	return eng
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	h := NewHandler(newEngine(t))

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, parley.Version, decode[map[string]string](t, w)["version"])

	w = do(t, h, http.MethodOptions, "/api/scenarios", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics are only mounted on request")
}

func TestTurnEndpoints(t *testing.T) {
	h := NewHandler(newEngine(t))

	w := do(t, h, http.MethodPost, "/api/scenarios/1/start?sessionId=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[domain.ExecutionResult](t, w)
	assert.Equal(t, int64(1), res.CurrentStep.ID)
	assert.Equal(t, domain.OutcomeRendered, res.Outcome)

	w = do(t, h, http.MethodPost, "/api/scenarios/steps/1/execute?sessionId=s1", `{"input":"ok"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[domain.ExecutionResult](t, w)
	assert.Equal(t, int64(2), res.CurrentStep.ID)
	assert.Equal(t, domain.OutcomeAdvanced, res.Outcome)
	assert.Len(t, res.Choices, 4)

	w = do(t, h, http.MethodPost, "/api/scenarios/steps/2/execute?sessionId=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[domain.ExecutionResult](t, w)
	assert.Equal(t, domain.OutcomeRendered, res.Outcome, "no body is empty input")

	w = do(t, h, http.MethodPost, "/api/scenarios/steps/404/execute?sessionId=s1", `{"input":"x"}`)
	require.Equal(t, http.StatusOK, w.Code, "turn failures are results, not HTTP errors")
	res = decode[domain.ExecutionResult](t, w)
	assert.Equal(t, domain.OutcomeError, res.Outcome)
	assert.Equal(t, domain.ErrorStepID, res.CurrentStep.ID)

	w = do(t, h, http.MethodGet, "/api/scenarios/context/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	ctxResp := decode[ContextResponse](t, w)
	assert.Equal(t, int64(2), ctxResp.Context.CurrentStepID)

	w = do(t, h, http.MethodDelete, "/api/scenarios/context/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/scenarios/context/s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTurnEndpoints_BadRequests(t *testing.T) {
	h := NewHandler(newEngine(t))

	cases := []struct {
		name, method, target, body string
	}{
		{"start without session", http.MethodPost, "/api/scenarios/1/start", ""},
		{"start bad id", http.MethodPost, "/api/scenarios/abc/start?sessionId=s", ""},
		{"execute without session", http.MethodPost, "/api/scenarios/steps/1/execute", `{"input":"x"}`},
		{"execute bad body", http.MethodPost, "/api/scenarios/steps/1/execute?sessionId=s", `{"input":`},
		{"list without bot", http.MethodGet, "/api/scenarios", ""},
		{"create without name", http.MethodPost, "/api/scenarios", `{"botId":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, tc.method, tc.target, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decode[errorBody](t, w).Error)
		})
	}
}

func TestExecute_RejectsOversizedInput(t *testing.T) {
	t.Setenv(parley.EnvMaxInputSize, "3")
	h := NewHandler(newEngine(t))

	w := do(t, h, http.MethodPost, "/api/scenarios/steps/1/execute?sessionId=s", `{"input":"too long"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds maximum")
}

func TestScenarioCRUD(t *testing.T) {
	h := NewHandler(newEngine(t))

	w := do(t, h, http.MethodGet, "/api/scenarios?botId=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Scenario](t, w), 1)

	w = do(t, h, http.MethodPost, "/api/scenarios", `{"botId":1,"name":"Orders","description":"track orders"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[domain.Scenario](t, w)
	require.NotZero(t, created.ID)
	assert.False(t, created.IsDefault)

	id := created.ID
	target := "/api/scenarios/" + strconv.FormatInt(id, 10)

	w = do(t, h, http.MethodGet, "/api/scenarios?botId=1", "")
	assert.Len(t, decode[[]domain.Scenario](t, w), 2, "list cache is evicted on create")

	w = do(t, h, http.MethodPut, target, `{"botId":1,"name":"Order tracking"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order tracking", decode[domain.Scenario](t, w).Name)

	w = do(t, h, http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, target, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, target, `{"name":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/scenarios/1/steps", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Step](t, w), 10)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "parley_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := NewHandler(newEngine(t), WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	w := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "parley_test_total 1")
}

// lockedRecorder lets the test read the SSE body while the handler writes it.
type lockedRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (l *lockedRecorder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Write(p)
}

func (l *lockedRecorder) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Body.String()
}

func TestSubscribeEvents_Session(t *testing.T) {
	server := NewServer(newEngine(t))
	h := server.Handler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(sub, httptest.NewRequest(http.MethodGet, "/events?sessionId=sess-1", nil).WithContext(ctx))
	}()
	require.Eventually(t, func() bool { return server.Streams.Subscribers("sess-1") == 1 }, time.Second, 5*time.Millisecond)

	w := do(t, h, http.MethodPost, "/api/scenarios/1/start?sessionId=sess-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	do(t, h, http.MethodPost, "/api/scenarios/1/start?sessionId=other", "")

	require.Eventually(t, func() bool { return strings.Contains(sub.String(), "event: turn") }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	output := sub.String()
	assert.True(t, strings.HasPrefix(output, "event: ping\ndata: connected\n\n"))
	assert.Contains(t, output, `"currentStepId":1`)
	assert.Contains(t, output, `"sessionId":"sess-1"`)
	assert.NotContains(t, output, `"sessionId":"other"`)
	assert.Equal(t, 0, server.Streams.Subscribers("sess-1"))
}

func TestSubscribeEvents_RequiresSession(t *testing.T) {
	w := do(t, NewHandler(newEngine(t)), http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamManager_DropsWhenFull(t *testing.T) {
	sm := NewStreamManager(newEngine(t).Logger())
	ch, cancel := sm.Subscribe("s")

	for i := 0; i < 20; i++ {
		sm.Broadcast("s", "m")
	}
	assert.Len(t, ch, 10)

	other, cancelOther := sm.Subscribe("s")
	defer cancelOther()
	sm.BroadcastExcept("s", "x", other)
	assert.Len(t, other, 0)

	cancel()
	cancel()
	assert.Equal(t, 1, sm.Subscribers("s"))
}

func TestGetContext_Filter(t *testing.T) {
	h := NewHandler(newEngine(t), WithContextFilter(func(c *domain.ConversationContext) *domain.ConversationContext {
		out := c.Clone()
		out.Variables = map[string]any{"redacted": true}
		return out
	}))

	do(t, h, http.MethodPost, "/api/scenarios/1/start?sessionId=f1", "")
	w := do(t, h, http.MethodGet, "/api/scenarios/context/f1", "")
	require.Equal(t, http.StatusOK, w.Code)
	ctxResp := decode[ContextResponse](t, w)
	assert.Equal(t, map[string]any{"redacted": true}, ctxResp.Context.Variables)
}
