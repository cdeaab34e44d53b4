package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/contr/pkg/events"
	"github.com/cgast/contr/pkg/state"
)

func sampleState() state.State {
	return state.State{
		ID:           "2b0c6f52-0d1e-4c3a-9a57-0f7c1e0b6d11",
		TS:           "1999-01-01T00:00:00.000Z",
		ContractName: "OrderContract",
		FailedRules: []state.RuleOutcome{
			{Kind: state.KindGuarantee, Name: "g2", Status: state.StatusFailed},
		},
		OKRules: []state.RuleOutcome{
			{Kind: state.KindGuarantee, Name: "g1", Status: state.StatusOK},
		},
		Args:   state.Capture([]any{1, 2, 3}),
		Result: state.Capture(6),
	}
}

func TestJSONLoggerRecord(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSON(&buf)
	assert.Equal(t, DefaultTag, l.Tag())
	assert.Equal(t, DefaultLevel, l.Level())

	s := sampleState()
	s.DumpInfo = &state.DumpInfo{Path: "/tmp/contracts/OrderContract/1525248.dump"}
	l.Log(context.Background(), s)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, DefaultTag, rec["msg"])
	assert.Equal(t, DefaultTag, rec["tag"])
	assert.Equal(t, "OrderContract", rec["contract_name"])
	assert.Equal(t, "1999-01-01T00:00:00.000Z", rec["ts"])
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, rec["args"])
	assert.Equal(t, float64(6), rec["result"])
	assert.Equal(t, false, rec["async"])
	assert.Equal(t, map[string]any{"path": "/tmp/contracts/OrderContract/1525248.dump"}, rec["dump_info"])

	failed := rec["failed_rules"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, map[string]any{"kind": "guarantee", "name": "g2", "status": "failed"}, failed[0])
}

func TestJSONLoggerWithoutDumpInfo(t *testing.T) {
	var buf bytes.Buffer
	NewJSON(&buf).Log(context.Background(), sampleState())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "dump_info")
}

func TestJSONLoggerOptions(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSON(&buf, WithLevel(slog.LevelWarn), WithTag("order-contract"))
	l.Log(context.Background(), sampleState())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "order-contract", rec["msg"])
	assert.Equal(t, "order-contract", rec["tag"])
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, true).Log(context.Background(), sampleState())

	out := buf.String()
	assert.Contains(t, out, DefaultTag)
	assert.Contains(t, out, "OrderContract")
	assert.Contains(t, out, "[[guarantee g2 failed]]")
	assert.Contains(t, out, "[1,2,3]")
}

func TestMultiLogger(t *testing.T) {
	var got []string
	record := func(name string) Logger {
		return Func(func(_ context.Context, s state.State) {
			got = append(got, name+":"+s.ContractName)
		})
	}

	Multi{record("a"), nil, record("b")}.Log(context.Background(), sampleState())
	assert.Equal(t, []string{"a:OrderContract", "b:OrderContract"}, got)
}

func TestEventsLogger(t *testing.T) {
	bus := events.NewMemoryBus(0)
	l := NewEvents(bus, "")

	l.Log(context.Background(), sampleState())
	history := bus.History(time.Time{})
	require.Len(t, history, 1)
	assert.Equal(t, events.EventContractFailed, history[0].Type)
	assert.Equal(t, "OrderContract", history[0].Contract)
	assert.Equal(t, DefaultTag, history[0].Data.(state.State).Tag)

	s := sampleState()
	s.DumpInfo = &state.DumpInfo{Path: "/tmp/x.dump"}
	l.Log(context.Background(), s)
	history = bus.History(time.Time{})
	require.Len(t, history, 3)
	assert.Equal(t, events.EventSampleWritten, history[2].Type)
	assert.Equal(t, state.DumpInfo{Path: "/tmp/x.dump"}, history[2].Data)
}

type issueServer struct {
	mu       sync.Mutex
	requests []map[string]any
	auth     []string
}

func newIssueServer(t *testing.T) (*issueServer, *httptest.Server) {
	t.Helper()
	is := &issueServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/shop/issues" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)

		is.mu.Lock()
		is.requests = append(is.requests, req)
		is.auth = append(is.auth, r.Header.Get("Authorization"))
		n := len(is.requests)
		is.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"number": n, "title": req["title"]})
	}))
	t.Cleanup(srv.Close)
	return is, srv
}

func TestGitHubIssuesFilesOnNewSample(t *testing.T) {
	is, srv := newIssueServer(t)
	g, err := NewGitHubIssues("ghp_test", "acme/shop", WithBaseURL(srv.URL), WithLabels("contracts"))
	require.NoError(t, err)

	s := sampleState()
	s.DumpInfo = &state.DumpInfo{Path: "/tmp/contracts/OrderContract/1.dump"}
	g.Log(context.Background(), s)

	// Without a fresh sample nothing is filed.
	g.Log(context.Background(), sampleState())

	is.mu.Lock()
	defer is.mu.Unlock()
	require.Len(t, is.requests, 1)
	req := is.requests[0]
	assert.Equal(t, "Contract OrderContract failed", req["title"])
	assert.Equal(t, []any{"contracts"}, req["labels"])
	assert.Contains(t, req["body"], "| g2 | guarantee | failed |")
	assert.Contains(t, req["body"], "/tmp/contracts/OrderContract/1.dump")
	assert.Equal(t, "Bearer ghp_test", is.auth[0])
}

func TestGitHubIssuesFileReturnsNumber(t *testing.T) {
	_, srv := newIssueServer(t)
	g, err := NewGitHubIssues("ghp_test", "acme/shop", WithBaseURL(srv.URL))
	require.NoError(t, err)

	n, err := g.File(context.Background(), sampleState())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGitHubIssuesValidation(t *testing.T) {
	tests := []struct {
		name  string
		token string
		repo  string
	}{
		{"missing token", "", "acme/shop"},
		{"no slash", "t", "shop"},
		{"empty owner", "t", "/shop"},
		{"empty name", "t", "acme/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGitHubIssues(tt.token, tt.repo)
			assert.Error(t, err)
		})
	}
}
