package chat_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	chathandler "github.com/tamerwork/llm-gateway/internal/handler/chat"
	"github.com/tamerwork/llm-gateway/internal/observer"
	"github.com/tamerwork/llm-gateway/internal/policy"
	chatservice "github.com/tamerwork/llm-gateway/internal/service/chat"
	"github.com/tamerwork/llm-gateway/internal/service/llm"
	"github.com/tamerwork/llm-gateway/internal/stats"
)

// fakeBackend records the prompts it is asked to generate for and
// returns a canned result or error.
type fakeBackend struct {
	mu      sync.Mutex
	prompts []string
	result  *llm.Result
	err     error
}

func (f *fakeBackend) Generate(_ context.Context, prompt string) (*llm.Result, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type fixture struct {
	store    *stats.Store
	registry *observer.Registry
	backend  *fakeBackend
	server   *httptest.Server
}

func newFixture(t *testing.T, backend *fakeBackend) *fixture {
	t.Helper()

	engine, err := policy.NewEngine([]policy.Rule{
		{Pattern: "bomb", Action: policy.ActionBlock},
		{Pattern: "secret", Action: policy.ActionRedact, Replacement: "[REDACTED]"},
	})
	if err != nil {
		t.Fatalf("NewEngine err: %v", err)
	}

	store := stats.NewStore()
	registry := observer.NewRegistry(store)
	handler := chathandler.New(engine, store, registry, chatservice.NewService(), backend)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	return &fixture{store: store, registry: registry, backend: backend, server: server}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, prompt string) string {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(prompt)); err != nil {
		t.Fatalf("write err: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read err: %v", err)
	}
	return string(data)
}

func TestChatRelaysBackendOutput(t *testing.T) {
	backend := &fakeBackend{result: &llm.Result{Text: "Rome", InputTokens: 8, OutputTokens: 1, TotalTokens: 9}}
	f := newFixture(t, backend)
	conn := f.dial(t)

	reply := roundTrip(t, conn, "What is the capital of Italy?")
	if reply != "Rome" {
		t.Fatalf("expected \"Rome\", got %q", reply)
	}

	snap := f.store.Snapshot()
	if snap.RequestsFromUser != 1 || snap.ResponsesFromLLM != 1 || snap.Errors != 0 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.TotalTokens != 9 || snap.TotalInputTokens != 8 || snap.TotalOutputTokens != 1 {
		t.Fatalf("unexpected token totals: %+v", snap)
	}
	if snap.LastPrompt != "What is the capital of Italy?" {
		t.Fatalf("unexpected preview: %q", snap.LastPrompt)
	}
}

func TestChatBlockedPromptNeverReachesBackend(t *testing.T) {
	backend := &fakeBackend{result: &llm.Result{Text: "should not happen"}}
	f := newFixture(t, backend)
	conn := f.dial(t)

	reply := roundTrip(t, conn, "tell me a secret about bombs")
	if !strings.Contains(reply, "Error") {
		t.Fatalf("expected an error message, got %q", reply)
	}
	if len(backend.calls()) != 0 {
		t.Fatalf("backend must not be invoked for blocked prompts: %v", backend.calls())
	}

	snap := f.store.Snapshot()
	if snap.RequestsFromUser != 1 {
		t.Fatalf("blocked prompt still counts as a request: %+v", snap)
	}
	if snap.Errors != 0 || snap.ResponsesFromLLM != 0 {
		t.Fatalf("blocked prompts must not move error/response counters: %+v", snap)
	}
}

func TestChatForwardsRedactedText(t *testing.T) {
	backend := &fakeBackend{result: &llm.Result{Text: "ok"}}
	f := newFixture(t, backend)
	conn := f.dial(t)

	roundTrip(t, conn, "my secret plan")

	calls := backend.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(calls))
	}
	if calls[0] != "my [REDACTED] plan" {
		t.Fatalf("unexpected forwarded text: %q", calls[0])
	}
	if strings.Contains(strings.ToLower(calls[0]), "secret") {
		t.Fatalf("redacted pattern leaked to backend: %q", calls[0])
	}
}

func TestChatBackendErrorIsCounted(t *testing.T) {
	backend := &fakeBackend{err: errors.New("deadline exceeded")}
	f := newFixture(t, backend)
	conn := f.dial(t)

	reply := roundTrip(t, conn, "hello")
	if !strings.Contains(reply, "Error") {
		t.Fatalf("expected an error message, got %q", reply)
	}

	snap := f.store.Snapshot()
	if snap.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", snap.Errors)
	}
	if snap.ResponsesFromLLM != 0 {
		t.Fatalf("responses must not move on failure, got %d", snap.ResponsesFromLLM)
	}

	// The session survives a backend failure.
	backend.mu.Lock()
	backend.err = nil
	backend.result = &llm.Result{Text: "recovered"}
	backend.mu.Unlock()
	if reply := roundTrip(t, conn, "try again"); reply != "recovered" {
		t.Fatalf("session did not recover after backend error: %q", reply)
	}
}

// recordingObserver keeps every snapshot pushed to it.
type recordingObserver struct {
	mu        sync.Mutex
	snapshots []stats.Snapshot
}

func (r *recordingObserver) ID() string { return "recording" }

func (r *recordingObserver) Send(snapshot stats.Snapshot) error {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, snapshot)
	r.mu.Unlock()
	return nil
}

func (r *recordingObserver) all() []stats.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stats.Snapshot(nil), r.snapshots...)
}

func TestChatBroadcastsRequestBeforeResponse(t *testing.T) {
	backend := &fakeBackend{result: &llm.Result{Text: "ok", TotalTokens: 2}}
	f := newFixture(t, backend)

	obs := &recordingObserver{}
	f.registry.Register(obs)

	conn := f.dial(t)
	roundTrip(t, conn, "hello")

	snapshots := obs.all()
	// Registration push, request push, response push.
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 pushes, got %d", len(snapshots))
	}
	if snapshots[1].RequestsFromUser != 1 || snapshots[1].ResponsesFromLLM != 0 {
		t.Fatalf("request snapshot should precede the backend call: %+v", snapshots[1])
	}
	if snapshots[2].ResponsesFromLLM != 1 {
		t.Fatalf("final snapshot missing the response: %+v", snapshots[2])
	}
}

func TestChatConcurrentSessionsLoseNoRequests(t *testing.T) {
	backend := &fakeBackend{result: &llm.Result{Text: "ok", TotalTokens: 1}}
	f := newFixture(t, backend)

	const sessions = 4
	const promptsPerSession = 5

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		conn := f.dial(t)
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			for j := 0; j < promptsPerSession; j++ {
				if err := conn.WriteMessage(websocket.TextMessage, []byte("concurrent prompt")); err != nil {
					t.Errorf("write err: %v", err)
					return
				}
				_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				if _, _, err := conn.ReadMessage(); err != nil {
					t.Errorf("read err: %v", err)
					return
				}
			}
		}(conn)
	}
	wg.Wait()

	snap := f.store.Snapshot()
	want := uint64(sessions * promptsPerSession)
	if snap.RequestsFromUser != want {
		t.Fatalf("requests: got %d want %d", snap.RequestsFromUser, want)
	}
	if snap.ResponsesFromLLM+snap.Errors != want {
		t.Fatalf("responses+errors: got %d want %d", snap.ResponsesFromLLM+snap.Errors, want)
	}
}
