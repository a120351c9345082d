// Package helpers provides test doubles shared across packages.
package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/testflow/automation-agent/internal/mcp"
)

// RecordedCall is one tool invocation the fake backend received.
type RecordedCall struct {
	Name string
	Args map[string]interface{}
}

// FakeBackend is a minimal MCP JSON-RPC tool backend over HTTP for tests.
type FakeBackend struct {
	Server *httptest.Server
	Tools  []mcp.ToolDefinition

	// CallHandler returns the text result for a tool call and whether the
	// backend should flag it as an error. Defaults to "ok".
	CallHandler func(name string, args map[string]interface{}) (string, bool)

	mu    sync.Mutex
	calls []RecordedCall
}

// NewFakeBackend starts a fake backend exposing the given tool catalog.
func NewFakeBackend(t *testing.T, tools []mcp.ToolDefinition) *FakeBackend {
	t.Helper()

	f := &FakeBackend{Tools: tools}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the backend endpoint URL.
func (f *FakeBackend) URL() string { return f.Server.URL }

// Calls returns the tool invocations received so far, in order.
func (f *FakeBackend) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req mcp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch req.Method {
	case "initialize":
		w.Header().Set("mcp-session-id", "test-session")
		writeResult(w, req.ID, map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]string{"name": "fake-backend", "version": "0.0.1"},
		})

	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)

	case "tools/list":
		writeResult(w, req.ID, map[string]interface{}{"tools": f.Tools})

	case "tools/call":
		raw, _ := json.Marshal(req.Params)
		var params mcp.CallToolParams
		json.Unmarshal(raw, &params)

		f.mu.Lock()
		f.calls = append(f.calls, RecordedCall{Name: params.Name, Args: params.Arguments})
		f.mu.Unlock()

		text, isError := "ok", false
		if f.CallHandler != nil {
			text, isError = f.CallHandler(params.Name, params.Arguments)
		}
		writeResult(w, req.ID, map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": text}},
			"isError": isError,
		})

	default:
		writeError(w, req.ID, -32601, "method not found: "+req.Method)
	}
}

func writeResult(w http.ResponseWriter, id int64, result interface{}) {
	raw, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mcp.Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func writeError(w http.ResponseWriter, id int64, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mcp.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &mcp.Error{Code: code, Message: message},
	})
}
