package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/testflow/automation-agent/internal/mcp"
	"github.com/testflow/automation-agent/tests/helpers"
)

var testTools = []mcp.ToolDefinition{
	{Name: "browser_navigate", Description: "Navigate to a URL", InputSchema: map[string]interface{}{"type": "object"}},
	{Name: "browser_click", Description: "Click an element"},
	{Name: "browser_snapshot", Description: "Capture an accessibility snapshot"},
}

func TestClientSession(t *testing.T) {
	backend := helpers.NewFakeBackend(t, testTools)
	client := mcp.NewClient(backend.URL(), time.Second)
	ctx := context.Background()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 3 || tools[0].Name != "browser_navigate" {
		t.Fatalf("unexpected tools: %+v", tools)
	}

	result, err := client.CallTool(ctx, "browser_click", map[string]interface{}{"element": "Sign in"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError || len(result.Content) != 1 || result.Content[0].Text != "ok" {
		t.Fatalf("unexpected result: %+v", result)
	}

	calls := backend.Calls()
	if len(calls) != 1 || calls[0].Name != "browser_click" {
		t.Fatalf("unexpected recorded calls: %+v", calls)
	}
	if calls[0].Args["element"] != "Sign in" {
		t.Fatalf("unexpected call args: %+v", calls[0].Args)
	}

	client.Close(ctx)
}

func TestClientToolErrorIsResultNotError(t *testing.T) {
	backend := helpers.NewFakeBackend(t, testTools)
	backend.CallHandler = func(name string, args map[string]interface{}) (string, bool) {
		return "element is not visible", true
	}

	client := mcp.NewClient(backend.URL(), time.Second)
	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	result, err := client.CallTool(ctx, "browser_click", nil)
	if err != nil {
		t.Fatalf("CallTool returned transport error for a tool failure: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError result")
	}
}

func TestClientJSONRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mcp.Request
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mcp.Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &mcp.Error{Code: -32000, Message: "session expired"},
		})
	}))
	defer server.Close()

	client := mcp.NewClient(server.URL, time.Second)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatalf("expected error from JSON-RPC error response")
	}
}

func TestClientDecodesSSEResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mcp.Request
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method == "notifications/initialized" {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		// The streamable HTTP transport answers POSTs with a one-event
		// SSE stream.
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: message\n")
		fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"tools\":[{\"name\":\"browser_wait_for\"}]}}\n\n", req.ID)
	}))
	defer server.Close()

	client := mcp.NewClient(server.URL, time.Second)
	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "browser_wait_for" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestClientBackendHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := mcp.NewClient(server.URL, time.Second)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatalf("expected error on HTTP 503")
	}
}
