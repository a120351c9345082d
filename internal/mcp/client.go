// Package mcp provides a client for the browser tool-execution backend,
// speaking MCP JSON-RPC over HTTP.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const protocolVersion = "2024-11-05"

// Client handles communication with one tool-backend endpoint. A client is
// scoped to a single run: connected at run start, closed at run end.
type Client struct {
	endpoint   string
	httpClient *http.Client
	sessionID  string
	requestID  atomic.Int64
}

// Request represents an MCP JSON-RPC request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response represents an MCP JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents an MCP error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolDefinition describes one tool offered by the backend.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// ToolsListResult contains the backend's tool catalog.
type ToolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

// CallToolParams contains parameters for calling a tool.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CallToolResult is the backend's response to a tool call.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one block of tool-result content. Non-text blocks keep
// their raw JSON so nothing is lost when flattening to text.
type ContentBlock struct {
	Type string
	Text string
	raw  json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	b.Type = head.Type
	b.Text = head.Text
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if len(b.raw) > 0 {
		return b.raw, nil
	}
	return json.Marshal(map[string]string{"type": b.Type, "text": b.Text})
}

// Raw returns the block's original JSON.
func (b ContentBlock) Raw() json.RawMessage { return b.raw }

// NewClient creates a client for the given backend endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the backend endpoint URL this client talks to.
func (c *Client) Endpoint() string { return c.endpoint }

// Connect initializes the MCP session.
func (c *Client) Connect(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "automation-agent",
			"version": "1.0.0",
		},
	}

	if _, err := c.call(ctx, "initialize", params); err != nil {
		return fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	// Required by the protocol before the session is usable.
	if err := c.notify(ctx, "notifications/initialized"); err != nil {
		return fmt.Errorf("failed to confirm MCP session: %w", err)
	}

	return nil
}

// ListTools retrieves the backend's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	raw, err := c.call(ctx, "tools/list", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	var result ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tools list: %w", err)
	}

	return result.Tools, nil
}

// CallTool invokes one tool by name. A backend-reported tool failure is
// returned as a result with IsError set, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error) {
	raw, err := c.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("tool call %q failed: %w", name, err)
	}

	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool result for %q: %w", name, err)
	}

	return &result, nil
}

// Close ends the MCP session. Best-effort: errors are swallowed because the
// run outcome never depends on session teardown.
func (c *Client) Close(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint, nil)
	if err != nil {
		return
	}
	if c.sessionID != "" {
		req.Header.Set("mcp-session-id", c.sessionID)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := c.requestID.Add(1)
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("backend error [%d]: %s", httpResp.StatusCode, string(respBody))
	}

	if sid := httpResp.Header.Get("mcp-session-id"); sid != "" {
		c.sessionID = sid
	}

	resp, err := decodeResponse(httpResp, id)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("backend error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}

func (c *Client) notify(ctx context.Context, method string) error {
	body, err := json.Marshal(Request{JSONRPC: "2.0", Method: method})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend error [%d]: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.sessionID != "" {
		req.Header.Set("mcp-session-id", c.sessionID)
	}
}

// decodeResponse reads a JSON-RPC response from either a plain JSON body or
// a single-response SSE stream, which is how the streamable HTTP transport
// answers POSTs.
func decodeResponse(httpResp *http.Response, wantID int64) (*Response, error) {
	contentType := httpResp.Header.Get("Content-Type")

	if strings.Contains(contentType, "text/event-stream") {
		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			var resp Response
			if err := json.Unmarshal([]byte(data), &resp); err != nil {
				continue
			}
			if resp.ID == wantID {
				return &resp, nil
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read event stream: %w", err)
		}
		return nil, fmt.Errorf("no response for request %d in event stream", wantID)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}
