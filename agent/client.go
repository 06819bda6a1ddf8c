package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an external agent service over HTTP. The service hosts
// named agents; every call addresses one agent by name.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the agent service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream,omitempty"`
}

// StreamEvents runs the agent through the server-sent-events endpoint.
// Each data frame is forwarded to onChunk; the accumulated text is returned
// once the stream ends.
func (c *Client) StreamEvents(ctx context.Context, agentName, prompt string, onChunk ChunkFunc) (Response, error) {
	body, err := c.open(ctx, http.MethodPost,
		fmt.Sprintf("%s/agents/%s/stream", c.baseURL, agentName),
		generateRequest{Prompt: prompt}, "text/event-stream")
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	var buf strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				break
			}
			continue
		}
		chunk := eventText(payload)
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, fmt.Errorf("event stream read: %w", err)
	}
	return TextResponse(buf.String()), nil
}

// StreamChunked runs the agent through the chunked generate endpoint,
// forwarding raw body fragments as they arrive.
func (c *Client) StreamChunked(ctx context.Context, agentName, prompt string, onChunk ChunkFunc) (Response, error) {
	body, err := c.open(ctx, http.MethodPost,
		fmt.Sprintf("%s/agents/%s/generate?stream=true", c.baseURL, agentName),
		generateRequest{Prompt: prompt, Stream: true}, "")
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if onChunk != nil {
				onChunk(string(chunk[:n]))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Response{}, fmt.Errorf("chunked stream read: %w", err)
		}
	}
	return Decode(buf.Bytes()), nil
}

// StreamLines runs the agent through the newline-delimited JSON endpoint.
// Each line carries one fragment object.
func (c *Client) StreamLines(ctx context.Context, agentName, prompt string, onChunk ChunkFunc) (Response, error) {
	body, err := c.open(ctx, http.MethodPost,
		fmt.Sprintf("%s/agents/%s/completions", c.baseURL, agentName),
		generateRequest{Prompt: prompt, Stream: true}, "")
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	var buf strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var frame map[string]interface{}
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			buf.WriteString(line)
			if onChunk != nil {
				onChunk(line)
			}
			continue
		}
		if done, _ := frame["done"].(bool); done {
			break
		}
		chunk := itemText(frame)
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, fmt.Errorf("line stream read: %w", err)
	}
	return TextResponse(buf.String()), nil
}

// Complete runs the agent without streaming and returns the whole reply.
func (c *Client) Complete(ctx context.Context, agentName, prompt string) (Response, error) {
	body, err := c.open(ctx, http.MethodPost,
		fmt.Sprintf("%s/agents/%s/generate", c.baseURL, agentName),
		generateRequest{Prompt: prompt}, "")
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return Decode(raw), nil
}

// Servers lists the agent names the service currently hosts. Errors are
// reported as an empty list; availability checks are advisory only.
func (c *Client) Servers(ctx context.Context) []string {
	body, err := c.open(ctx, http.MethodGet, c.baseURL+"/agents", nil, "")
	if err != nil {
		return nil
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil
	}
	var wrapped struct {
		Agents []string `json:"agents"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Agents) > 0 {
		return wrapped.Agents
	}
	var bare []string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare
	}
	return nil
}

func (c *Client) open(ctx context.Context, method, url string, payload interface{}, accept string) (io.ReadCloser, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("agent service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.Body, nil
}

// eventText pulls display text out of one SSE data payload. Control frames
// without a content field yield nothing.
func eventText(payload string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return payload
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		for _, key := range []string{"response", "text", "content", "chunk", "delta"} {
			if s, ok := t[key].(string); ok {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
