package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete sends the conversation and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, req relay.Request) (relay.AssistantMessage, error) {
	body, err := buildRequestBody(req)
	if err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return relay.AssistantMessage{}, parseHTTPError(resp)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("anthropic: decode response: %w", err)
	}
	return convertResponse(apiResp), nil
}

func buildRequestBody(req relay.Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := apiRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      convertSystem(req.SystemPrompt),
		Messages:    convertMessages(req.Messages),
		Tools:       convertTools(req.Capabilities),
		Temperature: req.Temperature,
	}
	injectCacheMarkers(&apiReq)

	return json.Marshal(apiReq)
}

// convertSystem converts a system prompt string to an array of content blocks
// suitable for the Anthropic API. Returns nil when the prompt is empty.
func convertSystem(prompt string) []apiContentBlock {
	if prompt == "" {
		return nil
	}
	return []apiContentBlock{{Type: "text", Text: prompt}}
}

// injectCacheMarkers sets cache_control breakpoints on the request: the
// message window, the end of the system prompt and the last tool.
func injectCacheMarkers(req *apiRequest) {
	cc := &apiCacheControl{Type: "ephemeral"}
	req.CacheControl = cc
	if len(req.System) > 0 {
		req.System[len(req.System)-1].CacheControl = cc
	}
	if len(req.Tools) > 0 {
		req.Tools[len(req.Tools)-1].CacheControl = cc
	}
}

func convertMessages(msgs []relay.Message) []apiMessage {
	var result []apiMessage
	for _, msg := range msgs {
		switch m := msg.(type) {
		case relay.UserMessage:
			result = append(result, apiMessage{
				Role:    "user",
				Content: []apiContentBlock{{Type: "text", Text: m.Text}},
			})
		case relay.AssistantMessage:
			var blocks []apiContentBlock
			if m.Text != "" {
				blocks = append(blocks, apiContentBlock{Type: "text", Text: m.Text})
			}
			for _, r := range m.Requests {
				input := r.Arguments
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, apiContentBlock{Type: "tool_use", ID: r.ID, Name: r.Name, Input: input})
			}
			result = append(result, apiMessage{Role: "assistant", Content: blocks})
		case relay.ResultMessage:
			block := apiContentBlock{
				Type:      "tool_result",
				ToolUseID: m.CallID,
				Content:   []apiContentBlock{{Type: "text", Text: m.Content}},
				IsError:   m.IsError,
			}
			// Consecutive results share one user message.
			if n := len(result); n > 0 && result[n-1].Role == "user" && isToolResultMessage(result[n-1]) {
				result[n-1].Content = append(result[n-1].Content, block)
			} else {
				result = append(result, apiMessage{
					Role:    "user",
					Content: []apiContentBlock{block},
				})
			}
		}
	}
	return result
}

func isToolResultMessage(msg apiMessage) bool {
	return len(msg.Content) > 0 && msg.Content[0].Type == "tool_result"
}

func convertTools(caps []relay.Capability) []apiTool {
	if len(caps) == 0 {
		return nil
	}
	result := make([]apiTool, len(caps))
	for i, c := range caps {
		schema := c.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		result[i] = apiTool{
			Name:        c.Name,
			Description: c.Description,
			InputSchema: schema,
		}
	}
	return result
}

func convertResponse(r apiResponse) relay.AssistantMessage {
	msg := relay.AssistantMessage{
		StopReason:    mapStopReason(r.StopReason),
		RawStopReason: r.StopReason,
		Usage:         relay.Usage{InputTokens: r.Usage.InputTokens, OutputTokens: r.Usage.OutputTokens},
		Timestamp:     time.Now(),
	}
	var text []string
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			text = append(text, b.Text)
		case "tool_use":
			msg.Requests = append(msg.Requests, relay.InvocationRequest{ID: b.ID, Name: b.Name, Arguments: b.Input})
		}
	}
	msg.Text = strings.Join(text, "")
	return msg
}

func mapStopReason(s string) relay.StopReason {
	switch s {
	case "end_turn", "stop_sequence":
		return relay.StopEndTurn
	case "max_tokens":
		return relay.StopLength
	case "tool_use":
		return relay.StopToolUse
	case "refusal":
		return relay.StopError
	default:
		return relay.StopUnknown
	}
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Type == "" {
		return fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("anthropic: %s: %s", apiErr.Error.Type, apiErr.Error.Message)
}
