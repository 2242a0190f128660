package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the OpenAI Chat Completions API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest and
// for OpenAI-compatible servers.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new OpenAI [Client] with the given API key and options.
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
		return relay.AssistantMessage{}, fmt.Errorf("openai: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("openai: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return relay.AssistantMessage{}, parseHTTPError(resp)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("openai: decode response: %w", err)
	}
	return convertResponse(apiResp)
}

func buildRequestBody(req relay.Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	return json.Marshal(apiRequest{
		Model:               model,
		Messages:            convertMessages(req.SystemPrompt, req.Messages),
		Tools:               convertTools(req.Capabilities),
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         req.Temperature,
	})
}

func convertMessages(system string, msgs []relay.Message) []apiMessage {
	var result []apiMessage
	if system != "" {
		result = append(result, apiMessage{Role: "system", Content: &system})
	}
	for _, msg := range msgs {
		switch m := msg.(type) {
		case relay.UserMessage:
			text := m.Text
			result = append(result, apiMessage{Role: string(m.Role()), Content: &text})
		case relay.AssistantMessage:
			am := apiMessage{Role: string(m.Role())}
			if m.Text != "" {
				text := m.Text
				am.Content = &text
			}
			for _, r := range m.Requests {
				args := string(r.Arguments)
				if args == "" {
					args = "{}"
				}
				am.ToolCalls = append(am.ToolCalls, apiToolCall{
					ID:       r.ID,
					Type:     "function",
					Function: apiFunction{Name: r.Name, Arguments: args},
				})
			}
			result = append(result, am)
		case relay.ResultMessage:
			content := m.Content
			result = append(result, apiMessage{Role: "tool", ToolCallID: m.CallID, Content: &content})
		}
	}
	return result
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
			Type:     "function",
			Function: apiFunctionDef{Name: c.Name, Description: c.Description, Parameters: schema},
		}
	}
	return result
}

func convertResponse(r apiResponse) (relay.AssistantMessage, error) {
	if len(r.Choices) == 0 {
		return relay.AssistantMessage{}, errors.New("openai: response has no choices")
	}
	choice := r.Choices[0]
	msg := relay.AssistantMessage{
		StopReason:    mapFinishReason(choice.FinishReason),
		RawStopReason: choice.FinishReason,
		Usage:         relay.Usage{InputTokens: r.Usage.PromptTokens, OutputTokens: r.Usage.CompletionTokens},
		Timestamp:     time.Now(),
	}
	if choice.Message.Content != nil {
		msg.Text = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		msg.Requests = append(msg.Requests, relay.InvocationRequest{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return msg, nil
}

func mapFinishReason(s string) relay.StopReason {
	switch s {
	case "stop":
		return relay.StopEndTurn
	case "length":
		return relay.StopLength
	case "tool_calls", "function_call":
		return relay.StopToolUse
	case "content_filter":
		return relay.StopError
	default:
		return relay.StopUnknown
	}
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("openai: HTTP %d: %s", resp.StatusCode, string(body))
	}
	if apiErr.Error.Type == "" {
		return fmt.Errorf("openai: HTTP %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("openai: %s: %s", apiErr.Error.Type, apiErr.Error.Message)
}
