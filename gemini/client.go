package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the Google Gemini API.
type Client struct {
	client  *genai.Client
	model   string
	baseURL string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the default model ID.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL points the SDK at another endpoint. Useful for testing with
// httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c.client = gc
	return c, nil
}

// Complete sends one GenerateContent request.
func (c *Client) Complete(ctx context.Context, req relay.Request) (relay.AssistantMessage, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	resp, err := c.client.Models.GenerateContent(ctx, model, ConvertMessages(req.Messages), buildConfig(req))
	if err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("gemini: %w", err)
	}
	return ConvertResponse(resp)
}

func buildConfig(req relay.Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Tools:           ConvertTools(req.Capabilities),
	}

	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	return config
}

// ConvertMessages converts relay messages to genai contents.
// Exported for testing.
func ConvertMessages(msgs []relay.Message) []*genai.Content {
	var result []*genai.Content
	for _, msg := range msgs {
		switch m := msg.(type) {
		case relay.UserMessage:
			result = append(result, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Text}},
			})
		case relay.AssistantMessage:
			var parts []*genai.Part
			if m.Text != "" {
				parts = append(parts, &genai.Part{Text: m.Text})
			}
			for _, r := range m.Requests {
				var args map[string]any
				_ = json.Unmarshal(r.Arguments, &args)
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: r.ID, Name: r.Name, Args: args},
				})
			}
			result = append(result, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case relay.ResultMessage:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.CallID,
				Name:     m.Name,
				Response: functionResponse(m),
			}}
			// Consecutive results share one user turn.
			if n := len(result); n > 0 && isFunctionResponse(result[n-1]) {
				result[n-1].Parts = append(result[n-1].Parts, part)
				continue
			}
			result = append(result, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}
	return result
}

// functionResponse wraps a result as {"output": value} or, for failures,
// {"error": message}.
func functionResponse(m relay.ResultMessage) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(m.Content), &v); err != nil {
		v = m.Content
	}
	if m.IsError {
		if obj, ok := v.(map[string]any); ok {
			if _, ok := obj["error"]; ok {
				return obj
			}
		}
		return map[string]any{"error": v}
	}
	return map[string]any{"output": v}
}

func isFunctionResponse(c *genai.Content) bool {
	return c.Role == genai.RoleUser && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

// ConvertTools converts capabilities to a single genai tool holding one
// function declaration per capability.
// Exported for testing.
func ConvertTools(caps []relay.Capability) []*genai.Tool {
	if len(caps) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(caps))
	for i, c := range caps {
		var schema map[string]any
		_ = json.Unmarshal(c.Parameters, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:                 c.Name,
			Description:          c.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// ConvertResponse extracts the first candidate. Function calls without an id
// are given a fresh one so results can be correlated.
// Exported for testing.
func ConvertResponse(resp *genai.GenerateContentResponse) (relay.AssistantMessage, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return relay.AssistantMessage{}, fmt.Errorf("gemini: response has no candidates")
	}
	cand := resp.Candidates[0]
	msg := relay.AssistantMessage{
		RawStopReason: string(cand.FinishReason),
		StopReason:    mapFinishReason(cand.FinishReason),
		Timestamp:     time.Now(),
	}
	if u := resp.UsageMetadata; u != nil {
		msg.Usage = relay.Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	var text []string
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			args, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return relay.AssistantMessage{}, fmt.Errorf("gemini: encode args of %s: %w", p.FunctionCall.Name, err)
			}
			if p.FunctionCall.Args == nil {
				args = json.RawMessage(`{}`)
			}
			id := p.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.New().String()
			}
			msg.Requests = append(msg.Requests, relay.InvocationRequest{ID: id, Name: p.FunctionCall.Name, Arguments: args})
		case p.Text != "" && !p.Thought:
			text = append(text, p.Text)
		}
	}
	msg.Text = strings.Join(text, "")
	if len(msg.Requests) > 0 && msg.StopReason == relay.StopEndTurn {
		msg.StopReason = relay.StopToolUse
	}
	return msg, nil
}

func mapFinishReason(r genai.FinishReason) relay.StopReason {
	switch r {
	case genai.FinishReasonStop:
		return relay.StopEndTurn
	case genai.FinishReasonMaxTokens:
		return relay.StopLength
	case "":
		return relay.StopUnknown
	default:
		return relay.StopError
	}
}
