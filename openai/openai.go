// Package openai implements [relay.Provider] for the OpenAI Chat Completions
// API. Each Complete is one non-streaming POST to /v1/chat/completions.
package openai

import "encoding/json"

const (
	defaultBaseURL  = "https://api.openai.com"
	defaultModel    = "gpt-5"
	completionsPath = "/v1/chat/completions"
)

// apiRequest is the JSON body sent to the Chat Completions API.
type apiRequest struct {
	Model               string       `json:"model"`
	Messages            []apiMessage `json:"messages"`
	Tools               []apiTool    `json:"tools,omitempty"`
	MaxCompletionTokens int          `json:"max_completion_tokens,omitempty"`
	Temperature         *float64     `json:"temperature,omitempty"`
}

// apiMessage is used for both requests and responses. Content is a pointer
// so assistant messages carrying only tool calls send null.
type apiMessage struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiToolCall struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"` // always "function"
	Function apiFunction `json:"function"`
}

// apiFunction carries arguments as a JSON-encoded string.
type apiFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiTool struct {
	Type     string         `json:"type"` // always "function"
	Function apiFunctionDef `json:"function"`
}

type apiFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// apiResponse is the body of a successful Chat Completions call.
type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Index        int        `json:"index"`
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type apiErrorResponse struct {
	Error apiErrorDetail `json:"error"`
}
