package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dshills/amber/internal/fetch"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama implements the Evaluator interface for Ollama and LM Studio
// (OpenAI-compatible chat completions API).
type Ollama struct {
	apiKey  string
	model   string
	baseURL string
	policy  fetch.Policy
	client  *http.Client
}

// NewOllama creates a new Ollama evaluator. No API key is required by default.
func NewOllama(model string, policy fetch.Policy) (*Ollama, error) {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	// Normalize URL: strip trailing /, /v1, /v1/chat/completions
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	// Optional API key for servers that require it (e.g., LM Studio)
	apiKey := os.Getenv("AMBER_OLLAMA_API_KEY")

	return &Ollama{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL + "/v1/chat/completions",
		policy:  policy,
		client:  &http.Client{Timeout: 300 * time.Second},
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Evaluate(ctx context.Context, req EvalRequest) (EvalResponse, error) {
	if len(req.Attachments) > 0 {
		return EvalResponse{}, &fetch.APIError{
			Kind:    fetch.KindInvalidRequest,
			Message: "ollama provider does not accept media attachments",
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []ollamaMessage
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	body := ollamaRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return EvalResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	var resp EvalResponse
	err = fetch.Do(ctx, o.policy, "ollama/"+o.model, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		}

		httpResp, err := o.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if httpResp.StatusCode != 200 {
			return ollamaError(httpResp.StatusCode, respBody)
		}

		var result ollamaResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if len(result.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		if result.Choices[0].Message.Content == "" {
			return fmt.Errorf("empty text content in API response")
		}

		resp = EvalResponse{
			Content:      result.Choices[0].Message.Content,
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		}
		return nil
	})

	return resp, err
}

// ollamaError maps the status to an error kind. The OpenAI-compatible error
// body varies between servers, so classification is by status alone.
func ollamaError(status int, body []byte) error {
	var kind fetch.Kind
	switch status {
	case 400:
		kind = fetch.KindInvalidRequest
	case 401:
		kind = fetch.KindAuthentication
	case 403:
		kind = fetch.KindPermission
	case 404:
		kind = fetch.KindNotFound
	case 413:
		kind = fetch.KindRequestTooLarge
	case 429:
		kind = fetch.KindRateLimit
	default:
		return &fetch.StatusError{StatusCode: status, Body: string(body)}
	}
	return &fetch.APIError{Kind: kind, StatusCode: status, Message: string(body)}
}

type ollamaRequest struct {
	Model       string          `json:"model"`
	Messages    []ollamaMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Choices []ollamaChoice `json:"choices"`
	Usage   ollamaUsage    `json:"usage"`
}

type ollamaChoice struct {
	Message ollamaMessage `json:"message"`
}

type ollamaUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
