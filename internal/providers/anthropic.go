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

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic implements the Evaluator interface for Anthropic's messages API.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	policy  fetch.Policy
	client  *http.Client
}

// NewAnthropic creates a new Anthropic evaluator.
func NewAnthropic(model string, policy fetch.Policy) (*Anthropic, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}
	baseURL := os.Getenv("ANTHROPIC_API_URL")
	if baseURL == "" {
		baseURL = anthropicAPIURL
	}
	return &Anthropic{
		apiKey:  key,
		model:   model,
		baseURL: baseURL,
		policy:  policy,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Evaluate(ctx context.Context, req EvalRequest) (EvalResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body := anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: userBlocks(req)}},
	}
	if req.System != "" {
		block := anthropicSystem{Type: "text", Text: req.System}
		if req.CacheSystem {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		body.System = []anthropicSystem{block}
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return EvalResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	var resp EvalResponse
	err = fetch.Do(ctx, a.policy, "anthropic/"+a.model, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

		httpResp, err := a.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if httpResp.StatusCode != 200 {
			return anthropicError(httpResp.StatusCode, respBody)
		}

		var result anthropicResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}

		var content strings.Builder
		for _, block := range result.Content {
			if block.Type == "text" {
				content.WriteString(block.Text)
			}
		}

		resp = EvalResponse{
			Content:      content.String(),
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			CachedTokens: result.Usage.CacheReadInputTokens,
		}
		return nil
	})

	return resp, err
}

// anthropicError classifies an error response by the kind the API reports,
// falling back to the bare status when the envelope does not parse.
func anthropicError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Type == "" {
		return &fetch.StatusError{StatusCode: status, Body: string(body)}
	}
	return &fetch.APIError{
		Kind:       anthropicKind(envelope.Error.Type),
		StatusCode: status,
		Message:    envelope.Error.Message,
	}
}

func anthropicKind(errType string) fetch.Kind {
	switch errType {
	case "rate_limit_error":
		return fetch.KindRateLimit
	case "overloaded_error":
		return fetch.KindOverloaded
	case "timeout_error":
		return fetch.KindTimeout
	case "invalid_request_error":
		return fetch.KindInvalidRequest
	case "authentication_error":
		return fetch.KindAuthentication
	case "permission_error":
		return fetch.KindPermission
	case "not_found_error":
		return fetch.KindNotFound
	case "request_too_large":
		return fetch.KindRequestTooLarge
	default:
		return fetch.KindAPI
	}
}

// userBlocks builds the user message: media attachments first, prompt text
// last. PDFs ride as document blocks, everything else as images.
func userBlocks(req EvalRequest) []anthropicBlock {
	blocks := make([]anthropicBlock, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		blockType := "image"
		if att.MediaType == "application/pdf" {
			blockType = "document"
		}
		blocks = append(blocks, anthropicBlock{
			Type:   blockType,
			Source: &anthropicSource{Type: "base64", MediaType: att.MediaType, Data: att.Data},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: req.Prompt})
	return blocks
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      []anthropicSystem  `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicSystem struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}
