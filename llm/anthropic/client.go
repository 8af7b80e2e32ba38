package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/rs/zerolog"
)

// DefaultMaxTokens is used when a request does not set MaxTokens.
// Anthropic requires the field and small values truncate answers.
// Models with a non-streaming output limit are capped at that limit.
const DefaultMaxTokens = 10000

// AnthropicClient implements the llm.Client interface for Anthropic's API.
type AnthropicClient struct {
	client *anthropic.Client
	logger zerolog.Logger
}

// NewAnthropicClient creates a new AnthropicClient with the given API key.
// If baseURL is empty the SDK default endpoint is used.
func NewAnthropicClient(apiKey, baseURL string, logger zerolog.Logger) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	// The SDK's own retries are disabled: the resilient invoker owns retry decisions.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		logger.Info().Str("base_url", baseURL).Msg("Using custom Anthropic base URL")
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client: &client,
		logger: logger.With().Str("component", "anthropicClient").Logger(),
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *AnthropicClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens(req.Model)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  ToMessageParams(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(req.Thinking.BudgetTokens)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, convertAnthropicError(err)
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int64("input_tokens", message.Usage.InputTokens).
		Int64("output_tokens", message.Usage.OutputTokens).
		Msg("Anthropic response received")

	return FromMessage(message), nil
}

// defaultMaxTokens returns DefaultMaxTokens, lowered to the SDK's
// non-streaming limit for models that have one.
func defaultMaxTokens(model string) int64 {
	if limit, ok := constant.ModelNonStreamingTokens[model]; ok && int64(limit) < DefaultMaxTokens {
		return int64(limit)
	}
	return DefaultMaxTokens
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// convertAnthropicError converts Anthropic API errors to llm.Error types.
// The API's own error type and message are kept in the message so that
// keyword based classification can see them.
func convertAnthropicError(err error) error {
	if err == nil {
		return nil
	}
	if llm.IsCanceled(err) {
		return err
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		if isTransportError(err) {
			// No HTTP response at all: connection reset, DNS, TLS and the like
			return llm.NewTransientError(llm.ErrorTypeNetwork, "Anthropic transport error", err)
		}
		// Rejected by the SDK before sending, e.g. max_tokens above the non-streaming limit
		return llm.NewPermanentError(llm.ErrorTypeInvalidRequest, "Anthropic request rejected", err)
	}

	message := "Anthropic API error"
	if raw := apiErr.RawJSON(); raw != "" {
		var payload anthropicErrorPayload
		if json.Unmarshal([]byte(raw), &payload) == nil && payload.Error.Message != "" {
			message = fmt.Sprintf("Anthropic %s: %s", payload.Error.Type, payload.Error.Message)
		}
	}

	return llm.NewStatusError(apiErr.StatusCode, message, err)
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// Ensure AnthropicClient implements llm.Client
var _ llm.Client = (*AnthropicClient)(nil)
