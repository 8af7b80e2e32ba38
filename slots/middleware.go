package slots

import (
	"context"

	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/rs/zerolog"
)

// newLoggingMiddleware logs every provider call made on behalf of an endpoint.
func newLoggingMiddleware(logger zerolog.Logger) llm.Middleware {
	return llm.MiddlewareFunc{
		BeforeRequestFunc: func(ctx context.Context, req *llm.Request) (*llm.Request, error) {
			logger.Debug().
				Str("model", req.Model).
				Int("messages", len(req.Messages)).
				Msg("Sending request")
			return req, nil
		},
		AfterResponseFunc: func(ctx context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
			event := logger.Debug().Str("model", req.Model).Str("stop_reason", resp.StopReason)
			if resp.Usage != nil {
				event = event.Int64("input_tokens", resp.Usage.InputTokens).Int64("output_tokens", resp.Usage.OutputTokens)
			}
			event.Msg("Received response")
			return resp, nil
		},
		OnErrorFunc: func(ctx context.Context, req *llm.Request, err error) error {
			logger.Debug().Err(err).Str("model", req.Model).Msg("Request failed")
			return err
		},
	}
}
