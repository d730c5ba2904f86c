package triage

import (
	"context"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// FallbackClient wraps a primary LLM client with a fallback provider. If the
// primary fails, it automatically retries with the fallback.
type FallbackClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackClient creates a new fallback-enabled LLM client. If fallback is
// nil, the client only uses the primary provider.
func NewFallbackClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("triage: primary LLM client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Complete sends a completion request to the primary LLM, retrying with the
// fallback provider on failure.
func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return LLMResponse{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return LLMResponse{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}

var _ LLMClient = (*FallbackClient)(nil)

type modelOverrideClient struct {
	inner LLMClient
	model string
}

// WithModel wraps a client so every request uses the given model ID. Used to
// point the fallback provider at its own model.
func WithModel(client LLMClient, model string) LLMClient {
	return &modelOverrideClient{inner: client, model: model}
}

func (c *modelOverrideClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	req.Model = c.model
	return c.inner.Complete(ctx, req)
}
