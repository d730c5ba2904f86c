package triage

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// StubLLMClient returns a canned reply. Used in local development when no
// provider credentials are configured.
type StubLLMClient struct{}

func NewStubLLMClient() *StubLLMClient {
	return &StubLLMClient{}
}

func (c *StubLLMClient) Complete(_ context.Context, _ LLMRequest) (LLMResponse, error) {
	return LLMResponse{
		Text: "I understand. I am running without an AI provider right now.\n\n" +
			"**Recommendations:**\n- Consult a doctor to discuss your symptoms\n",
		StopReason: "stop",
	}, nil
}

var _ LLMClient = (*StubLLMClient)(nil)
