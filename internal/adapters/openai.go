package adapters

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	unaryTimeout     = 60 * time.Second
	streamTimeout    = 120 * time.Second
	healthTimeout    = 2 * time.Second
)

// OpenAIAdapter talks to any OpenAI-compatible chat-completion API via
// langchaingo's openai client (spec.md §4.G's concrete provider
// adapter). It synthesizes a system message carrying codebase context
// for requests that provide one, since this provider supports
// code-context.
type OpenAIAdapter struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	llm        *openai.LLM
	descriptor Descriptor
	httpClient *http.Client
}

// NewOpenAIAdapter builds an adapter for name (e.g. "openai",
// "openai-compatible"), authenticating with apiKey and targeting model.
// baseURL may be empty to use the default OpenAI endpoint, letting the
// same adapter serve any OpenAI-compatible upstream.
func NewOpenAIAdapter(name, apiKey, model, baseURL string, maxContextWindow int) (*OpenAIAdapter, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, NewError(name, FailureNotConfigured, err)
	}
	return &OpenAIAdapter{
		name:    name,
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		llm:     llm,
		descriptor: Descriptor{
			Name: name,
			Capabilities: map[Capability]bool{
				CapGeneralChat:  true,
				CapStreaming:    true,
				CapCodeContext:  true,
				CapFunctionCall: true,
			},
			MaxContextWindow: maxContextWindow,
		},
		httpClient: &http.Client{Timeout: healthTimeout},
	}, nil
}

func (a *OpenAIAdapter) Name() string            { return a.name }
func (a *OpenAIAdapter) Descriptor() Descriptor  { return a.descriptor }

func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	if a.apiKey == "" {
		return false
	}
	return true
}

func (a *OpenAIAdapter) toLangchainMessages(req ChatRequest) []llms.MessageContent {
	var msgs []llms.MessageContent
	if req.CodebaseContext != "" && a.descriptor.Has(CapCodeContext) {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, "Codebase context:\n"+req.CodebaseContext))
	}
	for _, m := range req.Messages {
		msgs = append(msgs, llms.TextParts(roleToLangchain(m.Role), m.Content))
	}
	return msgs
}

func roleToLangchain(role string) llms.ChatMessageType {
	switch role {
	case "assistant":
		return llms.ChatMessageTypeAI
	case "system":
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (a *OpenAIAdapter) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	if !a.IsAvailable(ctx) {
		return nil, NewError(a.name, FailureNotConfigured, errors.New("no api key configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, unaryTimeout)
	defer cancel()

	resp, err := a.llm.GenerateContent(ctx, a.toLangchainMessages(req))
	if err != nil {
		return nil, classifyError(a.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(a.name, FailureProtocolError, errors.New("no choices returned"))
	}
	choice := resp.Choices[0]
	return &Response{
		Content: choice.Content,
		Model:   a.model,
		Usage:   usageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}

func (a *OpenAIAdapter) StreamChat(ctx context.Context, req ChatRequest, onChunk func(StreamChunk) error) error {
	if !a.IsAvailable(ctx) {
		return NewError(a.name, FailureNotConfigured, errors.New("no api key configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()

	_, err := a.llm.GenerateContent(ctx, a.toLangchainMessages(req), llms.WithStreamingFunc(
		func(ctx context.Context, chunk []byte) error {
			return onChunk(StreamChunk{Content: string(chunk)})
		},
	))
	if err != nil {
		return classifyError(a.name, err)
	}
	return onChunk(StreamChunk{Done: true})
}

func usageFromGenerationInfo(info map[string]interface{}) Usage {
	var u Usage
	if v, ok := info["PromptTokens"].(int); ok {
		u.InputTokens = v
	}
	if v, ok := info["CompletionTokens"].(int); ok {
		u.OutputTokens = v
	}
	return u
}

func classifyError(provider string, err error) *AdapterError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(provider, FailureTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(provider, FailureTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(provider, FailureCancelled, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return NewError(provider, FailureRateLimited, err)
	case strings.Contains(msg, "503") || strings.Contains(msg, "502") || strings.Contains(msg, "500"):
		return NewError(provider, FailureUpstreamError, err)
	default:
		return NewError(provider, FailureProtocolError, err)
	}
}
