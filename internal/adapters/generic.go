package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// GenericHTTPAdapter serves a provider whose REST response shape isn't
// known at compile time (spec.md §4.G anticipates adapters over
// heterogeneous upstream JSON). Rather than bind a per-provider struct,
// it extracts fields via gjson paths configured per instance, so one
// implementation covers any provider shaped as
// {<contentPath>: "...", <usage prompt/completion paths>: N}.
type GenericHTTPAdapter struct {
	name             string
	endpoint         string
	apiKey           string
	model            string
	contentPath      string
	inputTokensPath  string
	outputTokensPath string
	descriptor       Descriptor
	httpClient       *http.Client
}

func NewGenericHTTPAdapter(name, endpoint, apiKey, model string, caps map[Capability]bool, maxContextWindow int) *GenericHTTPAdapter {
	return &GenericHTTPAdapter{
		name:             name,
		endpoint:         endpoint,
		apiKey:           apiKey,
		model:            model,
		contentPath:      "choices.0.message.content",
		inputTokensPath:  "usage.prompt_tokens",
		outputTokensPath: "usage.completion_tokens",
		descriptor:       Descriptor{Name: name, Capabilities: caps, MaxContextWindow: maxContextWindow},
		httpClient:       &http.Client{Timeout: unaryTimeout},
	}
}

func (a *GenericHTTPAdapter) Name() string           { return a.name }
func (a *GenericHTTPAdapter) Descriptor() Descriptor { return a.descriptor }

func (a *GenericHTTPAdapter) IsAvailable(ctx context.Context) bool {
	if a.apiKey == "" || a.endpoint == "" {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, a.endpoint, nil)
	if err != nil {
		return true // can't probe, assume configured-and-reachable
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (a *GenericHTTPAdapter) buildPayload(req ChatRequest) []byte {
	messages := make([]map[string]string, 0, len(req.Messages)+1)
	if req.CodebaseContext != "" && a.descriptor.Has(CapCodeContext) {
		messages = append(messages, map[string]string{"role": "system", "content": "Codebase context:\n" + req.CodebaseContext})
	}
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}
	body, _ := json.Marshal(map[string]interface{}{"model": a.model, "messages": messages})
	return body
}

func (a *GenericHTTPAdapter) do(ctx context.Context, req ChatRequest) (string, error) {
	if a.apiKey == "" {
		return "", NewError(a.name, FailureNotConfigured, errors.New("no api key configured"))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(a.buildPayload(req)))
	if err != nil {
		return "", NewError(a.name, FailureProtocolError, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyError(a.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(a.name, FailureProtocolError, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", NewError(a.name, FailureRateLimited, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return "", NewError(a.name, FailureUpstreamError, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return "", NewError(a.name, FailureProtocolError, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
	}
	return string(raw), nil
}

func (a *GenericHTTPAdapter) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	raw, err := a.do(ctx, req)
	if err != nil {
		return nil, err
	}
	result := gjson.Parse(raw)
	content := result.Get(a.contentPath).String()
	if content == "" {
		return nil, NewError(a.name, FailureProtocolError, errors.New("response missing expected content field"))
	}
	return &Response{
		Content: content,
		Model:   a.model,
		Usage: Usage{
			InputTokens:  int(result.Get(a.inputTokensPath).Int()),
			OutputTokens: int(result.Get(a.outputTokensPath).Int()),
		},
	}, nil
}

// StreamChat is not supported by the generic adapter: it delivers the
// full response as a single terminal chunk.
func (a *GenericHTTPAdapter) StreamChat(ctx context.Context, req ChatRequest, onChunk func(StreamChunk) error) error {
	resp, err := a.Chat(ctx, req)
	if err != nil {
		return err
	}
	if err := onChunk(StreamChunk{Content: resp.Content}); err != nil {
		return err
	}
	return onChunk(StreamChunk{Done: true})
}
