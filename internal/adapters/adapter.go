// Package adapters implements the gateway's provider adapter layer
// (spec.md §4.G): a uniform Adapter interface over heterogeneous
// upstream chat APIs, with a closed failure taxonomy the orchestrator
// and retry/circuit-breaker layers classify on.
package adapters

import (
	"context"
	"errors"
	"fmt"
)

// Capability is one provider feature flag (spec.md §3).
type Capability string

const (
	CapGeneralChat    Capability = "general-chat"
	CapStreaming      Capability = "streaming"
	CapCodeContext    Capability = "code-context"
	CapWebSearch      Capability = "web-search"
	CapFunctionCall   Capability = "function-calling"
	CapImageGen       Capability = "image-gen"
)

// Descriptor advertises what a provider can do and its context window,
// spec.md §3's "Provider capability descriptor".
type Descriptor struct {
	Name             string
	Capabilities     map[Capability]bool
	MaxContextWindow int
}

func (d Descriptor) Has(c Capability) bool { return d.Capabilities[c] }

// Usage reports token accounting for one adapter call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the normalized shape every adapter returns (spec.md §4.G).
type Response struct {
	Content   string
	Tool      string
	Model     string
	Usage     Usage
	Citations []string
}

// StreamChunk is one piece of a streaming response.
type StreamChunk struct {
	Content string
	Done    bool
}

// ChatMessage is the adapter-facing message shape, independent of
// storage.Message so adapters don't import the storage package.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest bundles everything an adapter needs for one turn.
type ChatRequest struct {
	Messages        []ChatMessage
	CodebaseContext string
}

// FailureKind is the closed adapter failure taxonomy (spec.md §4.G).
// Retryable reports whether resilience.DefaultIsRetryable-style callers
// should treat it as worth a retry.
type FailureKind string

const (
	FailureNotConfigured FailureKind = "not_configured"
	FailureUnavailable   FailureKind = "unavailable"
	FailureTimeout       FailureKind = "timeout"
	FailureRateLimited   FailureKind = "rate_limited"
	FailureUpstreamError FailureKind = "upstream_error"
	FailureProtocolError FailureKind = "protocol_error"
	FailureCancelled     FailureKind = "cancelled"
)

var retryableKinds = map[FailureKind]bool{
	FailureRateLimited:   true,
	FailureUpstreamError: true,
	FailureTimeout:       true,
}

// AdapterError is the error type every Adapter method returns on
// failure.
type AdapterError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether the resilience layer should retry this
// failure.
func (e *AdapterError) Retryable() bool { return retryableKinds[e.Kind] }

func NewError(provider string, kind FailureKind, err error) *AdapterError {
	return &AdapterError{Provider: provider, Kind: kind, Err: err}
}

// IsRetryable classifies err per the adapter failure taxonomy, for use
// as a resilience.RetryConfig.IsRetryable implementation.
func IsRetryable(err error) bool {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Retryable()
	}
	return false
}

// Adapter is the uniform interface every provider implements.
type Adapter interface {
	Name() string
	Descriptor() Descriptor
	IsAvailable(ctx context.Context) bool
	Chat(ctx context.Context, req ChatRequest) (*Response, error)
	StreamChat(ctx context.Context, req ChatRequest, onChunk func(StreamChunk) error) error
}
