// Package orchestrator implements the gateway's request orchestrator
// (spec.md §4.K): route -> select live adapter -> load/create context
// -> build message window -> invoke adapter under
// rate-limit/breaker/retry -> persist on success -> fire-and-forget
// cost + audit -> translate failures to the §7 error taxonomy.
package orchestrator

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/gateway/infrastructure/errors"
	"github.com/relaygate/gateway/internal/adapters"
	"github.com/relaygate/gateway/internal/audit"
	"github.com/relaygate/gateway/internal/contextstore"
	"github.com/relaygate/gateway/internal/cost"
	"github.com/relaygate/gateway/internal/ratelimit"
	"github.com/relaygate/gateway/internal/resilience"
	"github.com/relaygate/gateway/internal/routing"
	"github.com/relaygate/gateway/internal/storage"
)

// historyDepth is how many of the most recently stored messages are
// attached to a new request alongside the new user message (spec.md
// §4.K step 4).
const historyDepth = 10

// Request is one chat turn to orchestrate.
type Request struct {
	Message         string
	ConversationID  string
	ProjectID       string
	Tool            string // explicit tool override
	CodebaseContext string
	UserID          string
}

// Result is the orchestrator's successful outcome.
type Result struct {
	Content        string
	Tool           string
	ConversationID string
	Metadata       map[string]interface{}
}

// Orchestrator wires the routing, adapter, context, resilience, cost
// and audit components into spec.md §4.K's exact sequence.
type Orchestrator struct {
	Rules     *routing.Rules
	Adapters  *adapters.Registry
	Contexts  *contextstore.Manager
	Costs     *cost.Tracker
	Audit     *audit.Logger
	Breakers  *resilience.Registry
	Limiters  *ratelimit.Registry
	RetryCfg  resilience.RetryConfig
}

// Chat runs one request-processing turn.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Result, error) {
	candidates := o.Rules.Route(req.Message, req.Tool)

	selected, ok := o.selectLiveAdapter(ctx, candidates)
	if !ok {
		o.Audit.Log(ctx, audit.Event(storage.EventResourceAccess, req.UserID, "chat", req.ConversationID,
			map[string]interface{}{"outcome": "no_adapter_available", "candidates": candidates}))
		return nil, errors.New(errors.ErrCodeValidation, "no configured adapter available for this request", 400)
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	storedCtx, err := o.Contexts.GetOrCreate(ctx, conversationID, req.ProjectID)
	if err != nil {
		return nil, errors.Internal("load conversation context", err)
	}

	history, err := o.Contexts.RecentMessages(ctx, conversationID, historyDepth)
	if err != nil {
		return nil, errors.Internal("load recent messages", err)
	}

	codebaseContext := req.CodebaseContext
	if codebaseContext == "" {
		codebaseContext = storedCtx.CodebaseContext
	}

	chatMessages := make([]adapters.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		chatMessages = append(chatMessages, adapters.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	chatMessages = append(chatMessages, adapters.ChatMessage{Role: string(storage.RoleUser), Content: req.Message})

	adapterReq := adapters.ChatRequest{Messages: chatMessages, CodebaseContext: codebaseContext}

	resp, err := o.invoke(ctx, selected, adapterReq)
	if err != nil {
		o.Audit.Log(ctx, audit.Event(storage.EventResourceAccess, req.UserID, "chat", conversationID,
			map[string]interface{}{"outcome": "failure", "tool": selected.Name(), "error": err.Error()}))
		return nil, translateFailure(selected.Name(), err)
	}

	now := time.Now().UTC()
	if err := o.Contexts.AddMessage(ctx, conversationID, storage.Message{Role: storage.RoleUser, Content: req.Message, Timestamp: now}); err != nil {
		return nil, errors.Internal("persist user message", err)
	}
	if err := o.Contexts.AddMessage(ctx, conversationID, storage.Message{Role: storage.RoleAssistant, Content: resp.Content, Timestamp: time.Now().UTC()}); err != nil {
		return nil, errors.Internal("persist assistant message", err)
	}
	if err := o.Contexts.AddToolCall(ctx, conversationID, storage.ToolCall{Tool: selected.Name(), CreatedAt: time.Now().UTC()}); err != nil {
		return nil, errors.Internal("persist tool call", err)
	}

	go o.recordCostAndAudit(selected.Name(), resp, conversationID, req.ProjectID, req.UserID)

	return &Result{
		Content:        resp.Content,
		Tool:           selected.Name(),
		ConversationID: conversationID,
		Metadata: map[string]interface{}{
			"model":         resp.Model,
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		},
	}, nil
}

// StreamChat mirrors Chat but streams response chunks to onChunk as
// they arrive, without retry (a partially-streamed attempt cannot be
// safely replayed) though still under the breaker and rate limiter.
func (o *Orchestrator) StreamChat(ctx context.Context, req Request, onChunk func(adapters.StreamChunk) error) (tool, conversationID string, err error) {
	candidates := o.Rules.Route(req.Message, req.Tool)
	selected, ok := o.selectLiveAdapter(ctx, candidates)
	if !ok {
		return "", "", errors.New(errors.ErrCodeValidation, "no configured adapter available for this request", 400)
	}

	conversationID = req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	storedCtx, err := o.Contexts.GetOrCreate(ctx, conversationID, req.ProjectID)
	if err != nil {
		return "", conversationID, errors.Internal("load conversation context", err)
	}
	history, err := o.Contexts.RecentMessages(ctx, conversationID, historyDepth)
	if err != nil {
		return "", conversationID, errors.Internal("load recent messages", err)
	}
	codebaseContext := req.CodebaseContext
	if codebaseContext == "" {
		codebaseContext = storedCtx.CodebaseContext
	}

	chatMessages := make([]adapters.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		chatMessages = append(chatMessages, adapters.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	chatMessages = append(chatMessages, adapters.ChatMessage{Role: string(storage.RoleUser), Content: req.Message})
	adapterReq := adapters.ChatRequest{Messages: chatMessages, CodebaseContext: codebaseContext}

	var full strings.Builder
	breaker := o.Breakers.Get(selected.Name())
	limiter := o.Limiters.Get(selected.Name())

	err = breaker.Execute(ctx, func(ctx context.Context) error {
		if err := limiter.Acquire(ctx, 1); err != nil {
			return err
		}
		return selected.StreamChat(ctx, adapterReq, func(chunk adapters.StreamChunk) error {
			if chunk.Content != "" {
				full.WriteString(chunk.Content)
			}
			return onChunk(chunk)
		})
	})
	if err != nil {
		o.Audit.Log(ctx, audit.Event(storage.EventResourceAccess, req.UserID, "chat", conversationID,
			map[string]interface{}{"outcome": "failure", "tool": selected.Name(), "streaming": true}))
		return selected.Name(), conversationID, translateFailure(selected.Name(), err)
	}

	now := time.Now().UTC()
	_ = o.Contexts.AddMessage(ctx, conversationID, storage.Message{Role: storage.RoleUser, Content: req.Message, Timestamp: now})
	_ = o.Contexts.AddMessage(ctx, conversationID, storage.Message{Role: storage.RoleAssistant, Content: full.String(), Timestamp: time.Now().UTC()})
	_ = o.Contexts.AddToolCall(ctx, conversationID, storage.ToolCall{Tool: selected.Name(), CreatedAt: time.Now().UTC()})

	go o.recordCostAndAudit(selected.Name(), &adapters.Response{Content: full.String()}, conversationID, req.ProjectID, req.UserID)

	return selected.Name(), conversationID, nil
}

func (o *Orchestrator) selectLiveAdapter(ctx context.Context, candidates []string) (adapters.Adapter, bool) {
	live := o.Adapters.Live(ctx)
	for _, name := range candidates {
		if live[name] {
			a, ok := o.Adapters.Get(name)
			if ok {
				return a, true
			}
		}
	}
	return nil, false
}

func (o *Orchestrator) invoke(ctx context.Context, a adapters.Adapter, req adapters.ChatRequest) (*adapters.Response, error) {
	breaker := o.Breakers.Get(a.Name())
	limiter := o.Limiters.Get(a.Name())

	var resp *adapters.Response
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		if err := limiter.Acquire(ctx, 1); err != nil {
			return err
		}
		retryCfg := o.RetryCfg
		retryCfg.IsRetryable = adapters.IsRetryable
		return resilience.Retry(ctx, retryCfg, func(ctx context.Context) error {
			r, err := a.Chat(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	return resp, err
}

func (o *Orchestrator) recordCostAndAudit(tool string, resp *adapters.Response, conversationID, projectID, userID string) {
	ctx := context.Background()
	if o.Costs != nil {
		_, _ = o.Costs.Record(ctx, tool, resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens, conversationID, projectID)
	}
	o.Audit.Log(ctx, audit.Event(storage.EventResourceAccess, userID, "chat", conversationID,
		map[string]interface{}{"outcome": "success", "tool": tool}))
}

// translateFailure maps an adapter/breaker/limiter error onto the §7
// HTTP error taxonomy.
func translateFailure(provider string, err error) error {
	if errors.IsServiceError(err) {
		return err // circuit breaker already returns errors.CircuitOpen
	}

	var adapterErr *adapters.AdapterError
	if stderrors.As(err, &adapterErr) {
		switch adapterErr.Kind {
		case adapters.FailureNotConfigured, adapters.FailureUnavailable:
			return errors.ServiceUnavailable("provider adapter unavailable")
		case adapters.FailureTimeout:
			return errors.ServiceUnavailable("provider adapter timed out")
		case adapters.FailureRateLimited:
			return errors.RateLimited(0, 60)
		case adapters.FailureCancelled:
			return errors.ServiceUnavailable("request cancelled")
		default:
			return errors.UpstreamError(provider, err)
		}
	}
	return errors.Exhausted("upstream retries exhausted")
}
