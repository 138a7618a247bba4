package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relaygate/gateway/infrastructure/errors"
	"github.com/relaygate/gateway/infrastructure/httputil"
	"github.com/relaygate/gateway/internal/orchestrator"
)

type chatRequest struct {
	Message         string `json:"message"`
	ConversationID  string `json:"conversation_id"`
	ProjectID       string `json:"project_id"`
	Tool            string `json:"tool"`
	CodebaseContext string `json:"codebase_context"`
}

type chatResponse struct {
	Content        string                 `json:"content"`
	Tool           string                 `json:"tool"`
	ConversationID string                 `json:"conversation_id"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type toolDescriptor struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Available    bool     `json:"available"`
}

func (s *Server) registerChatRoutes() {
	s.router.HandleFunc("/api/v1/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/tools", s.handleListTools).Methods(http.MethodGet)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeServiceError(w, r, errors.Validation("message", "message is required"))
		return
	}

	userID := httputil.GetUserID(r)
	result, err := s.deps.Orchestrator.Chat(r.Context(), orchestrator.Request{
		Message:         req.Message,
		ConversationID:  req.ConversationID,
		ProjectID:       req.ProjectID,
		Tool:            req.Tool,
		CodebaseContext: req.CodebaseContext,
		UserID:          userID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, chatResponse{
		Content:        result.Content,
		Tool:           result.Tool,
		ConversationID: result.ConversationID,
		Metadata:       result.Metadata,
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx, err := s.deps.Storage.LoadContext(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, "failed to load conversation")
		return
	}
	if ctx == nil {
		writeServiceError(w, r, errors.NotFound("conversation", id))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ctx)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	live := s.deps.Adapters.Live(r.Context())
	names := s.deps.Adapters.Names()
	out := make([]toolDescriptor, 0, len(names))
	for _, name := range names {
		a, ok := s.deps.Adapters.Get(name)
		if !ok {
			continue
		}
		desc := a.Descriptor()
		caps := make([]string, 0, len(desc.Capabilities))
		for c, enabled := range desc.Capabilities {
			if enabled {
				caps = append(caps, string(c))
			}
		}
		out = append(out, toolDescriptor{Name: name, Capabilities: caps, Available: live[name]})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
