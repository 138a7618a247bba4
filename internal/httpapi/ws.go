package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaygate/gateway/internal/adapters"
	"github.com/relaygate/gateway/internal/orchestrator"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Tool    string `json:"tool,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Content string `json:"content,omitempty"`
}

func (s *Server) registerWebsocketRoutes() {
	s.router.HandleFunc("/ws/chat", s.handleWebsocketChat)
}

// handleWebsocketChat implements spec.md §4.J's full-duplex frame
// protocol. The upgrade request bypasses the API-key gate and
// authenticates purely through an optional first {type:"auth"} frame
// when a server-side key is configured (spec.md §8 scenario 6).
func (s *Server) handleWebsocketChat(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	requireAuth := s.deps.Config.MobileAPIKey != "" || s.deps.Config.ValidAPIKey != ""
	authenticated := !requireAuth
	var userID string

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "ping":
			_ = conn.WriteJSON(wsFrame{Type: "pong"})

		case "auth":
			if frame.APIKey == s.deps.Config.MobileAPIKey && frame.APIKey != "" {
				authenticated = true
				userID = "mobile"
				continue
			}
			if frame.APIKey == s.deps.Config.ValidAPIKey && frame.APIKey != "" {
				authenticated = true
				userID = "static-api-key"
				continue
			}
			_ = conn.WriteJSON(wsFrame{Type: "error", Message: "Invalid API key"})
			return

		case "chat":
			if !authenticated {
				_ = conn.WriteJSON(wsFrame{Type: "error", Message: "Authentication required to use chat"})
				continue
			}
			s.streamWebsocketChat(conn, userID, frame)

		default:
			_ = conn.WriteJSON(wsFrame{Type: "error", Message: "unknown frame type"})
		}
	}
}

func (s *Server) streamWebsocketChat(conn *websocket.Conn, userID string, frame wsFrame) {
	reqCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	candidates := s.deps.Rules.Route(frame.Message, frame.Tool)
	selectedTool := frame.Tool
	if selectedTool == "" && len(candidates) > 0 {
		selectedTool = candidates[0]
	}
	_ = conn.WriteJSON(wsFrame{Type: "start", Tool: selectedTool})

	_, _, err := s.deps.Orchestrator.StreamChat(reqCtx, orchestrator.Request{
		Message: frame.Message,
		Tool:    frame.Tool,
		UserID:  userID,
	}, func(chunk adapters.StreamChunk) error {
		return conn.WriteJSON(wsFrame{Type: "chunk", Content: chunk.Content})
	})
	if err != nil {
		_ = conn.WriteJSON(wsFrame{Type: "error", Message: err.Error()})
		return
	}
	_ = conn.WriteJSON(wsFrame{Type: "end"})
}
