package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	chatuc "github.com/infinitum-cloud/infinitum/internal/usecase/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary origins; auth happens via
	// token, not origin.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsInbound is a client frame. Only type "chat" is acted on.
type wsInbound struct {
	Type           string      `json:"type"`
	Message        string      `json:"message"`
	Limit          *int        `json:"limit,omitempty"`
	Filters        []filterDTO `json:"filters,omitempty"`
	SemanticWeight *float64    `json:"semantic_weight,omitempty"`
	KeywordWeight  *float64    `json:"keyword_weight,omitempty"`
	Threshold      *float64    `json:"similarity_threshold,omitempty"`
}

type wsStatusFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type wsDeltaFrame struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

type wsProductsFrame struct {
	Type     string       `json:"type"`
	Products []productDTO `json:"products"`
	Total    int          `json:"total"`
}

type wsResponseFrame struct {
	Type string `json:"type"`
	chatResponse
}

type wsErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	// The path user id serves unauthenticated clients; a verified token
	// identity always wins.
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		userID = chi.URLParam(r, "user_id")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.logger.With(zap.String("user_id", userID))
	log.Info("WebSocket session opened")

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("WebSocket session ended unexpectedly", zap.Error(err))
			}
			return
		}

		switch in.Type {
		case "chat":
			s.serveWSChat(r, conn, userID, in, log)
		case "ping":
			if err := conn.WriteJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}
		default:
			if err := conn.WriteJSON(wsErrorFrame{Type: "error", Message: "unsupported frame type"}); err != nil {
				return
			}
		}
	}
}

func (s *Server) serveWSChat(r *http.Request, conn *websocket.Conn, userID string, in wsInbound, log *zap.Logger) {
	opts, err := optionsFromRequest(chatRequest{
		Message:        in.Message,
		Limit:          in.Limit,
		Filters:        in.Filters,
		SemanticWeight: in.SemanticWeight,
		KeywordWeight:  in.KeywordWeight,
		Threshold:      in.Threshold,
	})
	if err != nil {
		_ = conn.WriteJSON(wsErrorFrame{Type: "error", Message: err.Error()})
		return
	}

	sink := &wsSink{conn: conn}
	if _, err := s.chat.Stream(r.Context(), userID, in.Message, s.applyDefaults(opts), sink); err != nil {
		log.Warn("WebSocket chat failed", zap.Error(err))
		_ = conn.WriteJSON(wsErrorFrame{
			Type:    "error",
			Message: safeDomainMessage(err, streamErrorStatus(err)),
		})
	}
}

// wsSink adapts pipeline progress to WebSocket frames.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Status(stage chatuc.Stage) error {
	return s.conn.WriteJSON(wsStatusFrame{Type: "status", Status: string(stage)})
}

func (s *wsSink) MessageDelta(delta string) error {
	return s.conn.WriteJSON(wsDeltaFrame{Type: "message", Delta: delta})
}

func (s *wsSink) Products(rs resultset.ResultSet) error {
	return s.conn.WriteJSON(wsProductsFrame{Type: "products", Products: productsToDTO(rs), Total: rs.Len()})
}

func (s *wsSink) Complete(resp chatuc.Response) error {
	return s.conn.WriteJSON(wsResponseFrame{Type: "ai_response", chatResponse: chatResponseToDTO(resp)})
}
