package relay

import (
	"context"
	"net/http"
	"time"

	"PChat/logger"
	"PChat/service/storage"
	"PChat/tools/ids"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// authWait is how long an unauthenticated socket may sit before it must
	// have produced a valid auth frame.
	authWait = 5 * time.Second

	// presenceTTL is the redis presence lease; pongs refresh it.
	presenceTTL = 90 * time.Second

	pongWait = 60 * time.Second
)

// Server upgrades HTTP requests into relay sessions.
type Server struct {
	hub     *Hub
	jwtOpts security.Options
}

func NewServer(hub *Hub, jwtOpts security.Options) *Server {
	return &Server{hub: hub, jwtOpts: jwtOpts}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS is the gin handler for the websocket endpoint. The socket carries
// no identity until the handshake succeeds; everything after it is attributed
// to the verified claims, never to client-supplied fields.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed: %v", err)
		return
	}

	claims, err := s.handshake(c, ws)
	if err != nil {
		logger.Warnf("[ws] handshake rejected: %v", err)
		s.rejectAndClose(ws)
		return
	}

	conn := newConn(ids.GenerateString(), claims.UserID, claims.Name, ws)
	s.hub.Register(conn)
	s.markOnline(conn.UserID)

	if ack, err := MarshalFrame(EventConnected, ConnectedPayload{ConnID: conn.ID, UserID: conn.UserID}); err == nil {
		conn.enqueue(ack)
	}

	s.readLoop(conn, ws)

	s.hub.Unregister(conn)
	s.markOffline(conn.UserID)
}

// handshake authenticates the socket: a token query parameter, or a first
// frame of {"event":"auth","data":{"token":...}} within authWait. Revoked
// tokens fail the same way invalid ones do.
func (s *Server) handshake(c *gin.Context, ws *websocket.Conn) (*security.Claims, error) {
	token := c.Query("token")
	if token == "" {
		_ = ws.SetReadDeadline(time.Now().Add(authWait))
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		frame, err := ParseFrame(raw)
		if err != nil {
			return nil, err
		}
		if frame.Event != EventAuth {
			return nil, ErrAuthRequired
		}
		p, err := decodeAuth(frame.Data)
		if err != nil {
			return nil, err
		}
		token = p.Token
	}

	claims, err := security.Verify(s.jwtOpts, token)
	if err != nil {
		return nil, err
	}
	if storage.IsTokenRevoked(c.Request.Context(), security.HashToken(token)) {
		return nil, ErrAuthRequired
	}
	return claims, nil
}

// rejectAndClose sends the generic auth failure and closes. The reason is
// deliberately not disclosed to the client.
func (s *Server) rejectAndClose(ws *websocket.Conn) {
	if frame, err := MarshalFrame(EventConnectError, gin.H{"message": "Authentication error"}); err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	_ = ws.Close()
}

// readLoop consumes frames until the socket dies. Malformed frames and
// unknown events are logged and skipped; only read errors end the session.
func (s *Server) readLoop(conn *Conn, ws *websocket.Conn) {
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		s.markOnline(conn.UserID)
		return nil
	})

	for {
		msgType, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("[ws] conn=%s read error: %v", conn.ID, err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			logger.Warnf("[ws] conn=%s bad frame: %v", conn.ID, err)
			continue
		}
		s.dispatch(conn, frame)
	}
}

// dispatch routes one inbound frame. Errors never terminate the session.
func (s *Server) dispatch(conn *Conn, frame *Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch frame.Event {
	case EventJoinConversation:
		conversationID, err := decodeConversationID(frame.Data)
		if err != nil {
			logger.Warnf("[ws] conn=%s join-conversation: %v", conn.ID, err)
			return
		}
		if err := s.hub.JoinConversation(ctx, conn, conversationID); err != nil {
			logger.Warnf("[ws] conn=%s user=%s denied join to %s: %v", conn.ID, conn.UserID, conversationID, err)
		}

	case EventLeaveConversation:
		conversationID, err := decodeConversationID(frame.Data)
		if err != nil {
			logger.Warnf("[ws] conn=%s leave-conversation: %v", conn.ID, err)
			return
		}
		s.hub.LeaveConversation(conn, conversationID)

	case EventSendMessage:
		p, err := decodeSendMessage(frame.Data)
		if err != nil {
			logger.Warnf("[ws] conn=%s send-message: %v", conn.ID, err)
			return
		}
		s.hub.BroadcastMessage(conn, p.ConversationID, p.Message)

	case EventTyping:
		p, err := decodeTyping(frame.Data)
		if err != nil {
			logger.Warnf("[ws] conn=%s typing: %v", conn.ID, err)
			return
		}
		s.hub.BroadcastTyping(conn, p.ConversationID, p.IsTyping)

	default:
		logger.Debug("[ws] ignoring event " + frame.Event)
	}
}

func (s *Server) markOnline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := storage.PresenceOnline(ctx, userID, s.hub.NodeID(), presenceTTL); err != nil {
		logger.Debug("[ws] presence online skipped: " + err.Error())
	}
}

func (s *Server) markOffline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := storage.PresenceOffline(ctx, userID); err != nil {
		logger.Debug("[ws] presence offline skipped: " + err.Error())
	}
}
