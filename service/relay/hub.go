package relay

import (
	"context"
	"sync"

	"PChat/logger"
	"PChat/tools/errs"
)

// ErrNotMember is returned when a connection asks to join a conversation its
// user does not belong to.
var ErrNotMember = errs.New("not a member of conversation")

// ErrAuthRequired is returned when the handshake does not produce a usable
// token.
var ErrAuthRequired = errs.New("authentication required")

// Membership answers whether a user belongs to a conversation. The hub
// re-checks it on every join-conversation, so a removed member cannot rejoin
// a room with a socket that is still alive.
type Membership interface {
	IsMember(ctx context.Context, userID, conversationID string) (bool, error)
}

// MembershipFunc adapts a plain function to the Membership interface.
type MembershipFunc func(ctx context.Context, userID, conversationID string) (bool, error)

func (f MembershipFunc) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	return f(ctx, userID, conversationID)
}

// publisher forwards room broadcasts to peer relay nodes (NATS bridge).
type publisher interface {
	PublishBroadcast(room string, frame []byte)
}

// Hub owns the room table: room key -> subscribed connections. Room keys are
// either user IDs (personal rooms, auto-joined at handshake) or conversation
// IDs (joined while a chat screen is open). Only the hub mutates the table.
type Hub struct {
	nodeID     string
	membership Membership

	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[string]*Conn // room key -> connID -> conn

	pub publisher
}

func NewHub(nodeID string, membership Membership) *Hub {
	return &Hub{
		nodeID:     nodeID,
		membership: membership,
		conns:      make(map[string]*Conn),
		rooms:      make(map[string]map[string]*Conn),
	}
}

// SetPublisher attaches the cross-node bridge. Call before serving traffic.
func (h *Hub) SetPublisher(p publisher) {
	h.pub = p
}

func (h *Hub) NodeID() string { return h.nodeID }

// Register records an authenticated connection, subscribes it to its
// personal room and starts its writer. Exactly once per connection,
// before any event is processed.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.joinLocked(c.UserID, c)
	h.mu.Unlock()

	go c.writePump()
	logger.Infof("[hub] conn=%s user=%s registered", c.ID, c.UserID)
}

// Unregister drops the connection from every room and closes it. Safe to
// call more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; ok {
		delete(h.conns, c.ID)
		for key, members := range h.rooms {
			if _, in := members[c.ID]; in {
				delete(members, c.ID)
				if len(members) == 0 {
					delete(h.rooms, key)
				}
			}
		}
		logger.Infof("[hub] conn=%s user=%s unregistered", c.ID, c.UserID)
	}
	h.mu.Unlock()

	c.close()
}

// JoinConversation subscribes the connection to a conversation room after
// re-validating membership.
func (h *Hub) JoinConversation(ctx context.Context, c *Conn, conversationID string) error {
	if h.membership != nil {
		ok, err := h.membership.IsMember(ctx, c.UserID, conversationID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotMember
		}
	}

	h.mu.Lock()
	if _, registered := h.conns[c.ID]; registered {
		h.joinLocked(conversationID, c)
	}
	h.mu.Unlock()
	return nil
}

// LeaveConversation unsubscribes the connection. No-op if not subscribed.
func (h *Hub) LeaveConversation(c *Conn, conversationID string) {
	h.mu.Lock()
	if members, ok := h.rooms[conversationID]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	h.mu.Unlock()
}

// BroadcastMessage relays an already-persisted message, unmodified, to every
// connection in the conversation room (the sender's included). The sender
// must itself be subscribed; joining is where membership was proven, so an
// unsubscribed sender cannot inject frames into a room.
func (h *Hub) BroadcastMessage(c *Conn, conversationID string, message any) {
	if !h.inRoom(c.ID, conversationID) {
		logger.Warnf("[hub] conn=%s user=%s sent to room %s without joining", c.ID, c.UserID, conversationID)
		return
	}
	frame, err := MarshalFrame(EventNewMessage, message)
	if err != nil {
		logger.Errorf("[hub] marshal new-message: %v", err)
		return
	}
	h.deliver(conversationID, frame, "")
	h.publish(conversationID, frame)
}

// BroadcastTyping tells every OTHER member of the room that the sender is
// (or stopped) typing. Same subscription rule as BroadcastMessage.
func (h *Hub) BroadcastTyping(c *Conn, conversationID string, isTyping bool) {
	if !h.inRoom(c.ID, conversationID) {
		logger.Warnf("[hub] conn=%s user=%s typed in room %s without joining", c.ID, c.UserID, conversationID)
		return
	}
	frame, err := MarshalFrame(EventUserTyping, UserTypingPayload{
		UserID:         c.UserID,
		UserName:       c.UserName,
		IsTyping:       isTyping,
		ConversationID: conversationID,
	})
	if err != nil {
		logger.Errorf("[hub] marshal user-typing: %v", err)
		return
	}
	h.deliver(conversationID, frame, c.ID)
	h.publish(conversationID, frame)
}

// NotifyUser pushes an out-of-band event to every connection in the user's
// personal room, whatever screen those connections are looking at.
func (h *Hub) NotifyUser(userID, event string, data any) {
	frame, err := MarshalFrame(event, data)
	if err != nil {
		logger.Errorf("[hub] marshal %s: %v", event, err)
		return
	}
	h.deliver(userID, frame, "")
	h.publish(userID, frame)
}

// DeliverLocal injects a frame arriving from a peer node into the local
// members of a room.
func (h *Hub) DeliverLocal(room string, frame []byte) {
	h.deliver(room, frame, "")
}

// deliver fans a frame out to the room, skipping exceptConnID. Membership is
// snapshotted under the lock; the actual writes go through each connection's
// own bounded queue so one slow member cannot block the rest. A member whose
// queue is full is dropped.
func (h *Hub) deliver(room string, frame []byte, exceptConnID string) {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Conn, 0, len(members))
	for id, c := range members {
		if id == exceptConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var overflowed []*Conn
	for _, c := range targets {
		if !c.enqueue(frame) {
			overflowed = append(overflowed, c)
		}
	}
	for _, c := range overflowed {
		logger.Warnf("[hub] conn=%s user=%s send queue full, dropping connection", c.ID, c.UserID)
		h.Unregister(c)
	}
}

func (h *Hub) inRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

func (h *Hub) publish(room string, frame []byte) {
	if h.pub != nil {
		h.pub.PublishBroadcast(room, frame)
	}
}

// joinLocked must be called with the table lock held, on a registered conn.
func (h *Hub) joinLocked(room string, c *Conn) {
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}
	members[c.ID] = c
}

// RoomSize reports current local membership of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ConnCount reports the number of live local connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
