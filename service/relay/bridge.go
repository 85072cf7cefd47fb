package relay

import (
	"encoding/json"

	"PChat/logger"
	"PChat/service/natsx"
)

const (
	bizRoomBroadcast     = "relay.room.bcast"
	subjectRoomBroadcast = "chat.room.bcast"
)

// bridgeEnvelope wraps a frame for cross-node transport. Node lets the
// origin skip its own echo; local members already got the frame directly.
type bridgeEnvelope struct {
	Node  string          `json:"node"`
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// Bridge fans room broadcasts out to peer relay nodes over NATS, so two
// members of one conversation can sit on different nodes.
type Bridge struct {
	hub *Hub
	mgr *natsx.Manager
}

// NewBridge wires the hub to NATS. After it returns, local broadcasts are
// mirrored to peers and peer broadcasts are replayed locally.
func NewBridge(hub *Hub, mgr *natsx.Manager) (*Bridge, error) {
	b := &Bridge{hub: hub, mgr: mgr}
	if err := mgr.RegisterRoute(bizRoomBroadcast, subjectRoomBroadcast); err != nil {
		return nil, err
	}
	if err := mgr.Subscribe(bizRoomBroadcast, b.onMessage); err != nil {
		return nil, err
	}
	hub.SetPublisher(b)
	return b, nil
}

// PublishBroadcast mirrors a local room broadcast to peer nodes. Best
// effort; local delivery already happened.
func (b *Bridge) PublishBroadcast(room string, frame []byte) {
	env := bridgeEnvelope{Node: b.hub.NodeID(), Room: room, Frame: frame}
	data, err := json.Marshal(env)
	if err != nil {
		logger.Errorf("[bridge] marshal envelope: %v", err)
		return
	}
	if err := b.mgr.Publish(bizRoomBroadcast, data); err != nil {
		logger.Warnf("[bridge] publish room=%s: %v", room, err)
	}
}

func (b *Bridge) onMessage(subject string, data []byte) {
	var env bridgeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warnf("[bridge] bad envelope on %s: %v", subject, err)
		return
	}
	if env.Node == b.hub.NodeID() {
		return
	}
	b.hub.DeliverLocal(env.Room, env.Frame)
}
