// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/room"
	"github.com/wtfashwin/Quiz-App/session"
)

// DropCounter is notified when a message could not be queued for a member.
type DropCounter interface {
	IncDeliveriesDropped()
}

// 广播接口
type Broadcaster interface {
	BroadcastToMembers(members []room.Member, event string, payload any) error
	BroadcastToAll(event string, payload any) error
	SendTo(member room.Member, event string, payload any) error
}

// RoomBroadcaster encodes each payload once and queues it on every
// recipient. Sends never block: a full or closed connection drops the
// message for that recipient only.
type RoomBroadcaster struct {
	sessionManager *session.Manager
	drops          DropCounter
}

func NewRoomBroadcaster(sessionManager *session.Manager, drops DropCounter) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
		drops:          drops,
	}
}

func (b *RoomBroadcaster) BroadcastToMembers(members []room.Member, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	for _, m := range members {
		b.deliver(m, event, data)
	}
	return nil
}

// BroadcastToAll 发送给所有在线连接，不论是否在房间里
func (b *RoomBroadcaster) BroadcastToAll(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	for _, s := range b.sessionManager.All() {
		b.deliver(s, event, data)
	}
	return nil
}

func (b *RoomBroadcaster) SendTo(member room.Member, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.deliver(member, event, data)
}

func (b *RoomBroadcaster) deliver(m room.Member, event string, data []byte) error {
	if err := m.Send(event, data); err != nil {
		logger.Log.Warnw("delivery dropped", "member", m.GetID(), "event", event, "error", err)
		if b.drops != nil {
			b.drops.IncDeliveriesDropped()
		}
		return err
	}
	return nil
}
