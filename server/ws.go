package server

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/network"
	"github.com/wtfashwin/Quiz-App/session"
)

func (s *GameServer) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

// handleConnection 读循环：每个连接一个 goroutine，事件按到达顺序交给 router
func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn, s.game.SendQueueSize, s.cfg.Heartbeat)
	sess := session.NewSession(wsConn)
	s.router.Connect(sess)

	defer func() {
		s.router.Disconnect(sess)
		wsConn.Close()
	}()

	for {
		in, err := wsConn.ReadInbound()
		if err != nil {
			if errors.Is(err, network.ErrMalformedFrame) {
				s.router.Reject(sess, err)
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debugw("websocket read failed", "session", sess.ID, "error", err)
			}
			return
		}
		s.router.Dispatch(context.Background(), sess, in)
		if in.Event == network.EventDisconnect {
			return
		}
	}
}
