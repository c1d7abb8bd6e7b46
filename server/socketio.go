package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"

	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/network"
	"github.com/wtfashwin/Quiz-App/router"
	"github.com/wtfashwin/Quiz-App/session"
)

// socket.io transport for the browser client. Each client event name maps
// one-to-one onto a router event.
var socketIOEvents = []string{
	network.EventAuthenticate,
	network.EventCreateRoom,
	network.EventJoinRoom,
	network.EventLeaveRoom,
	network.EventStartGame,
	network.EventSubmitAnswer,
	network.EventGetRooms,
	network.EventGetRoom,
	network.EventSendMessage,
}

type socketIO struct {
	router    *router.Router
	server    *socket.Server
	options   *socket.ServerOptions
	queueSize int
}

func newSocketIO(r *router.Router, origins []string, queueSize int) *socketIO {
	c := socket.DefaultServerOptions()
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(3 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	c.SetCors(&types.Cors{
		Origin:      corsOrigin(origins),
		Credentials: !allowsAny(origins),
	})

	sio := &socketIO{
		router:    r,
		server:    socket.NewServer(nil, nil),
		options:   c,
		queueSize: queueSize,
	}
	sio.server.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		sio.handleClient(client)
	})
	return sio
}

func (sio *socketIO) handleClient(client *socket.Socket) {
	sess := session.NewSession(network.NewSIOConnection(client, sio.queueSize))
	sio.router.Connect(sess)

	for _, event := range socketIOEvents {
		event := event
		client.On(event, func(args ...any) {
			data, err := network.DecodeArgs(args)
			if err != nil {
				sio.router.Reject(sess, err)
				return
			}
			sio.router.Dispatch(context.Background(), sess, &network.Inbound{Event: event, Data: data})
		})
	}

	client.On("disconnect", func(args ...any) {
		logger.Log.Debugw("socket.io client disconnected", "session", sess.ID, "reason", args)
		sio.router.Disconnect(sess)
	})
}

func (sio *socketIO) mount(engine *gin.Engine) {
	h := gin.WrapH(sio.server.ServeHandler(sio.options))
	engine.GET("/socket.io/*f", h)
	engine.POST("/socket.io/*f", h)
}

func (sio *socketIO) close() {
	sio.server.Close(nil)
}

func corsOrigin(origins []string) any {
	if allowsAny(origins) {
		return "*"
	}
	if len(origins) == 1 {
		return origins[0]
	}
	out := make([]any, len(origins))
	for i, o := range origins {
		out[i] = o
	}
	return out
}
