package notifyhub

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

var upgrader = websocket.Upgrader{
	// the route sits behind OnlyAllowLocal
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleNotifyWS streams attempt updates to a local UI. On connect the client
// receives the current state of every running attempt from running.
// GET /api/self/v1/notify-ws
func HandleNotifyWS(hub *Hub, running func() []types.AttemptSnapshot) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			tool.DefaultLogger.Debugf("[NotifyHub] Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		if err := hub.Attach(conn, running); err != nil {
			tool.DefaultLogger.Debugf("[NotifyHub] Replay to new client failed: %v", err)
			return
		}
		defer hub.Unregister(conn)
		tool.DefaultLogger.Debugf("[NotifyHub] UI client connected (%d listening)", hub.Len())

		// the UI never writes; reading surfaces its close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
