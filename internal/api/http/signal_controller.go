package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/service"
	"github.com/immxrtalbeast/ringcall/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

const (
	maxFrameSize = 64 * 1024
	writeTimeout = 10 * time.Second
)

type SignalController struct {
	relay      service.RelayInteractor
	iceServers []webrtc.ICEServer
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewSignalController(relay service.RelayInteractor, iceServers []webrtc.ICEServer, log *slog.Logger) *SignalController {
	if log == nil {
		log = slog.Default()
	}
	return &SignalController{
		relay:      relay,
		iceServers: iceServers,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// WebRTCConfig hands the ICE servers to browsers before they build their
// peer connections.
func (c *SignalController) WebRTCConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"iceServers": c.iceServers})
}

// Serve upgrades the request and runs the read loop until the socket
// closes. Frames are handed to the relay one at a time.
func (c *SignalController) Serve(ctx *gin.Context) {
	const op = "http.signal.serve"

	ws, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", slog.String("op", op), sl.Err(err))
		return
	}
	defer ws.Close()

	conn := c.relay.Connect()
	done := make(chan struct{})
	go c.forwardConnectionEvents(ws, conn, done)

	ws.SetReadLimit(maxFrameSize)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug("signal socket closed", slog.String("op", op), sl.Err(err))
			}
			break
		}
		c.relay.HandleMessage(context.Background(), conn, data)
	}

	c.relay.Disconnect(context.Background(), conn)
	<-done
}

func (c *SignalController) forwardConnectionEvents(ws *websocket.Conn, conn *domain.Connection, done chan<- struct{}) {
	defer close(done)

	for msg := range conn.Events {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteJSON(msg); err != nil {
			c.log.Debug("failed to write signal message", slog.String("conn_id", conn.ID), sl.Err(err))
			_ = ws.Close()
			for range conn.Events {
			}
			return
		}
	}
}
