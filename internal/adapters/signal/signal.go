package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Remote/internal/app/orch"
	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrConnClosed = errors.New("connection closed")

const writeWait = 5 * time.Second

// SignalWSController serves relay websocket connections.
type SignalWSController struct {
	Orch       *orch.Orchestrator
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func NewSignalWSController(o *orch.Orchestrator, readLimit int64, pingPeriod time.Duration, sendBuffer int) *SignalWSController {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &SignalWSController{
		Orch:       o,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		SendBuffer: sendBuffer,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// upgradeHeader carries cookies set by earlier middleware into the 101
// response; Upgrade writes its own headers and drops the writer's.
func upgradeHeader(h http.Header) http.Header {
	cookies := h.Values("Set-Cookie")
	if len(cookies) == 0 {
		return nil
	}
	return http.Header{"Set-Cookie": cookies}
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	peer, err := domain.NewPeer(c.Request.RemoteAddr, token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("client token rejected")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, upgradeHeader(c.Writer.Header()))
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("peer", string(peer.ID)).Str("remote", peer.RemoteAddr).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.SendBuffer),
	}
	ctl.Orch.Join(core.NewPeerSession(peer, conn))

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, peer.ID, conn)
	go ctl.readPump(ctx, cancel, peer.ID, conn)
}
