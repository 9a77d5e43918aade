package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/devkiraa/Hang/internal/app/orch"
	"github.com/devkiraa/Hang/internal/config"
	"github.com/devkiraa/Hang/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Settings struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Limiter  *RoomRateLimiter
	settings Settings
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RoomRateLimiter, settings Settings) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		Limiter:  limiter,
		settings: settings,
	}
}

// WsSignalConn owns the socket. Close is safe from any goroutine.
type WsSignalConn struct {
	conn *websocket.Conn
	once sync.Once
}

func (c *WsSignalConn) Close() {
	c.once.Do(func() { _ = c.conn.Close() })
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RateKey picks what join attempts are counted against. A token minted on
// this very request means the client sent no cookie, so its address is used.
func RateKey(c *gin.Context) string {
	if token := c.GetString("client_token"); token != "" && !c.GetBool("client_token_fresh") {
		return "token:" + token
	}
	return "ip:" + c.ClientIP()
}

// HandleSignal upgrades the request and serves the connection until either
// side goes away. Every socket gets its own session id.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	rateKey := RateKey(c)
	sid := core.SessionID(uuid.NewString())

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := &WsSignalConn{conn: ws}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("remote", c.ClientIP()).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, conn.Close)
	defer stop()

	outbox, err := ctl.Orch.Connect(sid, func() {
		cancel()
		conn.Close()
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("register connection")
		conn.Close()
		return
	}

	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, sid, conn, outbox) })
	ctl.readPump(sid, rateKey, conn)

	// closes the outbox; the write pump flushes what is left and exits
	ctl.Orch.OnDisconnect(sid)
	wg.Wait()
	conn.Close()
}
