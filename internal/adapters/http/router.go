package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Remote/internal/adapters/signal"
	"github.com/dkeye/Remote/internal/app/orch"
	"github.com/dkeye/Remote/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware keeps a stable token per browser in the cookie
// session and exposes it as "client_token".
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func newEngine(cfg *config.Config) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

// SetupRouter builds the relay: a websocket endpoint at / and /ws and a
// small read-only API over the connection set.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	r := newEngine(cfg)

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RemoteSessions", store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.PingPeriod, cfg.SendBuffer)
	ws := func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	}

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ws(c)
			return
		}
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/ws", ws)

	api := r.Group("/api")
	api.GET("/peers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"count": o.Hub.PeerCount(),
			"peers": o.Hub.PeersSnapshot(),
		})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("relay router setup")
	return r
}
