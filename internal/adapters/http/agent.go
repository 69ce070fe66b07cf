package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/dkeye/Remote/internal/app"
	"github.com/dkeye/Remote/internal/app/control"
	"github.com/dkeye/Remote/internal/app/orch"
	"github.com/dkeye/Remote/internal/config"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ImplicitSessionParam addresses the session that has no id.
const ImplicitSessionParam = "-"

type AgentDeps struct {
	Registry *app.Registry
	// Viewer is nil on a host; viewer routes are not registered then.
	Viewer    *orch.Viewer
	LinkState func() string
}

// SetupAgentRouter builds the local control API of an agent.
func SetupAgentRouter(cfg *config.Config, d AgentDeps) *gin.Engine {
	r := newEngine(cfg)
	api := r.Group("/api")

	api.GET("/sessions", func(c *gin.Context) {
		resp := gin.H{"sessions": d.Registry.Snapshot()}
		if d.LinkState != nil {
			resp["link"] = d.LinkState()
		}
		c.JSON(http.StatusOK, resp)
	})

	if d.Viewer == nil {
		return r
	}
	v := d.Viewer

	api.POST("/cameras", sendOrFail(v.RequestCameras))
	api.POST("/screens", sendOrFail(v.RequestScreens))
	api.GET("/sources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"cameras": v.Cameras(), "screens": v.Screens()})
	})

	api.POST("/camera/start", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"deviceId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId required"})
			return
		}
		sendOrFail(func() error { return v.StartCamera(req.DeviceID) })(c)
	})
	api.POST("/camera/stop", sendOrFail(v.StopCamera))

	api.POST("/screen/start", func(c *gin.Context) {
		var req struct {
			ScreenID string `json:"screenId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "screenId required"})
			return
		}
		sendOrFail(func() error { return v.StartScreenShare(req.ScreenID) })(c)
	})
	api.POST("/screen/stop", sendOrFail(v.StopScreenShare))

	api.POST("/sessions/:id/command", func(c *gin.Context) {
		sid := sessionParam(c)
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		cmd, err := protocol.DecodeCommand(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := v.SendCommand(sid, cmd); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, control.ErrChannelNotOpen) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/sessions/:id/forward", func(c *gin.Context) {
		sid := sessionParam(c)
		c.JSON(http.StatusOK, gin.H{"session": sid.String(), "tracks": v.Forwarding(sid)})
	})
	api.POST("/sessions/:id/forward", func(c *gin.Context) {
		var req struct {
			Muted *bool `json:"muted" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "muted required"})
			return
		}
		forwardResult(c, v.SetForwardMuted(sessionParam(c), *req.Muted))
	})
	api.DELETE("/sessions/:id/forward", func(c *gin.Context) {
		forwardResult(c, v.StopForward(sessionParam(c)))
	})

	log.Info().Str("module", "adapters.http").Str("listen", cfg.Agent.Listen).Msg("agent router setup")
	return r
}

// sendOrFail maps a relay send to 202, or 503 while the link is down.
func sendOrFail(send func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := send(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func sessionParam(c *gin.Context) domain.SessionID {
	if c.Param("id") == ImplicitSessionParam {
		return domain.Implicit
	}
	return domain.Named(c.Param("id"))
}

func forwardResult(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, orch.ErrNotForwarding):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
