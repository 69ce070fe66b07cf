package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Remote/internal/adapters/http"
	"github.com/dkeye/Remote/internal/adapters/input"
	"github.com/dkeye/Remote/internal/adapters/link"
	"github.com/dkeye/Remote/internal/adapters/media"
	"github.com/dkeye/Remote/internal/adapters/rtc"
	"github.com/dkeye/Remote/internal/app"
	"github.com/dkeye/Remote/internal/app/control"
	"github.com/dkeye/Remote/internal/app/orch"
	"github.com/dkeye/Remote/internal/app/sfu"
	"github.com/dkeye/Remote/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	api, err := rtc.NewAPI(cfg.ICEPortMin, cfg.ICEPortMax)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc api")
	}

	relayLink := link.New(link.Options{
		ReconnectDelay: cfg.ReconnectDelay,
		PingPeriod:     cfg.PingPeriod,
		ReadLimit:      cfg.ReadLimit,
	})
	reg := app.NewRegistry(app.RegistryConfig{
		NewTransport:       rtc.NewFactory(api, rtc.DefaultWebRTCConfig(cfg.ICEServers)),
		Signal:             relayLink,
		NegotiationTimeout: cfg.NegotiationTimeout,
	})

	deps := router.AgentDeps{
		Registry:  reg,
		LinkState: func() string { return string(relayLink.State()) },
	}
	var shutdown func()
	switch cfg.Agent.Role {
	case "viewer":
		v := orch.NewViewer(ctx, reg, relayLink, sfu.NewRelayManager(), cfg.Viewer.ForwardAddr)
		relayLink.OnMessage(v.OnEnvelope)
		relayLink.OnStateChange(func(s link.State) {
			if s == link.StateConnected {
				// Fresh relay connection: refresh what the host offers.
				_ = v.RequestCameras()
				_ = v.RequestScreens()
			}
		})
		deps.Viewer = v
		shutdown = v.Close
	default:
		commands := control.NewRouter(input.NewLogInjector(), cfg.Control.RequireSharing)
		h := orch.NewHost(ctx, reg, media.NewStaticSource(cfg.Media), commands, relayLink)
		relayLink.OnMessage(h.OnEnvelope)
		shutdown = h.Close
	}

	relayLink.Connect(ctx, cfg.RelayURL)

	srv := &http.Server{
		Addr:    cfg.Agent.Listen,
		Handler: router.SetupAgentRouter(cfg, deps),
	}
	go func() {
		log.Info().Str("addr", cfg.Agent.Listen).Str("role", cfg.Agent.Role).Str("relay", cfg.RelayURL).Msg("Agent started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("agent api error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Agent API forced to shutdown")
	}
	shutdown()
	relayLink.Close()
	log.Info().Msg("Agent exited gracefully")
}
