// Package server assembles the orchestration engine and serves the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/rish2jain/Incident-Commander-sub000/engine/agents"
	"github.com/rish2jain/Incident-Commander-sub000/engine/breaker"
	"github.com/rish2jain/Incident-Commander-sub000/engine/consensus"
	"github.com/rish2jain/Incident-Commander-sub000/engine/metrics"
	"github.com/rish2jain/Incident-Commander-sub000/engine/orchestrator"
	"github.com/rish2jain/Incident-Commander-sub000/engine/publish"
	"github.com/rish2jain/Incident-Commander-sub000/engine/reasoning"
	"github.com/rish2jain/Incident-Commander-sub000/internal/profile"
	"github.com/rish2jain/Incident-Commander-sub000/plugin/notify"
	apiv1 "github.com/rish2jain/Incident-Commander-sub000/server/router/api/v1"
	"github.com/rish2jain/Incident-Commander-sub000/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer   *echo.Echo
	orchestrator *orchestrator.Orchestrator
	breakers     *breaker.Registry
	hub          *publish.Hub
}

// NewServer wires the full engine: reasoning backend, agents, consensus,
// breakers, publisher hub, metrics and the API surface.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true

	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Status >= 400 {
				slog.Warn("server: request failed", "uri", v.URI, "status", v.Status)
			}
			return nil
		},
	}))
	echoServer.Use(middleware.Recover())

	backend := newReasoningBackend(profile)
	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: profile.Engine.BreakerFailureThreshold,
		FailureRate:      profile.Engine.BreakerFailureRate,
		MinSamples:       breaker.DefaultConfig().MinSamples,
		Window:           profile.Engine.BreakerWindow,
		Cooldown:         profile.Engine.BreakerCooldown,
	})
	consensusEngine := consensus.New(consensus.Config{
		AgreementThreshold: profile.Engine.AgreementThreshold,
		OutlierThreshold:   profile.Engine.OutlierThreshold,
		MaxRounds:          profile.Engine.MaxRounds,
	})
	exporter := metrics.NewExporter(metrics.DefaultConfig())
	store.SetAppendConflictHook(exporter.RecordAppendConflict)

	hub := publish.NewHub()
	var publisher publish.Publisher = hub
	if profile.IsDev() {
		publisher = publish.FanOut{hub, publish.Log{}}
	}

	var notifier notify.Notifier = notify.NewSlog()
	if profile.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(profile.NotifyWebhookURL, profile.NotifyRatePerSec)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Config: orchestrator.Config{
			DetectionTimeout:       profile.Engine.DetectionTimeout,
			FanOutTimeout:          profile.Engine.FanOutTimeout,
			ResolutionTimeout:      profile.Engine.ResolutionTimeout,
			CommunicationTimeout:   profile.Engine.CommunicationTimeout,
			MaxConcurrentIncidents: profile.Engine.MaxConcurrentIncidents,
		},
		Store:     store,
		Agents:    agents.DefaultSet(backend),
		Consensus: consensusEngine,
		Breakers:  breakers,
		Notifier:  notifier,
		Publisher: publisher,
		Metrics:   exporter,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create orchestrator")
	}

	s := &Server{
		Profile:      profile,
		Store:        store,
		echoServer:   echoServer,
		orchestrator: orch,
		breakers:     breakers,
		hub:          hub,
	}

	apiService := apiv1.NewAPIV1Service(profile, store, orch, breakers, hub, exporter)
	apiService.RegisterRoutes(echoServer)

	return s, nil
}

// newReasoningBackend picks the LLM backend when configured, otherwise the
// deterministic heuristic used by demo and dev modes.
func newReasoningBackend(profile *profile.Profile) reasoning.Service {
	if !profile.IsReasoningEnabled() {
		slog.Info("server: reasoning backend disabled, using heuristics")
		return reasoning.NewHeuristic()
	}
	backend, err := reasoning.NewOpenAI(reasoning.OpenAIConfig{
		APIKey:  profile.ReasonAPIKey,
		BaseURL: profile.ReasonBaseURL,
		Model:   profile.ReasonModel,
		Timeout: profile.ReasonTimeout,
	})
	if err != nil {
		slog.Warn("server: failed to initialize reasoning backend, falling back to heuristics", "error", err)
		return reasoning.NewHeuristic()
	}
	slog.Info("server: reasoning backend initialized",
		"provider", profile.ReasonProvider,
		"model", profile.ReasonModel)
	return backend
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)

	if s.Profile.UNIXSock != "" {
		// Remove the stale socket left by an unclean shutdown.
		if err := os.Remove(s.Profile.UNIXSock); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to remove stale unix socket")
		}
		listener, err := net.Listen("unix", s.Profile.UNIXSock)
		if err != nil {
			return errors.Wrap(err, "failed to listen on unix socket")
		}
		s.echoServer.Listener = listener
		address = s.Profile.UNIXSock
	}

	go func() {
		var err error
		if s.Profile.UNIXSock != "" {
			err = s.echoServer.Start("")
		} else {
			err = s.echoServer.Start(address)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server: failed to serve", "error", err)
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop accepting new requests before draining in-flight incident runs.
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("server: failed to shutdown http server", "error", err)
	}
	if err := s.orchestrator.Shutdown(ctx); err != nil {
		slog.Warn("server: incident runs still in flight at shutdown", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("server: failed to close store", "error", err)
	}

	slog.Info("server: shutdown complete")
}

// GetEcho exposes the underlying Echo instance for tests.
func (s *Server) GetEcho() *echo.Echo {
	return s.echoServer
}
