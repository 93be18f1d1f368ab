// Package v1 implements the JSON API surface of the incident commander.
package v1

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rish2jain/Incident-Commander-sub000/engine/breaker"
	"github.com/rish2jain/Incident-Commander-sub000/engine/metrics"
	"github.com/rish2jain/Incident-Commander-sub000/engine/orchestrator"
	"github.com/rish2jain/Incident-Commander-sub000/engine/publish"
	"github.com/rish2jain/Incident-Commander-sub000/internal/profile"
	"github.com/rish2jain/Incident-Commander-sub000/store"
)

type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Breakers     *breaker.Registry
	Hub          *publish.Hub
	Metrics      *metrics.Exporter
}

func NewAPIV1Service(
	profile *profile.Profile,
	store *store.Store,
	orchestrator *orchestrator.Orchestrator,
	breakers *breaker.Registry,
	hub *publish.Hub,
	exporter *metrics.Exporter,
) *APIV1Service {
	return &APIV1Service{
		Profile:      profile,
		Store:        store,
		Orchestrator: orchestrator,
		Breakers:     breakers,
		Hub:          hub,
		Metrics:      exporter,
	}
}

// RegisterRoutes wires the API routes onto the Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	apiGroup := echoServer.Group("/api/v1")
	apiGroup.Use(middleware.CORS())

	apiGroup.POST("/incidents", s.CreateIncident)
	apiGroup.GET("/incidents", s.ListIncidents)
	apiGroup.GET("/incidents/:uid", s.GetIncident)
	apiGroup.GET("/incidents/:uid/events", s.ListIncidentEvents)
	apiGroup.POST("/incidents/:uid/cancel", s.CancelIncident)
	apiGroup.GET("/incidents/feed", s.StreamIncidentFeed)

	systemGroup := echoServer.Group("/api/v1/system")
	systemGroup.Use(middleware.CORS())
	systemGroup.GET("/breakers", s.GetBreakers)
	systemGroup.GET("/stats", s.GetStats)

	if s.Metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}
}
