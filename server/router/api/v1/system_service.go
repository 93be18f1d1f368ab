package v1

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/rish2jain/Incident-Commander-sub000/engine/breaker"
)

type SystemStatsResponse struct {
	Version                  string           `json:"version"`
	ActiveRuns               int              `json:"active_runs"`
	Total                    int64            `json:"total_incidents"`
	CountByStatus            map[string]int64 `json:"count_by_status"`
	MeanTimeToResolveSeconds float64          `json:"mttr_seconds"`
}

// GetBreakers GET /api/v1/system/breakers
//
// Snapshot of every circuit breaker that has seen at least one call.
func (s *APIV1Service) GetBreakers(c echo.Context) error {
	snapshot := s.Breakers.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Key < snapshot[j].Key })

	if s.Metrics != nil {
		for _, status := range snapshot {
			s.Metrics.SetBreakerState(status.Key, string(status.State))
		}
	}
	return c.JSON(http.StatusOK, map[string][]breaker.Status{"breakers": snapshot})
}

// GetStats GET /api/v1/system/stats
func (s *APIV1Service) GetStats(c echo.Context) error {
	stats, err := s.Store.GetIncidentStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get incident stats").SetInternal(err)
	}

	countByStatus := make(map[string]int64, len(stats.CountByStatus))
	for status, count := range stats.CountByStatus {
		countByStatus[string(status)] = count
	}
	return c.JSON(http.StatusOK, &SystemStatsResponse{
		Version:                  s.Profile.Version,
		ActiveRuns:               s.Orchestrator.ActiveCount(),
		Total:                    stats.Total,
		CountByStatus:            countByStatus,
		MeanTimeToResolveSeconds: stats.MeanTimeToResolveSeconds,
	})
}
