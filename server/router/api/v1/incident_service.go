package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rish2jain/Incident-Commander-sub000/engine/orchestrator"
	"github.com/rish2jain/Incident-Commander-sub000/store"
)

// defaultPageSize bounds list responses when the client does not ask for a
// specific page size.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type CreateIncidentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Severity    string `json:"severity"`
}

type IncidentResponse struct {
	UID           string `json:"uid"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Source        string `json:"source,omitempty"`
	Fingerprint   string `json:"fingerprint"`
	Status        string `json:"status"`
	Severity      string `json:"severity"`
	ErrorKind     string `json:"error_kind,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedTs     int64  `json:"created_ts"`
	UpdatedTs     int64  `json:"updated_ts"`
	ResolvedTs    int64  `json:"resolved_ts,omitempty"`
	EventCount    int64  `json:"event_count"`
}

type ListIncidentsResponse struct {
	Incidents []*IncidentResponse `json:"incidents"`
	Total     int                 `json:"total"`
}

type IncidentEventResponse struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash,omitempty"`
	Hash      string          `json:"hash"`
	CreatedTs int64           `json:"created_ts"`
}

type ListIncidentEventsResponse struct {
	Events        []*IncidentEventResponse `json:"events"`
	ChainVerified bool                     `json:"chain_verified"`
}

type CancelIncidentRequest struct {
	Reason string `json:"reason"`
}

func convertIncident(incident *store.Incident) *IncidentResponse {
	return &IncidentResponse{
		UID:           incident.UID,
		Title:         incident.Title,
		Description:   incident.Description,
		Source:        incident.Source,
		Fingerprint:   incident.Fingerprint,
		Status:        string(incident.Status),
		Severity:      string(incident.Severity),
		ErrorKind:     string(incident.ErrorKind),
		FailureReason: incident.FailureReason,
		CreatedTs:     incident.CreatedTs,
		UpdatedTs:     incident.UpdatedTs,
		ResolvedTs:    incident.ResolvedTs,
		EventCount:    incident.EventCount,
	}
}

// CreateIncident POST /api/v1/incidents
func (s *APIV1Service) CreateIncident(c echo.Context) error {
	request := &CreateIncidentRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if request.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	incident, err := s.Orchestrator.HandleIncident(c.Request().Context(), &orchestrator.Signal{
		Title:       request.Title,
		Description: request.Description,
		Source:      request.Source,
		Severity:    store.IncidentSeverity(request.Severity),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusCreated, convertIncident(incident))
}

// GetIncident GET /api/v1/incidents/:uid
func (s *APIV1Service) GetIncident(c echo.Context) error {
	uid := c.Param("uid")
	incident, err := s.Store.GetIncident(c.Request().Context(), &store.FindIncident{UID: &uid})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get incident").SetInternal(err)
	}
	if incident == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("incident %s not found", uid))
	}
	return c.JSON(http.StatusOK, convertIncident(incident))
}

// ListIncidents GET /api/v1/incidents
//
// Query parameters: filter (CEL expression over status and severity),
// active (true restricts to non-terminal incidents), orderBy
// (detect_time, severity, duration), desc, limit, offset.
func (s *APIV1Service) ListIncidents(c echo.Context) error {
	find := &store.FindIncident{}

	if err := applyListFilter(c.QueryParam("filter"), find); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	if c.QueryParam("active") == "true" {
		find.ActiveOnly = true
	}

	switch order := c.QueryParam("orderBy"); order {
	case "", string(store.OrderByDetectTime):
		find.OrderBy = store.OrderByDetectTime
	case string(store.OrderBySeverity):
		find.OrderBy = store.OrderBySeverity
	case string(store.OrderByDuration):
		find.OrderBy = store.OrderByDuration
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unsupported orderBy %q", order))
	}
	find.Desc = c.QueryParam("desc") != "false"

	limit := defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, maxPageSize)
	}
	find.Limit = &limit
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		find.Offset = &parsed
	}

	incidents, err := s.Store.ListIncidents(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list incidents").SetInternal(err)
	}

	response := &ListIncidentsResponse{
		Incidents: make([]*IncidentResponse, 0, len(incidents)),
		Total:     len(incidents),
	}
	for _, incident := range incidents {
		response.Incidents = append(response.Incidents, convertIncident(incident))
	}
	return c.JSON(http.StatusOK, response)
}

// ListIncidentEvents GET /api/v1/incidents/:uid/events
//
// Returns the full audit log in sequence order, with the hash chain verified
// on every read. afterSeq resumes a replay from an arbitrary point; chain
// verification is only meaningful for full replays.
func (s *APIV1Service) ListIncidentEvents(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")
	incident, err := s.Store.GetIncident(ctx, &store.FindIncident{UID: &uid})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get incident").SetInternal(err)
	}
	if incident == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("incident %s not found", uid))
	}

	find := &store.FindIncidentEvent{IncidentID: incident.ID}
	if raw := c.QueryParam("afterSeq"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "afterSeq must be a non-negative integer")
		}
		find.AfterSeq = parsed
	}

	events, err := s.Store.ListIncidentEvents(ctx, find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list events").SetInternal(err)
	}

	response := &ListIncidentEventsResponse{
		Events: make([]*IncidentEventResponse, 0, len(events)),
	}
	if find.AfterSeq == 0 {
		response.ChainVerified = store.VerifyChain(events) == nil
	}
	for _, event := range events {
		response.Events = append(response.Events, &IncidentEventResponse{
			Seq:       event.Seq,
			Type:      string(event.Type),
			Payload:   json.RawMessage(event.Payload),
			PrevHash:  event.PrevHash,
			Hash:      event.Hash,
			CreatedTs: event.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, response)
}

// CancelIncident POST /api/v1/incidents/:uid/cancel
func (s *APIV1Service) CancelIncident(c echo.Context) error {
	uid := c.Param("uid")
	request := &CancelIncidentRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}

	incident, err := s.Orchestrator.Cancel(c.Request().Context(), uid, request.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
	}
	if incident == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("incident %s not found", uid))
	}
	return c.JSON(http.StatusOK, convertIncident(incident))
}

// StreamIncidentFeed GET /api/v1/incidents/feed
//
// Server-sent events stream of committed lifecycle transitions across all
// incidents. Best-effort: a slow consumer loses the oldest updates.
func (s *APIV1Service) StreamIncidentFeed(c echo.Context) error {
	response := c.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set(echo.HeaderCacheControl, "no-cache")
	response.Header().Set(echo.HeaderConnection, "keep-alive")
	response.WriteHeader(http.StatusOK)
	response.Flush()

	updates, cancel := s.Hub.Subscribe()
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(response, "data: %s\n\n", data); err != nil {
				return nil
			}
			response.Flush()
		}
	}
}
