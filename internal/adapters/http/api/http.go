// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/klynaa/internal/app"
	"github.com/okian/klynaa/internal/domain/apierror"
	"github.com/okian/klynaa/internal/domain/executor"
	"github.com/okian/klynaa/internal/domain/model"
	"github.com/okian/klynaa/pkg/logger"
)

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	ReadingSubmitter
	ViewProvider
	PickupAccepter
	StatsProvider
}

// Server wires HTTP routes for the gateway API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	readingsHandler *ReadingsHandler
	viewsHandler    *ViewsHandler
	pickupsHandler  *PickupsHandler
	log             logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		readingsHandler: NewReadingsHandler(deps),
		viewsHandler:    NewViewsHandler(deps),
		pickupsHandler:  NewPickupsHandler(deps),
		log:             log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(LoggingMiddleware(h, s.log), endpoint)))
	}
	handle("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	handle("GET /stats", "stats", s.statsHandler.HandleStats)
	handle("POST /readings", "readings", s.readingsHandler.HandlePostReading)
	handle("GET /bins/attention", "attention", s.viewsHandler.HandleAttention)
	handle("GET /pickups/available", "available", s.viewsHandler.HandleAvailable)
	handle("POST /refresh", "refresh", s.viewsHandler.HandleRefresh)
	handle("POST /pickups/{id}/accept", "accept", s.pickupsHandler.HandleAccept)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// viewsResponse is the body of POST /refresh.
type viewsResponse struct {
	Attention executor.State[[]model.Bin]    `json:"attention"`
	Available executor.State[[]model.Pickup] `json:"available"`
	Error     *apierror.Error                `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as an apierror body. The status comes from err
// unless the error is one of the service sentinels.
func writeError(w http.ResponseWriter, err error) {
	e := apierror.Normalize(err)
	switch {
	case errors.Is(err, service.ErrNotStarted):
		e = apierror.Wrap(http.StatusServiceUnavailable, e.Message, err)
	case errors.Is(err, service.ErrBackpressure):
		e = apierror.Wrap(http.StatusTooManyRequests, e.Message, err)
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidReading):
		e = apierror.Wrap(http.StatusBadRequest, e.Message, err)
	}
	writeJSON(w, e.Status, e)
}
