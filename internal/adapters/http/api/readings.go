package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/klynaa/internal/app"
	"github.com/okian/klynaa/internal/domain/model"
)

// maxReadingBody bounds the size of a POST /readings body.
const maxReadingBody = 64 << 10

// ReadingSubmitter accepts sensor readings.
type ReadingSubmitter interface {
	Submit(ctx context.Context, r model.FillReading) (service.Outcome, error)
}

// ReadingsHandler handles sensor reading intake.
type ReadingsHandler struct {
	deps ReadingSubmitter
}

// NewReadingsHandler creates a new readings handler.
func NewReadingsHandler(deps ReadingSubmitter) *ReadingsHandler {
	return &ReadingsHandler{deps: deps}
}

// HandlePostReading handles POST /readings requests.
func (h *ReadingsHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	var req model.FillReading
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReadingBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	out, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == service.OutcomeDuplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: out.String(), Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: out.String()})
}
