package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/klynaa/internal/domain/model"
)

// PickupAccepter accepts pickups on the worker's behalf.
type PickupAccepter interface {
	Accept(ctx context.Context, pickupID string) (model.Pickup, error)
}

// PickupsHandler handles pickup actions.
type PickupsHandler struct {
	deps PickupAccepter
}

// NewPickupsHandler creates a new pickups handler.
func NewPickupsHandler(deps PickupAccepter) *PickupsHandler {
	return &PickupsHandler{deps: deps}
}

// HandleAccept handles POST /pickups/{id}/accept requests.
func (h *PickupsHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, fmt.Errorf("%w: missing pickup id", ErrBadRequest))
		return
	}
	p, err := h.deps.Accept(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
