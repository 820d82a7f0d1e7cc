package api

import (
	"context"
	"net/http"

	"github.com/okian/klynaa/internal/domain/apierror"
	"github.com/okian/klynaa/internal/domain/executor"
	"github.com/okian/klynaa/internal/domain/model"
)

// ViewProvider exposes the cached platform views.
type ViewProvider interface {
	Attention() (executor.State[[]model.Bin], error)
	Available() (executor.State[[]model.Pickup], error)
	Refresh(ctx context.Context) error
}

// ViewsHandler serves the attention and available views.
type ViewsHandler struct {
	deps ViewProvider
}

// NewViewsHandler creates a new views handler.
func NewViewsHandler(deps ViewProvider) *ViewsHandler {
	return &ViewsHandler{deps: deps}
}

// HandleAttention handles GET /bins/attention requests.
func (h *ViewsHandler) HandleAttention(w http.ResponseWriter, _ *http.Request) {
	st, err := h.deps.Attention()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleAvailable handles GET /pickups/available requests.
func (h *ViewsHandler) HandleAvailable(w http.ResponseWriter, _ *http.Request) {
	st, err := h.deps.Available()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRefresh handles POST /refresh requests. A failed platform call is
// reported inside the body; the views still carry their previous data.
func (h *ViewsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshErr := h.deps.Refresh(r.Context())

	attention, err := h.deps.Attention()
	if err != nil {
		writeError(w, err)
		return
	}
	available, err := h.deps.Available()
	if err != nil {
		writeError(w, err)
		return
	}
	resp := viewsResponse{Attention: attention, Available: available}
	if refreshErr != nil {
		resp.Error = apierror.Normalize(refreshErr)
	}
	writeJSON(w, http.StatusOK, resp)
}
