package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/klynaa/internal/domain/model"
)

// ListPickups returns one page of pickups matching filter.
func (c *Client) ListPickups(ctx context.Context, filter model.PickupFilter) (model.Page[model.Pickup], error) {
	q := url.Values{}
	setInt(q, "page", filter.Page)
	setInt(q, "limit", filter.Limit)
	setString(q, "status", string(filter.Status))
	setInt(q, "worker_id", filter.WorkerID)
	setString(q, "bin_id", filter.BinID)
	if !filter.DateFrom.IsZero() {
		q.Set("date_from", filter.DateFrom.Format(time.DateOnly))
	}
	if !filter.DateTo.IsZero() {
		q.Set("date_to", filter.DateTo.Format(time.DateOnly))
	}

	var page model.Page[model.Pickup]
	err := c.call(ctx, http.MethodGet, "/pickups/", q, nil, &page)
	return page, err
}

// GetPickup returns a single pickup.
func (c *Client) GetPickup(ctx context.Context, id string) (model.Pickup, error) {
	var p model.Pickup
	err := c.call(ctx, http.MethodGet, pickupPath(id, ""), nil, nil, &p)
	return p, err
}

// CreatePickup requests a pickup for a bin.
func (c *Client) CreatePickup(ctx context.Context, req model.PickupRequest) (model.Pickup, error) {
	var p model.Pickup
	err := c.call(ctx, http.MethodPost, "/pickups/", nil, req, &p)
	return p, err
}

// AcceptPickup assigns a pending pickup to the calling worker.
func (c *Client) AcceptPickup(ctx context.Context, id string) (model.Pickup, error) {
	return c.transition(ctx, id, "accept", nil)
}

// StartPickup marks an accepted pickup as in progress.
func (c *Client) StartPickup(ctx context.Context, id string) (model.Pickup, error) {
	return c.transition(ctx, id, "start", nil)
}

// CompletePickup closes a pickup.
func (c *Client) CompletePickup(ctx context.Context, id string, done model.Completion) (model.Pickup, error) {
	return c.transition(ctx, id, "complete", done)
}

type cancelRequest struct {
	Reason string `json:"cancellation_reason,omitempty"`
}

// CancelPickup cancels a pickup with an optional reason.
func (c *Client) CancelPickup(ctx context.Context, id, reason string) (model.Pickup, error) {
	return c.transition(ctx, id, "cancel", cancelRequest{Reason: reason})
}

// AvailablePickups returns pending pickups, optionally around a location.
func (c *Client) AvailablePickups(ctx context.Context, near *model.Location) ([]model.Pickup, error) {
	q := url.Values{}
	q.Set("status", string(model.PickupPending))
	if near != nil {
		if near.Latitude != 0 && near.Longitude != 0 {
			q.Set("latitude", formatFloat(near.Latitude))
			q.Set("longitude", formatFloat(near.Longitude))
		}
		if near.RadiusKM > 0 {
			q.Set("radius", formatFloat(near.RadiusKM))
		}
	}

	var pickups []model.Pickup
	err := c.call(ctx, http.MethodGet, "/pickups/available/", q, nil, &pickups)
	return pickups, err
}

// MyActivePickups returns the calling worker's active pickups.
func (c *Client) MyActivePickups(ctx context.Context) ([]model.Pickup, error) {
	var pickups []model.Pickup
	err := c.call(ctx, http.MethodGet, "/pickups/my/active/", nil, nil, &pickups)
	return pickups, err
}

func (c *Client) transition(ctx context.Context, id, action string, body any) (model.Pickup, error) {
	var p model.Pickup
	err := c.call(ctx, http.MethodPost, pickupPath(id, action), nil, body, &p)
	return p, err
}

func pickupPath(id, action string) string {
	p := "/pickups/" + url.PathEscape(id) + "/"
	if action != "" {
		p += action + "/"
	}
	return p
}
