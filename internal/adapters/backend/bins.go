package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/klynaa/internal/domain/model"
)

// DefaultPickupThreshold is the fill percentage the platform uses when no
// threshold is given.
const DefaultPickupThreshold = 80

const defaultRadiusKM = 5

// ListBins returns one page of bins matching filter.
func (c *Client) ListBins(ctx context.Context, filter model.BinFilter) (model.Page[model.Bin], error) {
	q := url.Values{}
	setInt(q, "page", filter.Page)
	setInt(q, "limit", filter.Limit)
	setString(q, "waste_type", string(filter.WasteType))
	setString(q, "status", string(filter.Status))
	setInt(q, "owner_id", filter.OwnerID)

	var page model.Page[model.Bin]
	err := c.call(ctx, http.MethodGet, "/bins/", q, nil, &page)
	return page, err
}

// GetBin returns a single bin.
func (c *Client) GetBin(ctx context.Context, id string) (model.Bin, error) {
	var bin model.Bin
	err := c.call(ctx, http.MethodGet, binPath(id), nil, nil, &bin)
	return bin, err
}

// CreateBin registers a new bin.
func (c *Client) CreateBin(ctx context.Context, form model.BinForm) (model.Bin, error) {
	var bin model.Bin
	err := c.call(ctx, http.MethodPost, "/bins/", nil, form, &bin)
	return bin, err
}

// UpdateBin applies a partial update.
func (c *Client) UpdateBin(ctx context.Context, id string, update model.BinUpdate) (model.Bin, error) {
	var bin model.Bin
	err := c.call(ctx, http.MethodPatch, binPath(id), nil, update, &bin)
	return bin, err
}

// DeleteBin removes a bin.
func (c *Client) DeleteBin(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, binPath(id), nil, nil, nil)
}

// UpdateFillLevel sets a bin's fill level in percent.
func (c *Client) UpdateFillLevel(ctx context.Context, id string, fillLevel int) (model.Bin, error) {
	return c.UpdateBin(ctx, id, model.BinUpdate{FillLevel: &fillLevel})
}

// BinsNear returns bins within loc.RadiusKM of a point; a zero radius means
// five kilometres.
func (c *Client) BinsNear(ctx context.Context, loc model.Location) ([]model.Bin, error) {
	radius := loc.RadiusKM
	if radius <= 0 {
		radius = defaultRadiusKM
	}
	q := url.Values{}
	q.Set("latitude", formatFloat(loc.Latitude))
	q.Set("longitude", formatFloat(loc.Longitude))
	q.Set("radius", formatFloat(radius))

	var bins []model.Bin
	err := c.call(ctx, http.MethodGet, "/bins/near/", q, nil, &bins)
	return bins, err
}

// BinsRequiringPickup returns bins whose fill level reached threshold.
func (c *Client) BinsRequiringPickup(ctx context.Context, threshold int) ([]model.Bin, error) {
	q := url.Values{}
	q.Set("threshold", strconv.Itoa(threshold))

	var bins []model.Bin
	err := c.call(ctx, http.MethodGet, "/bins/requiring-pickup/", q, nil, &bins)
	return bins, err
}

func binPath(id string) string {
	return "/bins/" + url.PathEscape(id) + "/"
}

func setInt(q url.Values, key string, v int) {
	if v != 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
