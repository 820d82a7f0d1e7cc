package service_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/klynaa/internal/domain/apierror"
	"github.com/okian/klynaa/internal/domain/model"
)

type fakePlatform struct {
	mu        sync.Mutex
	bins      []model.Bin
	pickups   []model.Pickup
	fills     map[string]int
	failBins  error
	threshold int

	binCalls    atomic.Int32
	pickupCalls atomic.Int32
	fillCalls   atomic.Int32
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		bins: []model.Bin{
			{ID: "bin-1", FillLevel: 92, Status: model.BinFull},
			{ID: "bin-2", FillLevel: 85, Status: model.BinFull},
		},
		pickups: []model.Pickup{
			{ID: "pk-1", BinID: "bin-1", Status: model.PickupPending},
			{ID: "pk-2", BinID: "bin-2", Status: model.PickupPending},
		},
		fills: make(map[string]int),
	}
}

func (f *fakePlatform) BinsRequiringPickup(_ context.Context, threshold int) ([]model.Bin, error) {
	f.binCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = threshold
	if f.failBins != nil {
		return nil, f.failBins
	}
	return append([]model.Bin(nil), f.bins...), nil
}

func (f *fakePlatform) AvailablePickups(context.Context, *model.Location) ([]model.Pickup, error) {
	f.pickupCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Pickup
	for _, p := range f.pickups {
		if p.Status == model.PickupPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlatform) AcceptPickup(_ context.Context, id string) (model.Pickup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pickups {
		if p.ID != id {
			continue
		}
		if p.Status != model.PickupPending {
			return model.Pickup{}, apierror.New(http.StatusConflict, "Pickup is no longer available")
		}
		f.pickups[i].Status = model.PickupAccepted
		return f.pickups[i], nil
	}
	return model.Pickup{}, apierror.New(http.StatusNotFound, fmt.Sprintf("pickup %s not found", id))
}

func (f *fakePlatform) UpdateFillLevel(_ context.Context, id string, level int) (model.Bin, error) {
	f.fillCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "bin-gone" {
		return model.Bin{}, apierror.New(http.StatusNotFound, "Not found.")
	}
	f.fills[id] = level
	return model.Bin{ID: id, FillLevel: level}, nil
}

func (f *fakePlatform) fill(id string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.fills[id]
	return v, ok
}
