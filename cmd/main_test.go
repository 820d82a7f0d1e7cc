package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/klynaa/internal/app"
	"github.com/okian/klynaa/internal/config"
	"github.com/okian/klynaa/internal/domain/model"
	"github.com/okian/klynaa/pkg/logger"
	"github.com/okian/klynaa/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

// fakePlatform serves the platform endpoints the gateway calls.
func fakePlatform(fills *atomic.Int32) *httptest.Server {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/bins/requiring-pickup/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []model.Bin{{ID: "bin-7", FillLevel: 95, Status: model.BinOverflowing}})
	})
	mux.HandleFunc("GET /api/pickups/available/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []model.Pickup{{ID: "pk-7", BinID: "bin-7", Status: model.PickupPending}})
	})
	mux.HandleFunc("POST /api/pickups/{id}/accept/", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "pk-7" {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"detail": "Not found."})
			return
		}
		writeJSON(w, model.Pickup{ID: "pk-7", BinID: "bin-7", Status: model.PickupAccepted})
	})
	mux.HandleFunc("PATCH /api/bins/{id}/", func(w http.ResponseWriter, r *http.Request) {
		fills.Add(1)
		var upd model.BinUpdate
		_ = json.NewDecoder(r.Body).Decode(&upd)
		writeJSON(w, model.Bin{ID: r.PathValue("id"), FillLevel: *upd.FillLevel})
	})
	return httptest.NewServer(mux)
}

func clearEnv() {
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "KLYNAA_") {
			_ = os.Unsetenv(k)
		}
	}
}

func TestConfigurationLoading(t *testing.T) {
	convey.Convey("Given gateway environment variables", t, func() {
		clearEnv()
		_ = os.Setenv("KLYNAA_ADDR", ":8080")
		_ = os.Setenv("KLYNAA_QUEUE_SIZE", "1000")
		_ = os.Setenv("KLYNAA_WORKER_COUNT", "4")
		defer clearEnv()

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})

		convey.Convey("And a bad backend URL fails loading", func() {
			_ = os.Setenv("KLYNAA_BACKEND_URL", "not a url")
			_, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestNewService(t *testing.T) {
	convey.Convey("Given a default configuration", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then a service is built", func() {
			svc, err := newService(cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc, convey.ShouldNotBeNil)
		})

		convey.Convey("And an invalid backend URL is rejected", func() {
			cfg.BackendURL = "::"
			_, err := newService(cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestGatewayEndToEnd(t *testing.T) {
	convey.Convey("Given a gateway wired to a fake platform", t, func() {
		var fills atomic.Int32
		platform := fakePlatform(&fills)
		defer platform.Close()

		cfg := config.New(context.Background())
		cfg.BackendURL = platform.URL + "/api"
		cfg.WorkerCount = 2
		cfg.RefreshIntervalMS = 0
		cfg.RateLimitRPS = 0

		svc, err := newService(cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.So(svc.Wait(ctx), convey.ShouldBeNil)

		gw := httptest.NewServer(newHandler(ctx, svc, logger.Nop()))
		defer gw.Close()

		convey.Convey("When the attention view is read", func() {
			defer svc.Stop()
			resp, err := http.Get(gw.URL + "/bins/attention")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then it holds the platform's bins", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var body struct {
					Data  []model.Bin `json:"data"`
					Phase string      `json:"phase"`
				}
				convey.So(json.NewDecoder(resp.Body).Decode(&body), convey.ShouldBeNil)
				convey.So(body.Phase, convey.ShouldEqual, "success")
				convey.So(body.Data, convey.ShouldHaveLength, 1)
				convey.So(body.Data[0].ID, convey.ShouldEqual, "bin-7")
			})
		})

		convey.Convey("When an unknown pickup is accepted", func() {
			defer svc.Stop()
			resp, err := http.Post(gw.URL+"/pickups/pk-1/accept", "application/json", http.NoBody)
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then the platform's 404 reaches the caller", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
				var e struct {
					Message string `json:"message"`
					Status  int    `json:"status"`
				}
				convey.So(json.NewDecoder(resp.Body).Decode(&e), convey.ShouldBeNil)
				convey.So(e.Message, convey.ShouldEqual, "Not found.")
				convey.So(e.Status, convey.ShouldEqual, http.StatusNotFound)
			})
		})

		convey.Convey("When readings are posted and the service stops", func() {
			body := `{"reading_id":"rd-1","bin_id":"bin-7","fill_level":97,"ts":"2025-03-01T10:00:00Z"}`
			resp, err := http.Post(gw.URL+"/readings", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)

			resp, err = http.Post(gw.URL+"/readings", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			svc.Stop()

			convey.Convey("Then the reading reached the platform once", func() {
				convey.So(fills.Load(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("Then system metrics update without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("And service metrics skip a stopped service", func() {
			svc := service.New(nil)
			convey.So(func() { updateServiceMetrics(context.Background(), svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("And the updaters return once the context is done", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx, metrics.RefreshInterval())
				startServiceMetricsUpdater(ctx, service.New(nil), metrics.RefreshInterval())
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("updaters did not stop")
			}
		})
	})
}
