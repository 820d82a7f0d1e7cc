package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/okian/klynaa/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
				convey.So(cfg.PickupThreshold, convey.ShouldEqual, 80)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("KLYNAA_ADDR", ":8080")
			_ = os.Setenv("KLYNAA_BACKEND_URL", "https://platform.example.com/api")
			_ = os.Setenv("KLYNAA_ACCESS_TOKEN", "acc")
			_ = os.Setenv("KLYNAA_REFRESH_TOKEN", "ref")
			_ = os.Setenv("KLYNAA_RATE_LIMIT_RPS", "12.5")
			_ = os.Setenv("KLYNAA_QUEUE_SIZE", "500")
			_ = os.Setenv("KLYNAA_WORKER_COUNT", "16")
			_ = os.Setenv("KLYNAA_PICKUP_THRESHOLD", "90")
			_ = os.Setenv("KLYNAA_ABORT_ON_SHUTDOWN", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.BackendURL, convey.ShouldEqual, "https://platform.example.com/api")
				convey.So(cfg.AccessToken, convey.ShouldEqual, "acc")
				convey.So(cfg.RefreshToken, convey.ShouldEqual, "ref")
				convey.So(cfg.RateLimitRPS, convey.ShouldEqual, 12.5)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.PickupThreshold, convey.ShouldEqual, 90)
				convey.So(cfg.AbortOnShutdown, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
backend_url: "http://backend:8000/api"
queue_size: 3000
worker_count: 24
dedupe_size: 6000
refresh_interval_ms: 5000
metrics_enabled: false
metrics_refresh_ms: 2500
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("KLYNAA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.BackendURL, convey.ShouldEqual, "http://backend:8000/api")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 6000)
				convey.So(cfg.RefreshIntervalMS, convey.ShouldEqual, 5000)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsRefreshMS, convey.ShouldEqual, 2500)
				convey.So(cfg.PickupThreshold, convey.ShouldEqual, 80) // default
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 3000
worker_count: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("KLYNAA_CONFIG", tmpFile)
			_ = os.Setenv("KLYNAA_ADDR", ":8080")
			_ = os.Setenv("KLYNAA_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("KLYNAA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("KLYNAA_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("KLYNAA_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When addr is empty", func() {
			_ = os.Setenv("KLYNAA_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When backend_url is relative", func() {
			_ = os.Setenv("KLYNAA_BACKEND_URL", "/api")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "backend_url")
			})
		})

		convey.Convey("When pickup_threshold is out of range", func() {
			_ = os.Setenv("KLYNAA_PICKUP_THRESHOLD", "101")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "pickup_threshold")
			})
		})

		convey.Convey("When the YAML file contains comments", func() {
			yamlContent := `
# gateway
addr: ":9090"  # inline
pickup_threshold: 0
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("KLYNAA_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should parse and accept a zero threshold", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.PickupThreshold, convey.ShouldEqual, 0)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "KLYNAA_") {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "klynaa-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
