package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/hoopstat/internal/config"
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
				convey.So(cfg.CacheSize, convey.ShouldEqual, 100)
				convey.So(cfg.Watchlist, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("HOOPSTAT_ADDR", ":8080")
			_ = os.Setenv("HOOPSTAT_CACHE_SIZE", "250")
			_ = os.Setenv("HOOPSTAT_RETRY_BACKOFF_FACTOR", "1.5")
			_ = os.Setenv("HOOPSTAT_VALIDATION_GATE", "true")
			_ = os.Setenv("HOOPSTAT_WATCHLIST", "LeBron James,Stephen Curry")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CacheSize, convey.ShouldEqual, 250)
				convey.So(cfg.RetryBackoffFactor, convey.ShouldEqual, 1.5)
				convey.So(cfg.ValidationGate, convey.ShouldBeTrue)
				convey.So(cfg.Watchlist, convey.ShouldResemble, []string{"LeBron James", "Stephen Curry"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
# provider settings
addr: ":9090"
cache_size: 50
scaling_method: minmax
watchlist:
  - Nikola Jokic
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("HOOPSTAT_CONFIG", tmpFile)
			_ = os.Setenv("HOOPSTAT_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")             // env
				convey.So(cfg.CacheSize, convey.ShouldEqual, 50)             // file
				convey.So(cfg.ScalingMethod, convey.ShouldEqual, "minmax")   // file
				convey.So(cfg.PCAComponents, convey.ShouldEqual, 3)          // default
				convey.So(cfg.Watchlist, convey.ShouldResemble, []string{"Nikola Jokic"})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("HOOPSTAT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("HOOPSTAT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("HOOPSTAT_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("HOOPSTAT_CACHE_SIZE", "lots")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an out of range failure ratio", func() {
			_ = os.Setenv("HOOPSTAT_BREAKER_FAILURE_RATIO", "1.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"HOOPSTAT_CONFIG",
		"HOOPSTAT_ADDR",
		"HOOPSTAT_CACHE_SIZE",
		"HOOPSTAT_RETRY_BACKOFF_FACTOR",
		"HOOPSTAT_VALIDATION_GATE",
		"HOOPSTAT_WATCHLIST",
		"HOOPSTAT_BREAKER_FAILURE_RATIO",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "hoopstat-config-*.yaml")
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
