package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/endpointeval/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{ //nolint:gochecknoglobals // test fixture
	"EVAL_CONFIG", "EVAL_MANIFEST_DIR", "EVAL_ROOT_URL", "EVAL_LOCATIONS", "EVAL_HTTP_TIMEOUT",
	"EVAL_POLL_CONCURRENCY", "EVAL_LOG_LEVEL", "EVAL_ENVIRONMENT_URL", "EVAL_API_TOKEN",
	"EVAL_MAX_SYNC_RETRIES",
	"DT_ENVIRONMENT_URL", "DT_API_TOKEN", "dt_environment_url", "dt_api_token", "GITHUB_OUTPUT",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		manifestDir := t.TempDir()
		_ = os.Setenv("EVAL_MANIFEST_DIR", manifestDir)

		convey.Convey("When only the legacy config.json and platform variables are present", func() {
			writeFile(t, filepath.Join(manifestDir, "config.json"),
				`{"defaultRootUrl": "https://www.example.com", "defaultLocations": ["GEOLOCATION-1", "GEOLOCATION-2"]}`)
			_ = os.Setenv("DT_ENVIRONMENT_URL", "https://abc123.live.example.com/")
			_ = os.Setenv("DT_API_TOKEN", "dt0c01.secret")
			_ = os.Setenv("GITHUB_OUTPUT", "/tmp/gh-output")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should combine them over the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RootURL, convey.ShouldEqual, "https://www.example.com")
				convey.So(cfg.Locations, convey.ShouldResemble, []string{"GEOLOCATION-1", "GEOLOCATION-2"})
				convey.So(cfg.EnvironmentURL, convey.ShouldEqual, "https://abc123.live.example.com")
				convey.So(cfg.APIToken, convey.ShouldEqual, "dt0c01.secret")
				convey.So(cfg.GitHubOutput, convey.ShouldEqual, "/tmp/gh-output")
				convey.So(cfg.MonitorTag, convey.ShouldEqual, "git-action")
			})
		})

		convey.Convey("When the legacy file is tab indented", func() {
			writeFile(t, filepath.Join(manifestDir, "config.json"),
				"{\n\t\"defaultRootUrl\": \"https://tabs.example\",\n\t\"defaultLocations\": [\"GEOLOCATION-9\"]\n}\n")

			cfg, err := config.LoadUnvalidated(ctx)

			convey.Convey("Then it is still read", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RootURL, convey.ShouldEqual, "https://tabs.example")
				convey.So(cfg.Locations, convey.ShouldResemble, []string{"GEOLOCATION-9"})
			})
		})

		convey.Convey("When the lower-case credential variables are used", func() {
			_ = os.Setenv("dt_environment_url", "https://lower.example.com")
			_ = os.Setenv("dt_api_token", "lower-token")

			cfg, err := config.LoadUnvalidated(ctx)

			convey.Convey("Then they are accepted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.EnvironmentURL, convey.ShouldEqual, "https://lower.example.com")
				convey.So(cfg.APIToken, convey.ShouldEqual, "lower-token")
			})
		})

		convey.Convey("When a YAML file and EVAL_ variables are layered", func() {
			path := filepath.Join(t.TempDir(), "eval.yaml")
			writeFile(t, path, `
environment_url: https://from-file.example.com
api_token: file-token
root_url: https://file.example
locations: [GEOLOCATION-F]
http_timeout: 45s
poll_concurrency: 2
max_sync_retries: 5
`)
			writeFile(t, filepath.Join(manifestDir, "config.json"),
				`{"defaultRootUrl": "https://legacy.example", "defaultLocations": ["GEOLOCATION-L"]}`)
			_ = os.Setenv("EVAL_CONFIG", path)
			_ = os.Setenv("EVAL_POLL_CONCURRENCY", "4")
			_ = os.Setenv("EVAL_LOCATIONS", "GEOLOCATION-A,GEOLOCATION-B")
			_ = os.Setenv("DT_API_TOKEN", "env-token")

			cfg, err := config.Load(ctx)

			convey.Convey("Then later sources win and the legacy file only fills gaps", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.EnvironmentURL, convey.ShouldEqual, "https://from-file.example.com")
				convey.So(cfg.APIToken, convey.ShouldEqual, "env-token")
				convey.So(cfg.RootURL, convey.ShouldEqual, "https://file.example")
				convey.So(cfg.Locations, convey.ShouldResemble, []string{"GEOLOCATION-A", "GEOLOCATION-B"})
				convey.So(cfg.HTTPTimeout, convey.ShouldEqual, 45*time.Second)
				convey.So(cfg.PollConcurrency, convey.ShouldEqual, 4)
				convey.So(cfg.MaxSyncRetries, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the YAML path is passed explicitly", func() {
			path := filepath.Join(t.TempDir(), "explicit.yaml")
			writeFile(t, path, `
environment_url: https://explicit.example.com
api_token: explicit-token
locations: [GEOLOCATION-X]
metrics_namespace: site_eval
metrics_labels:
  repo: docs
`)
			_ = os.Setenv("EVAL_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.LoadFrom(ctx, path)

			convey.Convey("Then that file is used and the environment variable is ignored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.EnvironmentURL, convey.ShouldEqual, "https://explicit.example.com")
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "site_eval")
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"repo": "docs"})
				convey.So(os.Getenv("EVAL_CONFIG"), convey.ShouldEqual, "/non/existent/file.yaml")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("EVAL_CONFIG", "/non/existent/file.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then it returns a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When credentials are missing", func() {
			_, err := config.Load(ctx)

			convey.Convey("Then validation fails before any remote call", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a numeric variable is malformed", func() {
			_ = os.Setenv("EVAL_POLL_CONCURRENCY", "many")

			_, err := config.LoadUnvalidated(ctx)

			convey.Convey("Then it returns a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}
