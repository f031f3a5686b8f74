package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/endpointeval/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func validConfig() *config.Config {
	cfg := config.New()
	cfg.EnvironmentURL = "https://abc123.live.example.com"
	cfg.APIToken = "dt0c01.token"
	cfg.Locations = []string{"GEOLOCATION-1"}
	return cfg
}

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have the evaluator defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.ManifestDir, convey.ShouldEqual, ".dynatrace")
			convey.So(cfg.MonitorTag, convey.ShouldEqual, "git-action")
			convey.So(cfg.BatchPollInterval, convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.SyncRetryDelay, convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.RunningPollInterval, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.ExecutionPollInterval, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.CreationSettleDelay, convey.ShouldEqual, 60*time.Second)
			convey.So(cfg.PollConcurrency, convey.ShouldEqual, 1)
			convey.So(cfg.WarningThreshold, convey.ShouldEqual, 80)
			convey.So(cfg.FailThreshold, convey.ShouldEqual, 50)
			convey.So(cfg.OutputName, convey.ShouldEqual, "table_content")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		convey.Convey("When every required field is set", func() {
			convey.So(validConfig().Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When credentials and locations are missing", func() {
			err := config.New().Validate()

			convey.Convey("Then every problem is reported at once", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "environment_url")
				convey.So(err.Error(), convey.ShouldContainSubstring, "api_token")
				convey.So(err.Error(), convey.ShouldContainSubstring, "locations")
			})
		})

		convey.Convey("When an interval is not positive", func() {
			cfg := validConfig()
			cfg.RunningPollInterval = 0

			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "running_poll_interval")
		})

		convey.Convey("When thresholds are out of order", func() {
			cfg := validConfig()
			cfg.FailThreshold = 90

			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the metrics naming is invalid", func() {
			cfg := validConfig()
			cfg.MetricsNamespace = "site-eval"
			cfg.MetricsLabels = map[string]string{"team name": "web", "__reserved": "x"}
			err := cfg.Validate()

			convey.Convey("Then namespace and label keys are rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, `metrics_namespace "site-eval"`)
				convey.So(err.Error(), convey.ShouldContainSubstring, `metrics_labels key "team name"`)
				convey.So(err.Error(), convey.ShouldContainSubstring, `metrics_labels key "__reserved"`)
			})
		})

		convey.Convey("When poll concurrency is zero", func() {
			cfg := validConfig()
			cfg.PollConcurrency = 0

			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "poll_concurrency")
		})
	})
}
