package platformsim_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/endpointeval/internal/adapters/platform"
	"github.com/okian/endpointeval/internal/domain/batch"
	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/internal/platformsim"
	"github.com/okian/endpointeval/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func newClient(t *testing.T, sim *platformsim.Server, token string) *platform.Client {
	t.Helper()
	srv := httptest.NewServer(sim)
	t.Cleanup(srv.Close)
	return platform.NewClient(srv.URL, token)
}

func TestSimulatorMonitors(t *testing.T) {
	Convey("Given a simulator with seeded monitors", t, func() {
		ctx := context.Background()
		sim := platformsim.New(
			platformsim.WithToken("secret"),
			platformsim.WithPageSize(1),
			platformsim.WithMonitor("https://a.example", "git-action"),
			platformsim.WithMonitor("https://other.example", "other"),
			platformsim.WithMonitor("https://b.example", "git-action"),
		)

		Convey("When listing by tag through the client", func() {
			monitors, err := newClient(t, sim, "secret").ListMonitors(ctx, "git-action")

			Convey("Then every page of the tag is returned", func() {
				So(err, ShouldBeNil)
				So(len(monitors), ShouldEqual, 2)
				So(monitors[0].DisplayName, ShouldEqual, "https://a.example")
				So(monitors[1].DisplayName, ShouldEqual, "https://b.example")
			})
		})

		Convey("When the token is wrong", func() {
			_, err := newClient(t, sim, "nope").ListMonitors(ctx, "git-action")

			Convey("Then the call is rejected", func() {
				var apiErr *platform.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.StatusCode, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When a monitor is created", func() {
			client := newClient(t, sim, "secret")
			id, err := client.CreateMonitor(ctx, model.NewMonitorSpec("https://c.example", "git-action", []string{"L1", "L2"}))

			Convey("Then it is listed under its tag", func() {
				So(err, ShouldBeNil)
				So(id, ShouldStartWith, "HTTP_CHECK-")
				So(sim.Stats().MonitorsCreated, ShouldEqual, 1)

				monitors, err := client.ListMonitors(ctx, "git-action")
				So(err, ShouldBeNil)
				So(len(monitors), ShouldEqual, 3)
				So(monitors[2].ID, ShouldEqual, id)
			})

			Convey("Then a batch runs it once per location", func() {
				trig, err := client.TriggerBatch(ctx, []string{id})
				So(err, ShouldBeNil)
				So(len(trig.Triggered), ShouldEqual, 1)
				So(len(trig.Triggered[0].Executions), ShouldEqual, 2)
			})
		})
	})
}

func TestSimulatorBatchAndReports(t *testing.T) {
	Convey("Given a simulator scripted with one sync round and slow reports", t, func() {
		ctx := context.Background()
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		sim := platformsim.New(
			platformsim.WithSyncRounds(1),
			platformsim.WithRunningPolls(1),
			platformsim.WithPendingFetches(1),
			platformsim.WithClock(func() time.Time { return now }),
			platformsim.WithMonitor("https://a.example", "git-action"),
			platformsim.WithMonitor("http://b.example", "git-action"),
		)
		client := newClient(t, sim, "")
		monitors, err := client.ListMonitors(ctx, "git-action")
		So(err, ShouldBeNil)
		ids := []string{monitors[0].ID, monitors[1].ID}

		Convey("When the first batch is polled", func() {
			first, err := client.TriggerBatch(ctx, ids)
			So(err, ShouldBeNil)
			state, err := client.GetBatch(ctx, first.BatchID)

			Convey("Then it reports the synchronization cause per monitor", func() {
				So(err, ShouldBeNil)
				So(state.ProblemsCount, ShouldEqual, 2)
				So(state.Causes[0], ShouldEqual, platformsim.SyncCause)
				So(batch.ClassifyCause(state.Causes[0]), ShouldEqual, batch.Recoverable)
			})

			Convey("And a retriggered batch runs then succeeds", func() {
				second, err := client.TriggerBatch(ctx, ids)
				So(err, ShouldBeNil)

				running, err := client.GetBatch(ctx, second.BatchID)
				So(err, ShouldBeNil)
				So(running.Status, ShouldEqual, batch.StatusRunning)
				So(running.ProblemsCount, ShouldEqual, 0)

				done, err := client.GetBatch(ctx, second.BatchID)
				So(err, ShouldBeNil)
				So(done.Status, ShouldEqual, batch.StatusSuccess)
				So(sim.Stats().Triggers, ShouldEqual, 2)
			})
		})

		Convey("When execution reports are fetched", func() {
			trig, err := client.TriggerBatch(ctx, ids)
			So(err, ShouldBeNil)
			secureID := trig.Triggered[0].Executions[0].ExecutionID
			insecureID := trig.Triggered[1].Executions[0].ExecutionID

			pending, err := client.FullReport(ctx, secureID)
			So(err, ShouldBeNil)
			ready, err := client.FullReport(ctx, secureID)
			So(err, ShouldBeNil)
			_, _ = client.FullReport(ctx, insecureID)
			insecure, err := client.FullReport(ctx, insecureID)
			So(err, ShouldBeNil)

			Convey("Then the stage progresses and certificates follow the scheme", func() {
				So(pending.Stage, ShouldEqual, model.StageTriggered)
				So(ready.Stage, ShouldEqual, model.StageDataRetrieved)
				So(len(ready.Steps), ShouldEqual, 1)
				So(ready.Steps[0].PeerCertPresent, ShouldBeTrue)
				So(ready.Steps[0].CertExpiryEpochMS, ShouldEqual, now.Add(365*24*time.Hour).UnixMilli())
				So(insecure.Steps[0].PeerCertPresent, ShouldBeFalse)
				So(insecure.Steps[0].Name, ShouldEqual, "http://b.example")
			})
		})

		Convey("When an unknown execution is fetched", func() {
			_, err := client.FullReport(ctx, "EXEC-MISSING")

			Convey("Then it is a 404", func() {
				So(errors.Is(err, platform.ErrUnexpectedStatus), ShouldBeTrue)
			})
		})
	})
}

func TestSimulatorHealth(t *testing.T) {
	Convey("Given a simulator with one seeded monitor", t, func() {
		srv := httptest.NewServer(platformsim.New(
			platformsim.WithToken("secret"),
			platformsim.WithMonitor("https://a.example/", "git-action"),
		))
		defer srv.Close()

		Convey("When calling the liveness endpoint without a token", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			Convey("Then a plain JSON status is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldEqual, "application/json")
				So(string(body), ShouldContainSubstring, `"status":"ok"`)
				So(string(body), ShouldContainSubstring, `"monitors":1`)
				So(string(body), ShouldNotContainSubstring, "# HELP")
			})
		})

		Convey("When scraping the metrics endpoint", func() {
			metrics.RecordBatchTrigger()
			resp, err := http.Get(srv.URL + "/metrics")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			Convey("Then the Prometheus exposition is served", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, "endpointeval_run_batch_triggers_total")
			})
		})
	})
}
