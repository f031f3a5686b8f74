package platform_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/endpointeval/internal/adapters/platform"
	"github.com/okian/endpointeval/internal/domain/batch"
	"github.com/okian/endpointeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClient(t *testing.T) {
	Convey("Given a platform client against a test server", t, func() {
		ctx := context.Background()
		var (
			lastAuth   string
			lastPath   string
			lastQuery  string
			lastBody   map[string]any
			lastMethod string
			lastAgent  string
		)
		mux := http.NewServeMux()
		record := func(r *http.Request) {
			lastAuth = r.Header.Get("Authorization")
			lastPath = r.URL.Path
			lastQuery = r.URL.RawQuery
			lastMethod = r.Method
			lastAgent = r.Header.Get("User-Agent")
			lastBody = nil
			if r.Body != nil {
				raw, _ := io.ReadAll(r.Body)
				if len(raw) > 0 {
					_ = json.Unmarshal(raw, &lastBody)
				}
			}
		}

		mux.HandleFunc("/api/v2/entities", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			if r.URL.Query().Get("nextPageKey") == "page-2" {
				_, _ = w.Write([]byte(`{"entities":[{"entityId":"HTTP_CHECK-2","displayName":"https://b.example/"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"nextPageKey":"page-2","entities":[{"entityId":"HTTP_CHECK-1","displayName":"https://a.example/"}]}`))
		})
		mux.HandleFunc("/api/v1/synthetic/monitors", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			_, _ = w.Write([]byte(`{"entityId":"HTTP_CHECK-NEW","name":"https://c.example/"}`))
		})
		mux.HandleFunc("/api/v2/synthetic/executions/batch", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"batchId":"B-1","triggeredCount":1,"triggered":[{"monitorId":"HTTP_CHECK-1","executions":[{"executionId":"E-1"},{"executionId":"E-2"}]}]}`))
		})
		mux.HandleFunc("/api/v2/synthetic/executions/batch/B-1", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			_, _ = w.Write([]byte(`{"batchId":"B-1","batchStatus":"NOT_TRIGGERED","triggeringProblemsCount":1,"triggeringProblems":[{"entityId":"HTTP_CHECK-1","cause":"Monitor's configuration is being synchronized. Please try in a moment."}]}`))
		})
		mux.HandleFunc("/api/v2/synthetic/executions/E-1/fullReport", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			_, _ = w.Write([]byte(`{"executionStage":"DATA_RETRIEVED","fullResults":{"status":"SUCCESS","executionSteps":[
				{"requestName":"https://a.example/","responseStatusCode":200,"totalTime":321,"timeToFirstByte":120,"peerCertificateExpiryDate":1893456000000,"peerCertificateDetails":"CN=a.example"},
				{"requestName":"http://b.example/","responseStatusCode":301,"totalTime":50,"timeToFirstByte":40,"peerCertificateExpiryDate":0,"peerCertificateDetails":""}
			]}}`))
		})
		mux.HandleFunc("/api/v2/synthetic/executions/E-404/fullReport", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
		})
		mux.HandleFunc("/api/v2/synthetic/executions/E-BAD/fullReport", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		client := platform.NewClient(server.URL+"/", "secret-token",
			platform.WithTimeout(5*time.Second),
			platform.WithHTTPClient(server.Client()),
			platform.WithUserAgent("endpointeval-test"),
		)

		Convey("When listing monitors", func() {
			monitors, err := client.ListMonitors(ctx, "git-action")

			Convey("Then every page is collected with the token header", func() {
				So(err, ShouldBeNil)
				So(monitors, ShouldResemble, []model.Monitor{
					{ID: "HTTP_CHECK-1", DisplayName: "https://a.example/"},
					{ID: "HTTP_CHECK-2", DisplayName: "https://b.example/"},
				})
				So(lastAuth, ShouldEqual, "Api-Token secret-token")
				So(lastQuery, ShouldEqual, "nextPageKey=page-2")
				So(lastAgent, ShouldEqual, "endpointeval-test")
			})
		})

		Convey("When the entity listing never stops paging", func() {
			var pages atomic.Int32
			endless := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				pages.Add(1)
				_, _ = w.Write([]byte(`{"nextPageKey":"more","entities":[{"entityId":"HTTP_CHECK-X","displayName":"https://x.example/"}]}`))
			}))
			defer endless.Close()

			monitors, err := platform.NewClient(endless.URL, "t").ListMonitors(ctx, "git-action")

			Convey("Then the listing fails instead of returning a partial result", func() {
				So(errors.Is(err, platform.ErrRequest), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "pagination exceeded")
				So(monitors, ShouldBeNil)
				So(pages.Load(), ShouldEqual, 100)
			})
		})

		Convey("When creating a monitor", func() {
			spec := model.NewMonitorSpec("https://c.example/", "git-action", []string{"GEOLOCATION-1"})
			id, err := client.CreateMonitor(ctx, spec)

			Convey("Then the fixed template is posted", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "HTTP_CHECK-NEW")
				So(lastMethod, ShouldEqual, http.MethodPost)
				So(lastBody["name"], ShouldEqual, "https://c.example/")
				So(lastBody["type"], ShouldEqual, "HTTP")
				So(lastBody["frequencyMin"], ShouldEqual, float64(0))
				So(lastBody["enabled"], ShouldEqual, true)
				So(lastBody["locations"], ShouldResemble, []any{"GEOLOCATION-1"})

				tags := lastBody["tags"].([]any)
				So(tags[0].(map[string]any)["key"], ShouldEqual, "git-action")

				scr := lastBody["script"].(map[string]any)
				req := scr["requests"].([]any)[0].(map[string]any)
				So(req["url"], ShouldEqual, "https://c.example/")
				So(req["method"], ShouldEqual, "GET")
				rule := req["validation"].(map[string]any)["rules"].([]any)[0].(map[string]any)
				So(rule["value"], ShouldEqual, ">=400")
				So(rule["passIfFound"], ShouldEqual, false)

				outage := lastBody["anomalyDetection"].(map[string]any)["outageHandling"].(map[string]any)
				So(outage["globalOutage"], ShouldEqual, true)
				So(outage["globalOutagePolicy"].(map[string]any)["consecutiveRuns"], ShouldEqual, float64(1))
			})
		})

		Convey("When triggering a batch", func() {
			res, err := client.TriggerBatch(ctx, []string{"HTTP_CHECK-1"})

			Convey("Then the request carries the processing flags and the result is mapped", func() {
				So(err, ShouldBeNil)
				So(lastBody["processingMode"], ShouldEqual, "EXECUTIONS_DETAILS_ONLY")
				So(lastBody["failOnPerformanceIssue"], ShouldEqual, "false")
				So(lastBody["stopOnProblem"], ShouldEqual, "false")
				So(lastBody["monitors"], ShouldResemble, []any{map[string]any{"monitorId": "HTTP_CHECK-1"}})
				So(res.BatchID, ShouldEqual, "B-1")
				So(res.Triggered, ShouldResemble, []model.Triggered{{
					MonitorID:  "HTTP_CHECK-1",
					Executions: []model.ExecutionRef{{ExecutionID: "E-1"}, {ExecutionID: "E-2"}},
				}})
			})
		})

		Convey("When getting a batch", func() {
			state, err := client.GetBatch(ctx, "B-1")

			Convey("Then status and causes are mapped", func() {
				So(err, ShouldBeNil)
				So(state.Status, ShouldEqual, batch.StatusNotTriggered)
				So(state.ProblemsCount, ShouldEqual, 1)
				So(len(state.Causes), ShouldEqual, 1)
				So(batch.ClassifyCause(state.Causes[0]), ShouldEqual, batch.Recoverable)
				So(lastPath, ShouldEqual, "/api/v2/synthetic/executions/batch/B-1")
			})
		})

		Convey("When fetching a full report", func() {
			report, err := client.FullReport(ctx, "E-1")

			Convey("Then steps are mapped and certificate presence derived", func() {
				So(err, ShouldBeNil)
				So(report.ExecutionID, ShouldEqual, "E-1")
				So(report.Stage.IsTerminal(), ShouldBeTrue)
				So(report.Status, ShouldEqual, "SUCCESS")
				So(len(report.Steps), ShouldEqual, 2)
				So(report.Steps[0].TTFB, ShouldEqual, 120)
				So(report.Steps[0].PeerCertPresent, ShouldBeTrue)
				So(report.Steps[0].CertExpiryEpochMS, ShouldEqual, int64(1893456000000))
				So(report.Steps[1].PeerCertPresent, ShouldBeFalse)
				So(report.Steps[1].ResponseStatusCode, ShouldEqual, 301)
			})
		})

		Convey("When the platform answers with an error status", func() {
			_, err := client.FullReport(ctx, "E-404")

			Convey("Then an APIError with status and body is returned", func() {
				So(errors.Is(err, platform.ErrUnexpectedStatus), ShouldBeTrue)
				var apiErr *platform.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.StatusCode, ShouldEqual, http.StatusNotFound)
				So(apiErr.Op, ShouldEqual, platform.OpFullReport)
				So(apiErr.Body, ShouldContainSubstring, "not found")
			})
		})

		Convey("When the body is not JSON", func() {
			_, err := client.FullReport(ctx, "E-BAD")

			Convey("Then a decode error is returned", func() {
				So(errors.Is(err, platform.ErrDecode), ShouldBeTrue)
			})
		})

		Convey("When the server is unreachable", func() {
			dead := platform.NewClient("http://127.0.0.1:1", "t")
			_, err := dead.GetBatch(ctx, "B-1")

			Convey("Then a request error is returned", func() {
				So(errors.Is(err, platform.ErrRequest), ShouldBeTrue)
			})
		})
	})
}
