package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/drtune/internal/config"
	"github.com/okian/drtune/internal/datarobot/datarobottest"
	"github.com/smartystreets/goconvey/convey"
)

// setupEnv points the configuration at srv with fast polling.
func setupEnv(t *testing.T, srv *datarobottest.Server) {
	t.Helper()
	t.Setenv("DRTUNE_ENDPOINT", srv.Endpoint())
	t.Setenv("DRTUNE_API_TOKEN", datarobottest.Token)
	t.Setenv("DRTUNE_POLL_INTERVAL", "1ms")
	t.Setenv("DRTUNE_POLL_MAX_INTERVAL", "5ms")
	t.Setenv("DRTUNE_MODEL_WAIT", "5s")
	t.Setenv("DRTUNE_TUNING_WAIT", "5s")
	t.Setenv("DRTUNE_PROJECT_WAIT", "5s")
	t.Setenv("DRTUNE_TARGET_WAIT", "5s")
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvEnvFile, "")
	t.Setenv(config.EnvPlatformEndpoint, "")
	t.Setenv(config.EnvPlatformToken, "")
}

func execute(ctx context.Context, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

type pushRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (p *pushRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.paths = append(p.paths, r.URL.Path)
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (p *pushRecorder) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func TestClassifierCommand(t *testing.T) {
	convey.Convey("Given a fake platform and a local dataset", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithPendingPolls(1))
		defer srv.Close()
		setupEnv(t, srv)

		dataset := filepath.Join(t.TempDir(), "loans.csv")
		convey.So(os.WriteFile(dataset, []byte("is_bad,loan_amnt\n0,1000\n"), 0o600), convey.ShouldBeNil)

		pushes := &pushRecorder{}
		gateway := httptest.NewServer(pushes)
		defer gateway.Close()
		t.Setenv("DRTUNE_METRICS_PUSH_URL", gateway.URL)

		convey.Convey("When the classifier command runs", func() {
			stdout, stderr, err := execute(context.Background(),
				"classifier", "--source", dataset, "--project-prefix", "Test", "--log-format", "json")

			convey.Convey("Then both projects are built and the run is reported", func() {
				convey.So(err, convey.ShouldBeNil)
				projects := srv.Projects()
				convey.So(projects, convey.ShouldHaveLength, 2)
				convey.So(projects[0].ProjectName, convey.ShouldStartWith, "Test_PROJECT_1_")
				convey.So(srv.FrozenRequests(), convey.ShouldHaveLength, 1)

				convey.So(stdout, convey.ShouldContainSubstring, "CLASSIFIER")
				convey.So(stderr, convey.ShouldContainSubstring, `"msg":"run finished"`)
				convey.So(pushes.Paths(), convey.ShouldResemble, []string{"/metrics/job/drtune"})
			})

			convey.Convey("And every request carries the run id", func() {
				reqs := srv.Requests()
				convey.So(reqs, convey.ShouldNotBeEmpty)
				id := reqs[0].Header.Get("X-Request-Id")
				convey.So(id, convey.ShouldNotBeEmpty)
				for _, r := range reqs {
					convey.So(r.Header.Get("X-Request-Id"), convey.ShouldEqual, id)
				}
			})
		})

		convey.Convey("When the blueprint index is out of range", func() {
			_, _, err := execute(context.Background(), "classifier", "--source", dataset, "--blueprint-index", "99")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(srv.Projects(), convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When no token is configured", func() {
			t.Setenv("DRTUNE_API_TOKEN", "")
			_, _, err := execute(context.Background(), "classifier", "--source", dataset)

			convey.Convey("Then nothing is sent", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(srv.Requests(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When positional arguments are given", func() {
			_, _, err := execute(context.Background(), "classifier", "extra")

			convey.Convey("Then they are rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestTimeSeriesCommand(t *testing.T) {
	convey.Convey("Given a fake platform and a remote dataset", t, func() {
		srv := datarobottest.NewServer()
		defer srv.Close()
		setupEnv(t, srv)
		t.Setenv("DRTUNE_METRICS_PUSH_URL", "")
		t.Setenv("DRTUNE_TIMESERIES__FORECAST_WINDOW_END", "14")

		stdout, _, err := execute(context.Background(),
			"timeseries", "--source", "https://example.test/sales.xlsx", "--frozen-wait", "5s")

		convey.Convey("Then the datetime workflow completes", func() {
			convey.So(err, convey.ShouldBeNil)
			projects := srv.Projects()
			convey.So(projects, convey.ShouldHaveLength, 2)
			convey.So(srv.Target(projects[1].ID)["forecastWindowEnd"], convey.ShouldEqual, float64(14))

			frozen := srv.FrozenRequests()
			convey.So(frozen, convey.ShouldHaveLength, 1)
			convey.So(frozen[0].Datetime, convey.ShouldBeTrue)

			convey.So(stdout, convey.ShouldContainSubstring, "TIMESERIES")
			convey.So(stdout, convey.ShouldContainSubstring, "Frozen model")
		})
	})
}
