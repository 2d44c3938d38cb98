package datarobot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/drtune/internal/datarobot"
	"github.com/okian/drtune/internal/datarobot/datarobottest"
	. "github.com/smartystreets/goconvey/convey"
)

const wait = 5 * time.Second

func newTestClient(t *testing.T, srv *datarobottest.Server, opts ...datarobot.Option) *datarobot.Client {
	t.Helper()
	opts = append([]datarobot.Option{
		datarobot.WithPollInterval(time.Millisecond, 5*time.Millisecond),
		datarobot.WithRequestID("run-1"),
	}, opts...)
	c, err := datarobot.NewClient(srv.Endpoint(), datarobottest.Token, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loans.csv")
	if err := os.WriteFile(path, []byte("is_bad,loan_amnt\n0,1000\n1,2500\n"), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func TestNewClient(t *testing.T) {
	Convey("Given client construction", t, func() {
		Convey("A relative endpoint is rejected", func() {
			_, err := datarobot.NewClient("api/v2", "token")
			So(err, ShouldNotBeNil)
		})

		Convey("An empty token is rejected", func() {
			_, err := datarobot.NewClient("https://example.test/api/v2", "")
			So(errors.Is(err, datarobot.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("The endpoint gains a trailing slash", func() {
			c, err := datarobot.NewClient("https://example.test/api/v2", "token")
			So(err, ShouldBeNil)
			So(c.Endpoint(), ShouldEqual, "https://example.test/api/v2/")
		})
	})
}

type countingTransport struct {
	calls atomic.Int32
}

func (ct *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ct.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestCustomHTTPClient(t *testing.T) {
	Convey("Given a caller supplied HTTP client", t, func() {
		srv := datarobottest.NewServer()
		defer srv.Close()
		transport := &countingTransport{}

		Convey("Its transport carries the authenticated requests", func() {
			c := newTestClient(t, srv, datarobot.WithHTTPClient(&http.Client{Transport: transport}))
			_, err := c.ListProjects(context.Background())
			So(err, ShouldBeNil)
			So(transport.calls.Load(), ShouldEqual, int32(1))
			So(srv.Requests()[0].Header.Get("Authorization"), ShouldEqual, "Bearer "+datarobottest.Token)
		})
	})

	Convey("Given a timeout set before the HTTP client", t, func() {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer slow.Close()
		c, err := datarobot.NewClient(slow.URL+"/api/v2", "token",
			datarobot.WithTimeout(20*time.Millisecond),
			datarobot.WithHTTPClient(&http.Client{}))
		So(err, ShouldBeNil)

		start := time.Now()
		_, err = c.ListProjects(context.Background())

		Convey("The request still times out", func() {
			So(err, ShouldNotBeNil)
			So(time.Since(start), ShouldBeLessThan, time.Second)
		})
	})
}

func TestAuthentication(t *testing.T) {
	Convey("Given a platform that rejects the token", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithToken("other"))
		defer srv.Close()
		c := newTestClient(t, srv)

		_, err := c.ListProjects(context.Background())

		Convey("The failure is an unauthorized API error", func() {
			So(errors.Is(err, datarobot.ErrUnauthorized), ShouldBeTrue)
			var apiErr *datarobot.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(apiErr.Message, ShouldEqual, "Invalid API token")
		})
	})
}

func TestRequestHeaders(t *testing.T) {
	Convey("Given a client with a request id", t, func() {
		srv := datarobottest.NewServer()
		defer srv.Close()
		c := newTestClient(t, srv, datarobot.WithUserAgent("drtune-test"))

		_, err := c.ListProjects(context.Background())
		So(err, ShouldBeNil)

		Convey("Every request carries auth, user agent and request id", func() {
			reqs := srv.Requests()
			So(reqs, ShouldHaveLength, 1)
			So(reqs[0].Header.Get("Authorization"), ShouldEqual, "Bearer "+datarobottest.Token)
			So(reqs[0].Header.Get("User-Agent"), ShouldEqual, "drtune-test")
			So(reqs[0].Header.Get("X-Request-Id"), ShouldEqual, "run-1")
		})
	})
}

func TestCreateProject(t *testing.T) {
	Convey("Given a platform with slow status resources", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithPendingPolls(2))
		defer srv.Close()
		c := newTestClient(t, srv)
		ctx := context.Background()

		Convey("A local file is uploaded as multipart", func() {
			path := writeDataset(t)
			p, err := c.CreateProject(ctx, path, "LendingClub_PROJECT_1", wait)
			So(err, ShouldBeNil)
			So(p.ID, ShouldNotBeEmpty)
			So(p.ProjectName, ShouldEqual, "LendingClub_PROJECT_1")
			So(srv.Upload(p.ID), ShouldEqual, "loans.csv")
		})

		Convey("A URL source is sent as JSON", func() {
			p, err := c.CreateProject(ctx, "https://s3.example.test/data.csv", "remote", wait)
			So(err, ShouldBeNil)
			So(srv.Upload(p.ID), ShouldEqual, "https://s3.example.test/data.csv")
		})

		Convey("A missing file fails before any request", func() {
			_, err := c.CreateProject(ctx, filepath.Join(t.TempDir(), "missing.csv"), "x", wait)
			So(errors.Is(err, datarobot.ErrInvalidSource), ShouldBeTrue)
			So(srv.Requests(), ShouldBeEmpty)
		})

		Convey("A directory is not a dataset", func() {
			_, err := c.CreateProject(ctx, t.TempDir(), "x", wait)
			So(errors.Is(err, datarobot.ErrInvalidSource), ShouldBeTrue)
		})
	})
}

func TestWaitForAsync(t *testing.T) {
	ctx := context.Background()

	Convey("Given a status resource that reports an error", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithFailingAsync("ERROR"))
		defer srv.Close()
		c := newTestClient(t, srv)

		_, err := c.CreateProject(ctx, "https://example.test/d.csv", "x", wait)

		Convey("The wait fails with the remote message", func() {
			So(errors.Is(err, datarobot.ErrAsyncFailed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "remote processing failed")
		})
	})

	Convey("Given a status resource that never resolves", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithPendingPolls(1 << 20))
		defer srv.Close()
		c := newTestClient(t, srv)

		_, err := c.CreateProject(ctx, "https://example.test/d.csv", "x", 30*time.Millisecond)

		Convey("The wait times out", func() {
			So(errors.Is(err, datarobot.ErrAsyncTimeout), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithPendingPolls(1 << 20))
		defer srv.Close()
		c := newTestClient(t, srv)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := c.CreateProject(cctx, "https://example.test/d.csv", "x", time.Hour)

		Convey("The wait stops with the context error", func() {
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(errors.Is(err, datarobot.ErrAsyncTimeout), ShouldBeFalse)
		})
	})

	Convey("Given a status answering COMPLETED in place", t, func() {
		var hits atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			if n < 2 {
				_, _ = w.Write([]byte(`{"status":"INITIALIZED"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
		}))
		defer ts.Close()
		c, err := datarobot.NewClient(ts.URL+"/api/v2", "token",
			datarobot.WithPollInterval(time.Millisecond, time.Millisecond))
		So(err, ShouldBeNil)

		loc, err := c.WaitForAsync(ctx, "status/abc/", wait)

		Convey("The status location itself is returned", func() {
			So(err, ShouldBeNil)
			So(loc, ShouldEqual, "status/abc/")
			So(hits.Load(), ShouldEqual, int32(2))
		})
	})

	Convey("Given a project upload that resolves without a project", t, func() {
		var status atomic.Value
		status.Store("s1")
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/api/v2/projects/":
				w.Header().Set("Location", "http://"+r.Host+"/api/v2/status/"+status.Load().(string)+"/")
				w.WriteHeader(http.StatusAccepted)
			case "/api/v2/status/s1/":
				_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
			case "/api/v2/status/s2/":
				w.Header().Set("Location", "http://"+r.Host+"/api/v2/projects/p1/")
				w.WriteHeader(http.StatusSeeOther)
			case "/api/v2/projects/p1/":
				_, _ = w.Write([]byte(`{"projectName":"p1"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer ts.Close()
		c, err := datarobot.NewClient(ts.URL+"/api/v2", "token",
			datarobot.WithPollInterval(time.Millisecond, time.Millisecond))
		So(err, ShouldBeNil)

		Convey("When the status completes in place", func() {
			p, err := c.CreateProject(ctx, "https://example.test/loans.csv", "p1", wait)

			Convey("Then no project is returned", func() {
				So(p, ShouldBeNil)
				So(errors.Is(err, datarobot.ErrMissingLocation), ShouldBeTrue)
			})
		})

		Convey("When the resolved project has no id", func() {
			status.Store("s2")
			p, err := c.CreateProject(ctx, "https://example.test/loans.csv", "p1", wait)

			Convey("Then the creation is reported as failed", func() {
				So(p, ShouldBeNil)
				So(errors.Is(err, datarobot.ErrAsyncFailed), ShouldBeTrue)
			})
		})
	})
}

func TestModelLifecycle(t *testing.T) {
	Convey("Given a project with a target", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithPendingPolls(1))
		defer srv.Close()
		c := newTestClient(t, srv)
		ctx := context.Background()

		p, err := c.CreateProject(ctx, writeDataset(t), "p1", wait)
		So(err, ShouldBeNil)
		p, err = c.SetTarget(ctx, p.ID, datarobot.TargetOptions{Target: "is_bad", WorkerCount: datarobot.MaxWorkers}, wait)
		So(err, ShouldBeNil)
		So(p.Target, ShouldEqual, "is_bad")

		Convey("The aim payload is manual mode with max workers", func() {
			aim := srv.Target(p.ID)
			So(aim["mode"], ShouldEqual, datarobot.AutopilotManual)
			So(aim["workerCount"], ShouldEqual, float64(-1))
			So(aim, ShouldNotContainKey, "cvMethod")
		})

		bps, err := c.ListBlueprints(ctx, p.ID)
		So(err, ShouldBeNil)
		So(bps, ShouldHaveLength, len(datarobottest.DefaultBlueprints()))
		So(bps[0].String(), ShouldEqual, "Blueprint(eXtreme Gradient Boosted Trees Classifier)")

		Convey("Training returns a job that resolves to the model", func() {
			jobID, err := c.Train(ctx, p.ID, bps[0].ID)
			So(err, ShouldBeNil)

			job, loc, err := c.GetModelJob(ctx, p.ID, jobID)
			So(err, ShouldBeNil)
			So(loc, ShouldBeEmpty)
			So(job.Status, ShouldEqual, datarobot.JobInProgress)

			model, err := c.WaitForModel(ctx, p.ID, jobID, wait)
			So(err, ShouldBeNil)
			So(model.BlueprintID, ShouldEqual, bps[0].ID)
			So(model.ProjectID, ShouldEqual, p.ID)

			models, err := c.ListModels(ctx, p.ID)
			So(err, ShouldBeNil)
			So(models, ShouldHaveLength, 1)
			So(models[0].ID, ShouldEqual, model.ID)

			Convey("Tuning applies only the values that were set", func() {
				session, err := c.StartAdvancedTuningSession(ctx, model)
				So(err, ShouldBeNil)
				So(session.Parameters(), ShouldHaveLength, len(datarobottest.DefaultTuningParameters()))

				_, err = session.Run(ctx)
				So(err, ShouldEqual, datarobot.ErrNoParametersSet)

				err = session.SetParameter(datarobot.ParameterSelector{ParameterName: "max_depth"}, 7)
				So(err, ShouldBeNil)
				err = session.SetParameter(datarobot.ParameterSelector{TaskName: "eXtreme Gradient Boosted Trees", ParameterID: "p-max-depth"}, 8)
				So(err, ShouldBeNil)
				So(session.Len(), ShouldEqual, 1)

				err = session.SetParameter(datarobot.ParameterSelector{TaskName: "eXtreme Gradient Boosted Trees"}, 1)
				So(errors.Is(err, datarobot.ErrParameterAmbiguous), ShouldBeTrue)
				err = session.SetParameter(datarobot.ParameterSelector{ParameterName: "gamma"}, 1)
				So(errors.Is(err, datarobot.ErrParameterNotFound), ShouldBeTrue)
				err = session.SetParameter(datarobot.ParameterSelector{}, 1)
				So(errors.Is(err, datarobot.ErrParameterNotFound), ShouldBeTrue)

				session.SetDescription("carried over")
				jobID, err := session.Run(ctx)
				So(err, ShouldBeNil)
				tuned, err := c.WaitForModel(ctx, p.ID, jobID, wait)
				So(err, ShouldBeNil)
				So(tuned.ParentModelID, ShouldEqual, model.ID)

				reqs := srv.TuningRequests()
				So(reqs, ShouldHaveLength, 1)
				So(reqs[0].Values, ShouldResemble, map[string]any{"p-max-depth": float64(8)})
				So(*reqs[0].Description, ShouldEqual, "carried over")

				params, err := c.GetAdvancedTuningParameters(ctx, p.ID, tuned.ID)
				So(err, ShouldBeNil)
				for _, tp := range params.Parameters {
					if tp.ParameterID == "p-max-depth" {
						So(tp.CurrentValue, ShouldEqual, float64(8))
					}
				}
			})

			Convey("A frozen model at full sample needs the holdout unlocked", func() {
				_, err := c.RequestFrozenModel(ctx, p.ID, model.ID, 100)
				So(errors.Is(err, datarobot.ErrClient), ShouldBeTrue)

				So(c.UnlockHoldout(ctx, p.ID), ShouldBeNil)
				proj, err := c.GetProject(ctx, p.ID)
				So(err, ShouldBeNil)
				So(proj.HoldoutUnlocked, ShouldBeTrue)

				jobID, err := c.RequestFrozenModel(ctx, p.ID, model.ID, 100)
				So(err, ShouldBeNil)
				frozen, err := c.WaitForModel(ctx, p.ID, jobID, wait)
				So(err, ShouldBeNil)
				So(frozen.IsFrozen, ShouldBeTrue)
				So(*frozen.SamplePct, ShouldEqual, 100.0)
			})
		})

		Convey("An unknown blueprint is not found", func() {
			_, err := c.Train(ctx, p.ID, "nope")
			So(errors.Is(err, datarobot.ErrNotFound), ShouldBeTrue)
		})

		Convey("An unknown model is not found", func() {
			_, err := c.GetModel(ctx, p.ID, "nope")
			So(errors.Is(err, datarobot.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a platform whose jobs fail", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithFailingJobs())
		defer srv.Close()
		c := newTestClient(t, srv)
		ctx := context.Background()

		p, err := c.CreateProject(ctx, writeDataset(t), "p1", wait)
		So(err, ShouldBeNil)
		_, err = c.SetTarget(ctx, p.ID, datarobot.TargetOptions{Target: "is_bad"}, wait)
		So(err, ShouldBeNil)
		jobID, err := c.Train(ctx, p.ID, "bp-0")
		So(err, ShouldBeNil)

		_, err = c.WaitForModel(ctx, p.ID, jobID, wait)

		Convey("Waiting reports the failed job", func() {
			So(errors.Is(err, datarobot.ErrModelJobFailed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, jobID)
		})
	})
}

func TestTimeSeriesCalls(t *testing.T) {
	Convey("Given a time series dataset", t, func() {
		srv := datarobottest.NewServer(datarobottest.WithPendingPolls(1))
		defer srv.Close()
		c := newTestClient(t, srv)
		ctx := context.Background()

		p, err := c.CreateProject(ctx, "https://example.test/sales.xlsx", "ts", wait)
		So(err, ShouldBeNil)

		Convey("Feature names are escaped in paths", func() {
			f, err := c.GetFeature(ctx, p.ID, "Order Date")
			So(err, ShouldBeNil)
			So(f.Name, ShouldEqual, "Order Date")
			reqs := srv.Requests()
			last := reqs[len(reqs)-1]
			So(last.Path, ShouldEndWith, "/features/Order Date/")
		})

		Convey("Multiseries detection is requested when missing", func() {
			props, err := c.GetMultiseriesProperties(ctx, p.ID, "Date", []string{"Store"}, wait)
			So(err, ShouldBeNil)
			So(props.TimeSeriesEligible, ShouldBeTrue)
			So(props.TimeUnit, ShouldEqual, "DAY")
			So(props.TimeStep, ShouldEqual, 1)

			before := len(srv.Requests())
			_, err = c.GetMultiseriesProperties(ctx, p.ID, "Date", []string{"Store"}, wait)
			So(err, ShouldBeNil)
			So(len(srv.Requests())-before, ShouldEqual, 1)
		})

		Convey("Unknown series columns are not eligible", func() {
			props, err := c.GetMultiseriesProperties(ctx, p.ID, "Date", []string{"Region"}, wait)
			So(err, ShouldBeNil)
			So(props.TimeSeriesEligible, ShouldBeFalse)
		})

		Convey("Partitioning echoes the windows with backtests", func() {
			fdwStart, fdwEnd, backtests := -90, 0, 2
			spec := datarobot.DatetimePartitioningSpec{
				DatetimePartitionColumn:      "Date",
				UseTimeSeries:                true,
				FeatureDerivationWindowStart: &fdwStart,
				FeatureDerivationWindowEnd:   &fdwEnd,
				NumberOfBacktests:            &backtests,
				MultiseriesIDColumns:         []string{"Store"},
			}
			part, err := c.GenerateDatetimePartitioning(ctx, p.ID, spec)
			So(err, ShouldBeNil)
			So(*part.FeatureDerivationWindowStart, ShouldEqual, -90)
			So(*part.FeatureDerivationWindowEnd, ShouldEqual, 0)
			So(part.Backtests, ShouldHaveLength, 2)

			Convey("And the target can be set with it", func() {
				_, err := c.SetTarget(ctx, p.ID, datarobot.TargetOptions{Target: "Sales", Partitioning: &spec}, wait)
				So(err, ShouldBeNil)
				aim := srv.Target(p.ID)
				So(aim["cvMethod"], ShouldEqual, "datetime")
				So(aim["useTimeSeries"], ShouldEqual, true)
				So(aim["datetimePartitionColumn"], ShouldEqual, "Date")

				proj, err := c.GetProject(ctx, p.ID)
				So(err, ShouldBeNil)
				So(proj.UseTimeSeries, ShouldBeTrue)

				jobID, err := c.TrainDatetime(ctx, p.ID, "bp-4")
				So(err, ShouldBeNil)
				model, err := c.WaitForModel(ctx, p.ID, jobID, wait)
				So(err, ShouldBeNil)

				jobID, err = c.RequestFrozenDatetimeModel(ctx, p.ID, model.ID)
				So(err, ShouldBeNil)
				So(jobID, ShouldNotBeEmpty)
				frozen := srv.FrozenRequests()
				So(frozen, ShouldHaveLength, 1)
				So(frozen[0].Datetime, ShouldBeTrue)
				So(frozen[0].SamplePct, ShouldBeNil)
			})
		})
	})
}

func TestIsURLSource(t *testing.T) {
	Convey("URL sources are recognised by scheme", t, func() {
		So(datarobot.IsURLSource("https://example.test/a.csv"), ShouldBeTrue)
		So(datarobot.IsURLSource("HTTP://example.test/a.csv"), ShouldBeTrue)
		So(datarobot.IsURLSource("/tmp/a.csv"), ShouldBeFalse)
		So(datarobot.IsURLSource(strings.Repeat("a", 3)), ShouldBeFalse)
	})
}
