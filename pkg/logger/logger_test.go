package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initializing with defaults", func() {
			err := Init()

			Convey("Then Get returns a logger", func() {
				So(err, ShouldBeNil)
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initializing with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a json logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf), WithFormat("json")), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Named("workflow").With(String("run_id", "r-1")).Info(ctx, "project created",
				String("project_id", "p1"), Int("step", 2), Error(errors.New("boom")))

			Convey("Then the entry carries every field and the caller", func() {
				var entry map[string]any
				So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
				So(entry["msg"], ShouldEqual, "project created")
				So(entry["logger"], ShouldEqual, "workflow")
				So(entry["run_id"], ShouldEqual, "r-1")
				So(entry["project_id"], ShouldEqual, "p1")
				So(entry["step"], ShouldEqual, float64(2))
				So(entry["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level filters debug entries", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			Get().Debug(ctx, "hidden")
			Get().Info(ctx, "hidden too")
			Get().Warn(ctx, "visible")

			Convey("Then only the warning is written", func() {
				So(strings.Count(buf.String(), "\n"), ShouldEqual, 1)
				So(buf.String(), ShouldContainSubstring, "visible")
			})
		})
	})
}

func TestLoggerFile(t *testing.T) {
	Convey("Given a log file", t, func() {
		path := filepath.Join(t.TempDir(), "run.log")
		var buf bytes.Buffer
		So(Init(WithOutput(&buf), WithLogFile(path)), ShouldBeNil)

		Reset(func() {
			_ = Init()
		})

		Convey("When logging", func() {
			Get().Info(context.Background(), "uploading dataset")
			So(Sync(), ShouldBeNil)

			Convey("Then the entry is teed to both writers", func() {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "uploading dataset")
				So(buf.String(), ShouldContainSubstring, "uploading dataset")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}
