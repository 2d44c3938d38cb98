package datarobot

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEndpointLabel(t *testing.T) {
	Convey("Resource ids are collapsed in metric labels", t, func() {
		base := "/api/v2/"
		So(endpointLabel(base, "/api/v2/projects/"), ShouldEqual, "projects")
		So(endpointLabel(base, "/api/v2/projects/5e1/"), ShouldEqual, "projects/:id")
		So(endpointLabel(base, "/api/v2/projects/5e1/models/6f2/advancedTuning/parameters/"),
			ShouldEqual, "projects/:id/models/:id/advancedTuning/parameters")
		So(endpointLabel(base, "/api/v2/projects/5e1/modelJobs/17/"), ShouldEqual, "projects/:id/modelJobs/:id")
		So(endpointLabel(base, "/api/v2/status/abc/"), ShouldEqual, "status/:id")
		So(endpointLabel(base, "/api/v2/"), ShouldEqual, "/")
	})
}

func TestErrorType(t *testing.T) {
	Convey("Status codes map to error types", t, func() {
		So(getErrorType(503), ShouldEqual, "server_error")
		So(getErrorType(429), ShouldEqual, "rate_limit")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(422), ShouldEqual, "client_error")
		So(getErrorType(200), ShouldEqual, "unknown")
	})
}

func TestIDFromLocation(t *testing.T) {
	Convey("Ids come from the last path segment", t, func() {
		id, err := idFromLocation("https://app.example.test/api/v2/projects/p1/modelJobs/42/")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, "42")

		id, err = idFromLocation("projects/p1/models/m9")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, "m9")

		_, err = idFromLocation("/")
		So(err, ShouldNotBeNil)
	})
}
