package apierror_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/okian/klynaa/internal/domain/apierror"
	. "github.com/smartystreets/goconvey/convey"
)

type statusErr struct {
	msg    string
	status int
}

func (e statusErr) Error() string   { return e.msg }
func (e statusErr) StatusCode() int { return e.status }

type validationErr struct{}

func (validationErr) Error() string { return "validation failed" }
func (validationErr) ErrorDetails() map[string][]string {
	return map[string][]string{"fill_level": {"must be between 0 and 100"}}
}

type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func TestNormalize(t *testing.T) {
	Convey("Given failures of different shapes", t, func() {
		Convey("When the failure is nil", func() {
			Convey("Then Normalize returns nil", func() {
				So(apierror.Normalize(nil), ShouldBeNil)
				So(apierror.StatusOf(nil), ShouldEqual, 0)
			})
		})

		Convey("When the failure is a plain error", func() {
			cause := errors.New("dial tcp: connection refused")
			e := apierror.Normalize(cause)

			Convey("Then the message is kept and the status defaults to 500", func() {
				So(e.Message, ShouldEqual, "dial tcp: connection refused")
				So(e.Status, ShouldEqual, http.StatusInternalServerError)
				So(e.Details, ShouldBeNil)
				So(errors.Is(e, cause), ShouldBeTrue)
			})
		})

		Convey("When the failure has an empty message", func() {
			e := apierror.Normalize(emptyErr{})

			Convey("Then the fallback message is used", func() {
				So(e.Message, ShouldEqual, apierror.FallbackMessage)
				So(e.Status, ShouldEqual, apierror.DefaultStatus)
			})
		})

		Convey("When the failure carries a status", func() {
			e := apierror.Normalize(fmt.Errorf("get pickup: %w", statusErr{msg: "pickup not found", status: 404}))

			Convey("Then the status is taken from the failure", func() {
				So(e.Status, ShouldEqual, http.StatusNotFound)
				So(e.Message, ShouldEqual, "get pickup: pickup not found")
			})
		})

		Convey("When the failure carries a zero status", func() {
			e := apierror.Normalize(statusErr{msg: "odd", status: 0})

			Convey("Then the default status is used", func() {
				So(e.Status, ShouldEqual, apierror.DefaultStatus)
			})
		})

		Convey("When the failure carries details", func() {
			e := apierror.Normalize(validationErr{})

			Convey("Then details are passed through", func() {
				So(e.Details, ShouldResemble, map[string][]string{"fill_level": {"must be between 0 and 100"}})
			})
		})

		Convey("When the failure is already an *Error", func() {
			orig := apierror.New(http.StatusConflict, "pickup already accepted").
				WithDetails(map[string][]string{"status": {"accepted"}})
			e := apierror.Normalize(fmt.Errorf("accept: %w", orig))

			Convey("Then it is reused as a copy", func() {
				So(e.Message, ShouldEqual, "pickup already accepted")
				So(e.Status, ShouldEqual, http.StatusConflict)
				So(e.Details["status"], ShouldResemble, []string{"accepted"})
				So(e, ShouldNotPointTo, orig)
				e.Details["status"] = nil
				So(orig.Details["status"], ShouldResemble, []string{"accepted"})
			})
		})

		Convey("When the failure is a context cancellation", func() {
			e := apierror.Normalize(context.Canceled)

			Convey("Then it stays matchable", func() {
				So(errors.Is(e, context.Canceled), ShouldBeTrue)
				So(e.Status, ShouldEqual, apierror.DefaultStatus)
			})
		})
	})
}

func TestErrorMatching(t *testing.T) {
	Convey("Given an *Error", t, func() {
		e := apierror.Wrap(http.StatusUnauthorized, "token expired", errors.New("401"))

		Convey("Then it matches errors with the same status", func() {
			So(errors.Is(e, apierror.New(http.StatusUnauthorized, "")), ShouldBeTrue)
			So(errors.Is(e, apierror.New(http.StatusForbidden, "")), ShouldBeFalse)
		})

		Convey("Then it formats message and status", func() {
			So(e.Error(), ShouldEqual, "token expired (status 401)")
			So(apierror.StatusOf(e), ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then New fills missing values", func() {
			n := apierror.New(0, "")
			So(n.Message, ShouldEqual, apierror.FallbackMessage)
			So(n.Status, ShouldEqual, apierror.DefaultStatus)
		})
	})
}
