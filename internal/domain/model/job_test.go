package model_test

import (
	"errors"
	"math"
	"testing"

	model "github.com/okian/loopwise/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestRequest(t *testing.T) {
	convey.Convey("Given an analysis request", t, func() {
		req := model.Request{
			EntityName:  "Acme",
			DomainLabel: "retail",
			TimeSeries: map[string][]float64{
				"revenue": {1, 2, 3},
				"margin":  {3, 2, 1},
			},
		}

		convey.Convey("When no metric names are given", func() {
			convey.Convey("Then the sorted series keys are used", func() {
				convey.So(req.Names(), convey.ShouldResemble, []string{"margin", "revenue"})
			})
		})

		convey.Convey("When the fingerprint is computed twice", func() {
			convey.Convey("Then it is stable", func() {
				convey.So(req.Fingerprint(), convey.ShouldEqual, req.Fingerprint())
				convey.So(req.Fingerprint(), convey.ShouldHaveLength, 64)
			})
		})

		convey.Convey("When explicit names match the implied order", func() {
			explicit := req
			explicit.MetricNames = []string{"margin", "revenue"}

			convey.Convey("Then the fingerprint is unchanged", func() {
				convey.So(explicit.Fingerprint(), convey.ShouldEqual, req.Fingerprint())
			})
		})

		convey.Convey("When any observation changes", func() {
			changed := model.Request{
				EntityName:  "Acme",
				DomainLabel: "retail",
				TimeSeries: map[string][]float64{
					"revenue": {1, 2, 4},
					"margin":  {3, 2, 1},
				},
			}

			convey.Convey("Then the fingerprint differs", func() {
				convey.So(changed.Fingerprint(), convey.ShouldNotEqual, req.Fingerprint())
			})
		})

		convey.Convey("When the metric order changes", func() {
			reordered := req
			reordered.MetricNames = []string{"revenue", "margin"}

			convey.Convey("Then the fingerprint differs", func() {
				convey.So(reordered.Fingerprint(), convey.ShouldNotEqual, req.Fingerprint())
			})
		})
	})
}

func TestStatus(t *testing.T) {
	convey.Convey("Given job statuses", t, func() {
		convey.So(model.StatusQueued.Terminal(), convey.ShouldBeFalse)
		convey.So(model.StatusRunning.Terminal(), convey.ShouldBeFalse)
		convey.So(model.StatusSucceeded.Terminal(), convey.ShouldBeTrue)
		convey.So(model.StatusFailed.Terminal(), convey.ShouldBeTrue)
	})
}

func TestRequestValidate(t *testing.T) {
	convey.Convey("Given request validation", t, func() {
		valid := model.Request{TimeSeries: map[string][]float64{"a": {1, 2, 3}, "b": {3, 2, 1}}}

		convey.Convey("When the request is well formed", func() {
			convey.So(valid.Validate(10), convey.ShouldBeNil)
			convey.So(valid.Validate(0), convey.ShouldBeNil)
		})

		convey.Convey("When the series are empty", func() {
			err := model.Request{}.Validate(10)
			convey.So(errors.Is(err, model.ErrInvalidRequest), convey.ShouldBeTrue)
		})

		convey.Convey("When too many metrics are sent", func() {
			err := valid.Validate(1)
			convey.So(errors.Is(err, model.ErrInvalidRequest), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "limit of 1")
		})

		convey.Convey("When a named metric has no series", func() {
			req := valid
			req.MetricNames = []string{"a", "missing"}
			err := req.Validate(10)
			convey.So(errors.Is(err, model.ErrInvalidRequest), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "missing")
		})

		convey.Convey("When a value is not finite", func() {
			req := model.Request{TimeSeries: map[string][]float64{"a": {1, math.Inf(1), 3}}}
			err := req.Validate(10)
			convey.So(errors.Is(err, model.ErrInvalidRequest), convey.ShouldBeTrue)
		})
	})
}
