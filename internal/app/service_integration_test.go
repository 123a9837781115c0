package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/loopwise/internal/app"
	"github.com/okian/loopwise/internal/domain/dynamics"
	"github.com/okian/loopwise/internal/domain/model"
	"github.com/okian/loopwise/pkg/logger"
)

var sample = []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}

func doubled(entity string) model.Request {
	b := make([]float64, len(sample))
	for i, v := range sample {
		b[i] = 2 * v
	}
	return model.Request{
		EntityName:  entity,
		DomainLabel: "retail",
		TimeSeries:  map[string][]float64{"a": sample, "b": b},
	}
}

// waitTerminal polls until the job reaches a terminal status or times out.
func waitTerminal(ctx context.Context, svc *service.Service, id string) model.Job {
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := svc.Job(ctx, id)
		if err == nil && job.Status.Terminal() {
			return job
		}
		if time.Now().After(deadline) {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithDedupeSize(500),
			service.WithLogger(logger.Nop()),
			service.WithEngineOptions(dynamics.WithMaxLag(0)),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When an analysis is submitted", func() {
			sub, err := svc.Submit(ctx, doubled("Acme"))
			So(err, ShouldBeNil)
			So(sub.JobID, ShouldNotBeEmpty)
			So(sub.Duplicate, ShouldBeFalse)

			Convey("Then it completes with the engine result", func() {
				job := waitTerminal(ctx, svc, sub.JobID)
				So(job.Status, ShouldEqual, model.StatusSucceeded)
				So(job.Error, ShouldBeEmpty)
				So(job.Result, ShouldNotBeNil)
				So(job.Result.CausalLinks, ShouldHaveLength, 1)
				So(job.Result.MetricsAnalyzed, ShouldEqual, 2)
				So(job.StartedAt.IsZero(), ShouldBeFalse)
				So(job.FinishedAt.Before(job.StartedAt), ShouldBeFalse)
			})

			Convey("Then the same request is reported as a duplicate", func() {
				again, err := svc.Submit(ctx, doubled("Acme"))
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.JobID, ShouldEqual, sub.JobID)
			})

			Convey("Then a different request gets its own job", func() {
				other, err := svc.Submit(ctx, doubled("Globex"))
				So(err, ShouldBeNil)
				So(other.Duplicate, ShouldBeFalse)
				So(other.JobID, ShouldNotEqual, sub.JobID)
			})
		})

		Convey("When several analyses are queued and the service stops", func() {
			ids := make([]string, 0, 20)
			for i := 0; i < 20; i++ {
				sub, err := svc.Submit(ctx, doubled(fmt.Sprintf("entity-%d", i)))
				So(err, ShouldBeNil)
				ids = append(ids, sub.JobID)
			}
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then every queued job was drained to a terminal state", func() {
				for _, id := range ids {
					job, err := svc.Job(ctx, id)
					So(err, ShouldBeNil)
					So(job.Status, ShouldEqual, model.StatusSucceeded)
				}
			})
		})
	})

	Convey("Given a service that keeps a single result", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithResultCacheSize(1),
			service.WithLogger(logger.Nop()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		first, err := svc.Submit(ctx, doubled("first"))
		So(err, ShouldBeNil)
		waitTerminal(ctx, svc, first.JobID)
		second, err := svc.Submit(ctx, doubled("second"))
		So(err, ShouldBeNil)
		waitTerminal(ctx, svc, second.JobID)

		Convey("When an evicted request is submitted again", func() {
			again, err := svc.Submit(ctx, doubled("first"))

			Convey("Then it is accepted as a new job", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeFalse)
				So(again.JobID, ShouldNotEqual, first.JobID)
			})
		})
	})
}
