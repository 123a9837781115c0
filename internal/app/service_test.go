package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/loopwise/internal/app"
	"github.com/okian/loopwise/internal/domain/model"
	"github.com/okian/loopwise/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it reports defaults before starting", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 1_024)
			So(stats["maxMetrics"], ShouldEqual, 64)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithResultCacheSize(100),
			service.WithDedupeSize(25_000),
			service.WithDedupeTTL(time.Minute),
			service.WithMaxMetrics(3),
			service.WithQueueSize(-1),
		)

		Convey("Then valid values are applied and invalid ones ignored", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50_000)
			So(stats["resultCacheSize"], ShouldEqual, 100)
			So(stats["dedupeSize"], ShouldEqual, 25_000)
			So(stats["maxMetrics"], ShouldEqual, 3)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(service.WithWorkerCount(2), service.WithLogger(logger.Nop()))

		Convey("When it is used before starting", func() {
			_, err := svc.Submit(ctx, model.Request{TimeSeries: map[string][]float64{"a": {1, 2, 3}}})
			So(errors.Is(err, model.ErrNotStarted), ShouldBeTrue)

			_, err = svc.Job(ctx, "x")
			So(errors.Is(err, model.ErrNotStarted), ShouldBeTrue)

			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			Reset(func() { _ = svc.Stop(ctx) })

			Convey("Then it is marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["storedJobs"], ShouldEqual, 0)
			})

			Convey("Then stopping twice is safe", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_SubmitValidation(t *testing.T) {
	Convey("Given a started service limited to two metrics", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(service.WithMaxMetrics(2), service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When the request has no series", func() {
			_, err := svc.Submit(ctx, model.Request{})
			So(errors.Is(err, model.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("When the request has too many metrics", func() {
			_, err := svc.Submit(ctx, model.Request{TimeSeries: map[string][]float64{
				"a": {1, 2, 3}, "b": {1, 2, 3}, "c": {1, 2, 3},
			}})
			So(errors.Is(err, model.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("When a named metric is missing", func() {
			_, err := svc.Submit(ctx, model.Request{
				MetricNames: []string{"a", "b"},
				TimeSeries:  map[string][]float64{"a": {1, 2, 3}},
			})
			So(errors.Is(err, model.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("Then rejected requests leave nothing behind", func() {
			_, _ = svc.Submit(ctx, model.Request{})
			So(svc.GetStats()["storedJobs"], ShouldEqual, 0)
			So(svc.GetStats()["dedupeEntries"], ShouldEqual, 0)
		})

		Convey("When an unknown job is requested", func() {
			_, err := svc.Job(ctx, "missing")
			So(errors.Is(err, model.ErrJobNotFound), ShouldBeTrue)
		})
	})
}

func TestService_ConcurrentIdenticalSubmissions(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc := service.New(service.WithWorkerCount(2), service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When many goroutines submit the same request at once", func() {
			const rounds, submitters = 50, 64

			distinctIDs := make([]int, rounds)
			accepted := make([]int, rounds)
			for r := 0; r < rounds; r++ {
				req := model.Request{
					EntityName: "acme-" + strconv.Itoa(r),
					TimeSeries: map[string][]float64{
						"revenue": {1, 2, 3, 4, 5, 6},
						"margin":  {2, 4, 6, 8, 10, 12},
					},
				}

				var (
					mu  sync.Mutex
					wg  sync.WaitGroup
					ids = make(map[string]struct{})
				)
				start := make(chan struct{})
				for i := 0; i < submitters; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						<-start
						sub, err := svc.Submit(ctx, req)
						if err != nil {
							return
						}
						mu.Lock()
						ids[sub.JobID] = struct{}{}
						if !sub.Duplicate {
							accepted[r]++
						}
						mu.Unlock()
					}()
				}
				close(start)
				wg.Wait()
				distinctIDs[r] = len(ids)
			}

			Convey("Then every round resolves to exactly one job", func() {
				for r := 0; r < rounds; r++ {
					So(distinctIDs[r], ShouldEqual, 1)
					So(accepted[r], ShouldEqual, 1)
				}
				So(svc.GetStats()["dedupeEntries"], ShouldEqual, rounds)
			})
		})
	})
}
