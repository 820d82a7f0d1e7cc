package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/klynaa/internal/adapters/mq/queue"
	worker "github.com/okian/klynaa/internal/adapters/mq/worker"
	model "github.com/okian/klynaa/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingApplier struct {
	mu      sync.Mutex
	applied map[string]int
	fail    map[string]error
	delay   time.Duration
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{applied: make(map[string]int), fail: make(map[string]error)}
}

func (a *recordingApplier) Apply(ctx context.Context, r model.FillReading) error {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.fail[r.BinID]; ok {
		return err
	}
	a.applied[r.BinID] = r.FillLevel
	return nil
}

func (a *recordingApplier) level(binID string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.applied[binID]
	return v, ok
}

func reading(id, bin string, level int) model.FillReading {
	return model.FillReading{ReadingID: id, BinID: bin, FillLevel: level, TS: time.Now()}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		applier := newRecordingApplier()
		applier.fail["bin-bad"] = errors.New("platform rejected")
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("w-test"))
		ctx := context.Background()

		convey.Convey("When readings are queued and the queue is closed", func() {
			q.Enqueue(ctx, reading("rd-1", "bin-1", 40))
			q.Enqueue(ctx, reading("rd-2", "bin-bad", 90))
			q.Enqueue(ctx, reading("rd-3", "bin-2", 85))
			_ = q.Close()

			w.Run(ctx)

			convey.Convey("Then every reading is attempted and failures do not stop the worker", func() {
				l1, ok1 := applier.level("bin-1")
				l2, ok2 := applier.level("bin-2")
				_, okBad := applier.level("bin-bad")
				convey.So(ok1, convey.ShouldBeTrue)
				convey.So(l1, convey.ShouldEqual, 40)
				convey.So(ok2, convey.ShouldBeTrue)
				convey.So(l2, convey.ShouldEqual, 85)
				convey.So(okBad, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the context is canceled", func() {
			cctx, cancel := context.WithCancel(ctx)
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			w.Run(cctx)

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				default:
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		applier := newRecordingApplier()
		p := worker.NewPool(4, q, applier)
		ctx := context.Background()
		convey.So(p.Size(), convey.ShouldEqual, 4)

		convey.Convey("When readings are queued and the pool shuts down", func() {
			p.Start(ctx)
			for i := 0; i < 100; i++ {
				q.Enqueue(ctx, reading(fmt.Sprintf("rd-%d", i), fmt.Sprintf("bin-%d", i), i))
			}
			err := p.Shutdown(ctx)

			convey.Convey("Then queued readings are drained before the workers stop", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Processed(), convey.ShouldEqual, 100)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				lvl, ok := applier.level("bin-99")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(lvl, convey.ShouldEqual, 99)
			})

			convey.Convey("And a second shutdown is a no-op", func() {
				convey.So(p.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shutdown runs out of time", func() {
			applier.delay = time.Second
			p.Start(ctx)
			q.Enqueue(ctx, reading("rd-slow", "bin-slow", 10))
			time.Sleep(10 * time.Millisecond)

			sctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			err := p.Shutdown(sctx)

			convey.Convey("Then the workers are canceled and an error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				_, ok := applier.level("bin-slow")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the pool never started", func() {
			convey.Convey("Then shutdown still closes the queue", func() {
				convey.So(p.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestApplierFunc(t *testing.T) {
	convey.Convey("Given an ApplierFunc", t, func() {
		var got string
		f := worker.ApplierFunc(func(_ context.Context, r model.FillReading) error {
			got = r.ReadingID
			return nil
		})

		convey.Convey("Then Apply calls it", func() {
			convey.So(f.Apply(context.Background(), reading("rd-9", "b", 1)), convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, "rd-9")
		})
	})
}
