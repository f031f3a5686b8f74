package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/endpointeval/internal/adapters/mq/queue"
	worker "github.com/okian/endpointeval/internal/adapters/mq/worker"
	model "github.com/okian/endpointeval/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockPoller struct {
	mu       sync.Mutex
	errs     map[string]error
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (m *mockPoller) PollUntilReady(ctx context.Context, id string) (model.ExecutionReport, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.calls = append(m.calls, id)
	err := m.errs[id]
	m.mu.Unlock()

	if err != nil {
		return model.ExecutionReport{}, err
	}
	return model.ExecutionReport{ExecutionID: id, Stage: model.StageDataRetrieved}, nil
}

func fill(n int) *queue.InMemoryQueue {
	q := queue.NewInMemoryQueue(queue.WithCapacity(n))
	for i := 0; i < n; i++ {
		q.Enqueue(context.Background(), queue.Job{Seq: i, ExecutionID: fmt.Sprintf("e-%d", i)})
	}
	_ = q.Close()
	return q
}

func collect(p *worker.Pool) []worker.Result {
	var out []worker.Result
	for r := range p.Results() {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job.Seq < out[j].Job.Seq })
	return out
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool over a drained queue", t, func() {
		ctx := context.Background()

		convey.Convey("When every job succeeds", func() {
			poller := &mockPoller{delay: 5 * time.Millisecond}
			pool := worker.NewPool(3, fill(9), poller)
			pool.Start(ctx)
			results := collect(pool)

			convey.Convey("Then each job yields exactly one result", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(len(results), convey.ShouldEqual, 9)
				for i, r := range results {
					convey.So(r.Err, convey.ShouldBeNil)
					convey.So(r.Job.Seq, convey.ShouldEqual, i)
					convey.So(r.Report.ExecutionID, convey.ShouldEqual, fmt.Sprintf("e-%d", i))
				}
			})

			convey.Convey("Then no more than the pool size runs at once", func() {
				convey.So(poller.peak.Load(), convey.ShouldBeLessThanOrEqualTo, 3)
				convey.So(poller.peak.Load(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When one job fails", func() {
			poller := &mockPoller{errs: map[string]error{"e-1": errors.New("boom")}}
			pool := worker.NewPool(2, fill(3), poller)
			pool.Start(ctx)
			results := collect(pool)

			convey.Convey("Then the failure is reported on its result", func() {
				convey.So(len(results), convey.ShouldEqual, 3)
				convey.So(results[1].Err, convey.ShouldNotBeNil)
				convey.So(results[0].Err, convey.ShouldBeNil)
				convey.So(results[2].Err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the pool size is not positive", func() {
			pool := worker.NewPool(0, fill(1), &mockPoller{})

			convey.Convey("Then it falls back to one worker", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	convey.Convey("Given a running worker on an open queue", t, func() {
		q := queue.NewInMemoryQueue()
		results := make(chan worker.Result, 1)
		w := worker.NewInMemoryWorker(q, &mockPoller{}, results, worker.WithName("poller-x"))
		go w.Run(context.Background())

		convey.Convey("When it is shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := w.Shutdown(ctx)

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})
}
