package sink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/medisync/realtime/internal/observability"
	"go.uber.org/zap"
)

const QueueSize = 256

// Async decouples publishers from slow sinks. Publish never blocks: when the
// queue is full the event is dropped and counted.
type Async struct {
	name   string
	next   Sink
	queue  chan Event
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	wg     sync.WaitGroup
}

func NewAsync(name string, next Sink, size int) *Async {
	if size <= 0 {
		size = QueueSize
	}
	a := &Async{
		name:  name,
		next:  next,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *Async) Publish(_ context.Context, e Event) error {
	if a.closed.Load() {
		return nil
	}
	select {
	case a.queue <- e:
	default:
		observability.SinkErrorsTotal.WithLabelValues(a.name).Inc()
		observability.GetLogger(context.Background()).Warn("sink: queue overflow, dropping event", zap.String("sink", a.name), zap.String("type", string(e.Type)))
	}
	return nil
}

func (a *Async) loop() {
	defer a.wg.Done()
	ctx := context.Background()
	for {
		select {
		case e := <-a.queue:
			a.deliver(ctx, e)
		case <-a.done:
			// Drain what was accepted before Close.
			for {
				select {
				case e := <-a.queue:
					a.deliver(ctx, e)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(ctx context.Context, e Event) {
	if err := a.next.Publish(ctx, e); err != nil {
		observability.SinkErrorsTotal.WithLabelValues(a.name).Inc()
		observability.GetLogger(ctx).Error("sink: publish failed", zap.String("sink", a.name), zap.Error(err))
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.done)
	})
	a.wg.Wait()
}
