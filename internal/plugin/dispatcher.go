package plugin

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/ayusman/handbow/internal/game"
)

// DefaultQueueSize is the dispatcher's event buffer when none is given.
const DefaultQueueSize = 64

// runner executes one plugin request.
type runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// DispatcherStats counts what happened to published events.
type DispatcherStats struct {
	Queued    uint64 `json:"queued"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// Dispatcher hands game events to subscribed plugins on its own goroutine.
// Publish never blocks; events are dropped when the queue is full.
type Dispatcher struct {
	manager *Manager
	exec    runner
	queue   chan game.Event

	queued    atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a dispatcher over the manager's plugins.
func NewDispatcher(m *Manager, exec *Executor, queueSize int) *Dispatcher {
	return newDispatcher(m, exec, queueSize)
}

func newDispatcher(m *Manager, exec runner, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		manager: m,
		exec:    exec,
		queue:   make(chan game.Event, queueSize),
	}
}

// Publish queues ev for delivery.
func (d *Dispatcher) Publish(ev game.Event) {
	select {
	case d.queue <- ev:
		d.queued.Add(1)
	default:
		d.dropped.Add(1)
	}
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Queued:    d.queued.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
	}
}

// Run delivers queued events until ctx is cancelled. Plugins for one event
// run one after another in name order.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev game.Event) {
	for _, p := range d.manager.Subscribers(ev.Kind) {
		resp, err := d.exec.Execute(ctx, p, &Request{Event: ev})
		switch {
		case err != nil:
			d.failed.Add(1)
			log.Printf("Plugin %s on %s: %v", p.Manifest.Name, ev.Kind, err)
		case !resp.Success:
			d.failed.Add(1)
			log.Printf("Plugin %s on %s: %s", p.Manifest.Name, ev.Kind, resp.Error)
		default:
			d.delivered.Add(1)
		}
	}
}
