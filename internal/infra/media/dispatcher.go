package media

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// dispatcher delivers signals to subscribers on its own goroutine so that
// subscribers may call back into the handle.
type dispatcher struct {
	mu   sync.Mutex
	subs map[uint64]func(playback.Signal)
	next uint64

	ch   chan playback.Signal
	done chan struct{}
	once sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		subs: make(map[uint64]func(playback.Signal)),
		ch:   make(chan playback.Signal, 128),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn func(playback.Signal)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.next
	d.next++
	d.subs[id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

// emit queues sig without blocking.
func (d *dispatcher) emit(sig playback.Signal) {
	select {
	case <-d.done:
		return
	default:
	}

	select {
	case d.ch <- sig:
	case <-d.done:
	default:
		zlog.Debug().Msgf("media: signal queue full, dropping %s", sig.Type)
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case sig := <-d.ch:
			d.deliver(sig)
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) deliver(sig playback.Signal) {
	d.mu.Lock()
	fns := make([]func(playback.Signal), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(sig)
	}
}

func (d *dispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func (d *dispatcher) close() {
	d.once.Do(func() {
		close(d.done)
	})
}
