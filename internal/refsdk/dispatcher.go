package refsdk

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Dispatcher is a fixed-size worker pool. Tasks run in submission order per
// worker; there is no ordering across workers.
type Dispatcher struct {
	*handle
	workers int
	tasks   chan func()
	g       errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func newDispatcher(h *handle, workers int) *Dispatcher {
	d := &Dispatcher{
		handle:  h,
		workers: workers,
		tasks:   make(chan func(), workers*4),
	}
	for w := 0; w < workers; w++ {
		d.g.Go(func() error {
			for task := range d.tasks {
				task()
			}
			return nil
		})
	}
	return d
}

func (d *Dispatcher) Workers() int { return d.workers }

func (d *Dispatcher) Submit(task func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrReleased
	}
	d.tasks <- task
	return nil
}

// Release stops accepting tasks, drains the queue and waits for workers.
func (d *Dispatcher) Release() error {
	if err := d.release(); err != nil {
		return err
	}
	d.mu.Lock()
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()
	return d.g.Wait()
}
