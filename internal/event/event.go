// Package event provides a small typed publish/subscribe helper.
package event

import "sync"

// Emitter delivers values of type T to registered handlers. The zero value
// is ready to use.
type Emitter[T any] struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(T)
	order    []int
}

// On registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (e *Emitter[T]) On(fn func(T)) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[int]func(T))
	}
	id := e.next
	e.next++
	e.handlers[id] = fn
	e.order = append(e.order, id)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.handlers[id]; !ok {
			return
		}
		delete(e.handlers, id)
		for i, o := range e.order {
			if o == id {
				e.order = append(e.order[:i:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit calls every handler with v, in registration order, on the calling
// goroutine. Handlers may register or remove handlers; such changes apply
// from the next Emit.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	fns := make([]func(T), 0, len(e.order))
	for _, id := range e.order {
		fns = append(fns, e.handlers[id])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered handlers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}
