package session

import "sync"

// ActivitySource delivers user-interaction events (input, clicks, scrolls).
// Listen installs fn and returns a func that removes it.
type ActivitySource interface {
	Listen(fn func()) (stop func())
}

// ManualActivity is an ActivitySource fed by explicit Emit calls: the CLI
// shell emits on every entered line, tests emit directly.
type ManualActivity struct {
	mu        sync.Mutex
	listeners map[int]func()
	next      int
}

func NewManualActivity() *ManualActivity {
	return &ManualActivity{listeners: make(map[int]func())}
}

func (a *ManualActivity) Listen(fn func()) func() {
	a.mu.Lock()
	id := a.next
	a.next++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Emit notifies every listener of one activity event.
func (a *ManualActivity) Emit() {
	a.mu.Lock()
	fns := make([]func(), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Listeners reports how many listeners are installed.
func (a *ManualActivity) Listeners() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}
