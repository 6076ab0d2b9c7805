package session

import "sync"

// Observer holds at most one callback to run when the session is lost for good.
type Observer struct {
	mu sync.Mutex
	fn func()
}

// NewObserver creates an observer with no callback registered.
func NewObserver() *Observer {
	return &Observer{}
}

// Register installs fn, replacing any previous callback. A nil fn clears it.
func (o *Observer) Register(fn func()) {
	o.mu.Lock()
	o.fn = fn
	o.mu.Unlock()
}

// Registered reports whether a callback is installed.
func (o *Observer) Registered() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fn != nil
}

// Notify runs the registered callback synchronously, if any.
func (o *Observer) Notify() {
	o.mu.Lock()
	fn := o.fn
	o.mu.Unlock()

	if fn != nil {
		fn()
	}
}
