package booking

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTTL is how long an untouched form is kept.
const DefaultIdleTTL = 30 * time.Minute

type registryEntry struct {
	form    *Form
	touched time.Time
}

// Registry keeps the open booking forms of the session.
type Registry struct {
	mu    sync.RWMutex
	forms map[string]*registryEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a registry that forgets forms idle for longer than ttl.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Registry{
		forms: make(map[string]*registryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Open creates a new form for space.
func (r *Registry) Open(space SpaceInfo) *Form {
	form := NewForm(uuid.NewString(), space)
	form.now = r.now

	r.mu.Lock()
	r.forms[form.ID()] = &registryEntry{form: form, touched: r.now()}
	r.mu.Unlock()
	return form
}

// Get returns the form with id and marks it as used.
func (r *Registry) Get(id string) (*Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.forms[id]
	if !ok {
		return nil, false
	}
	entry.touched = r.now()
	return entry.form, true
}

// Close discards the form with id.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.forms[id]; !ok {
		return false
	}
	delete(r.forms, id)
	return true
}

// Forms returns every open form without touching them.
func (r *Registry) Forms() []*Form {
	r.mu.RLock()
	defer r.mu.RUnlock()

	forms := make([]*Form, 0, len(r.forms))
	for _, entry := range r.forms {
		forms = append(forms, entry.form)
	}
	return forms
}

// Len returns the number of open forms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms)
}

// Sweep discards forms idle beyond the TTL and returns how many went.
// A form mid-submission is kept until it settles.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.forms {
		if entry.touched.Before(cutoff) && entry.form.State() != StateSubmitting {
			delete(r.forms, id)
			removed++
		}
	}
	return removed
}

// Clear discards every form, e.g. when the session ends.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.forms = make(map[string]*registryEntry)
	r.mu.Unlock()
}
