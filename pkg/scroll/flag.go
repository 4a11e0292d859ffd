package scroll

import "sync"

// Flag is an observable boolean cell.
// Subscribers are called synchronously, in subscription order, after every change.
type Flag struct {
	mu     sync.Mutex
	value  bool
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(bool)
}

// NewFlag creates a flag holding value.
func NewFlag(value bool) *Flag {
	return &Flag{value: value}
}

// Get returns the current value.
func (f *Flag) Get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set stores value and notifies subscribers if it changed.
func (f *Flag) Set(value bool) {
	f.mu.Lock()
	if f.value == value {
		f.mu.Unlock()
		return
	}
	f.value = value
	subs := append([]subscription(nil), f.subs...)
	f.mu.Unlock()

	for _, s := range subs {
		s.fn(value)
	}
}

// Subscribe registers fn for change notifications and returns a function that
// removes it. The returned function is safe to call more than once.
func (f *Flag) Subscribe(fn func(bool)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subs = append(f.subs, subscription{id: id, fn: fn})

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.subs {
			if s.id == id {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				return
			}
		}
	}
}
