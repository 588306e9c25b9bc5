package command

import (
	"fmt"
	"sort"
	"sync"
)

// LockSet tracks which features the vehicle firmware currently refuses.
// Commands touching a locked feature are rejected before they reach the wire.
type LockSet struct {
	mu     sync.RWMutex
	locked map[Feature]bool
}

// NewLockSet returns a lock set initialized from the feature defaults.
func NewLockSet() *LockSet {
	l := &LockSet{locked: make(map[Feature]bool, len(specs))}
	for f, s := range specs {
		l.locked[f] = s.DefaultLocked
	}
	return l
}

// Lock marks a feature as locked.
func (l *LockSet) Lock(f Feature) error {
	return l.set(f, true)
}

// Unlock clears the lock on a feature.
func (l *LockSet) Unlock(f Feature) error {
	return l.set(f, false)
}

func (l *LockSet) set(f Feature, locked bool) error {
	if _, ok := Lookup(f); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, f)
	}
	l.mu.Lock()
	l.locked[f] = locked
	l.mu.Unlock()
	return nil
}

// Locked reports whether a feature is locked.
func (l *LockSet) Locked(f Feature) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locked[f]
}

// Check returns ErrFeatureLocked if any field of the command is locked.
func (l *LockSet) Check(c Command) error {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, f := range c.Fields {
		if l.locked[f.Feature] {
			return fmt.Errorf("%w: %s", ErrFeatureLocked, f.Feature)
		}
	}
	return nil
}

// LockedFeatures returns the currently locked features in key order.
func (l *LockSet) LockedFeatures() []Feature {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Feature, 0, len(l.locked))
	for f, locked := range l.locked {
		if locked {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
