package admission

import "sync"

// ExclusiveLeases tracks which principal currently holds an exclusive
// claim on a named resource. Exactly one of a set of racing claimants
// succeeds; the rest observe ExclusiveHeld (spec.md §8 scenario 5).
type ExclusiveLeases struct {
	mu      sync.Mutex
	holders map[string]string // resource -> principal
}

// NewExclusiveLeases constructs an empty lease tracker.
func NewExclusiveLeases() *ExclusiveLeases {
	return &ExclusiveLeases{holders: make(map[string]string)}
}

// TryAcquire attempts to claim resource for principal. It returns true and
// records the claim if resource is unheld or already held by principal;
// otherwise it returns false without mutating state.
func (l *ExclusiveLeases) TryAcquire(resource, principal string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, held := l.holders[resource]; held && holder != principal {
		return false
	}
	l.holders[resource] = principal
	return true
}

// Release drops principal's claim on resource, if it holds one.
func (l *ExclusiveLeases) Release(resource, principal string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders[resource] == principal {
		delete(l.holders, resource)
	}
}
