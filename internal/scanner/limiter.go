package scanner

import "sync"

// scanLimiter enforces the new-scan limit as a hard ceiling under
// concurrency. A permit is reserved before a gateway call is issued and
// counts until the scan ends; only failed calls hand their permit back.
// Counting in-flight work in the reservation is what keeps racing workers
// from overshooting the limit.
type scanLimiter struct {
	mu       sync.Mutex
	limit    int // 0 = unlimited
	reserved int
}

func newScanLimiter(limit int) *scanLimiter {
	return &scanLimiter{limit: limit}
}

// TryReserve claims one permit. Returns false when the ceiling is reached.
func (l *scanLimiter) TryReserve() bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reserved >= l.limit {
		return false
	}
	l.reserved++
	return true
}

// Release hands a permit back after a failed attempt, so the failed item
// does not consume budget.
func (l *scanLimiter) Release() {
	if l.limit <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reserved > 0 {
		l.reserved--
	}
}

// Exhausted reports whether no further permits are available. The producer
// checks this to stop admitting new work; in-flight work always drains.
func (l *scanLimiter) Exhausted() bool {
	if l.limit <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved >= l.limit
}
