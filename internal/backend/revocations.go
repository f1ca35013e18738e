// ABOUTME: Size-bounded TTL set of revoked session token ids
// ABOUTME: Entries outlive the token they revoke, then age out in the background

package backend

import (
	"container/list"
	"sync"
	"time"
)

type revocation struct {
	at   time.Time
	elem *list.Element
}

// revocations remembers logged-out token ids until they would have expired
// anyway. When full, the oldest revocation is forgotten first.
type revocations struct {
	mu      sync.RWMutex
	ids     map[string]*revocation
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

func newRevocations(ttl time.Duration, maxSize int) *revocations {
	r := &revocations{
		ids:     make(map[string]*revocation),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go r.expireLoop()
	return r
}

func (r *revocations) contains(jti string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.ids[jti]
	return ok && time.Since(e.at) < r.ttl
}

func (r *revocations) add(jti string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if e, ok := r.ids[jti]; ok {
		e.at = now
		r.order.MoveToBack(e.elem)
		return
	}
	if len(r.ids) >= r.maxSize {
		if front := r.order.Front(); front != nil {
			r.order.Remove(front)
			delete(r.ids, front.Value.(string))
		}
	}
	r.ids[jti] = &revocation{at: now, elem: r.order.PushBack(jti)}
}

func (r *revocations) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

func (r *revocations) expireLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.expire(time.Now())
		case <-r.done:
			return
		}
	}
}

// expire drops entries older than the TTL. Entries are ordered by time, so
// the scan stops at the first live one.
func (r *revocations) expire(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for front := r.order.Front(); front != nil; front = r.order.Front() {
		jti := front.Value.(string)
		if now.Sub(r.ids[jti].at) < r.ttl {
			return
		}
		r.order.Remove(front)
		delete(r.ids, jti)
	}
}

func (r *revocations) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		close(r.done)
		r.closed = true
	}
}
