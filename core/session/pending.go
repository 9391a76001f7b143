package session

import (
	"sync"
	"time"

	"github.com/kilianp07/csms/core/logger"
	"github.com/kilianp07/csms/core/ocpp"
)

// Outcome is the resolution of one outstanding call: the reply frame or an
// error, never both.
type Outcome struct {
	Frame *ocpp.Frame
	Err   error
}

type pendingCall struct {
	action   ocpp.Action
	issued   time.Time
	deadline time.Time
	ch       chan Outcome
}

// PendingCalls tracks central-system-initiated calls awaiting a reply for one
// session. Resolve runs on the read loop, Sweep on the sweep ticker, so all
// mutation is mutex-guarded. At most one waiter exists per correlation ID.
type PendingCalls struct {
	mu      sync.Mutex
	waiters map[string]*pendingCall
	log     logger.Logger
}

// NewPendingCalls returns an empty registry.
func NewPendingCalls(log logger.Logger) *PendingCalls {
	return &PendingCalls{waiters: make(map[string]*pendingCall), log: log}
}

// Register creates a waiter for the given correlation ID. The returned
// channel receives exactly one Outcome.
func (p *PendingCalls) Register(id string, action ocpp.Action, timeout time.Duration) <-chan Outcome {
	now := time.Now()
	pc := &pendingCall{
		action:   action,
		issued:   now,
		deadline: now.Add(timeout),
		ch:       make(chan Outcome, 1),
	}
	p.mu.Lock()
	p.waiters[id] = pc
	p.mu.Unlock()
	return pc.ch
}

// Resolve delivers a reply frame to its waiter. A reply with no waiter is a
// protocol anomaly (the station answered something it was never asked, or
// answered twice) and is logged, not fatal.
func (p *PendingCalls) Resolve(f *ocpp.Frame) {
	p.mu.Lock()
	pc, ok := p.waiters[f.ID]
	if ok {
		delete(p.waiters, f.ID)
	}
	p.mu.Unlock()
	if !ok {
		p.log.Warnf("reply for unknown call %s dropped", f.ID)
		return
	}
	pc.ch <- Outcome{Frame: f}
}

// Forget removes a waiter without resolving it, used when the caller gave up
// (context cancellation).
func (p *PendingCalls) Forget(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// Sweep evicts entries whose deadline has passed and resolves their waiters
// with ErrCallTimeout. It returns the number of evicted calls.
func (p *PendingCalls) Sweep(now time.Time) int {
	var expired []*pendingCall
	p.mu.Lock()
	for id, pc := range p.waiters {
		if now.After(pc.deadline) {
			delete(p.waiters, id)
			expired = append(expired, pc)
		}
	}
	p.mu.Unlock()
	for _, pc := range expired {
		p.log.Warnf("call %s timed out after %s", pc.action, now.Sub(pc.issued))
		pc.ch <- Outcome{Err: ErrCallTimeout}
	}
	return len(expired)
}

// Flush resolves every outstanding waiter with the given error. Called when
// the session closes.
func (p *PendingCalls) Flush(err error) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[string]*pendingCall)
	p.mu.Unlock()
	for _, pc := range waiters {
		pc.ch <- Outcome{Err: err}
	}
}

// Len returns the number of outstanding calls.
func (p *PendingCalls) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
