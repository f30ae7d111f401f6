// Package breaker is a count-based circuit breaker.
//
// The breaker keeps the outcome of the last RecordLength calls. When the failed
// share reaches Percentile it opens and rejects calls with ErrOpen until Timeout
// has passed, then lets calls through half-open. RecoveryRequests successes in a
// row close it again; a single failure re-opens it.
package breaker

import (
	"errors"
	"sync"
	"time"
)

type State uint8

const (
	Closed State = iota + 1
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	RecordLength     int
	Timeout          time.Duration
	Percentile       float64
	RecoveryRequests int
	// Now defaults to time.Now.
	Now func() time.Time
}

type Breaker struct {
	mu       sync.Mutex
	settings Settings

	state    State
	openedAt time.Time
	outcomes []bool // true = failed
	pos      int
	recovery int
}

func New(s Settings) *Breaker {
	if s.RecordLength <= 0 {
		s.RecordLength = 1
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &Breaker{
		settings: s,
		state:    Closed,
		outcomes: make([]bool, s.RecordLength),
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call runs fn unless the breaker is open and records its outcome.
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.state == Open {
		if b.settings.Now().Sub(b.openedAt) <= b.settings.Timeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.recovery = 0
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcomes[b.pos] = err != nil
	b.pos = (b.pos + 1) % len(b.outcomes)

	if b.state == HalfOpen {
		if err != nil {
			b.trip()
			return err
		}
		b.recovery++
		if b.recovery >= b.settings.RecoveryRequests {
			b.reset()
		}
		return nil
	}

	fails := 0
	for _, failed := range b.outcomes {
		if failed {
			fails++
		}
	}
	if float64(fails)/float64(len(b.outcomes)) >= b.settings.Percentile {
		b.trip()
	}
	return err
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *Breaker) trip() {
	b.state = Open
	b.recovery = 0
	b.openedAt = b.settings.Now()
}

func (b *Breaker) reset() {
	for i := range b.outcomes {
		b.outcomes[i] = false
	}
	b.pos = 0
	b.recovery = 0
	b.state = Closed
}
