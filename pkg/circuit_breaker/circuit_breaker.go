package circuit_breaker

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
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	// Window is the number of most recent calls used to compute the failure ratio.
	Window int `envconfig:"CB_WINDOW" default:"10"`
	// FailureRatio opens the breaker once failures/Window reaches it.
	FailureRatio float64 `envconfig:"CB_FAILURE_RATIO" default:"0.5"`
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration `envconfig:"CB_COOLDOWN" default:"30s"`
	// Recovery is the number of consecutive successful trials that close it.
	// It also caps the trials in flight while half-open.
	Recovery int `envconfig:"CB_RECOVERY" default:"3"`
}

type CircuitBreaker interface {
	Call(fn func() error) error
	State() State
	Reset()
}

type breaker struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	state    State
	openedAt time.Time
	outcomes []bool // true means failed
	pos      int
	trials   int
	inflight int
	gen      uint64 // bumped on every transition to half-open
}

func New(cfg Config) CircuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = 10
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.5
	}
	if cfg.Recovery <= 0 {
		cfg.Recovery = 1
	}
	return &breaker{
		cfg:      cfg,
		now:      time.Now,
		state:    Closed,
		outcomes: make([]bool, cfg.Window),
	}
}

// Call runs fn unless the breaker is open. Errors returned by fn are passed
// through unchanged; a rejected call returns ErrOpen.
func (b *breaker) Call(fn func() error) error {
	ok, trial, gen := b.allow()
	if !ok {
		return ErrOpen
	}
	err := fn()
	b.record(err != nil, trial, gen)
	return err
}

// allow reports whether a call may run and whether it is a half-open trial.
func (b *breaker) allow() (ok, trial bool, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true, false, 0
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, false, 0
		}
		b.state = HalfOpen
		b.trials = 0
		b.inflight = 0
		b.gen++
	}
	if b.inflight >= b.cfg.Recovery {
		return false, false, 0
	}
	b.inflight++
	return true, true, b.gen
}

func (b *breaker) record(failed, trial bool, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial && gen == b.gen && b.inflight > 0 {
		b.inflight--
	}

	b.outcomes[b.pos] = failed
	b.pos = (b.pos + 1) % len(b.outcomes)

	switch b.state {
	case HalfOpen:
		if !trial || gen != b.gen {
			return
		}
		if failed {
			b.trip()
			return
		}
		b.trials++
		if b.trials >= b.cfg.Recovery {
			b.reset()
		}
	case Closed:
		fails := 0
		for _, f := range b.outcomes {
			if f {
				fails++
			}
		}
		if float64(fails)/float64(len(b.outcomes)) >= b.cfg.FailureRatio {
			b.trip()
		}
	}
}

func (b *breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.trials = 0
	b.inflight = 0
}

func (b *breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *breaker) reset() {
	for i := range b.outcomes {
		b.outcomes[i] = false
	}
	b.pos = 0
	b.trials = 0
	b.inflight = 0
	b.state = Closed
}
