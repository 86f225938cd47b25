// Package progress synthesises a progress value while a request is outstanding.
// The value carries no information about the server; it only keeps the bar moving.
package progress

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Profile sets tick cadence, the largest per-tick increment and the
// ceiling the value never passes while the request is in flight.
type Profile struct {
	Interval time.Duration
	MaxStep  float64
	Ceiling  float64
}

var (
	FileConvert  = Profile{Interval: 500 * time.Millisecond, MaxStep: 15, Ceiling: 85}
	URLConvert   = Profile{Interval: 800 * time.Millisecond, MaxStep: 8, Ceiling: 80}
	MetadataEdit = Profile{Interval: 400 * time.Millisecond, MaxStep: 20, Ceiling: 85}
)

const (
	// Resolving is shown while the response body is parsed.
	Resolving = 95.0
	Complete  = 100.0
)

// Advance moves current up by step, clamped to ceiling. It never moves down.
func Advance(current, step, ceiling float64) float64 {
	if step <= 0 || current >= ceiling {
		return current
	}
	next := current + step
	if next > ceiling {
		next = ceiling
	}
	return next
}

// Simulator starts tickers. Rand returns values in [0,1); nil uses math/rand/v2.
type Simulator struct {
	Rand func() float64
}

// Handle owns one running ticker.
type Handle struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Start ticks from the given value, reporting each increase to onTick from a
// background goroutine.
func (s Simulator) Start(p Profile, from float64, onTick func(float64)) *Handle {
	rnd := s.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	h := &Handle{stop: make(chan struct{}), done: make(chan struct{})}

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		value := from
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
			}
			next := Advance(value, rnd()*p.MaxStep, p.Ceiling)
			if next == value {
				continue
			}
			select {
			case <-h.stop:
				return
			default:
			}
			value = next
			onTick(value)
		}
	}()
	return h
}

// Stop cancels the ticker and waits for its goroutine to exit, so no tick is
// delivered after Stop returns. It is safe to call more than once but must
// not be called from inside onTick.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
