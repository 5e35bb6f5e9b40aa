package fetch

import (
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// breakers holds one circuit breaker per host.
type breakers struct {
	threshold int64
	mu        sync.RWMutex
	byHost    map[string]*circuit.Breaker
}

func newBreakers(threshold int64) *breakers {
	return &breakers{threshold: threshold, byHost: make(map[string]*circuit.Breaker)}
}

// get returns or creates the breaker for host.
func (b *breakers) get(host string) *circuit.Breaker {
	b.mu.RLock()
	breaker, ok := b.byHost[host]
	b.mu.RUnlock()
	if ok {
		return breaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if breaker, ok := b.byHost[host]; ok {
		return breaker
	}

	// Trips after threshold consecutive failures and half-opens on an
	// exponential schedule.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ConsecutiveTripFunc(b.threshold),
	})
	b.byHost[host] = breaker
	return breaker
}

// BreakerStates reports "open" or "closed" per host contacted so far.
func (f *Fetcher) BreakerStates() map[string]string {
	f.breakers.mu.RLock()
	defer f.breakers.mu.RUnlock()

	states := make(map[string]string, len(f.breakers.byHost))
	for host, breaker := range f.breakers.byHost {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
