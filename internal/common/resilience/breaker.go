package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	apperrors "agency-assistant/internal/common/errors"
)

// StateChangeFunc observes breaker transitions.
type StateChangeFunc func(endpoint, from, to string)

// Breakers keeps one circuit breaker per endpoint. A breaker opens after
// the configured consecutive failures, stays open for openFor, then lets a
// single probe through.
type Breakers struct {
	mu       sync.Mutex
	failures uint32
	openFor  time.Duration
	onChange StateChangeFunc
	m        map[string]*gobreaker.CircuitBreaker
}

func NewBreakers(failures int, openFor time.Duration, onChange StateChangeFunc) *Breakers {
	if failures <= 0 {
		failures = 5
	}
	if openFor <= 0 {
		openFor = 60 * time.Second
	}
	return &Breakers{
		failures: uint32(failures),
		openFor:  openFor,
		onChange: onChange,
		m:        make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *Breakers) get(endpoint string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.m[endpoint]; ok {
		return cb
	}
	threshold := b.failures
	st := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     b.openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
	}
	if b.onChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			b.onChange(name, from.String(), to.String())
		}
	}
	cb := gobreaker.NewCircuitBreaker(st)
	b.m[endpoint] = cb
	return cb
}

// Execute runs fn through the endpoint's breaker. Caller-side failures
// (cancellation, invalid input) do not count against the endpoint.
func (b *Breakers) Execute(endpoint string, fn func() error) error {
	var callErr error
	_, err := b.get(endpoint).Execute(func() (interface{}, error) {
		callErr = fn()
		if callErr != nil && countsAgainstEndpoint(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewCircuitOpenError(endpoint)
	}
	if err != nil {
		return err
	}
	return callErr
}

// State returns the endpoint's breaker state name.
func (b *Breakers) State(endpoint string) string {
	return b.get(endpoint).State().String()
}

func countsAgainstEndpoint(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.KindCancelled, apperrors.KindValidation, apperrors.KindInvalidFormat, apperrors.KindNotFound:
		return false
	default:
		return true
	}
}
