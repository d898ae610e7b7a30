package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrAllFailed is matched by the error returned when no entry of a
// [FallbackGroup] produced a result. The error text is that of the last
// provider error so callers can surface it verbatim.
var ErrAllFailed = errors.New("resilience: all providers failed")

// exhaustedError reports the last provider failure of a fallback walk. It
// matches [ErrAllFailed], the provider error and, if some entry was skipped,
// [ErrCircuitOpen].
type exhaustedError struct {
	last        error
	circuitOpen bool
}

func (e *exhaustedError) Error() string { return e.last.Error() }

func (e *exhaustedError) Unwrap() []error {
	errs := []error{ErrAllFailed, e.last}
	if e.circuitOpen {
		errs = append(errs, ErrCircuitOpen)
	}
	return errs
}

// FallbackConfig configures the breaker created for every entry of a
// [FallbackGroup]. The breaker Name is overwritten with the entry name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary provider and ordered fallbacks of the same
// type, each behind its own [CircuitBreaker].
type FallbackGroup[T any] struct {
	cfg FallbackConfig

	mu      sync.RWMutex
	entries []fallbackEntry[T]
}

// NewFallbackGroup creates a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a provider tried after all previously added ones.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name

	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(bc),
	})
}

// Names returns the entry names in call order.
func (fg *FallbackGroup[T]) Names() []string {
	fg.mu.RLock()
	defer fg.mu.RUnlock()
	out := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		out[i] = e.name
	}
	return out
}

// Healthy reports whether at least one entry currently admits calls.
func (fg *FallbackGroup[T]) Healthy() bool {
	fg.mu.RLock()
	defer fg.mu.RUnlock()
	for _, e := range fg.entries {
		if e.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// States returns the breaker state of every entry keyed by name.
func (fg *FallbackGroup[T]) States() map[string]State {
	fg.mu.RLock()
	defer fg.mu.RUnlock()
	out := make(map[string]State, len(fg.entries))
	for _, e := range fg.entries {
		out[e.name] = e.breaker.State()
	}
	return out
}

func (fg *FallbackGroup[T]) snapshot() []fallbackEntry[T] {
	fg.mu.RLock()
	defer fg.mu.RUnlock()
	return append([]fallbackEntry[T](nil), fg.entries...)
}

// Execute runs fn against each entry until one succeeds.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult runs fn against each entry of fg in order and returns the
// first successful result. Entries with an open breaker are skipped. A
// cancelled or expired context stops the walk and is returned unwrapped.
// Otherwise the returned error carries the text of the last provider error
// and matches [ErrAllFailed]. An entry skipped for an open breaker
// contributes the failure that tripped it.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero        R
		lastErr     error
		circuitOpen bool
	)
	for _, entry := range fg.snapshot() {
		var result R
		err := entry.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(entry.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider with open circuit", "provider", entry.name)
			circuitOpen = true
			if lastErr == nil {
				lastErr = entry.breaker.LastFailure()
			}
			if lastErr == nil {
				lastErr = err
			}
			continue
		}
		slog.Warn("provider failed, trying next", "provider", entry.name, "err", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no providers registered")
	}
	return zero, &exhaustedError{last: lastErr, circuitOpen: circuitOpen}
}
