package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/sony/gobreaker"
)

// Retryable is implemented by errors that know whether a new attempt can help,
// such as HTTP status errors.
type Retryable interface {
	Retryable() bool
}

type RetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterDelay time.Duration
	ShouldRetry func(err error) bool
}

// DefaultShouldRetry retries transport errors and errors that report
// themselves retryable. Context cancellation is never retried.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:  2,
	BaseDelay:   250 * time.Millisecond,
	MaxDelay:    5 * time.Second,
	JitterDelay: 100 * time.Millisecond,
	ShouldRetry: DefaultShouldRetry,
}

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	FailureRatio     float64
	MinRequests      uint32
	OnStateChange    func(name string, from, to gobreaker.State)
	IsSuccessful     func(err error) bool
}

// DefaultIsSuccessful counts only retryable failures against the breaker;
// client errors such as a bad management key do not trip it.
func DefaultIsSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var r Retryable
	if errors.As(err, &r) {
		return !r.Retryable()
	}
	return errors.Is(err, context.Canceled)
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		FailureRatio:     0.6,
		MinRequests:      5,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
		IsSuccessful: DefaultIsSuccessful,
	}
}

type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	isSuccessful := cfg.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = func(err error) bool { return err == nil }
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  isSuccessful,
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (c *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	return c.cb.Execute(fn)
}

func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

func (c *CircuitBreaker) Name() string {
	return c.cb.Name()
}

// NewRetryPolicy builds a policy that returns the last failure once retries
// are exhausted instead of wrapping it.
func NewRetryPolicy[R any](cfg RetryConfig) retrypolicy.RetryPolicy[R] {
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	builder := retrypolicy.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool { return shouldRetry(err) }).
		WithMaxRetries(cfg.MaxRetries).
		ReturnLastFailure()
	switch {
	case cfg.BaseDelay > 0 && cfg.MaxDelay > cfg.BaseDelay:
		builder = builder.WithBackoff(cfg.BaseDelay, cfg.MaxDelay)
	case cfg.BaseDelay > 0:
		builder = builder.WithDelay(cfg.BaseDelay)
	}
	if cfg.JitterDelay > 0 {
		builder = builder.WithJitter(cfg.JitterDelay)
	}
	return builder.Build()
}

// Executor runs a call under a retry policy, optionally behind a breaker.
// The breaker sees one outcome per call, after retries.
type Executor[R any] struct {
	executor failsafe.Executor[R]
	breaker  *CircuitBreaker
}

func NewExecutor[R any](retryConfig RetryConfig, breakerConfig *BreakerConfig) *Executor[R] {
	rp := NewRetryPolicy[R](retryConfig)

	var breaker *CircuitBreaker
	if breakerConfig != nil {
		breaker = NewCircuitBreaker(*breakerConfig)
	}

	return &Executor[R]{
		executor: failsafe.With(rp),
		breaker:  breaker,
	}
}

func (e *Executor[R]) Execute(ctx context.Context, fn func() (R, error)) (R, error) {
	if e.breaker != nil {
		var result R
		_, err := e.breaker.Execute(func() (any, error) {
			var err error
			result, err = e.executor.WithContext(ctx).Get(fn)
			return nil, err
		})
		return result, err
	}
	return e.executor.WithContext(ctx).Get(fn)
}

func (e *Executor[R]) CircuitBreaker() *CircuitBreaker {
	return e.breaker
}
