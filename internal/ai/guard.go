package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"cv-rag-platform/internal/logger"
)

var (
	ErrBudgetExceeded = errors.New("rate limit exceeded: wait before retry")
	ErrCircuitOpen    = errors.New("provider circuit breaker is open")
)

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// GenerationLimits are the published generative model quotas per tier.
func GenerationLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// EmbeddingLimits are the embedding model quotas per tier.
func EmbeddingLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 3000, TPM: 5000000, RPD: 100000}
	case "tier2":
		return RateLimits{RPM: 5000, TPM: 10000000, RPD: 500000}
	default:
		return RateLimits{RPM: 1500, TPM: 1000000, RPD: 10000}
	}
}

// Guard wraps provider calls with a token budget, a request rate limiter
// and a circuit breaker.
type Guard struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	counter *TokenCounter
}

func NewGuard(name string, limits RateLimits) *Guard {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("Circuit breaker opened", "breaker", name, "from", from.String())
				return
			}
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	burst := limits.RPM / 10
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burst)

	return &Guard{
		name:    name,
		breaker: breaker,
		limiter: limiter,
		counter: NewTokenCounter(limits),
	}
}

// Do runs fn once the budget, limiter and breaker allow it. estimatedTokens
// is charged against the per minute and per day budget.
func (g *Guard) Do(ctx context.Context, estimatedTokens int, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	span := trace.SpanFromContext(ctx)

	if !g.counter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool(g.name+".rate_limited", true))
		return nil, ErrBudgetExceeded
	}

	if err := g.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool(g.name+".rate_limited", true))
		return nil, err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool(g.name+".circuit_breaker_open", true))
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	g.counter.RecordUsage(estimatedTokens, 1)
	return result, nil
}

func (g *Guard) State() string {
	return g.breaker.State().String()
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
	now             func() time.Time
}

func NewTokenCounter(limits RateLimits) *TokenCounter {
	return &TokenCounter{limits: limits, now: time.Now}
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := tc.now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// estimateTokens uses the rough 4 characters per token ratio.
func estimateTokens(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += len(t)
	}
	if n/4 < 1 {
		return 1
	}
	return n / 4
}
