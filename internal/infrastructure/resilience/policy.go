package resilience

import "time"

// Operations that run through the executor.
const (
	OperationAuditPublish  = "audit.publish"
	OperationProcessLookup = "process.lookup"
)

// Config is the base retry and breaker budget. Tunings tighten it per
// operation.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Tunings map[string]Tuning
}

// Tuning caps the base budget for one operation. Zero fields leave the base
// value untouched, and a tuning never loosens the base.
type Tuning struct {
	RetryMaxAttempts   int
	RetryMaxBackoff    time.Duration
	BreakerOpenTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,

		Tunings: DefaultTunings(),
	}
}

// DefaultTunings covers the two executor users. Audit publish has a direct
// journal fallback; process lookup sits on the confidential read path.
func DefaultTunings() map[string]Tuning {
	return map[string]Tuning{
		OperationAuditPublish: {
			RetryMaxAttempts:   2,
			RetryMaxBackoff:    50 * time.Millisecond,
			BreakerOpenTimeout: 10 * time.Second,
		},
		OperationProcessLookup: {
			RetryMaxAttempts:   2,
			RetryMaxBackoff:    100 * time.Millisecond,
			BreakerOpenTimeout: 15 * time.Second,
		},
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	if out.Tunings == nil {
		out.Tunings = def.Tunings
	}

	return out
}

// forOperation returns the budget that applies to operation.
func (c Config) forOperation(operation string) Config {
	out := c
	t, ok := c.Tunings[operation]
	if !ok {
		return out
	}
	if t.RetryMaxAttempts > 0 && t.RetryMaxAttempts < out.RetryMaxAttempts {
		out.RetryMaxAttempts = t.RetryMaxAttempts
	}
	if t.RetryMaxBackoff > 0 && t.RetryMaxBackoff < out.RetryMaxBackoff {
		out.RetryMaxBackoff = t.RetryMaxBackoff
	}
	if out.RetryInitialBackoff > out.RetryMaxBackoff {
		out.RetryInitialBackoff = out.RetryMaxBackoff
	}
	if t.BreakerOpenTimeout > 0 && t.BreakerOpenTimeout < out.BreakerOpenTimeout {
		out.BreakerOpenTimeout = t.BreakerOpenTimeout
	}
	return out
}
