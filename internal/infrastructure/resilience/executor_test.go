package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesTemporaryDomainFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	attempts := 0
	errTemp := domain.WrapError(domain.ErrTemporary, "lookup process", errors.New("conn reset"))
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, ClassifyDomainError)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryNotFound(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return domain.ErrDocumentNotFound
	}, ClassifyDomainError)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	got, err := Call(context.Background(), exec, "op", func(context.Context) (string, error) {
		return "owner", nil
	}, ClassifyDomainError)
	if err != nil || got != "owner" {
		t.Fatalf("Call() = %q, %v", got, err)
	}

	got, err = Call(context.Background(), nil, "op", func(context.Context) (string, error) {
		return "direct", nil
	}, nil)
	if err != nil || got != "direct" {
		t.Fatalf("Call() with nil executor = %q, %v", got, err)
	}
}

func TestExecuteOpensCircuitAndNotifiesObserver(t *testing.T) {
	var mu sync.Mutex
	transitions := []string{}
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, WithStateObserver(func(operation, from, to string) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, operation+":"+from+"->"+to)
	}))

	errDown := errors.New("broker down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), OperationAuditPublish, func(context.Context) error {
			return errDown
		}, ClassifyDomainError)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected broker error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), OperationAuditPublish, func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, ClassifyDomainError)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected open circuit to surface as temporary, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != OperationAuditPublish+":closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestExecuteAppliesOperationTuning(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryMaxAttempts = 5
	exec := NewExecutor(cfg)

	errTemp := domain.WrapError(domain.ErrTemporary, "lookup process", errors.New("conn reset"))
	count := func(operation string) int {
		attempts := 0
		_ = exec.Execute(context.Background(), operation, func(context.Context) error {
			attempts++
			return errTemp
		}, ClassifyDomainError)
		return attempts
	}

	if got := count(OperationProcessLookup); got != 2 {
		t.Fatalf("process lookup: expected 2 attempts, got %d", got)
	}
	if got := count("journal.export"); got != 5 {
		t.Fatalf("untuned operation: expected base 5 attempts, got %d", got)
	}
}

func TestTuningNeverLoosensBase(t *testing.T) {
	base := Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		BreakerOpenTimeout:  5 * time.Second,
	}.normalize()

	got := base.forOperation(OperationAuditPublish)
	if got.RetryMaxAttempts != 1 {
		t.Fatalf("tuning raised attempts to %d", got.RetryMaxAttempts)
	}
	if got.RetryMaxBackoff != 50*time.Millisecond || got.RetryInitialBackoff != 50*time.Millisecond {
		t.Fatalf("expected backoff capped at 50ms, got %s/%s", got.RetryInitialBackoff, got.RetryMaxBackoff)
	}
	if got.BreakerOpenTimeout != 5*time.Second {
		t.Fatalf("tuning raised open timeout to %s", got.BreakerOpenTimeout)
	}

	if other := base.forOperation("journal.export"); other.RetryMaxBackoff != time.Second {
		t.Fatalf("untuned operation changed: %+v", other)
	}
}

func TestClassifyDomainError(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
		rec   bool
	}{
		{name: "forbidden", err: domain.Forbidden("op", "no"), retry: false, rec: false},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), retry: true, rec: true},
		{name: "canceled", err: context.Canceled, retry: false, rec: false},
		{name: "unknown", err: errors.New("boom"), retry: false, rec: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyDomainError(tc.err)
			if got.Retryable != tc.retry || got.RecordFailure != tc.rec {
				t.Fatalf("ClassifyDomainError(%v) = %+v", tc.err, got)
			}
		})
	}
}
