package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FailureRateThreshold: 0.5,
		WindowSize:           10,
		MinCalls:             5,
		WaitDurationInOpen:   20 * time.Millisecond,
		PermittedCallsInHalf: 2,
		CallTimeout:          time.Second,
	}
}

func TestCircuitOpensAndRecovers(t *testing.T) {
	b := New("alpaca", testConfig())

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	require.False(t, b.IsCallPermitted())
	require.Equal(t, Open, b.State())

	time.Sleep(25 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())
	require.True(t, b.IsCallPermitted())

	// One recorded failure in half-open returns to Open.
	b.RecordFailure()
	require.Equal(t, Open, b.State())
}

func TestHalfOpenClosesAfterPermittedSuccesses(t *testing.T) {
	b := New("databento", testConfig())
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(25 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	for i := 0; i < b.config.PermittedCallsInHalf; i++ {
		require.True(t, b.IsCallPermitted())
		b.RecordSuccess()
	}
	assert.Equal(t, Closed, b.State())
}

func TestClosedStaysClosedBelowThreshold(t *testing.T) {
	b := New("ibkr", testConfig())
	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	for i := 0; i < 3; i++ {
		b.RecordSuccess()
	}
	assert.Equal(t, Closed, b.State())
}

func TestManagerGetOrCreateIsStable(t *testing.T) {
	m := NewManager(testConfig())
	a := m.GetOrCreate("stops-monitor")
	b := m.GetOrCreate("stops-monitor")
	assert.Same(t, a, b)
}

func TestAllowReturnsTypedError(t *testing.T) {
	b := New("alpaca", testConfig())
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	err := b.Allow()
	require.Error(t, err)
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
}
