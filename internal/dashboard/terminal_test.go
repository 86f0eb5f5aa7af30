package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/execore/internal/breaker"
)

func TestRenderIncludesBreakerAndOrderCount(t *testing.T) {
	out := Render(Snapshot{
		Env:    "paper",
		Broker: "paper",
		Breakers: map[string]breaker.Metrics{
			"alpaca": {Name: "alpaca", State: breaker.Closed, TotalCalls: 10},
		},
		Connected: true,
	})

	assert.Contains(t, out, "ACTIVE ORDERS: 0")
	assert.Contains(t, out, "alpaca")
	assert.Contains(t, out, "connected")
}

func TestConnLabel(t *testing.T) {
	assert.Equal(t, "connected", connLabel(true))
	assert.Equal(t, "disconnected", connLabel(false))
}
