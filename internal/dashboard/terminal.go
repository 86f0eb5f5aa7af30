// Package dashboard renders a periodic terminal status view of the engine:
// active orders, per-breaker state, and quote-stream connectivity. Adapted
// from internal/dashboard/terminal.go (box-drawing constants,
// ticker-driven redraw), trimmed from a full market/signal/P&L UI down to
// the fields this engine actually tracks.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/web3guy0/execore/internal/breaker"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/orderstore"
)

const (
	topLeft     = "╔"
	topRight    = "╗"
	bottomLeft  = "╚"
	bottomRight = "╝"
	horizontal  = "═"
	vertical    = "║"
	teeRight    = "╠"
	teeLeft     = "╣"
)

const width = 67

// Snapshot is the data one redraw renders. Pulled fresh each tick rather
// than pushed, since every source (orderstore, breaker.Manager) is already
// its own thread-safe read.
type Snapshot struct {
	Env       string
	Broker    string
	Active    []orders.Order
	Breakers  map[string]breaker.Metrics
	Connected bool
}

// Terminal is a minimal periodic status view; it writes to stdout on every
// tick, it does not clear/redraw in place (no flicker-free diffing, unlike
// ProDashboard — this engine's operators read scrollback or
// pipe to a log aggregator instead of watching a live TTY).
type Terminal struct {
	store    *orderstore.Store
	breakers *breaker.Manager
	env      string
	broker   string

	connected func() bool
}

// NewTerminal wires a Terminal. connected reports the quote stream's
// connection state; it may be nil (always reported disconnected).
func NewTerminal(store *orderstore.Store, breakers *breaker.Manager, env, brokerName string, connected func() bool) *Terminal {
	return &Terminal{store: store, breakers: breakers, env: env, broker: brokerName, connected: connected}
}

// Run redraws at interval until ctx is cancelled.
func (t *Terminal) Run(ctx ctxDoner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.render()
		}
	}
}

// ctxDoner is the subset of context.Context Run needs, named locally so
// this package does not otherwise depend on context semantics.
type ctxDoner interface {
	Done() <-chan struct{}
}

func (t *Terminal) snapshot() Snapshot {
	connected := false
	if t.connected != nil {
		connected = t.connected()
	}
	return Snapshot{
		Env:       t.env,
		Broker:    t.broker,
		Active:    t.store.GetActive(),
		Breakers:  t.breakers.All(),
		Connected: connected,
	}
}

func (t *Terminal) render() {
	s := t.snapshot()
	fmt.Print(Render(s))
}

// Render formats a Snapshot as a box-drawn panel, exported for tests (no
// ANSI clear/cursor codes — plain text the caller can print or log).
func Render(s Snapshot) string {
	var b strings.Builder

	b.WriteString(topLeft + strings.Repeat(horizontal, width) + topRight + "\n")
	writeRow(&b, fmt.Sprintf(" EXECORE  env=%-8s broker=%-10s quotes=%s", s.Env, s.Broker, connLabel(s.Connected)))
	b.WriteString(teeRight + strings.Repeat(horizontal, width) + teeLeft + "\n")

	writeRow(&b, fmt.Sprintf(" ACTIVE ORDERS: %d", len(s.Active)))
	for _, o := range s.Active {
		writeRow(&b, fmt.Sprintf("   %-12s %-6s %-5s qty=%s filled=%s status=%s",
			o.ClientOrderId, o.Symbol, o.Side, o.RequestedQty.StringFixed(2), o.FilledQty.StringFixed(2), o.Status))
	}

	b.WriteString(teeRight + strings.Repeat(horizontal, width) + teeLeft + "\n")
	writeRow(&b, " CIRCUIT BREAKERS")
	for name, m := range s.Breakers {
		writeRow(&b, fmt.Sprintf("   %-16s state=%-10s calls=%-5d failures=%-5d rate=%.2f",
			name, m.State, m.TotalCalls, m.TotalFailures, m.FailureRate))
	}

	b.WriteString(bottomLeft + strings.Repeat(horizontal, width) + bottomRight + "\n")
	return b.String()
}

func writeRow(b *strings.Builder, content string) {
	if len(content) > width {
		content = content[:width]
	}
	b.WriteString(vertical + content + strings.Repeat(" ", width-len(content)) + vertical + "\n")
}

func connLabel(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
