// Package connmon implements the ConnectionMonitor & MassCancel subsystem:
// if the broker is unreachable for longer than a grace period, cancel all
// active non-GTC (configurable) orders to avoid orphaned exposure. Grounded
// in the reconnect idiom of internal/polymarket/ws_client.go's
// handleDisconnect heartbeat loop, generalized to a broker-health-check
// heartbeat instead of a WebSocket read loop.
package connmon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/orderstore"
)

// GTCPolicy decides whether GTC orders participate in a mass cancel.
type GTCPolicy string

const (
	GTCInclude GTCPolicy = "INCLUDE"
	GTCExclude GTCPolicy = "EXCLUDE"
)

// MassCancelResult is emitted after every mass cancel, manual or
// grace-period-triggered.
type MassCancelResult struct {
	Cancelled   []money.ClientOrderId
	Failed      []money.ClientOrderId
	GTCIncluded bool
	TS          time.Time
}

// GracePeriodCancelledEvent is emitted when the broker reconnects before
// the grace period elapses.
type GracePeriodCancelledEvent struct {
	At time.Time
}

// Config parametrizes a Monitor.
type Config struct {
	HeartbeatInterval time.Duration
	GracePeriod       time.Duration
	GTCPolicy         GTCPolicy
}

// Monitor watches broker connectivity via heartbeat and triggers a mass
// cancel once the broker has been unreachable past the grace period.
type Monitor struct {
	cfg   Config
	brk   broker.Adapter
	store *orderstore.Store

	mu               sync.Mutex
	gracePeriodStart time.Time // zero means unset

	manualTrigger chan struct{}
	results       chan MassCancelResult
	graceEvents   chan GracePeriodCancelledEvent
}

// New wires a Monitor.
func New(cfg Config, brk broker.Adapter, store *orderstore.Store) *Monitor {
	return &Monitor{
		cfg:           cfg,
		brk:           brk,
		store:         store,
		manualTrigger: make(chan struct{}, 1),
		results:       make(chan MassCancelResult, 8),
		graceEvents:   make(chan GracePeriodCancelledEvent, 8),
	}
}

// Results is the broadcast channel of MassCancelResult.
func (m *Monitor) Results() <-chan MassCancelResult { return m.results }

// GraceEvents is the broadcast channel of GracePeriodCancelledEvent.
func (m *Monitor) GraceEvents() <-chan GracePeriodCancelledEvent { return m.graceEvents }

// TriggerManualMassCancel requests an immediate mass cancel via the
// manual-trigger channel, bypassing the heartbeat grace period.
func (m *Monitor) TriggerManualMassCancel() {
	select {
	case m.manualTrigger <- struct{}{}:
	default:
	}
}

// Run ticks at HeartbeatInterval, checking broker health and driving the
// grace-period/mass-cancel state machine, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("connection monitor recovered from panic")
		}
	}()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.manualTrigger:
			m.massCancel(ctx)
		case <-ticker.C:
			m.heartbeat(ctx)
		}
	}
}

func (m *Monitor) heartbeat(ctx context.Context) {
	err := m.brk.HealthCheck(ctx)
	if err == nil {
		m.onHeartbeatSuccess()
		return
	}
	m.onHeartbeatFailure(ctx)
}

func (m *Monitor) onHeartbeatSuccess() {
	m.mu.Lock()
	hadGrace := !m.gracePeriodStart.IsZero()
	m.gracePeriodStart = time.Time{}
	m.mu.Unlock()

	if hadGrace {
		log.Info().Msg("broker reconnected within grace period")
		m.emitGraceCancelled()
	}
}

func (m *Monitor) onHeartbeatFailure(ctx context.Context) {
	m.mu.Lock()
	if m.gracePeriodStart.IsZero() {
		m.gracePeriodStart = time.Now()
	}
	elapsed := time.Since(m.gracePeriodStart)
	shouldCancel := elapsed >= m.cfg.GracePeriod
	if shouldCancel {
		m.gracePeriodStart = time.Time{}
	}
	m.mu.Unlock()

	log.Warn().Dur("elapsed", elapsed).Msg("broker health check failed")
	if shouldCancel {
		log.Warn().Msg("🚨 grace period exceeded, executing mass cancel")
		m.massCancel(ctx)
	}
}

func (m *Monitor) emitGraceCancelled() {
	select {
	case m.graceEvents <- GracePeriodCancelledEvent{At: time.Now()}:
	default:
	}
}

// massCancel is the emergency path: deliberately not
// breaker-protected, though individual per-order cancel failures are
// logged.
func (m *Monitor) massCancel(ctx context.Context) {
	active := m.store.GetActive()

	var cancelled, failed []money.ClientOrderId
	for _, o := range active {
		if o.TIF == orders.TIFGTC && m.cfg.GTCPolicy == GTCExclude {
			continue
		}
		if o.BrokerOrderId == "" {
			continue
		}
		if err := m.brk.CancelOrder(ctx, o.BrokerOrderId); err != nil {
			log.Warn().Err(err).Str("client_order_id", string(o.ClientOrderId)).Msg("mass cancel: order cancel failed")
			failed = append(failed, o.ClientOrderId)
			continue
		}
		oc := o
		if err := oc.Cancel(); err == nil {
			m.store.Update(&oc)
		}
		cancelled = append(cancelled, o.ClientOrderId)
	}

	result := MassCancelResult{
		Cancelled:   cancelled,
		Failed:      failed,
		GTCIncluded: m.cfg.GTCPolicy == GTCInclude,
		TS:          time.Now(),
	}
	select {
	case m.results <- result:
	default:
		log.Warn().Msg("mass cancel result dropped, channel full")
	}
}
