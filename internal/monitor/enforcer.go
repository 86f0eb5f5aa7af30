package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/breaker"
	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/quotes"
)

// Config parametrizes an Enforcer.
type Config struct {
	MaxQuoteAge     time.Duration
	PollingInterval time.Duration
}

// DefaultConfig mirrors typical stop/target tolerances: quotes older than a
// few seconds are considered stale, and the REST fallback ticks every few
// seconds while disconnected.
func DefaultConfig() Config {
	return Config{MaxQuoteAge: 5 * time.Second, PollingInterval: 3 * time.Second}
}

// Enforcer is PositionMonitor's runtime: the quote processor and REST
// fallback loops, each cooperating through a shared
// PriceMonitor and feeding a circuit-breaker-guarded exit path. Grounded on
// internal/polymarket/ws_client.go's subscribe/OnPriceChange
// idiom, generalized into a dual-loop design.
type Enforcer struct {
	cfg Config

	monitor  *PriceMonitor
	quotesIn quotes.QuoteProvider
	feed     quotes.PriceFeed
	brk      brokerpkg.Adapter
	cb       *breaker.Breaker

	exitResults chan ExitResult
}

// NewEnforcer wires an Enforcer. cb should be a breaker named
// "stops-monitor".
func NewEnforcer(cfg Config, provider quotes.QuoteProvider, feed quotes.PriceFeed, brk brokerpkg.Adapter, cb *breaker.Breaker) *Enforcer {
	return &Enforcer{
		cfg:         cfg,
		monitor:     NewPriceMonitor(),
		quotesIn:    provider,
		feed:        feed,
		brk:         brk,
		cb:          cb,
		exitResults: make(chan ExitResult, 64),
	}
}

// ExitResults is the broadcast channel of exit attempts.
func (e *Enforcer) ExitResults() <-chan ExitResult { return e.exitResults }

// RegisterPosition subscribes the position's symbol on the quote provider
// (options vs stock route chosen by the position's InstrumentKind, not a
// string-length heuristic — ) and inserts it into the monitor.
func (e *Enforcer) RegisterPosition(pos MonitoredPosition) error {
	if err := e.monitor.Register(pos); err != nil {
		return err
	}
	if pos.InstrumentKind == money.InstrumentOption {
		return e.quotesIn.SubscribeOptionsQuotes([]money.Symbol{pos.Symbol})
	}
	return e.quotesIn.SubscribeStockQuotes([]money.Symbol{pos.Symbol})
}

// RemovePosition unsubscribes the symbol only when no positions remain for
// it.
func (e *Enforcer) RemovePosition(id money.PositionId, kind money.InstrumentKind, symbol money.Symbol) {
	stillWatched, existed := e.monitor.Remove(id)
	if !existed || stillWatched {
		return
	}
	if kind == money.InstrumentOption {
		_ = e.quotesIn.UnsubscribeOptionsQuotes([]money.Symbol{symbol})
	} else {
		_ = e.quotesIn.UnsubscribeStockQuotes([]money.Symbol{symbol})
	}
}

// Start spawns the quote processor and REST fallback loops. Both return
// when ctx is cancelled.
func (e *Enforcer) Start(ctx context.Context) {
	go e.runQuoteProcessor(ctx)
	go e.runRESTFallback(ctx)
}

func (e *Enforcer) runQuoteProcessor(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("quote processor recovered from panic")
		}
	}()

	updates := e.quotesIn.QuoteUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-updates:
			if !ok {
				return
			}
			now := time.Now()
			if q.IsStale(e.cfg.MaxQuoteAge, now) {
				log.Warn().Str("symbol", string(q.Symbol)).Time("ts", q.Timestamp).Msg("stale quote dropped")
				continue
			}
			e.processTick(ctx, q.Symbol, q.Mid())
		}
	}
}

func (e *Enforcer) runRESTFallback(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("REST fallback loop recovered from panic")
		}
	}()

	ticker := time.NewTicker(e.cfg.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.quotesIn.IsConnected() {
				continue
			}
			symbols := e.monitor.SymbolsWatched()
			if len(symbols) == 0 {
				continue
			}
			qs, err := e.feed.GetQuotes(ctx, symbols)
			if err != nil {
				log.Warn().Err(err).Msg("REST fallback: get_quotes failed")
				continue
			}
			for _, q := range qs {
				// Conservative: use the bid as the trigger price for Long
				// positions — a side-aware refinement is future
				// work.
				e.processTick(ctx, q.Symbol, q.Bid)
			}
		}
	}
}

func (e *Enforcer) processTick(ctx context.Context, symbol money.Symbol, price decimal.Decimal) {
	triggers := e.monitor.CheckPrice(symbol, price)
	for _, t := range triggers {
		if !e.cb.IsCallPermitted() {
			log.Warn().Str("position", string(t.PositionId)).Msg("exit circuit open, skipping trigger this tick")
			continue
		}
		e.executeExit(ctx, t)
	}
}

func (e *Enforcer) executeExit(ctx context.Context, t TriggerResult) {
	clientID := money.ClientOrderId(fmt.Sprintf("exit-%s-%s", t.PositionId, t.Kind))

	// Exit is the opposite side of the position's direction, for the full
	// quantity.
	side := orders.SideSell
	if t.Direction == DirectionShort {
		side = orders.SideBuy
	}

	req := brokerpkg.SubmitOrdersRequest{
		Commands: []orders.CreateOrderCommand{{
			ClientOrderId:  clientID,
			Symbol:         t.Symbol,
			InstrumentKind: t.InstrumentKind,
			Side:           side,
			Type:           orders.TypeMarket,
			TIF:            orders.TIFDay,
			Qty:            t.Qty,
			Purpose:        orders.PurposeExit,
		}},
	}

	ack, err := e.brk.SubmitOrders(ctx, req)
	if err != nil || len(ack.Errors) > 0 {
		e.cb.RecordFailure()
		reason := errString(err)
		if reason == "" && len(ack.Errors) > 0 {
			reason = ack.Errors[0].Reason
		}
		e.publish(ExitResult{PositionId: t.PositionId, Success: false, Trigger: t.Kind, Price: t.Price, Error: reason, TS: time.Now()})
		return
	}

	e.cb.RecordSuccess()
	e.publish(ExitResult{PositionId: t.PositionId, Success: true, Trigger: t.Kind, Price: t.Price, TS: time.Now()})
}

func (e *Enforcer) publish(r ExitResult) {
	select {
	case e.exitResults <- r:
	default:
		log.Warn().Str("position", string(r.PositionId)).Msg("exit result dropped, channel full")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
