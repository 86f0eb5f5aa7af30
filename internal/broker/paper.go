package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
)

// PriceSource supplies a simulated fill price for a paper-submitted market
// order. Tests provide a fixed-price stub; cmd/engine passes nil, so its
// paper market orders are accepted but not auto-filled.
type PriceSource func(symbol money.Symbol) (decimal.Decimal, bool)

// Paper is an in-memory simulated broker ("the core does not depend
// on either [quote implementation]"; this is the stand-in for a real broker
// wire format, grounded on execution.Executor PaperMode path
// where SubmitOrder immediately simulates a fill instead of hitting a live
// venue).
type Paper struct {
	mu      sync.Mutex
	acks    map[money.BrokerOrderId]OrderAck
	healthy bool
	prices  PriceSource

	// AutoFill, when true (the default), immediately fills market orders at
	// the PriceSource price on submission, mirroring the simulateFill
	// behavior of the paper-trading path it is grounded on.
	AutoFill bool
}

// NewPaper constructs a Paper broker. prices may be nil; orders that need a
// price and get none are Accepted but left unfilled.
func NewPaper(prices PriceSource) *Paper {
	return &Paper{
		acks:     make(map[money.BrokerOrderId]OrderAck),
		healthy:  true,
		prices:   prices,
		AutoFill: true,
	}
}

func (p *Paper) BrokerName() string { return "paper" }

// SetHealthy controls the outcome of HealthCheck, for connmon/gateway tests
// that simulate broker disconnects.
func (p *Paper) SetHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

func (p *Paper) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.healthy {
		return &Error{Kind: ErrNetwork, Msg: "paper broker marked unhealthy"}
	}
	return nil
}

func (p *Paper) SubmitOrders(ctx context.Context, req SubmitOrdersRequest) (ExecutionAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ack := ExecutionAck{
		CycleID: req.CycleID,
		Env:     "paper",
		AckTime: time.Now(),
	}

	for _, cmd := range req.Commands {
		if _, err := orders.New(cmd); err != nil {
			ack.Errors = append(ack.Errors, OrderSubmitError{
				ClientOrderId: cmd.ClientOrderId,
				Reason:        err.Error(),
			})
			continue
		}

		brokerID := money.BrokerOrderId(uuid.New().String())
		oa := OrderAck{
			ClientOrderId: cmd.ClientOrderId,
			BrokerOrderId: brokerID,
			Symbol:        cmd.Symbol,
			Status:        orders.StatusAccepted,
		}

		if p.AutoFill && cmd.Type == orders.TypeMarket {
			price, ok := decimal.Decimal{}, false
			if p.prices != nil {
				price, ok = p.prices(cmd.Symbol)
			}
			if ok {
				oa.Status = orders.StatusFilled
				oa.FilledQty = cmd.Qty
				oa.AvgFillPrice = price
			}
		}

		p.acks[brokerID] = oa
		ack.Orders = append(ack.Orders, oa)
		log.Debug().Str("broker", "paper").Str("client_id", string(cmd.ClientOrderId)).
			Str("broker_id", string(brokerID)).Str("status", string(oa.Status)).Msg("paper order submitted")
	}

	return ack, nil
}

func (p *Paper) CancelOrder(ctx context.Context, brokerOrderId money.BrokerOrderId) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	oa, ok := p.acks[brokerOrderId]
	if !ok {
		return &Error{Kind: ErrOrderNotFound, Msg: fmt.Sprintf("no such order %s", brokerOrderId)}
	}
	if oa.Status.IsTerminal() {
		return &Error{Kind: ErrOrderNotCancelable, Msg: fmt.Sprintf("order %s already terminal (%s)", brokerOrderId, oa.Status)}
	}
	oa.Status = orders.StatusCanceled
	p.acks[brokerOrderId] = oa
	return nil
}

func (p *Paper) GetOrderStatus(ctx context.Context, brokerOrderId money.BrokerOrderId) (OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	oa, ok := p.acks[brokerOrderId]
	if !ok {
		return OrderAck{}, &Error{Kind: ErrOrderNotFound, Msg: fmt.Sprintf("no such order %s", brokerOrderId)}
	}
	return oa, nil
}

func (p *Paper) GetOpenOrders(ctx context.Context) ([]OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []OrderAck
	for _, oa := range p.acks {
		if !oa.Status.IsTerminal() {
			out = append(out, oa)
		}
	}
	return out, nil
}

// FillOrder lets a test (or a dry-run quote loop) simulate a broker fill for
// a previously accepted order.
func (p *Paper) FillOrder(brokerOrderId money.BrokerOrderId, qty, price decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	oa, ok := p.acks[brokerOrderId]
	if !ok {
		return &Error{Kind: ErrOrderNotFound, Msg: fmt.Sprintf("no such order %s", brokerOrderId)}
	}
	oa.FilledQty = oa.FilledQty.Add(qty)
	oa.AvgFillPrice = price
	oa.Status = orders.StatusFilled
	p.acks[brokerOrderId] = oa
	return nil
}
