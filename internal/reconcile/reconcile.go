// Package reconcile implements ReconcileUseCase: merging broker
// truth against local state on demand or at startup, synthesizing missed
// fills, and surfacing mismatches the core does not resolve unilaterally.
// Grounded on Executor.LoadPosition startup-recovery path
// (execution/executor.go), generalized from a one-shot position load into
// a full broker-vs-local diff.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/orderstore"
)

// MismatchKind classifies a single order's reconciliation outcome.
type MismatchKind string

const (
	MismatchNone             MismatchKind = "NONE"
	MismatchFillGap          MismatchKind = "FILL_GAP"
	MismatchStatusDivergence MismatchKind = "STATUS_DIVERGENCE"
	MismatchOrphanedLocally  MismatchKind = "ORPHANED_LOCALLY" // broker has forgotten the order
)

// OrderReport is one local order's reconciliation outcome.
type OrderReport struct {
	ClientOrderId money.ClientOrderId
	Mismatch      MismatchKind
	Reconciled    bool // true if a corrective apply_fill was made
	Detail        string
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	TotalChecked int
	Mismatches   int
	Reconciled   int
	PerOrder     []OrderReport
	Errors       []string
}

// UseCase merges broker-reported order state against the local store.
type UseCase struct {
	broker brokerpkg.Adapter
	store  *orderstore.Store
}

// New wires a UseCase.
func New(brk brokerpkg.Adapter, store *orderstore.Store) *UseCase {
	return &UseCase{broker: brk, store: store}
}

// Run reconciles every local active order against broker.get_open_orders.
// A submitted order missing from the open list is looked up with
// get_order_status before it is reported as orphaned, so one that reached a
// terminal state at the broker is merged like any other broker record.
func (u *UseCase) Run(ctx context.Context) Result {
	local := u.store.GetActive()

	open, err := u.broker.GetOpenOrders(ctx)
	if err != nil {
		return Result{
			TotalChecked: len(local),
			Errors:       []string{fmt.Sprintf("get_open_orders failed: %v", err)},
		}
	}

	byClientID := make(map[money.ClientOrderId]brokerpkg.OrderAck, len(open))
	for _, oa := range open {
		byClientID[oa.ClientOrderId] = oa
	}
	for _, o := range local {
		if _, ok := byClientID[o.ClientOrderId]; ok || o.BrokerOrderId == "" {
			continue
		}
		if oa, err := u.broker.GetOrderStatus(ctx, o.BrokerOrderId); err == nil {
			byClientID[o.ClientOrderId] = oa
		}
	}

	result := Result{TotalChecked: len(local)}
	for _, o := range local {
		report := u.reconcileOne(o, byClientID)
		if report.Mismatch != MismatchNone {
			result.Mismatches++
		}
		if report.Reconciled {
			result.Reconciled++
		}
		result.PerOrder = append(result.PerOrder, report)
	}
	return result
}

// RunOne reconciles a single order by its broker id, the single-order
// variant of Run.
func (u *UseCase) RunOne(ctx context.Context, brokerOrderId money.BrokerOrderId) (OrderReport, error) {
	o, ok := u.store.GetByBroker(brokerOrderId)
	if !ok {
		return OrderReport{}, fmt.Errorf("reconcile: no local order for broker id %s", brokerOrderId)
	}

	oa, err := u.broker.GetOrderStatus(ctx, brokerOrderId)
	if err != nil {
		if be, ok := err.(*brokerpkg.Error); ok && be.Kind == brokerpkg.ErrOrderNotFound {
			return u.reconcileOrphan(o), nil
		}
		return OrderReport{}, fmt.Errorf("reconcile: get_order_status failed: %w", err)
	}
	return u.reconcileAgainst(o, oa), nil
}

func (u *UseCase) reconcileOne(o orders.Order, byClientID map[money.ClientOrderId]brokerpkg.OrderAck) OrderReport {
	if o.BrokerOrderId == "" {
		// Never submitted — nothing to reconcile against.
		return OrderReport{ClientOrderId: o.ClientOrderId, Mismatch: MismatchNone}
	}

	oa, ok := byClientID[o.ClientOrderId]
	if !ok {
		return u.reconcileOrphan(o)
	}
	return u.reconcileAgainst(o, oa)
}

// reconcileOrphan handles the case where the broker no longer knows about a
// locally-active order: treated as Canceled, surfaced as a mismatch, and
// never auto-cancelled locally — operator resolution is required.
func (u *UseCase) reconcileOrphan(o orders.Order) OrderReport {
	log.Warn().Str("client_order_id", string(o.ClientOrderId)).
		Str("broker_order_id", string(o.BrokerOrderId)).
		Msg("reconcile: no broker record for locally active order")
	return OrderReport{
		ClientOrderId: o.ClientOrderId,
		Mismatch:      MismatchOrphanedLocally,
		Detail:        "broker has no record of this order; operator resolution required",
	}
}

func (u *UseCase) reconcileAgainst(o orders.Order, oa brokerpkg.OrderAck) OrderReport {
	report := OrderReport{ClientOrderId: o.ClientOrderId}

	delta := oa.FilledQty.Sub(o.FilledQty)
	if delta.GreaterThan(decimal.Zero) {
		report.Mismatch = MismatchFillGap
		report.Detail = fmt.Sprintf("broker filled qty %s exceeds local %s by %s", oa.FilledQty, o.FilledQty, delta)

		oc := o
		if err := oc.ApplyFill(orders.Fill{
			ID:    fmt.Sprintf("reconcile-%s-%s", o.ClientOrderId, oa.FilledQty.String()),
			Qty:   delta,
			Price: oa.AvgFillPrice,
			TS:    time.Now(),
		}); err != nil {
			log.Warn().Err(err).Str("client_order_id", string(o.ClientOrderId)).Msg("reconcile: apply_fill failed")
			report.Detail += fmt.Sprintf("; apply_fill error: %v", err)
			return report
		}
		u.store.Update(&oc)
		report.Reconciled = true
		return report
	}

	if oa.Status != o.Status {
		report.Mismatch = MismatchStatusDivergence
		report.Detail = fmt.Sprintf("broker status %s differs from local status %s", oa.Status, o.Status)
	}
	return report
}
