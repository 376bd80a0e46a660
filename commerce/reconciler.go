package commerce

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"opsboard/pkg/logger"
	"opsboard/socket"
	"opsboard/store"
)

// ErrSyncInFlight means a reconciliation cycle was requested while the
// previous one had not finished; cycles never overlap.
var ErrSyncInFlight = errors.New("order sync already in flight")

// TargetCollection is the one collection the reconciler owns. The gateway
// rejects direct writes to it.
const TargetCollection = "orders"

// Broadcaster is the slice of the hub the reconciler needs.
type Broadcaster interface {
	Notify(event string, payload any)
}

// Reconciler periodically replaces the orders collection with the upstream's
// view of the world. It has two states, idle and syncing: a tick that fires
// while a cycle is still in flight is skipped, and a failed cycle leaves the
// collection untouched until the next tick retries naturally.
type Reconciler struct {
	client   *Client
	store    *store.Store
	bus      Broadcaster
	interval time.Duration
	syncing  atomic.Bool
}

func NewReconciler(client *Client, st *store.Store, bus Broadcaster, interval time.Duration) *Reconciler {
	return &Reconciler{
		client:   client,
		store:    st,
		bus:      bus,
		interval: interval,
	}
}

// Run drives the timer: one sync shortly after boot, then one per interval,
// until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	boot := time.NewTimer(5 * time.Second)
	defer boot.Stop()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-boot.C:
			r.syncLogged(ctx)
		case <-ticker.C:
			r.syncLogged(ctx)
		}
	}
}

func (r *Reconciler) syncLogged(ctx context.Context) {
	if err := r.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
		logger.Sugar.Errorf("Order sync failed: %v", err)
	}
}

// Sync performs one reconciliation cycle: fetch, map, replace, broadcast. On
// any fetch or decode error the orders collection is left unchanged and no
// event is emitted. Returns ErrSyncInFlight if a cycle is already running.
func (r *Reconciler) Sync(ctx context.Context) error {
	if !r.syncing.CompareAndSwap(false, true) {
		return ErrSyncInFlight
	}
	defer r.syncing.Store(false)

	orders, err := r.client.FetchOrders(ctx, 50)
	if err != nil {
		return err
	}
	records := make([]store.Record, 0, len(orders))
	for _, o := range orders {
		records = append(records, MapOrder(o))
	}
	if err := r.store.ReplaceAll(TargetCollection, records); err != nil {
		return err
	}
	r.bus.Notify(socket.OrdersEvent, records)
	logger.Sugar.Infof("Synced %d orders from upstream", len(records))
	return nil
}

// SyncNow serves the on-demand refresh endpoint. If a timer-driven cycle is
// already in flight it does not start a second one; the caller gets the
// cached collection either way.
func (r *Reconciler) SyncNow(ctx context.Context) ([]store.Record, error) {
	if err := r.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
		return nil, err
	}
	return r.store.List(TargetCollection)
}

// Stats aggregates order counts and revenue. It reads the cached collection
// when one exists; with an empty cache it fetches a larger page on demand
// without touching the store.
type Stats struct {
	TotalOrders  int     `json:"total_orders"`
	TotalRevenue float64 `json:"total_revenue"`
	Processing   int     `json:"processing"`
	Completed    int     `json:"completed"`
	Pending      int     `json:"pending"`
	Refunded     int     `json:"refunded"`
}

func (r *Reconciler) Stats(ctx context.Context) (Stats, error) {
	records, err := r.store.List(TargetCollection)
	if err != nil {
		return Stats{}, err
	}
	if len(records) == 0 {
		orders, err := r.client.FetchOrders(ctx, 100)
		if err != nil {
			return Stats{}, err
		}
		records = make([]store.Record, 0, len(orders))
		for _, o := range orders {
			records = append(records, MapOrder(o))
		}
	}

	stats := Stats{TotalOrders: len(records)}
	for _, rec := range records {
		total, _ := rec["total"].(string)
		if f, err := strconv.ParseFloat(total, 64); err == nil {
			stats.TotalRevenue += f
		}
		status, _ := rec["status"].(string)
		switch status {
		case "processing":
			stats.Processing++
		case "completed":
			stats.Completed++
		case "pending":
			stats.Pending++
		case "refunded":
			stats.Refunded++
		}
	}
	return stats, nil
}

// Products proxies an on-demand product listing; nothing is cached or stored.
func (r *Reconciler) Products(ctx context.Context, perPage int) ([]store.Record, error) {
	products, err := r.client.FetchProducts(ctx, perPage)
	if err != nil {
		return nil, err
	}
	records := make([]store.Record, 0, len(products))
	for _, p := range products {
		records = append(records, MapProduct(p))
	}
	return records, nil
}
