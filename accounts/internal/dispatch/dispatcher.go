// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"context"
	stdlibtime "time"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/accounts/internal"
	appCfg "github.com/ice-blockchain/accountr/config"
	"github.com/ice-blockchain/accountr/log"
)

func NewDispatcher(applicationYAMLKey string, reconciler *Reconciler, localStorage internal.LocalStorage) *Dispatcher {
	var cfg config
	appCfg.MustLoadFromKey(applicationYAMLKey, &cfg)
	settleAfter := defaultSettleTimeout
	if cfg.AccountrAccounts.SettleTimeoutMillis > 0 {
		settleAfter = stdlibtime.Duration(cfg.AccountrAccounts.SettleTimeoutMillis) * stdlibtime.Millisecond
	}

	return &Dispatcher{
		reconciler:   reconciler,
		localStorage: localStorage,
		settleAfter:  settleAfter,
	}
}

// PerformGuarded runs a state-mutating identity-provider operation and
// attributes the resulting state-change notification to it. Callers are
// serialized: at most one operation is in flight per Dispatcher, so a
// notification can never be consumed by the wrong caller.
func (d *Dispatcher) PerformGuarded(ctx context.Context, adapter internal.Adapter, operation GuardedOperation) (*internal.StateChange, error) {
	d.opMx.Lock()
	defer d.opMx.Unlock()

	if err := d.localStorage.Write(ctx, internal.ActiveAdapterKey, adapter.Name()); err != nil {
		log.Error(errors.Wrapf(err, "failed to persist active adapter:%v", adapter.Name()))
	}
	d.arm()
	defer d.disarm()

	isNewUser, err := operation(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "guarded operation failed for adapter:%v", adapter.Name())
	}
	stateChange := d.consume(ctx)
	if stateChange == nil {
		// The provider misbehaved and never notified. The operation itself
		// succeeded, so we return its result and let any late notification
		// take the anonymous path.
		log.Warn("no state-change notification arrived within the settle timeout", "adapter", adapter.Name())

		return nil, nil //nolint:nilnil // Nothing to reconcile.
	}
	stateChange.IsNewUser = stateChange.IsNewUser || isNewUser
	if err = d.reconciler.Apply(ctx, stateChange, adapter.Name()); err != nil {
		return nil, errors.Wrapf(err, "failed to reconcile state change for adapter:%v", adapter.Name())
	}

	return stateChange, nil
}

// OnStateChange is the shared identity-provider listener. While an
// operation is in flight the notification is buffered for it (a repeat
// delivery overwrites the buffered one, the provider's latest state is
// authoritative); otherwise it is applied anonymously, best effort.
func (d *Dispatcher) OnStateChange(stateChange *internal.StateChange) {
	d.mx.Lock()
	if d.armed {
		d.queued = stateChange
		select {
		case d.waiter <- struct{}{}:
		default:
		}
		d.mx.Unlock()

		return
	}
	d.mx.Unlock()
	d.applyAnonymously(stateChange)
}

func (d *Dispatcher) arm() {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.armed = true
	d.queued = nil
	d.waiter = make(chan struct{}, 1)
}

// disarm always runs, so the marker can never remain stuck armed. A
// notification left unconsumed (failed operation) is dispatched
// anonymously instead of being dropped.
func (d *Dispatcher) disarm() {
	d.mx.Lock()
	d.armed = false
	leftover := d.queued
	d.queued = nil
	d.mx.Unlock()
	if leftover != nil {
		d.applyAnonymously(leftover)
	}
}

func (d *Dispatcher) consume(ctx context.Context) *internal.StateChange {
	d.mx.Lock()
	stateChange := d.queued
	d.queued = nil
	waiter := d.waiter
	d.mx.Unlock()
	if stateChange != nil {
		return stateChange
	}
	timeout := stdlibtime.NewTimer(d.settleAfter)
	defer timeout.Stop()
	select {
	case <-waiter:
	case <-timeout.C:
	case <-ctx.Done():
	}
	d.mx.Lock()
	stateChange = d.queued
	d.queued = nil
	d.mx.Unlock()

	return stateChange
}

func (d *Dispatcher) applyAnonymously(stateChange *internal.StateChange) {
	ctx, cancel := context.WithTimeout(context.Background(), anonymousDispatchTimeout)
	defer cancel()
	adapterName, err := d.localStorage.Read(ctx, internal.ActiveAdapterKey)
	if err != nil {
		log.Error(errors.Wrap(err, "failed to read active adapter for anonymous dispatch"))
	}
	// There is no caller to report to, so errors are logged and dropped.
	log.Error(errors.Wrap(d.reconciler.Apply(ctx, stateChange, adapterName), "anonymous state-change dispatch failed"))
}
