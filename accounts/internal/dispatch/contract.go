// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"context"
	"sync"
	stdlibtime "time"

	"github.com/ice-blockchain/accountr/accounts/internal"
)

// Public API.

type (
	// GuardedOperation is a state-mutating identity-provider call. The
	// returned isNewUser flag is operation-level metadata only the caller
	// knows (i.e. linking a credential bypasses the provider's own
	// new-user detection).
	GuardedOperation func(ctx context.Context) (isNewUser bool, err error)

	Dispatcher struct {
		reconciler   *Reconciler
		localStorage internal.LocalStorage
		waiter       chan struct{}
		queued       *internal.StateChange
		settleAfter  stdlibtime.Duration
		opMx         sync.Mutex
		mx           sync.Mutex
		armed        bool
	}

	Reconciler struct {
		store        internal.AccountStore
		credentials  internal.CredentialStore
		localStorage internal.LocalStorage
		adapters     map[string]internal.Adapter
		defaults     map[string]any
		adaptersMx   sync.RWMutex
	}
)

// Private API.

const (
	defaultSettleTimeout     = 3 * stdlibtime.Second
	anonymousDispatchTimeout = 30 * stdlibtime.Second
)

type (
	config struct {
		AccountrAccounts struct {
			DefaultAttributes   map[string]any `yaml:"defaultAttributes" mapstructure:"defaultAttributes"`
			SettleTimeoutMillis int64          `yaml:"settleTimeoutMillis" mapstructure:"settleTimeoutMillis"`
		} `yaml:"accountr/accounts" mapstructure:"accountr/accounts"` //nolint:tagliatelle // Nope.
	}
)
