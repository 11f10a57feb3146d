// SPDX-License-Identifier: ice License 1.0

package sso

import (
	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
)

// Public API.

type (
	Adapter = adapter
)

// Private API.

type (
	adapter struct {
		provider   internal.ProviderClient
		dispatcher *dispatch.Dispatcher
		reconciler *dispatch.Reconciler
		store      internal.AccountStore
	}
)
