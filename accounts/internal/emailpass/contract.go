// SPDX-License-Identifier: ice License 1.0

package emailpass

import (
	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
)

// Public API.

const (
	CredentialsNamespace = "email-password-credentials"
)

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
