// SPDX-License-Identifier: ice License 1.0

package accounts

import (
	"context"

	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
	"github.com/ice-blockchain/accountr/accounts/internal/emailpass"
	"github.com/ice-blockchain/accountr/accounts/internal/sso"
	"github.com/ice-blockchain/accountr/kvstore"
)

// Public API.

const (
	ReauthSucceeded = internal.ReauthSucceeded
	ReauthCancelled = internal.ReauthCancelled
)

var (
	ErrInvalidEmail           = internal.ErrInvalidEmail
	ErrAccountAlreadyInUse    = internal.ErrAccountAlreadyInUse
	ErrWeakPassword           = internal.ErrWeakPassword
	ErrInvalidCredentials     = internal.ErrInvalidCredentials
	ErrRequireRecentLogin     = internal.ErrRequireRecentLogin
	ErrSetup                  = internal.ErrSetup
	ErrNotSignedIn            = internal.ErrNotSignedIn
	ErrLinkFailedDuplicate    = internal.ErrLinkFailedDuplicate
	ErrLinkFailedAlreadyInUse = internal.ErrLinkFailedAlreadyInUse
	ErrUnknown                = internal.ErrUnknown
)

type (
	Identity       = internal.Identity
	StateChange    = internal.StateChange
	AccountDetails = internal.AccountDetails
	SignupDetails  = internal.SignupDetails
	IdPCredential  = internal.IdPCredential
	ReauthOutcome  = internal.ReauthOutcome

	ProviderClient  = internal.ProviderClient
	AccountStore    = internal.AccountStore
	CredentialStore = internal.CredentialStore
	LocalStorage    = internal.LocalStorage

	Client interface {
		Login(ctx context.Context, email, password string) error
		LoginWithSSO(ctx context.Context, credential *IdPCredential) error
		LoginAnonymously(ctx context.Context) error
		Signup(ctx context.Context, details *SignupDetails) error
		SignupWithSSO(ctx context.Context, credential *IdPCredential) error
		ResetPassword(ctx context.Context, email string) error
		Logout(ctx context.Context) error
		Delete(ctx context.Context) error
		Reauthenticate(ctx context.Context) (ReauthOutcome, error)
		UpdateEmail(ctx context.Context, email string) error
		UpdatePassword(ctx context.Context, password string) error
		CurrentIdentity(ctx context.Context) *Identity
		Close() error
	}
)

// Private API.

type (
	accounts struct {
		provider       internal.ProviderClient
		dispatcher     *dispatch.Dispatcher
		localStorage   internal.LocalStorage
		emailPass      *emailpass.Adapter
		sso            *sso.Adapter
		db             kvstore.DB
		removeListener func()
	}

	credentialStore struct {
		db kvstore.DB
	}

	localStorage struct {
		db kvstore.DB
	}

	storedCredential struct {
		key    string
		Secret string `redis:"secret"`
	}

	storedEntry struct {
		key   string
		Value string `redis:"value"`
	}
)
