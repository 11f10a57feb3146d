// SPDX-License-Identifier: ice License 1.0

package accounts

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
	"github.com/ice-blockchain/accountr/accounts/internal/emailpass"
	firebaseauth "github.com/ice-blockchain/accountr/accounts/internal/firebase"
	"github.com/ice-blockchain/accountr/accounts/internal/sso"
	"github.com/ice-blockchain/accountr/kvstore"
	"github.com/ice-blockchain/accountr/log"
)

// New builds a fully wired account client: the identity-provider client, the
// kvstore-backed credential cache and local storage, the dispatcher and both
// provider adapters. The account store is supplied by the host because its
// implementation is host-specific.
func New(ctx context.Context, applicationYAMLKey string, store AccountStore) Client {
	db := kvstore.MustConnect(ctx, applicationYAMLKey)

	return newClient(applicationYAMLKey, firebaseauth.New(ctx, applicationYAMLKey), store,
		&credentialStore{db: db}, &localStorage{db: db}, db)
}

// NewWithProvider wires explicitly supplied collaborators. Meant for hosts
// that bring their own provider client or storage, and for tests.
func NewWithProvider(
	applicationYAMLKey string,
	provider ProviderClient,
	store AccountStore,
	credentials CredentialStore,
	storage LocalStorage,
) Client {
	return newClient(applicationYAMLKey, provider, store, credentials, storage, nil)
}

func newClient(
	applicationYAMLKey string,
	provider ProviderClient,
	store AccountStore,
	credentials CredentialStore,
	storage LocalStorage,
	db kvstore.DB,
) Client {
	reconciler := dispatch.NewReconciler(applicationYAMLKey, store, credentials, storage)
	dispatcher := dispatch.NewDispatcher(applicationYAMLKey, reconciler, storage)
	cl := &accounts{
		provider:     provider,
		dispatcher:   dispatcher,
		localStorage: storage,
		emailPass:    emailpass.New(provider, dispatcher, reconciler, store),
		sso:          sso.New(provider, dispatcher, reconciler, store),
		db:           db,
	}
	cl.removeListener = provider.AddStateChangeListener(dispatcher.OnStateChange)

	return cl
}

func (a *accounts) Login(ctx context.Context, email, password string) error {
	return a.emailPass.Login(ctx, email, password) //nolint:wrapcheck // The adapter already wraps.
}

func (a *accounts) LoginWithSSO(ctx context.Context, credential *IdPCredential) error {
	return a.sso.Login(ctx, credential) //nolint:wrapcheck // The adapter already wraps.
}

// LoginAnonymously creates a throwaway identity. No account document is
// published until it is upgraded to a permanent credential via Signup or
// SignupWithSSO.
func (a *accounts) LoginAnonymously(ctx context.Context) error {
	_, err := a.dispatcher.PerformGuarded(ctx, a.emailPass, func(gCtx context.Context) (bool, error) {
		_, sErr := a.provider.SignUpAnonymously(gCtx)

		return true, sErr
	})

	return errors.Wrap(err, "anonymous login failed")
}

func (a *accounts) Signup(ctx context.Context, details *SignupDetails) error {
	return a.emailPass.Signup(ctx, details) //nolint:wrapcheck // The adapter already wraps.
}

// SignupWithSSO is the same flow as LoginWithSSO: the identity provider
// creates the account on first federated sign-in and flags it as new.
func (a *accounts) SignupWithSSO(ctx context.Context, credential *IdPCredential) error {
	return a.sso.Login(ctx, credential) //nolint:wrapcheck // The adapter already wraps.
}

func (a *accounts) ResetPassword(ctx context.Context, email string) error {
	return a.emailPass.ResetPassword(ctx, email) //nolint:wrapcheck // The adapter already wraps.
}

func (a *accounts) Logout(ctx context.Context) error {
	if a.activeAdapterName(ctx) == internal.AdapterSSO {
		return a.sso.Logout(ctx) //nolint:wrapcheck // The adapter already wraps.
	}

	return a.emailPass.Logout(ctx) //nolint:wrapcheck // The adapter already wraps.
}

func (a *accounts) Delete(ctx context.Context) error {
	if a.activeAdapterName(ctx) == internal.AdapterSSO {
		return a.sso.Delete(ctx) //nolint:wrapcheck // The adapter already wraps.
	}

	return a.emailPass.Delete(ctx) //nolint:wrapcheck // The adapter already wraps.
}

// Reauthenticate routes to the adapter that owns the live identity: a
// federated provider on the identity wins, the persisted active adapter is
// the fallback.
func (a *accounts) Reauthenticate(ctx context.Context) (ReauthOutcome, error) {
	if identity := a.provider.CurrentIdentity(ctx); identity != nil {
		for _, provider := range identity.Providers {
			if provider != internal.AdapterEmailPassword {
				return a.sso.Reauthenticate(ctx) //nolint:wrapcheck // The adapter already wraps.
			}
		}

		return a.emailPass.Reauthenticate(ctx) //nolint:wrapcheck // The adapter already wraps.
	}
	if a.activeAdapterName(ctx) == internal.AdapterSSO {
		return a.sso.Reauthenticate(ctx) //nolint:wrapcheck // The adapter already wraps.
	}

	return a.emailPass.Reauthenticate(ctx) //nolint:wrapcheck // The adapter already wraps.
}

func (a *accounts) UpdateEmail(ctx context.Context, email string) error {
	_, err := a.dispatcher.PerformGuarded(ctx, a.activeAdapter(ctx), func(gCtx context.Context) (bool, error) {
		return false, a.provider.UpdateEmail(gCtx, email)
	})

	return errors.Wrapf(err, "failed to update email to:%v", email)
}

func (a *accounts) UpdatePassword(ctx context.Context, password string) error {
	_, err := a.dispatcher.PerformGuarded(ctx, a.activeAdapter(ctx), func(gCtx context.Context) (bool, error) {
		return false, a.provider.UpdatePassword(gCtx, password)
	})

	return errors.Wrap(err, "failed to update password")
}

func (a *accounts) CurrentIdentity(ctx context.Context) *Identity {
	return a.provider.CurrentIdentity(ctx)
}

func (a *accounts) Close() error {
	if a.removeListener != nil {
		a.removeListener()
	}
	errs := multierror.Append(nil, errors.Wrap(a.provider.Close(), "failed to close the provider client"))
	if a.db != nil {
		errs = multierror.Append(errs, errors.Wrap(a.db.Close(), "failed to close the kvstore connection"))
	}

	return errs.ErrorOrNil() //nolint:wrapcheck // Not needed.
}

func (a *accounts) activeAdapterName(ctx context.Context) string {
	name, err := a.localStorage.Read(ctx, internal.ActiveAdapterKey)
	if err != nil {
		log.Error(errors.Wrap(err, "failed to read the active adapter"))
	}

	return name
}

func (a *accounts) activeAdapter(ctx context.Context) internal.Adapter {
	if a.activeAdapterName(ctx) == internal.AdapterSSO {
		return a.sso
	}

	return a.emailPass
}
