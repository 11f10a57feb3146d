// SPDX-License-Identifier: ice License 1.0

package sso

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
)

func New(provider internal.ProviderClient, dispatcher *dispatch.Dispatcher, reconciler *dispatch.Reconciler, store internal.AccountStore) *Adapter {
	instance := &adapter{provider: provider, dispatcher: dispatcher, reconciler: reconciler, store: store}
	reconciler.RegisterAdapter(instance)

	return instance
}

func (*adapter) Name() string {
	return internal.AdapterSSO
}

func (a *adapter) Login(ctx context.Context, credential *internal.IdPCredential) error {
	current := a.provider.CurrentIdentity(ctx)
	if current != nil && current.Anonymous {
		_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
			_, lErr := a.provider.LinkWithIdP(gCtx, credential)

			return true, lErr
		})

		return errors.Wrapf(err, "sso login(link) failed for provider:%v", credential.ProviderID)
	}
	_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
		_, sErr := a.provider.SignInWithIdP(gCtx, credential)

		return false, sErr
	})

	return errors.Wrapf(err, "sso login failed for provider:%v", credential.ProviderID)
}

func (a *adapter) Logout(ctx context.Context) error {
	if a.provider.CurrentIdentity(ctx) == nil {
		return errors.Wrap(a.reconcileWithoutSession(ctx), "logout reconciliation failed")
	}
	_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
		return false, a.provider.SignOut(gCtx)
	})

	return errors.Wrap(err, "logout failed")
}

func (a *adapter) Delete(ctx context.Context) error {
	if a.provider.CurrentIdentity(ctx) == nil {
		return errors.Wrap(a.reconcileWithoutSession(ctx), "delete reconciliation failed")
	}
	_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
		return false, a.provider.Delete(gCtx)
	})

	return errors.Wrap(err, "delete failed")
}

func (a *adapter) reconcileWithoutSession(ctx context.Context) error {
	if a.store.CurrentDetails(ctx) == nil {
		return nil
	}

	return a.reconciler.ApplyRemoved(ctx, a.Name()) //nolint:wrapcheck // Callers wrap it.
}

// Reauthenticate can never succeed silently: federated providers issue
// short-lived credentials that cannot be replayed, so a fresh interactive
// challenge is always required from the caller.
func (a *adapter) Reauthenticate(ctx context.Context) (internal.ReauthOutcome, error) {
	if a.provider.CurrentIdentity(ctx) == nil {
		return internal.ReauthCancelled, errors.Wrap(internal.ErrNotSignedIn, "reauthentication requires a signed-in identity")
	}

	return internal.ReauthCancelled, nil
}

func (*adapter) Cleanup(_ context.Context, _ string) error {
	// No secrets are ever cached for federated identities.
	return nil
}
