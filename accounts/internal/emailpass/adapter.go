// SPDX-License-Identifier: ice License 1.0

package emailpass

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
	"github.com/ice-blockchain/accountr/log"
)

func New(provider internal.ProviderClient, dispatcher *dispatch.Dispatcher, reconciler *dispatch.Reconciler, store internal.AccountStore) *Adapter {
	instance := &adapter{provider: provider, dispatcher: dispatcher, reconciler: reconciler, store: store}
	reconciler.RegisterAdapter(instance)

	return instance
}

func (*adapter) Name() string {
	return internal.AdapterEmailPassword
}

func (a *adapter) Login(ctx context.Context, email, password string) error {
	_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
		_, sErr := a.provider.SignIn(gCtx, email, password)

		return false, sErr
	})
	if err != nil {
		return errors.Wrapf(err, "login failed for:%v", email)
	}
	// Cached outside the guarded reconciliation path, to streamline later
	// silent reauthentication.
	if current := a.provider.CurrentIdentity(ctx); current != nil {
		a.reconciler.PersistCredential(ctx, CredentialsNamespace, current.ID, password)
	}

	return nil
}

//nolint:funlen // .
func (a *adapter) Signup(ctx context.Context, details *internal.SignupDetails) error {
	if details.Password == "" {
		return errors.Wrap(internal.ErrInvalidCredentials, "a password is required to sign up")
	}
	current := a.provider.CurrentIdentity(ctx)
	if current != nil && current.Anonymous {
		// Anonymous-to-permanent upgrade: link the credential to the live
		// identity instead of creating a new one. Linking bypasses the
		// provider's own new-user detection, so the flag is supplied here.
		_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
			_, lErr := a.provider.Link(gCtx, details.Email, details.Password)

			return true, lErr
		})
		if err != nil {
			return errors.Wrapf(err, "signup(link) failed for:%v", details.Email)
		}
	} else {
		_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
			if _, sErr := a.provider.SignUp(gCtx, details.Email, details.Password); sErr != nil {
				return false, sErr
			}
			log.Error(errors.Wrapf(a.provider.SendEmailVerification(gCtx), "failed to send email verification to:%v", details.Email))
			if displayName := strings.TrimSpace(details.FirstName + " " + details.LastName); displayName != "" {
				log.Error(errors.Wrapf(a.provider.UpdateProfile(gCtx, displayName), "failed to set display name for:%v", details.Email))
			}

			return true, nil
		})
		if err != nil {
			return errors.Wrapf(err, "signup failed for:%v", details.Email)
		}
	}
	if upgraded := a.provider.CurrentIdentity(ctx); upgraded != nil {
		a.reconciler.PersistCredential(ctx, CredentialsNamespace, upgraded.ID, details.Password)
	}

	return nil
}

// ResetPassword deliberately absorbs invalid-credential-class errors so the
// existence of an account for a given email cannot be inferred by a caller.
func (a *adapter) ResetPassword(ctx context.Context, email string) error {
	if err := a.provider.SendPasswordReset(ctx, email); err != nil && !errors.Is(err, internal.ErrInvalidCredentials) {
		return errors.Wrapf(err, "password reset failed for:%v", email)
	}

	return nil
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

// reconcileWithoutSession repairs a desync between the provider (no current
// identity) and the account store (still believes one is signed in), without
// a provider round trip.
func (a *adapter) reconcileWithoutSession(ctx context.Context) error {
	if a.store.CurrentDetails(ctx) == nil {
		return nil
	}

	return a.reconciler.ApplyRemoved(ctx, a.Name()) //nolint:wrapcheck // Callers wrap it.
}

func (a *adapter) Reauthenticate(ctx context.Context) (internal.ReauthOutcome, error) {
	current := a.provider.CurrentIdentity(ctx)
	if current == nil {
		return internal.ReauthCancelled, errors.Wrap(internal.ErrNotSignedIn, "reauthentication requires a signed-in identity")
	}
	secret := a.reconciler.RetrieveCredential(ctx, CredentialsNamespace, current.ID)
	if secret == "" {
		// Nothing cached, an interactive prompt would be needed.
		return internal.ReauthCancelled, nil
	}
	_, err := a.dispatcher.PerformGuarded(ctx, a, func(gCtx context.Context) (bool, error) {
		return false, a.provider.Reauthenticate(gCtx, current.Email, secret)
	})
	if err != nil {
		if errors.Is(err, internal.ErrInvalidCredentials) {
			log.Error(a.reconciler.RemoveCredential(ctx, CredentialsNamespace, current.ID))

			return internal.ReauthCancelled, nil
		}

		return internal.ReauthCancelled, errors.Wrap(err, "silent reauthentication failed")
	}

	return internal.ReauthSucceeded, nil
}

func (a *adapter) Cleanup(ctx context.Context, userID string) error {
	return errors.Wrapf(a.reconciler.RemoveCredential(ctx, CredentialsNamespace, userID), "failed to clean up credentials for userID:%v", userID)
}
