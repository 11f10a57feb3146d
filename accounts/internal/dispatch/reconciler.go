// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"context"
	"strings"

	"dario.cat/mergo"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/accounts/internal"
	appCfg "github.com/ice-blockchain/accountr/config"
	"github.com/ice-blockchain/accountr/log"
	"github.com/ice-blockchain/accountr/time"
)

func NewReconciler(applicationYAMLKey string, store internal.AccountStore, credentials internal.CredentialStore, localStorage internal.LocalStorage) *Reconciler {
	var cfg config
	appCfg.MustLoadFromKey(applicationYAMLKey, &cfg)

	return &Reconciler{
		store:        store,
		credentials:  credentials,
		localStorage: localStorage,
		adapters:     make(map[string]internal.Adapter),
		defaults:     cfg.AccountrAccounts.DefaultAttributes,
	}
}

func (r *Reconciler) RegisterAdapter(adapter internal.Adapter) {
	r.adaptersMx.Lock()
	defer r.adaptersMx.Unlock()
	r.adapters[adapter.Name()] = adapter
}

func (r *Reconciler) Apply(ctx context.Context, stateChange *internal.StateChange, adapterName string) error {
	if stateChange.Identity == nil {
		return errors.Wrapf(r.ApplyRemoved(ctx, adapterName), "failed to apply removal attributed to adapter:%v", adapterName)
	}

	return errors.Wrapf(r.ApplySignedIn(ctx, stateChange.Identity, adapterName, stateChange.IsNewUser),
		"failed to apply signed-in identity:%v attributed to adapter:%v", stateChange.Identity.ID, adapterName)
}

func (r *Reconciler) ApplySignedIn(ctx context.Context, identity *internal.Identity, adapterName string, isNewUser bool) error {
	if identity.Anonymous {
		// Anonymous principals have no account document until they are
		// upgraded to a permanent credential.
		return nil
	}
	if identity.Email == "" {
		// SSO flows that don't return an email must supply a fallback before
		// reaching this point.
		return errors.Wrapf(internal.ErrInvalidEmail, "identity:%v has no email, not publishing details", identity.ID)
	}
	details := &internal.AccountDetails{
		UserID:        identity.ID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		UpdatedAt:     time.Now(),
	}
	if firstName, lastName, ok := parseDisplayName(identity.DisplayName); ok {
		details.FirstName, details.LastName = firstName, lastName
	}
	if len(r.defaults) > 0 {
		if err := mergo.Merge(&details.Custom, r.defaults); err != nil {
			return errors.Wrapf(err, "failed to merge default attributes into details for identity:%v", identity.ID)
		}
	}

	return errors.Wrapf(r.store.SupplyUserDetails(ctx, details, isNewUser), "failed to supply user details for identity:%v", identity.ID)
}

func (r *Reconciler) ApplyRemoved(ctx context.Context, previousAdapterName string) error {
	var previousUserID string
	if current := r.store.CurrentDetails(ctx); current != nil {
		previousUserID = current.UserID
	}
	if err := r.store.RemoveUserDetails(ctx); err != nil {
		return errors.Wrap(err, "failed to remove user details")
	}
	if err := r.localStorage.Delete(ctx, internal.ActiveAdapterKey); err != nil {
		log.Error(errors.Wrap(err, "failed to reset active adapter"))
	}
	if previousUserID == "" {
		return nil
	}
	if adapter := r.adapter(previousAdapterName); adapter != nil {
		if err := adapter.Cleanup(ctx, previousUserID); err != nil {
			log.Error(errors.Wrapf(err, "adapter:%v cleanup failed for userID:%v", previousAdapterName, previousUserID))
		}
	}

	return nil
}

// Credential caching is an optimization for silent reauthentication, not a
// correctness requirement, hence failures are logged, never thrown.

func (r *Reconciler) PersistCredential(ctx context.Context, namespace, userID, secret string) {
	log.Error(errors.Wrapf(r.credentials.Store(ctx, namespace, userID, secret),
		"failed to persist credential for userID:%v, namespace:%v", userID, namespace))
}

func (r *Reconciler) RemoveCredential(ctx context.Context, namespace, userID string) error {
	return errors.Wrapf(r.credentials.Delete(ctx, namespace, userID),
		"failed to remove credential for userID:%v, namespace:%v", userID, namespace)
}

func (r *Reconciler) RetrieveCredential(ctx context.Context, namespace, userID string) string {
	secret, err := r.credentials.Retrieve(ctx, namespace, userID)
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to retrieve credential for userID:%v, namespace:%v", userID, namespace))

		return ""
	}

	return secret
}

func (r *Reconciler) adapter(name string) internal.Adapter {
	r.adaptersMx.RLock()
	defer r.adaptersMx.RUnlock()

	return r.adapters[name]
}

func parseDisplayName(displayName string) (firstName, lastName string, ok bool) {
	parts := strings.Fields(displayName)
	switch len(parts) {
	case 0:
		return "", "", false
	case 1:
		return parts[0], "", true
	default:
		return parts[0], strings.Join(parts[1:], " "), true
	}
}
