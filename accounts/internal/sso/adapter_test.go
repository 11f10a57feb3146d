// SPDX-License-Identifier: ice License 1.0

package sso

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/accountr/accounts/fixture"
	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
)

const testApplicationYAMLKey = "self"

type testHarness struct {
	provider   *fixture.Provider
	store      *fixture.AccountStore
	adapter    *Adapter
	reconciler *dispatch.Reconciler
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	provider := fixture.NewProvider()
	store := fixture.NewAccountStore()
	storage := fixture.NewLocalStorage()
	reconciler := dispatch.NewReconciler(testApplicationYAMLKey, store, fixture.NewCredentialStore(), storage)
	dispatcher := dispatch.NewDispatcher(testApplicationYAMLKey, reconciler, storage)
	adapter := New(provider, dispatcher, reconciler, store)
	t.Cleanup(provider.AddStateChangeListener(dispatcher.OnStateChange))

	return &testHarness{provider: provider, store: store, adapter: adapter, reconciler: reconciler}
}

func TestLoginPublishesFederatedIdentity(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.NextUserID = []string{"uid-1"}

	require.NoError(t, harness.adapter.Login(context.Background(), &internal.IdPCredential{
		ProviderID: "google.com",
		IDToken:    "jane",
	}))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "uid-1", details.UserID)
	require.Len(t, harness.store.Published, 1)
	assert.True(t, harness.store.Published[0].IsNewUser)
}

func TestLoginExistingFederatedIdentityIsNotNew(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	credential := &internal.IdPCredential{ProviderID: "google.com", IDToken: "jane"}
	require.NoError(t, harness.adapter.Login(context.Background(), credential))

	require.NoError(t, harness.adapter.Login(context.Background(), credential))

	require.Len(t, harness.store.Published, 2)
	assert.False(t, harness.store.Published[1].IsNewUser)
}

func TestLoginUpgradesAnonymousIdentityKeepingItsUserID(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.NextUserID = []string{"uid-anon"}
	harness.provider.SuppressNotifications = true
	_, err := harness.provider.SignUpAnonymously(context.Background())
	require.NoError(t, err)
	harness.provider.SuppressNotifications = false

	require.NoError(t, harness.adapter.Login(context.Background(), &internal.IdPCredential{
		ProviderID: "apple.com",
		IDToken:    "jane",
	}))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "uid-anon", details.UserID)
	require.Len(t, harness.store.Published, 1)
	assert.True(t, harness.store.Published[0].IsNewUser)
}

func TestLogoutRepairsDesyncWithoutProviderRoundTrip(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	require.NoError(t, harness.reconciler.ApplySignedIn(context.Background(),
		&internal.Identity{ID: "uid-1", Email: "jane@google.example"}, internal.AdapterSSO, false))

	require.NoError(t, harness.adapter.Logout(context.Background()))

	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
}

func TestReauthenticateAlwaysRequiresInteraction(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	require.NoError(t, harness.adapter.Login(context.Background(), &internal.IdPCredential{
		ProviderID: "google.com",
		IDToken:    "jane",
	}))

	outcome, err := harness.adapter.Reauthenticate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, internal.ReauthCancelled, outcome)
}

func TestReauthenticateWithoutSession(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)

	outcome, err := harness.adapter.Reauthenticate(context.Background())

	require.ErrorIs(t, err, internal.ErrNotSignedIn)
	assert.Equal(t, internal.ReauthCancelled, outcome)
}
