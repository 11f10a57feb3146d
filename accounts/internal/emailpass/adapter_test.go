// SPDX-License-Identifier: ice License 1.0

package emailpass

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/accountr/accounts/fixture"
	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/accounts/internal/dispatch"
)

const testApplicationYAMLKey = "self"

type testHarness struct {
	provider    *fixture.Provider
	store       *fixture.AccountStore
	credentials *fixture.CredentialStore
	adapter     *Adapter
	reconciler  *dispatch.Reconciler
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	provider := fixture.NewProvider()
	store := fixture.NewAccountStore()
	credentials := fixture.NewCredentialStore()
	storage := fixture.NewLocalStorage()
	reconciler := dispatch.NewReconciler(testApplicationYAMLKey, store, credentials, storage)
	dispatcher := dispatch.NewDispatcher(testApplicationYAMLKey, reconciler, storage)
	adapter := New(provider, dispatcher, reconciler, store)
	t.Cleanup(provider.AddStateChangeListener(dispatcher.OnStateChange))

	return &testHarness{provider: provider, store: store, credentials: credentials, adapter: adapter, reconciler: reconciler}
}

func TestLoginPublishesDetailsAndCachesCredential(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")

	require.NoError(t, harness.adapter.Login(context.Background(), "jane@doe.com", "str0ngPass"))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "uid-1", details.UserID)
	secret, err := harness.credentials.Retrieve(context.Background(), CredentialsNamespace, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "str0ngPass", secret)
}

func TestLoginSucceedsWhenCredentialPersistenceFails(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")
	// Caching the credential is best effort, a broken cache must not fail the login.
	harness.credentials.FailWith = errors.New("credential store is down")

	require.NoError(t, harness.adapter.Login(context.Background(), "jane@doe.com", "str0ngPass"))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "uid-1", details.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")

	err := harness.adapter.Login(context.Background(), "jane@doe.com", "wrong")

	require.ErrorIs(t, err, internal.ErrInvalidCredentials)
	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
	secret, sErr := harness.credentials.Retrieve(context.Background(), CredentialsNamespace, "uid-1")
	require.NoError(t, sErr)
	assert.Empty(t, secret)
}

func TestSignupCreatesAccountWithDisplayName(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.NextUserID = []string{"uid-1"}

	require.NoError(t, harness.adapter.Signup(context.Background(), &internal.SignupDetails{
		Email:     "jane@doe.com",
		Password:  "str0ngPass",
		FirstName: "Jane",
		LastName:  "Doe",
	}))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "uid-1", details.UserID)
	assert.Equal(t, "Jane", details.FirstName)
	assert.Equal(t, "Doe", details.LastName)
	require.Len(t, harness.store.Published, 1)
	assert.True(t, harness.store.Published[0].IsNewUser)
}

func TestSignupRequiresPassword(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)

	err := harness.adapter.Signup(context.Background(), &internal.SignupDetails{Email: "jane@doe.com"})

	require.ErrorIs(t, err, internal.ErrInvalidCredentials)
	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
}

func TestSignupUpgradesAnonymousIdentityKeepingItsUserID(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.NextUserID = []string{"uid-anon"}
	harness.provider.SuppressNotifications = true
	_, err := harness.provider.SignUpAnonymously(context.Background())
	require.NoError(t, err)
	harness.provider.SuppressNotifications = false

	require.NoError(t, harness.adapter.Signup(context.Background(), &internal.SignupDetails{
		Email:    "jane@doe.com",
		Password: "str0ngPass",
	}))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "uid-anon", details.UserID)
	assert.Equal(t, "jane@doe.com", details.Email)
	require.Len(t, harness.store.Published, 1)
	assert.True(t, harness.store.Published[0].IsNewUser)
	secret, err := harness.credentials.Retrieve(context.Background(), CredentialsNamespace, "uid-anon")
	require.NoError(t, err)
	assert.Equal(t, "str0ngPass", secret)
}

func TestSignupDuplicateEmail(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")

	err := harness.adapter.Signup(context.Background(), &internal.SignupDetails{Email: "jane@doe.com", Password: "an0therPass"})

	require.ErrorIs(t, err, internal.ErrAccountAlreadyInUse)
	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
}

func TestResetPasswordDoesNotLeakAccountExistence(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")

	require.NoError(t, harness.adapter.ResetPassword(context.Background(), "jane@doe.com"))
	require.NoError(t, harness.adapter.ResetPassword(context.Background(), "nobody@doe.com"))
}

func TestResetPasswordPropagatesSetupErrors(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.FailWith = internal.ErrSetup

	err := harness.adapter.ResetPassword(context.Background(), "jane@doe.com")

	require.ErrorIs(t, err, internal.ErrSetup)
}

func TestLogoutRetractsDetails(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")
	require.NoError(t, harness.adapter.Login(context.Background(), "jane@doe.com", "str0ngPass"))

	require.NoError(t, harness.adapter.Logout(context.Background()))

	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
	assert.Nil(t, harness.provider.CurrentIdentity(context.Background()))
	secret, err := harness.credentials.Retrieve(context.Background(), CredentialsNamespace, "uid-1")
	require.NoError(t, err)
	assert.Empty(t, secret)
}

func TestLogoutRepairsDesyncWithoutProviderRoundTrip(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	// The store believes a user is signed in, the provider does not.
	require.NoError(t, harness.reconciler.ApplySignedIn(context.Background(),
		&internal.Identity{ID: "uid-1", Email: "jane@doe.com"}, internal.AdapterEmailPassword, false))

	require.NoError(t, harness.adapter.Logout(context.Background()))

	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
}

func TestDeleteRemovesTheAccount(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")
	require.NoError(t, harness.adapter.Login(context.Background(), "jane@doe.com", "str0ngPass"))

	require.NoError(t, harness.adapter.Delete(context.Background()))

	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
	assert.Nil(t, harness.provider.CurrentIdentity(context.Background()))
	err := harness.adapter.Login(context.Background(), "jane@doe.com", "str0ngPass")
	require.ErrorIs(t, err, internal.ErrInvalidCredentials)
}

func TestReauthenticateSilentlyFromCachedCredential(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")
	require.NoError(t, harness.adapter.Login(context.Background(), "jane@doe.com", "str0ngPass"))

	outcome, err := harness.adapter.Reauthenticate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, internal.ReauthSucceeded, outcome)
}

func TestReauthenticateWithoutCachedCredentialRequiresInteraction(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")
	harness.provider.SuppressNotifications = true
	_, err := harness.provider.SignIn(context.Background(), "jane@doe.com", "str0ngPass")
	require.NoError(t, err)

	outcome, err := harness.adapter.Reauthenticate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, internal.ReauthCancelled, outcome)
}

func TestReauthenticateDropsStaleCredential(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	harness.provider.RegisterUser("uid-1", "jane@doe.com", "str0ngPass")
	require.NoError(t, harness.adapter.Login(context.Background(), "jane@doe.com", "str0ngPass"))
	// The password changed elsewhere, the cached secret is stale now.
	require.NoError(t, harness.credentials.Store(context.Background(), CredentialsNamespace, "uid-1", "staleSecret"))

	outcome, err := harness.adapter.Reauthenticate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, internal.ReauthCancelled, outcome)
	secret, err := harness.credentials.Retrieve(context.Background(), CredentialsNamespace, "uid-1")
	require.NoError(t, err)
	assert.Empty(t, secret)
}

func TestReauthenticateWithoutSession(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)

	outcome, err := harness.adapter.Reauthenticate(context.Background())

	require.ErrorIs(t, err, internal.ErrNotSignedIn)
	assert.Equal(t, internal.ReauthCancelled, outcome)
}
