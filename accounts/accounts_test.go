// SPDX-License-Identifier: ice License 1.0

package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/accountr/accounts/fixture"
	testingutils "github.com/ice-blockchain/accountr/testing"
)

const testApplicationYAMLKey = "self"

type testHarness struct {
	provider *fixture.Provider
	store    *fixture.AccountStore
	client   Client
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	provider := fixture.NewProvider()
	store := fixture.NewAccountStore()
	client := NewWithProvider(testApplicationYAMLKey, provider, store, fixture.NewCredentialStore(), fixture.NewLocalStorage())
	t.Cleanup(func() { require.NoError(t, client.Close()) })

	return &testHarness{provider: provider, store: store, client: client}
}

// requireConverged asserts the core guarantee: after a settled operation the
// account store and the identity provider agree on who is signed in, keyed by
// the provider's identifier.
func requireConverged(t *testing.T, harness *testHarness) {
	t.Helper()
	identity := harness.provider.CurrentIdentity(context.Background())
	details := harness.store.CurrentDetails(context.Background())
	if identity == nil {
		require.Nil(t, details)

		return
	}
	require.NotNil(t, details)
	require.Equal(t, identity.ID, details.UserID)
}

func TestAccountLifecycleConvergesAfterEveryOperation(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	ctx := context.Background()

	require.NoError(t, harness.client.Signup(ctx, &SignupDetails{
		Email:     "jane@doe.com",
		Password:  "str0ngPass",
		FirstName: "Jane",
		LastName:  "Doe",
	}))
	requireConverged(t, harness)

	require.NoError(t, harness.client.Logout(ctx))
	requireConverged(t, harness)

	require.NoError(t, harness.client.Login(ctx, "jane@doe.com", "str0ngPass"))
	requireConverged(t, harness)

	require.NoError(t, harness.client.UpdateEmail(ctx, "jane.doe@example.com"))
	requireConverged(t, harness)
	details := harness.store.CurrentDetails(ctx)
	require.NotNil(t, details)
	assert.Equal(t, "jane.doe@example.com", details.Email)

	outcome, err := harness.client.Reauthenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReauthSucceeded, outcome)
	requireConverged(t, harness)

	require.NoError(t, harness.client.Delete(ctx))
	requireConverged(t, harness)
	assert.Nil(t, harness.provider.CurrentIdentity(ctx))
}

func TestFederatedLifecycleConverges(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	ctx := context.Background()
	credential := &IdPCredential{ProviderID: "google.com", IDToken: "jane"}

	require.NoError(t, harness.client.LoginWithSSO(ctx, credential))
	requireConverged(t, harness)

	// Federated identities cannot be silently re-proven.
	outcome, err := harness.client.Reauthenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReauthCancelled, outcome)

	require.NoError(t, harness.client.Logout(ctx))
	requireConverged(t, harness)
}

func TestAnonymousUpgradePreservesTheUserID(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	ctx := context.Background()
	harness.provider.NextUserID = []string{"uid-anon"}

	require.NoError(t, harness.client.LoginAnonymously(ctx))
	// Anonymous principals have no account document.
	assert.Nil(t, harness.store.CurrentDetails(ctx))

	require.NoError(t, harness.client.Signup(ctx, &SignupDetails{Email: "jane@doe.com", Password: "str0ngPass"}))
	requireConverged(t, harness)
	details := harness.store.CurrentDetails(ctx)
	require.NotNil(t, details)
	assert.Equal(t, "uid-anon", details.UserID)
	require.NotEmpty(t, harness.store.Published)
	assert.True(t, harness.store.Published[len(harness.store.Published)-1].IsNewUser)
}

func TestUpdatePasswordAllowsSubsequentLogin(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	ctx := context.Background()
	require.NoError(t, harness.client.Signup(ctx, &SignupDetails{Email: "jane@doe.com", Password: "str0ngPass"}))

	require.NoError(t, harness.client.UpdatePassword(ctx, "ev3nStronger"))
	requireConverged(t, harness)
	require.NoError(t, harness.client.Logout(ctx))

	require.NoError(t, harness.client.Login(ctx, "jane@doe.com", "ev3nStronger"))
	requireConverged(t, harness)
}

func TestBackgroundSignOutRetractsDetails(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	ctx := context.Background()
	require.NoError(t, harness.client.Signup(ctx, &SignupDetails{Email: "jane@doe.com", Password: "str0ngPass"}))
	requireConverged(t, harness)

	// The provider invalidates the session with no operation in flight.
	harness.provider.EmitSignedOut()

	requireConverged(t, harness)
	assert.Nil(t, harness.store.CurrentDetails(ctx))
}

func TestAccountDetailsDocumentShape(t *testing.T) {
	t.Parallel()
	details := &AccountDetails{
		UserID:        "uid-1",
		Email:         "jane@doe.com",
		FirstName:     "Jane",
		LastName:      "Doe",
		EmailVerified: true,
	}
	expected := `{"userId":"uid-1","email":"jane@doe.com","firstName":"Jane","lastName":"Doe","emailVerified":true}`
	assert.Equal(t, expected, testingutils.MustMarshal(t, details))
	assert.Equal(t, details, testingutils.MustUnmarshal[AccountDetails](t, expected))
}

func TestCurrentIdentityMirrorsTheProvider(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	ctx := context.Background()
	assert.Nil(t, harness.client.CurrentIdentity(ctx))

	require.NoError(t, harness.client.Signup(ctx, &SignupDetails{Email: "jane@doe.com", Password: "str0ngPass"}))

	identity := harness.client.CurrentIdentity(ctx)
	require.NotNil(t, identity)
	assert.Equal(t, "jane@doe.com", identity.Email)
}
