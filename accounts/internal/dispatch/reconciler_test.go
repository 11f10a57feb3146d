// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/accountr/accounts/internal"
)

func TestApplySignedInBuildsAccountDocument(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	identity := &internal.Identity{ID: "uid-42", Email: "jane@doe.com", DisplayName: "Jane Doe", EmailVerified: true}

	require.NoError(t, harness.reconciler.ApplySignedIn(context.Background(), identity, internal.AdapterEmailPassword, true))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "uid-42", details.UserID)
	assert.Equal(t, "jane@doe.com", details.Email)
	assert.Equal(t, "Jane", details.FirstName)
	assert.Equal(t, "Doe", details.LastName)
	assert.True(t, details.EmailVerified)
	assert.NotNil(t, details.UpdatedAt)
	assert.Equal(t, "member", details.Custom["role"])
	require.Len(t, harness.store.Published, 1)
	assert.True(t, harness.store.Published[0].IsNewUser)
}

func TestApplySignedInSingleNameComponent(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	identity := &internal.Identity{ID: "uid-42", Email: "cher@example.com", DisplayName: "Cher"}

	require.NoError(t, harness.reconciler.ApplySignedIn(context.Background(), identity, internal.AdapterEmailPassword, false))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Equal(t, "Cher", details.FirstName)
	assert.Empty(t, details.LastName)
}

func TestApplySignedInOmitsUnparseableDisplayName(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	identity := &internal.Identity{ID: "uid-42", Email: "jane@doe.com", DisplayName: "   "}

	require.NoError(t, harness.reconciler.ApplySignedIn(context.Background(), identity, internal.AdapterEmailPassword, false))

	details := harness.store.CurrentDetails(context.Background())
	require.NotNil(t, details)
	assert.Empty(t, details.FirstName)
	assert.Empty(t, details.LastName)
}

func TestApplySignedInWithoutEmailPublishesNothing(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	identity := &internal.Identity{ID: "uid-42"}

	err := harness.reconciler.ApplySignedIn(context.Background(), identity, internal.AdapterEmailPassword, false)

	require.ErrorIs(t, err, internal.ErrInvalidEmail)
	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
	assert.Empty(t, harness.store.Published)
}

func TestApplyRemovedRetractsAndCleansUp(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)
	identity := &internal.Identity{ID: "uid-42", Email: "jane@doe.com"}
	require.NoError(t, harness.reconciler.ApplySignedIn(context.Background(), identity, internal.AdapterEmailPassword, false))
	require.NoError(t, harness.storage.Write(context.Background(), internal.ActiveAdapterKey, internal.AdapterEmailPassword))

	require.NoError(t, harness.reconciler.ApplyRemoved(context.Background(), internal.AdapterEmailPassword))

	assert.Nil(t, harness.store.CurrentDetails(context.Background()))
	assert.Equal(t, []string{"uid-42"}, harness.adapter.cleanedUpUserIDs())
	activeAdapter, err := harness.storage.Read(context.Background(), internal.ActiveAdapterKey)
	require.NoError(t, err)
	assert.Empty(t, activeAdapter)
}

func TestApplyRemovedWithoutPreviousUserSkipsCleanup(t *testing.T) {
	t.Parallel()
	harness := newTestHarness(t)

	require.NoError(t, harness.reconciler.ApplyRemoved(context.Background(), internal.AdapterEmailPassword))

	assert.Empty(t, harness.adapter.cleanedUpUserIDs())
}

func TestParseDisplayName(t *testing.T) {
	t.Parallel()
	firstName, lastName, ok := parseDisplayName("Jane Doe")
	assert.True(t, ok)
	assert.Equal(t, "Jane", firstName)
	assert.Equal(t, "Doe", lastName)

	firstName, lastName, ok = parseDisplayName("Jane van der Berg")
	assert.True(t, ok)
	assert.Equal(t, "Jane", firstName)
	assert.Equal(t, "van der Berg", lastName)

	firstName, lastName, ok = parseDisplayName("")
	assert.False(t, ok)
	assert.Empty(t, firstName)
	assert.Empty(t, lastName)
}
