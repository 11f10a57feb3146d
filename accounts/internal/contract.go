// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/time"
)

// Public API.

const (
	AdapterEmailPassword = "password"
	AdapterSSO           = "sso"

	ActiveAdapterKey = "accounts/activeAdapter"
)

var (
	ErrInvalidEmail           = errors.New("identity has no usable email")
	ErrAccountAlreadyInUse    = errors.New("account already in use")
	ErrWeakPassword           = errors.New("password is too weak")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrRequireRecentLogin     = errors.New("operation requires a recent login")
	ErrSetup                  = errors.New("provider misconfiguration")
	ErrNotSignedIn            = errors.New("no identity is signed in")
	ErrLinkFailedDuplicate    = errors.New("credential is already linked to this account")
	ErrLinkFailedAlreadyInUse = errors.New("credential is already linked to another account")
	ErrUnknown                = errors.New("unknown provider error")
)

type (
	Identity struct {
		ID            string
		Email         string
		DisplayName   string
		Providers     []string
		EmailVerified bool
		Anonymous     bool
	}

	// StateChange is the payload of one identity-provider notification. A nil
	// Identity means the principal was removed (signed out or deleted).
	StateChange struct {
		Identity  *Identity
		IsNewUser bool
	}

	AccountDetails struct {
		UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
		Custom        map[string]any `json:"custom,omitempty"`
		UserID        string         `json:"userId"`
		Email         string         `json:"email"`
		FirstName     string         `json:"firstName,omitempty"`
		LastName      string         `json:"lastName,omitempty"`
		EmailVerified bool           `json:"emailVerified"`
	}

	SignupDetails struct {
		Email     string
		Password  string
		FirstName string
		LastName  string
	}

	IdPCredential struct {
		ProviderID  string
		IDToken     string
		AccessToken string
	}

	ReauthOutcome uint8

	ProviderClient interface {
		SignIn(ctx context.Context, email, password string) (*Identity, error)
		SignUp(ctx context.Context, email, password string) (*Identity, error)
		SignUpAnonymously(ctx context.Context) (*Identity, error)
		SignInWithIdP(ctx context.Context, credential *IdPCredential) (*Identity, error)
		Link(ctx context.Context, email, password string) (*Identity, error)
		LinkWithIdP(ctx context.Context, credential *IdPCredential) (*Identity, error)
		SignOut(ctx context.Context) error
		Delete(ctx context.Context) error
		CurrentIdentity(ctx context.Context) *Identity
		AddStateChangeListener(listener func(*StateChange)) (remove func())
		SendPasswordReset(ctx context.Context, email string) error
		SendEmailVerification(ctx context.Context) error
		UpdateEmail(ctx context.Context, email string) error
		UpdatePassword(ctx context.Context, password string) error
		UpdateProfile(ctx context.Context, displayName string) error
		Reauthenticate(ctx context.Context, email, password string) error
		Close() error
	}

	AccountStore interface {
		SupplyUserDetails(ctx context.Context, details *AccountDetails, isNewUser bool) error
		RemoveUserDetails(ctx context.Context) error
		CurrentDetails(ctx context.Context) *AccountDetails
	}

	CredentialStore interface {
		Store(ctx context.Context, namespace, userID, secret string) error
		Retrieve(ctx context.Context, namespace, userID string) (string, error)
		Delete(ctx context.Context, namespace, userID string) error
	}

	LocalStorage interface {
		Read(ctx context.Context, key string) (string, error)
		Write(ctx context.Context, key, value string) error
		Delete(ctx context.Context, key string) error
	}

	// Adapter is the part of a provider adapter the dispatcher and the
	// reconciler need to know about; login/signup surfaces differ per
	// adapter and live on the concrete types.
	Adapter interface {
		Name() string
		Reauthenticate(ctx context.Context) (ReauthOutcome, error)
		Cleanup(ctx context.Context, userID string) error
	}
)

const (
	ReauthSucceeded ReauthOutcome = iota
	ReauthCancelled
)
