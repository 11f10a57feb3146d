// SPDX-License-Identifier: ice License 1.0

package firebaseauth //nolint:revive //.

import (
	"sync"
	stdlibtime "time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/imroc/req/v3"

	"github.com/ice-blockchain/accountr/accounts/internal"
)

// Public API.

type (
	Client = internal.ProviderClient
)

// Private API.

const (
	requestDeadline = 25 * stdlibtime.Second

	defaultIdentityToolkitBaseURL = "https://identitytoolkit.googleapis.com"
	defaultSecureTokenBaseURL     = "https://securetoken.googleapis.com"
	defaultTokenRefreshInterval   = 30 * stdlibtime.Minute

	passwordResetRequestType     = "PASSWORD_RESET"
	emailVerificationRequestType = "VERIFY_EMAIL"
)

type (
	auth struct {
		admin          *firebaseauth.Client
		httpClient     *req.Client
		cfg            *config
		listeners      map[uint64]func(*internal.StateChange)
		current        *internal.Identity
		idToken        string
		refreshToken   string
		nextListenerID uint64
		cancelRefresh  func()
		mx             sync.Mutex
	}

	config struct {
		AccountrProviderFirebase struct {
			Credentials struct {
				FilePath    string `yaml:"filePath"`
				FileContent string `yaml:"fileContent"`
			} `yaml:"credentials" mapstructure:"credentials"`
			APIKey                      string `yaml:"apiKey" mapstructure:"apiKey"`
			IdentityToolkitBaseURL      string `yaml:"identityToolkitBaseUrl" mapstructure:"identityToolkitBaseUrl"`
			SecureTokenBaseURL          string `yaml:"secureTokenBaseUrl" mapstructure:"secureTokenBaseUrl"`
			TokenRefreshIntervalMinutes int64  `yaml:"tokenRefreshIntervalMinutes" mapstructure:"tokenRefreshIntervalMinutes"`
		} `yaml:"accountr/provider/firebase" mapstructure:"accountr/provider/firebase"` //nolint:tagliatelle // Nope.
	}

	identityToolkitError struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}

	authenticatedUser struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		DisplayName  string `json:"displayName"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		IsNewUser    bool   `json:"isNewUser"`
	}

	lookedUpUser struct {
		ProviderUserInfo []struct {
			ProviderID string `json:"providerId"`
		} `json:"providerUserInfo"`
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		EmailVerified bool   `json:"emailVerified"`
	}

	refreshedTokens struct {
		IDToken      string `json:"id_token"`      //nolint:tagliatelle // The secure token API is snake_cased.
		RefreshToken string `json:"refresh_token"` //nolint:tagliatelle // The secure token API is snake_cased.
	}
)
