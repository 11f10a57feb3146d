// SPDX-License-Identifier: ice License 1.0

package firebaseauth

import (
	"context"
	"fmt"
	"os"
	"strings"
	stdlibtime "time"

	firebase "firebase.google.com/go/v4"
	firebaseAuth "firebase.google.com/go/v4/auth"
	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"
	firebaseoption "google.golang.org/api/option"

	"github.com/ice-blockchain/accountr/accounts/internal"
	appCfg "github.com/ice-blockchain/accountr/config"
	"github.com/ice-blockchain/accountr/log"
)

func New(ctx context.Context, applicationYAMLKey string) Client {
	cfg := new(config)
	appCfg.MustLoadFromKey(applicationYAMLKey, cfg)
	cfg.setAPIKey(applicationYAMLKey)
	cfg.setCredentialsFileContent(applicationYAMLKey)
	cfg.setCredentialsFilePath(applicationYAMLKey)
	if cfg.AccountrProviderFirebase.IdentityToolkitBaseURL == "" {
		cfg.AccountrProviderFirebase.IdentityToolkitBaseURL = defaultIdentityToolkitBaseURL
	}
	if cfg.AccountrProviderFirebase.SecureTokenBaseURL == "" {
		cfg.AccountrProviderFirebase.SecureTokenBaseURL = defaultSecureTokenBaseURL
	}
	if cfg.AccountrProviderFirebase.APIKey == "" {
		log.Panic(errors.Wrapf(internal.ErrSetup, "[%v] api key is required", applicationYAMLKey))
	}
	cl := &auth{
		cfg:        cfg,
		admin:      newAdminClient(ctx, applicationYAMLKey, cfg),
		httpClient: newHTTPClient(),
		listeners:  make(map[uint64]func(*internal.StateChange)),
	}
	refreshCtx, cancel := context.WithCancel(context.Background())
	cl.cancelRefresh = cancel
	go cl.refreshTokensPeriodically(refreshCtx)

	return cl
}

func newAdminClient(ctx context.Context, applicationYAMLKey string, cfg *config) *firebaseAuth.Client {
	var credentialsOption firebaseoption.ClientOption
	if cfg.AccountrProviderFirebase.Credentials.FileContent != "" {
		credentialsOption = firebaseoption.WithCredentialsJSON([]byte(cfg.AccountrProviderFirebase.Credentials.FileContent))
	}
	if cfg.AccountrProviderFirebase.Credentials.FilePath != "" {
		credentialsOption = firebaseoption.WithCredentialsFile(cfg.AccountrProviderFirebase.Credentials.FilePath)
	}
	if credentialsOption == nil {
		// Server-side credentials are optional, the REST surface alone is
		// enough for client-style flows.
		return nil
	}
	firebaseApp, err := firebase.NewApp(ctx, nil, credentialsOption)
	log.Panic(errors.Wrapf(err, "[%v] failed to build Firebase app", applicationYAMLKey)) //nolint:revive // That's intended.
	client, err := firebaseApp.Auth(ctx)
	log.Panic(errors.Wrapf(err, "[%v] failed to build Firebase Auth client", applicationYAMLKey))

	return client
}

func newHTTPClient() *req.Client {
	client := req.C().
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	client.GetClient().Timeout = requestDeadline

	return client
}

func (a *auth) CurrentIdentity(_ context.Context) *internal.Identity {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.current == nil {
		return nil
	}
	identity := *a.current

	return &identity
}

func (a *auth) AddStateChangeListener(listener func(*internal.StateChange)) (remove func()) {
	a.mx.Lock()
	defer a.mx.Unlock()
	a.nextListenerID++
	id := a.nextListenerID
	a.listeners[id] = listener

	return func() {
		a.mx.Lock()
		defer a.mx.Unlock()
		delete(a.listeners, id)
	}
}

func (a *auth) Close() error {
	if a.cancelRefresh != nil {
		a.cancelRefresh()
	}

	return nil
}

func (a *auth) setSignedIn(identity *internal.Identity, idToken, refreshToken string, isNewUser bool) {
	a.mx.Lock()
	a.current = identity
	a.idToken = idToken
	a.refreshToken = refreshToken
	a.mx.Unlock()
	a.notify(&internal.StateChange{Identity: identity, IsNewUser: isNewUser})
}

func (a *auth) setSignedOut() {
	a.mx.Lock()
	a.current = nil
	a.idToken = ""
	a.refreshToken = ""
	a.mx.Unlock()
	a.notify(&internal.StateChange{})
}

func (a *auth) notify(stateChange *internal.StateChange) {
	a.mx.Lock()
	listeners := make([]func(*internal.StateChange), 0, len(a.listeners))
	for _, listener := range a.listeners {
		listeners = append(listeners, listener)
	}
	a.mx.Unlock()
	for _, listener := range listeners {
		listener(stateChange)
	}
}

func (a *auth) sessionTokens() (idToken, refreshToken string) {
	a.mx.Lock()
	defer a.mx.Unlock()

	return a.idToken, a.refreshToken
}

func (a *auth) refreshTokensPeriodically(ctx context.Context) {
	interval := defaultTokenRefreshInterval
	if minutes := a.cfg.AccountrProviderFirebase.TokenRefreshIntervalMinutes; minutes > 0 {
		interval = stdlibtime.Duration(minutes) * stdlibtime.Minute
	}
	ticker := stdlibtime.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshTokens(ctx)
		}
	}
}

func (a *auth) refreshTokens(ctx context.Context) {
	_, refreshToken := a.sessionTokens()
	if refreshToken == "" {
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx, requestDeadline)
	defer cancel()
	tokens, err := a.exchangeRefreshToken(reqCtx, refreshToken)
	if err != nil {
		if isProviderRejection(err) {
			// The provider invalidated the session out of band (revocation,
			// disabled account, concurrent device logout). This is the
			// background sign-out notification source.
			log.Warn("session invalidated by the identity provider, signing out", "error", err.Error())
			a.setSignedOut()

			return
		}
		log.Error(errors.Wrap(err, "failed to refresh session tokens"))

		return
	}
	a.mx.Lock()
	a.idToken = tokens.IDToken
	a.refreshToken = tokens.RefreshToken
	a.mx.Unlock()
}

func isProviderRejection(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) &&
		(errors.Is(err, internal.ErrInvalidCredentials) || errors.Is(err, internal.ErrRequireRecentLogin) ||
			errors.Is(err, internal.ErrSetup) || errors.Is(err, internal.ErrUnknown))
}

func (cfg *config) setAPIKey(applicationYAMLKey string) {
	if cfg.AccountrProviderFirebase.APIKey == "" {
		module := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(applicationYAMLKey, "-", "_"), "/", "_"))
		cfg.AccountrProviderFirebase.APIKey = os.Getenv(fmt.Sprintf("%s_AUTH_API_KEY", module))
		if cfg.AccountrProviderFirebase.APIKey == "" {
			cfg.AccountrProviderFirebase.APIKey = os.Getenv("GCP_FIREBASE_AUTH_API_KEY")
		}
	}
}

func (cfg *config) setCredentialsFileContent(applicationYAMLKey string) {
	if cfg.AccountrProviderFirebase.Credentials.FileContent == "" {
		module := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(applicationYAMLKey, "-", "_"), "/", "_"))
		cfg.AccountrProviderFirebase.Credentials.FileContent = os.Getenv(fmt.Sprintf("%s_AUTH_CREDENTIALS_FILE_CONTENT", module))
		if cfg.AccountrProviderFirebase.Credentials.FileContent == "" {
			cfg.AccountrProviderFirebase.Credentials.FileContent = os.Getenv("AUTH_CREDENTIALS_FILE_CONTENT")
		}
		if cfg.AccountrProviderFirebase.Credentials.FileContent == "" {
			cfg.AccountrProviderFirebase.Credentials.FileContent = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
			if !strings.HasPrefix(strings.TrimSpace(cfg.AccountrProviderFirebase.Credentials.FileContent), "{") {
				cfg.AccountrProviderFirebase.Credentials.FileContent = ""
			}
		}
	}
}

func (cfg *config) setCredentialsFilePath(applicationYAMLKey string) {
	if cfg.AccountrProviderFirebase.Credentials.FilePath == "" {
		module := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(applicationYAMLKey, "-", "_"), "/", "_"))
		cfg.AccountrProviderFirebase.Credentials.FilePath = os.Getenv(fmt.Sprintf("%s_AUTH_CREDENTIALS_FILE_PATH", module))
		if cfg.AccountrProviderFirebase.Credentials.FilePath == "" {
			cfg.AccountrProviderFirebase.Credentials.FilePath = os.Getenv("AUTH_CREDENTIALS_FILE_PATH")
		}
		if cfg.AccountrProviderFirebase.Credentials.FilePath == "" {
			cfg.AccountrProviderFirebase.Credentials.FilePath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
			if strings.HasPrefix(strings.TrimSpace(cfg.AccountrProviderFirebase.Credentials.FilePath), "{") {
				cfg.AccountrProviderFirebase.Credentials.FilePath = ""
			}
		}
	}
}
