// SPDX-License-Identifier: ice License 1.0

package firebaseauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/accounts/internal"
	"github.com/ice-blockchain/accountr/log"
	"github.com/ice-blockchain/accountr/terror"
)

func (a *auth) SignIn(ctx context.Context, email, password string) (*internal.Identity, error) {
	var user authenticatedUser
	err := a.post(ctx, "/v1/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &user)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign in:%v", email)
	}

	return a.completeAuthentication(ctx, &user, false, user.IsNewUser)
}

func (a *auth) SignUp(ctx context.Context, email, password string) (*internal.Identity, error) {
	var user authenticatedUser
	err := a.post(ctx, "/v1/accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &user)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign up:%v", email)
	}

	return a.completeAuthentication(ctx, &user, false, true)
}

func (a *auth) SignUpAnonymously(ctx context.Context) (*internal.Identity, error) {
	var user authenticatedUser
	if err := a.post(ctx, "/v1/accounts:signUp", map[string]any{"returnSecureToken": true}, &user); err != nil {
		return nil, errors.Wrap(err, "failed to sign up anonymously")
	}

	return a.completeAuthentication(ctx, &user, true, true)
}

func (a *auth) SignInWithIdP(ctx context.Context, credential *internal.IdPCredential) (*internal.Identity, error) {
	var user authenticatedUser
	err := a.post(ctx, "/v1/accounts:signInWithIdp", map[string]any{
		"postBody":            idpPostBody(credential),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &user)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign in with idp:%v", credential.ProviderID)
	}

	return a.completeAuthentication(ctx, &user, false, user.IsNewUser)
}

// Link attaches an email/password credential to the currently signed-in
// identity. This is the anonymous-to-permanent upgrade path: the provider
// keeps the original uid.
func (a *auth) Link(ctx context.Context, email, password string) (*internal.Identity, error) {
	idToken, _ := a.sessionTokens()
	if idToken == "" {
		return nil, errors.Wrap(internal.ErrNotSignedIn, "cannot link a credential without a signed-in identity")
	}
	var user authenticatedUser
	err := a.post(ctx, "/v1/accounts:update", map[string]any{
		"idToken":           idToken,
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &user)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to link email credential:%v", email)
	}

	return a.completeAuthentication(ctx, &user, false, false)
}

func (a *auth) LinkWithIdP(ctx context.Context, credential *internal.IdPCredential) (*internal.Identity, error) {
	idToken, _ := a.sessionTokens()
	if idToken == "" {
		return nil, errors.Wrap(internal.ErrNotSignedIn, "cannot link a credential without a signed-in identity")
	}
	var user authenticatedUser
	err := a.post(ctx, "/v1/accounts:signInWithIdp", map[string]any{
		"idToken":             idToken,
		"postBody":            idpPostBody(credential),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &user)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to link idp credential:%v", credential.ProviderID)
	}

	return a.completeAuthentication(ctx, &user, false, false)
}

func (a *auth) SignOut(ctx context.Context) error {
	if a.CurrentIdentity(ctx) == nil {
		return errors.Wrap(internal.ErrNotSignedIn, "cannot sign out without a signed-in identity")
	}
	a.setSignedOut()

	return nil
}

func (a *auth) Delete(ctx context.Context) error {
	idToken, _ := a.sessionTokens()
	if idToken == "" {
		return errors.Wrap(internal.ErrNotSignedIn, "cannot delete without a signed-in identity")
	}
	if err := a.post(ctx, "/v1/accounts:delete", map[string]any{"idToken": idToken}, nil); err != nil {
		return errors.Wrap(err, "failed to delete the signed-in user")
	}
	a.setSignedOut()

	return nil
}

func (a *auth) SendPasswordReset(ctx context.Context, email string) error {
	err := a.post(ctx, "/v1/accounts:sendOobCode", map[string]any{
		"requestType": passwordResetRequestType,
		"email":       email,
	}, nil)

	return errors.Wrapf(err, "failed to send password reset to:%v", email)
}

func (a *auth) SendEmailVerification(ctx context.Context) error {
	idToken, _ := a.sessionTokens()
	if idToken == "" {
		return errors.Wrap(internal.ErrNotSignedIn, "cannot send email verification without a signed-in identity")
	}
	err := a.post(ctx, "/v1/accounts:sendOobCode", map[string]any{
		"requestType": emailVerificationRequestType,
		"idToken":     idToken,
	}, nil)

	return errors.Wrap(err, "failed to send email verification")
}

func (a *auth) UpdateEmail(ctx context.Context, email string) error {
	return errors.Wrapf(a.updateAccount(ctx, map[string]any{"email": email}), "failed to update email to:%v", email)
}

func (a *auth) UpdatePassword(ctx context.Context, password string) error {
	return errors.Wrap(a.updateAccount(ctx, map[string]any{"password": password}), "failed to update password")
}

func (a *auth) UpdateProfile(ctx context.Context, displayName string) error {
	return errors.Wrapf(a.updateAccount(ctx, map[string]any{"displayName": displayName}), "failed to update display name to:%v", displayName)
}

func (a *auth) Reauthenticate(ctx context.Context, email, password string) error {
	_, err := a.SignIn(ctx, email, password)

	return errors.Wrapf(err, "failed to reauthenticate:%v", email)
}

func (a *auth) updateAccount(ctx context.Context, changes map[string]any) error {
	idToken, _ := a.sessionTokens()
	if idToken == "" {
		return errors.Wrap(internal.ErrNotSignedIn, "cannot update the account without a signed-in identity")
	}
	body := map[string]any{"idToken": idToken, "returnSecureToken": true}
	for key, value := range changes {
		body[key] = value
	}
	var user authenticatedUser
	if err := a.post(ctx, "/v1/accounts:update", body, &user); err != nil {
		return err
	}
	_, err := a.completeAuthentication(ctx, &user, false, false)

	return err
}

func (a *auth) exchangeRefreshToken(ctx context.Context, refreshToken string) (*refreshedTokens, error) {
	url := fmt.Sprintf("%v/v1/token?key=%v", a.cfg.AccountrProviderFirebase.SecureTokenBaseURL, a.cfg.AccountrProviderFirebase.APIKey)
	var tokens refreshedTokens
	var apiErr identityToolkitError
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"grant_type": "refresh_token", "refresh_token": refreshToken}).
		SetSuccessResult(&tokens).
		SetErrorResult(&apiErr).
		Post(url)
	if err != nil {
		return nil, errors.Wrap(err, "secure token exchange failed")
	}
	if resp.IsErrorState() {
		return nil, errors.Wrap(mapProviderError(apiErr.Error.Message), "secure token exchange rejected")
	}

	return &tokens, nil
}

// completeAuthentication enriches the freshly authenticated user with
// verification/provider facts (admin lookup when server credentials are
// configured, REST lookup otherwise, decoded id token claims as the last
// resort), records the session and notifies all state-change listeners.
func (a *auth) completeAuthentication(ctx context.Context, user *authenticatedUser, anonymous, isNewUser bool) (*internal.Identity, error) {
	identity := &internal.Identity{
		ID:          user.LocalID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Anonymous:   anonymous,
	}
	if !anonymous {
		a.enrichIdentity(ctx, identity, user.IDToken)
	}
	a.setSignedIn(identity, user.IDToken, user.RefreshToken, isNewUser)

	return a.CurrentIdentity(ctx), nil
}

func (a *auth) enrichIdentity(ctx context.Context, identity *internal.Identity, idToken string) {
	if a.admin != nil {
		if usr, err := a.admin.GetUser(ctx, identity.ID); err == nil {
			identity.Email = usr.Email
			identity.DisplayName = usr.DisplayName
			identity.EmailVerified = usr.EmailVerified
			for _, info := range usr.ProviderUserInfo {
				identity.Providers = append(identity.Providers, info.ProviderID)
			}

			return
		} else { //nolint:revive // Fallthrough to the REST lookup is intended.
			log.Error(errors.Wrapf(err, "admin lookup failed for userID:%v", identity.ID))
		}
	}
	var lookup struct {
		Users []lookedUpUser `json:"users"`
	}
	if err := a.post(ctx, "/v1/accounts:lookup", map[string]any{"idToken": idToken}, &lookup); err == nil && len(lookup.Users) == 1 {
		usr := lookup.Users[0]
		identity.Email = usr.Email
		identity.DisplayName = usr.DisplayName
		identity.EmailVerified = usr.EmailVerified
		for _, info := range usr.ProviderUserInfo {
			identity.Providers = append(identity.Providers, info.ProviderID)
		}

		return
	}
	// Both lookups failed, the unverified token claims are better than nothing.
	if claims := decodeIDTokenClaims(idToken); claims != nil {
		if email, found := claims["email"]; found {
			identity.Email, _ = email.(string) //nolint:errcheck // Not needed.
		}
		if verified, found := claims["email_verified"]; found {
			identity.EmailVerified, _ = verified.(bool) //nolint:errcheck // Not needed.
		}
	}
}

func decodeIDTokenClaims(idToken string) jwt.MapClaims {
	claims := make(jwt.MapClaims)
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		log.Error(errors.Wrap(err, "failed to decode id token claims"))

		return nil
	}

	return claims
}

func (a *auth) post(ctx context.Context, path string, body map[string]any, result any) error {
	url := fmt.Sprintf("%v%v?key=%v", a.cfg.AccountrProviderFirebase.IdentityToolkitBaseURL, path, a.cfg.AccountrProviderFirebase.APIKey)
	var apiErr identityToolkitError
	request := a.httpClient.R().
		SetContext(ctx).
		SetContentType("application/json").
		SetBodyJsonMarshal(body).
		SetErrorResult(&apiErr)
	if result != nil {
		request = request.SetSuccessResult(result)
	}
	resp, err := request.Post(url)
	if err != nil {
		return errors.Wrapf(err, "identity toolkit post `%v` failed", path)
	}
	if resp.IsErrorState() {
		return errors.Wrapf(mapProviderError(apiErr.Error.Message), "identity toolkit post `%v` rejected", path)
	}

	return nil
}

func idpPostBody(credential *internal.IdPCredential) string {
	if credential.IDToken != "" {
		return fmt.Sprintf("id_token=%v&providerId=%v", credential.IDToken, credential.ProviderID)
	}

	return fmt.Sprintf("access_token=%v&providerId=%v", credential.AccessToken, credential.ProviderID)
}

//nolint:gocyclo,cyclop // It's a flat provider code mapping.
func mapProviderError(message string) error {
	code, _, _ := strings.Cut(message, " ")
	code = strings.TrimSuffix(code, ":")
	switch code {
	case "EMAIL_EXISTS":
		return internal.ErrAccountAlreadyInUse
	case "WEAK_PASSWORD":
		return internal.ErrWeakPassword
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_EMAIL", "USER_NOT_FOUND", "INVALID_REFRESH_TOKEN":
		return internal.ErrInvalidCredentials
	case "CREDENTIAL_TOO_OLD_LOGIN_AGAIN", "TOKEN_EXPIRED":
		return internal.ErrRequireRecentLogin
	case "USER_DISABLED", "OPERATION_NOT_ALLOWED", "CONFIGURATION_NOT_FOUND", "INVALID_IDP_RESPONSE", "MISSING_REQUEST_URI", "API_KEY_INVALID":
		return internal.ErrSetup
	case "FEDERATED_USER_ID_ALREADY_LINKED":
		return internal.ErrLinkFailedAlreadyInUse
	case "PROVIDER_ALREADY_LINKED":
		return internal.ErrLinkFailedDuplicate
	default:
		return terror.New(internal.ErrUnknown, map[string]any{"code": message})
	}
}
