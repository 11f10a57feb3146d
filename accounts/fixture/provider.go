// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"context"
	stdlibtime "time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/accounts/internal"
)

func NewProvider() *Provider {
	return &Provider{
		users:     make(map[string]*userRecord),
		listeners: make(map[uint64]func(*internal.StateChange)),
	}
}

// RegisterUser pre-provisions an account, so sign-in flows can be tested
// without a preceding signup.
func (p *Provider) RegisterUser(id, email, password string) {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.users[email] = &userRecord{id: id, email: email, password: password, providers: []string{internal.AdapterEmailPassword}}
}

func (p *Provider) failure() error {
	p.mx.Lock()
	defer p.mx.Unlock()

	return p.FailWith
}

func (p *Provider) SignIn(_ context.Context, email, password string) (*internal.Identity, error) {
	if err := p.failure(); err != nil {
		return nil, err
	}
	p.mx.Lock()
	user, found := p.users[email]
	if !found || user.password != password {
		p.mx.Unlock()

		return nil, errors.Wrapf(internal.ErrInvalidCredentials, "no account matches email:%v", email)
	}
	identity := user.identity()
	p.current = identity
	p.mx.Unlock()
	p.notify(&internal.StateChange{Identity: identity})

	return identity, nil
}

func (p *Provider) SignUp(_ context.Context, email, password string) (*internal.Identity, error) {
	if err := p.failure(); err != nil {
		return nil, err
	}
	p.mx.Lock()
	if _, found := p.users[email]; found {
		p.mx.Unlock()

		return nil, errors.Wrapf(internal.ErrAccountAlreadyInUse, "email:%v is taken", email)
	}
	if len(password) < 6 { //nolint:gomnd // Mimics the provider's minimum.
		p.mx.Unlock()

		return nil, errors.Wrap(internal.ErrWeakPassword, "password is shorter than 6 characters")
	}
	user := &userRecord{id: p.popUserID(), email: email, password: password, providers: []string{internal.AdapterEmailPassword}}
	p.users[email] = user
	identity := user.identity()
	p.current = identity
	p.mx.Unlock()
	p.notify(&internal.StateChange{Identity: identity, IsNewUser: true})

	return identity, nil
}

func (p *Provider) SignUpAnonymously(_ context.Context) (*internal.Identity, error) {
	p.mx.Lock()
	user := &userRecord{id: p.popUserID(), anonymous: true}
	p.users[user.id] = user
	identity := user.identity()
	p.current = identity
	p.mx.Unlock()
	p.notify(&internal.StateChange{Identity: identity, IsNewUser: true})

	return identity, nil
}

func (p *Provider) SignInWithIdP(_ context.Context, credential *internal.IdPCredential) (*internal.Identity, error) {
	p.mx.Lock()
	key := credential.ProviderID + ":" + credential.IDToken
	user, found := p.users[key]
	if !found {
		user = &userRecord{id: p.popUserID(), email: credential.IDToken + "@" + credential.ProviderID, providers: []string{credential.ProviderID}}
		p.users[key] = user
	}
	identity := user.identity()
	p.current = identity
	p.mx.Unlock()
	p.notify(&internal.StateChange{Identity: identity, IsNewUser: !found})

	return identity, nil
}

func (p *Provider) Link(_ context.Context, email, password string) (*internal.Identity, error) {
	p.mx.Lock()
	if p.current == nil {
		p.mx.Unlock()

		return nil, errors.Wrap(internal.ErrNotSignedIn, "nothing to link the credential to")
	}
	if existing, found := p.users[email]; found && existing.id != p.current.ID {
		p.mx.Unlock()

		return nil, errors.Wrapf(internal.ErrLinkFailedAlreadyInUse, "email:%v belongs to another account", email)
	}
	user := p.users[p.current.ID]
	if user == nil {
		user = &userRecord{id: p.current.ID}
	}
	user.email, user.password, user.anonymous = email, password, false
	user.providers = append(user.providers, internal.AdapterEmailPassword)
	p.users[email] = user
	identity := user.identity()
	p.current = identity
	p.mx.Unlock()
	p.notify(&internal.StateChange{Identity: identity})

	return identity, nil
}

func (p *Provider) LinkWithIdP(_ context.Context, credential *internal.IdPCredential) (*internal.Identity, error) {
	p.mx.Lock()
	if p.current == nil {
		p.mx.Unlock()

		return nil, errors.Wrap(internal.ErrNotSignedIn, "nothing to link the credential to")
	}
	user := p.users[p.current.ID]
	if user == nil {
		user = &userRecord{id: p.current.ID, email: p.current.Email}
	}
	user.anonymous = false
	if user.email == "" {
		user.email = credential.IDToken + "@" + credential.ProviderID
	}
	user.providers = append(user.providers, credential.ProviderID)
	p.users[credential.ProviderID+":"+credential.IDToken] = user
	identity := user.identity()
	p.current = identity
	p.mx.Unlock()
	p.notify(&internal.StateChange{Identity: identity})

	return identity, nil
}

func (p *Provider) SignOut(_ context.Context) error {
	p.mx.Lock()
	if p.current == nil {
		p.mx.Unlock()

		return errors.Wrap(internal.ErrNotSignedIn, "cannot sign out")
	}
	p.current = nil
	p.mx.Unlock()
	p.notify(&internal.StateChange{})

	return nil
}

func (p *Provider) Delete(_ context.Context) error {
	p.mx.Lock()
	if p.current == nil {
		p.mx.Unlock()

		return errors.Wrap(internal.ErrNotSignedIn, "cannot delete")
	}
	delete(p.users, p.current.Email)
	delete(p.users, p.current.ID)
	p.current = nil
	p.mx.Unlock()
	p.notify(&internal.StateChange{})

	return nil
}

func (p *Provider) CurrentIdentity(_ context.Context) *internal.Identity {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.current == nil {
		return nil
	}
	identity := *p.current

	return &identity
}

func (p *Provider) AddStateChangeListener(listener func(*internal.StateChange)) (remove func()) {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.nextListenerID++
	id := p.nextListenerID
	p.listeners[id] = listener

	return func() {
		p.mx.Lock()
		defer p.mx.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Provider) SendPasswordReset(_ context.Context, email string) error {
	if err := p.failure(); err != nil {
		return err
	}
	p.mx.Lock()
	defer p.mx.Unlock()
	if _, found := p.users[email]; !found {
		return errors.Wrapf(internal.ErrInvalidCredentials, "no account matches email:%v", email)
	}

	return nil
}

func (p *Provider) SendEmailVerification(_ context.Context) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.current == nil {
		return errors.Wrap(internal.ErrNotSignedIn, "cannot send email verification")
	}

	return nil
}

func (p *Provider) UpdateEmail(_ context.Context, email string) error {
	return p.updateCurrent(func(user *userRecord) { user.email = email })
}

func (p *Provider) UpdatePassword(_ context.Context, password string) error {
	return p.updateCurrent(func(user *userRecord) { user.password = password })
}

func (p *Provider) UpdateProfile(_ context.Context, displayName string) error {
	return p.updateCurrent(func(user *userRecord) { user.displayName = displayName })
}

func (p *Provider) Reauthenticate(ctx context.Context, email, password string) error {
	_, err := p.SignIn(ctx, email, password)

	return errors.Wrapf(err, "failed to reauthenticate:%v", email)
}

func (*Provider) Close() error {
	return nil
}

// Emit delivers an out-of-band state change, simulating a provider-initiated
// notification (token revocation, concurrent device logout).
func (p *Provider) Emit(stateChange *internal.StateChange) {
	p.notify(stateChange)
}

// EmitSignedOut simulates a background session invalidation.
func (p *Provider) EmitSignedOut() {
	p.mx.Lock()
	p.current = nil
	p.mx.Unlock()
	p.notify(&internal.StateChange{})
}

func (p *Provider) updateCurrent(mutate func(*userRecord)) error {
	p.mx.Lock()
	if p.current == nil {
		p.mx.Unlock()

		return errors.Wrap(internal.ErrNotSignedIn, "cannot update the account")
	}
	user := p.users[p.current.Email]
	if user == nil {
		user = p.users[p.current.ID]
	}
	if user == nil {
		user = &userRecord{id: p.current.ID, email: p.current.Email}
	}
	mutate(user)
	if user.email != "" {
		p.users[user.email] = user
	}
	identity := user.identity()
	p.current = identity
	p.mx.Unlock()
	p.notify(&internal.StateChange{Identity: identity})

	return nil
}

func (p *Provider) popUserID() string {
	if len(p.NextUserID) > 0 {
		id := p.NextUserID[0]
		p.NextUserID = p.NextUserID[1:]

		return id
	}

	return uuid.NewString()
}

func (p *Provider) notify(stateChange *internal.StateChange) {
	p.mx.Lock()
	if p.SuppressNotifications {
		p.mx.Unlock()

		return
	}
	listeners := make([]func(*internal.StateChange), 0, len(p.listeners))
	for _, listener := range p.listeners {
		listeners = append(listeners, listener)
	}
	duplicate, delay := p.DuplicateNotifications, p.NotifyDelay
	p.mx.Unlock()
	deliver := func() {
		for _, listener := range listeners {
			listener(stateChange)
			if duplicate {
				listener(stateChange)
			}
		}
	}
	if delay > 0 {
		go func() {
			stdlibtime.Sleep(delay)
			deliver()
		}()

		return
	}
	deliver()
}

func (u *userRecord) identity() *internal.Identity {
	providers := make([]string, len(u.providers))
	copy(providers, u.providers)

	return &internal.Identity{
		ID:            u.id,
		Email:         u.email,
		DisplayName:   u.displayName,
		Providers:     providers,
		EmailVerified: u.emailVerified,
		Anonymous:     u.anonymous,
	}
}
