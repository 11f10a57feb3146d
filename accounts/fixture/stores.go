// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"context"

	"github.com/ice-blockchain/accountr/accounts/internal"
)

func NewAccountStore() *AccountStore {
	return new(AccountStore)
}

func (s *AccountStore) SupplyUserDetails(_ context.Context, details *internal.AccountDetails, isNewUser bool) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.current = details
	s.Published = append(s.Published, PublishedDetails{Details: details, IsNewUser: isNewUser})

	return nil
}

func (s *AccountStore) RemoveUserDetails(_ context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.current = nil
	s.removals++

	return nil
}

func (s *AccountStore) CurrentDetails(_ context.Context) *internal.AccountDetails {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.current == nil {
		return nil
	}
	details := *s.current

	return &details
}

func (s *AccountStore) Removals() int {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.removals
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{secrets: make(map[string]string)}
}

func (s *CredentialStore) Store(_ context.Context, namespace, userID, secret string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.secrets[namespace+":"+userID] = secret

	return nil
}

func (s *CredentialStore) Retrieve(_ context.Context, namespace, userID string) (string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.FailWith != nil {
		return "", s.FailWith
	}

	return s.secrets[namespace+":"+userID], nil
}

func (s *CredentialStore) Delete(_ context.Context, namespace, userID string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	delete(s.secrets, namespace+":"+userID)

	return nil
}

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{values: make(map[string]string)}
}

func (l *LocalStorage) Read(_ context.Context, key string) (string, error) {
	l.mx.Lock()
	defer l.mx.Unlock()

	return l.values[key], nil
}

func (l *LocalStorage) Write(_ context.Context, key, value string) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.values[key] = value

	return nil
}

func (l *LocalStorage) Delete(_ context.Context, key string) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	delete(l.values, key)

	return nil
}
