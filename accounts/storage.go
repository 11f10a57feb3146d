// SPDX-License-Identifier: ice License 1.0

package accounts

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/accountr/kvstore"
)

func (c *storedCredential) Key() string {
	return c.key
}

func (c *storedCredential) SetKey(key string) {
	c.key = key
}

func credentialKey(namespace, userID string) string {
	return fmt.Sprintf("credentials:%v:%v", namespace, userID)
}

func (s *credentialStore) Store(ctx context.Context, namespace, userID, secret string) error {
	return errors.Wrapf(kvstore.Set(ctx, s.db, &storedCredential{key: credentialKey(namespace, userID), Secret: secret}),
		"failed to store credential for userID:%v, namespace:%v", userID, namespace)
}

func (s *credentialStore) Retrieve(ctx context.Context, namespace, userID string) (string, error) {
	credential, err := kvstore.Get[storedCredential](ctx, s.db, credentialKey(namespace, userID))
	if err != nil {
		return "", errors.Wrapf(err, "failed to retrieve credential for userID:%v, namespace:%v", userID, namespace)
	}
	if credential == nil {
		return "", nil
	}

	return credential.Secret, nil
}

func (s *credentialStore) Delete(ctx context.Context, namespace, userID string) error {
	return errors.Wrapf(kvstore.Del(ctx, s.db, credentialKey(namespace, userID)),
		"failed to delete credential for userID:%v, namespace:%v", userID, namespace)
}

func (e *storedEntry) Key() string {
	return e.key
}

func (e *storedEntry) SetKey(key string) {
	e.key = key
}

func localStorageKey(key string) string {
	return fmt.Sprintf("localstorage:%v", key)
}

func (l *localStorage) Read(ctx context.Context, key string) (string, error) {
	entry, err := kvstore.Get[storedEntry](ctx, l.db, localStorageKey(key))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read local storage key:%v", key)
	}
	if entry == nil {
		return "", nil
	}

	return entry.Value, nil
}

func (l *localStorage) Write(ctx context.Context, key, value string) error {
	return errors.Wrapf(kvstore.Set(ctx, l.db, &storedEntry{key: localStorageKey(key), Value: value}),
		"failed to write local storage key:%v", key)
}

func (l *localStorage) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(kvstore.Del(ctx, l.db, localStorageKey(key)), "failed to delete local storage key:%v", key)
}
