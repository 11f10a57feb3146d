// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"sync"
	stdlibtime "time"

	"github.com/ice-blockchain/accountr/accounts/internal"
)

// Public API.

type (
	// Provider is an in-memory identity provider with the same notification
	// semantics as the real one: every state mutation produces exactly one
	// state-change delivery to every registered listener, synchronously by
	// default. The knobs exist to simulate provider misbehavior.
	Provider struct {
		// NextUserID overrides generated identifiers; popped front-first.
		NextUserID []string
		// SuppressNotifications withholds deliveries entirely.
		SuppressNotifications bool
		// DuplicateNotifications delivers every notification twice.
		DuplicateNotifications bool
		// NotifyDelay delivers notifications from a background goroutine
		// after the given delay instead of synchronously.
		NotifyDelay stdlibtime.Duration
		// FailWith makes every provider call fail with the given error.
		FailWith error

		users          map[string]*userRecord
		listeners      map[uint64]func(*internal.StateChange)
		current        *internal.Identity
		nextListenerID uint64
		mx             sync.Mutex
	}

	// AccountStore is an in-memory account document store that records every
	// publication it receives.
	AccountStore struct {
		Published []PublishedDetails
		current   *internal.AccountDetails
		removals  int
		mx        sync.Mutex
	}

	PublishedDetails struct {
		Details   *internal.AccountDetails
		IsNewUser bool
	}

	CredentialStore struct {
		// FailWith makes every store call fail with the given error.
		FailWith error

		secrets map[string]string
		mx      sync.Mutex
	}

	LocalStorage struct {
		values map[string]string
		mx     sync.Mutex
	}
)

// Private API.

type (
	userRecord struct {
		id            string
		email         string
		password      string
		displayName   string
		providers     []string
		emailVerified bool
		anonymous     bool
	}
)
