// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package connection holds the single "currently connected" database target.
//
// Connect awaits the handshake (dial and ping) before the state changes, so a failed
// attempt leaves the previous session in place. The identifier of the connected target
// is persisted so the next process can restore it.
package connection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"scrapbook/cli/internal/docstore"
	apperrors "scrapbook/cli/internal/errors"

	"go.uber.org/zap"
)

// Descriptor names a connection target. DSN is never persisted.
type Descriptor struct {
	Account    string
	Kind       string
	Database   string
	Collection string
	DSN        string
}

// ID returns "account/database" or "account/database/collection".
func (d Descriptor) ID() string {
	id := d.Account + "/" + d.Database
	if d.Collection != "" {
		id += "/" + d.Collection
	}
	return id
}

// ParseID splits an identifier produced by Descriptor.ID. Account names never contain
// '/', database names neither; everything after the second slash is the collection.
func ParseID(id string) (account, database, collection string, err error) {
	parts := strings.SplitN(id, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid connection id %q", id)
	}
	if len(parts) == 3 {
		collection = parts[2]
	}
	return parts[0], parts[1], collection, nil
}

// Session is an established connection.
type Session struct {
	Descriptor Descriptor
	Client     docstore.Client
}

// Database returns the selected database.
func (s *Session) Database() docstore.Database {
	return s.Client.Database(s.Descriptor.Database)
}

// Store persists the identifier of the connected target; keychain.Manager implements it.
type Store interface {
	SaveConnected(id string) error
	LoadConnected() (string, error)
	ClearConnected() error
}

// State holds at most one Session.
type State struct {
	mu      sync.Mutex
	current *Session
	dial    docstore.Dialer
	store   Store
	logger  *zap.Logger
}

// New creates an empty State. store may be nil to disable persistence.
func New(dial docstore.Dialer, store Store, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{dial: dial, store: store, logger: logger}
}

// Current returns the active session or nil.
func (s *State) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Connect dials and pings d, then replaces the current session with it and closes
// the old client. On failure the state is unchanged and a HandshakeFailed error is returned.
func (s *State) Connect(ctx context.Context, d Descriptor) error {
	s.logger.Debug("connecting", zap.String("target", d.ID()), zap.String("kind", d.Kind))

	client, err := s.dial(ctx, d.Kind, d.DSN)
	if err != nil {
		return apperrors.Wrap(apperrors.HandshakeFailed, "connect to "+d.ID(), err)
	}
	if err := client.Ping(ctx); err != nil {
		if derr := client.Disconnect(ctx); derr != nil {
			s.logger.Debug("closing failed client", zap.Error(derr))
		}
		return apperrors.Wrap(apperrors.HandshakeFailed, "connect to "+d.ID(), err)
	}

	s.mu.Lock()
	old := s.current
	s.current = &Session{Descriptor: d, Client: client}
	s.mu.Unlock()

	if old != nil && old.Client != client {
		if err := old.Client.Disconnect(ctx); err != nil {
			s.logger.Warn("closing previous connection", zap.String("target", old.Descriptor.ID()), zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.SaveConnected(d.ID()); err != nil {
			s.logger.Warn("could not remember connection", zap.Error(err))
		}
	}
	return nil
}

// Disconnect drops the current session, if any, and forgets the persisted target.
func (s *State) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	old := s.current
	s.current = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearConnected(); err != nil {
			s.logger.Warn("could not forget connection", zap.Error(err))
		}
	}
	if old == nil {
		return nil
	}
	return old.Client.Disconnect(ctx)
}

// DisconnectIf disconnects when the current target matches, e.g. because its account,
// database or collection was deleted. Without a live session the persisted target is
// checked instead, so a later Restore does not reconnect to it.
// It reports whether a target was dropped.
func (s *State) DisconnectIf(ctx context.Context, match func(Descriptor) bool) (bool, error) {
	if cur := s.Current(); cur != nil {
		if !match(cur.Descriptor) {
			return false, nil
		}
		return true, s.Disconnect(ctx)
	}
	if s.store == nil {
		return false, nil
	}
	id, err := s.store.LoadConnected()
	if err != nil || id == "" {
		return false, err
	}
	account, database, collection, err := ParseID(id)
	if err != nil {
		s.logger.Debug("ignoring malformed persisted connection", zap.String("target", id))
		return false, nil
	}
	if !match(Descriptor{Account: account, Database: database, Collection: collection}) {
		return false, nil
	}
	return true, s.Disconnect(ctx)
}

// Persisted returns the identifier of the remembered target, or "".
func (s *State) Persisted() string {
	if s.store == nil {
		return ""
	}
	id, err := s.store.LoadConnected()
	if err != nil {
		s.logger.Debug("reading persisted connection", zap.Error(err))
		return ""
	}
	return id
}

// TargetsAccount matches sessions on the given account.
func TargetsAccount(account string) func(Descriptor) bool {
	return func(d Descriptor) bool { return d.Account == account }
}

// TargetsDatabase matches sessions on the given database of an account.
func TargetsDatabase(account, database string) func(Descriptor) bool {
	return func(d Descriptor) bool { return d.Account == account && d.Database == database }
}

// TargetsCollection matches sessions pinned to the given collection.
func TargetsCollection(account, database, collection string) func(Descriptor) bool {
	return func(d Descriptor) bool {
		return d.Account == account && d.Database == database && d.Collection == collection
	}
}
