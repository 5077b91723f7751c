// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"context"

	"go.uber.org/zap"
)

// Resolver turns a persisted identifier back into a connectable descriptor.
type Resolver interface {
	Resolve(ctx context.Context, id string) (Descriptor, error)
}

// Restore reconnects to the persisted target. It is best-effort: a missing id, an
// unresolvable target or a failed handshake leave no session and are only logged.
// It reports whether a session was restored.
func Restore(ctx context.Context, s *State, r Resolver) bool {
	if s.store == nil || s.Current() != nil {
		return s.Current() != nil
	}
	id, err := s.store.LoadConnected()
	if err != nil {
		s.logger.Debug("reading persisted connection", zap.Error(err))
		return false
	}
	if id == "" {
		return false
	}
	d, err := r.Resolve(ctx, id)
	if err != nil {
		s.logger.Debug("persisted connection no longer resolves", zap.String("target", id), zap.Error(err))
		return false
	}
	if err := s.Connect(ctx, d); err != nil {
		s.logger.Debug("restoring persisted connection", zap.String("target", id), zap.Error(err))
		return false
	}
	return true
}
