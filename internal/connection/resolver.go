// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"context"
	"fmt"

	"scrapbook/cli/internal/config"
	apperrors "scrapbook/cli/internal/errors"
)

// SecretSource returns the stored connection string of an account; keychain.Manager implements it.
type SecretSource interface {
	LoadAccountDSN(account string) (string, error)
}

// AccountResolver resolves targets against registered accounts. The keychain entry
// wins over an inline connection string in the config file.
type AccountResolver struct {
	Config  *config.Config
	Secrets SecretSource
}

// Resolve implements Resolver.
func (r AccountResolver) Resolve(_ context.Context, id string) (Descriptor, error) {
	account, database, collection, err := ParseID(id)
	if err != nil {
		return Descriptor{}, err
	}
	return r.Descriptor(account, database, collection)
}

// Descriptor builds the descriptor for a target of a registered account.
func (r AccountResolver) Descriptor(account, database, collection string) (Descriptor, error) {
	a, ok := r.Config.Account(account)
	if !ok {
		return Descriptor{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("account %q is not registered", account))
	}
	dsn, err := r.DSN(a)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		Account:    a.Name,
		Kind:       a.Kind,
		Database:   database,
		Collection: collection,
		DSN:        dsn,
	}, nil
}

// DSN returns the connection string of an account.
func (r AccountResolver) DSN(a config.Account) (string, error) {
	if r.Secrets != nil {
		dsn, err := r.Secrets.LoadAccountDSN(a.Name)
		if err != nil {
			return "", fmt.Errorf("reading connection string of %q: %w", a.Name, err)
		}
		if dsn != "" {
			return dsn, nil
		}
	}
	if dsn := a.ResolvedConnection(); dsn != "" {
		return dsn, nil
	}
	return "", apperrors.New(apperrors.NotFound, fmt.Sprintf("account %q has no connection string; run 'scrapbook account add %s'", a.Name, a.Name))
}
