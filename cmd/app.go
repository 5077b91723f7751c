// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scrapbook/cli/internal/config"
	"scrapbook/cli/internal/connection"
	"scrapbook/cli/internal/docstore"
	apperrors "scrapbook/cli/internal/errors"
	"scrapbook/cli/internal/keychain"
	"scrapbook/cli/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every command needs. It is built once per process in
// PersistentPreRunE.
type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *zap.Logger
	dial    docstore.Dialer

	keys  *keychain.Manager
	state *connection.State
}

var current *app

func initApp(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogLevel, verbose)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded", zap.String("path", path), zap.Int("accounts", len(cfg.Accounts)))

	current = &app{
		cfg:     cfg,
		cfgPath: path,
		logger:  logger,
		dial:    docstore.NewDialer(logger),
	}
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.state != nil {
		if cur := a.state.Current(); cur != nil {
			if err := cur.Client.Disconnect(ctx); err != nil {
				a.logger.Debug("closing connection", zap.Error(err))
			}
		}
	}
	_ = a.logger.Sync()
}

// keychain opens the OS keychain on first use.
func (a *app) keychain() (*keychain.Manager, error) {
	if a.keys != nil {
		return a.keys, nil
	}
	km, err := keychain.NewManager(keychain.Options{
		Backends: a.cfg.Keyring.Backends,
		FileDir:  a.cfg.Keyring.FileDir,
	})
	if err != nil {
		return nil, fmt.Errorf("secure storage is not available: %w", err)
	}
	a.keys = km
	return km, nil
}

func (a *app) resolver() (connection.AccountResolver, error) {
	km, err := a.keychain()
	if err != nil {
		return connection.AccountResolver{}, err
	}
	return connection.AccountResolver{Config: a.cfg, Secrets: km}, nil
}

// connection returns the process connection state with the persisted target restored.
func (a *app) connection(ctx context.Context) (*connection.State, error) {
	if a.state != nil {
		return a.state, nil
	}
	km, err := a.keychain()
	if err != nil {
		return nil, err
	}
	r, err := a.resolver()
	if err != nil {
		return nil, err
	}
	a.state = connection.New(a.dial, km, a.logger)

	stop := startSpinner("restoring connection")
	restored := connection.Restore(ctx, a.state, r)
	stop()
	if restored {
		a.logger.Debug("connection restored", zap.String("target", a.state.Current().Descriptor.ID()))
	}
	return a.state, nil
}

// stateWithoutRestore returns the connection state without dialing the persisted target.
func (a *app) stateWithoutRestore() (*connection.State, error) {
	if a.state != nil {
		return a.state, nil
	}
	km, err := a.keychain()
	if err != nil {
		return nil, err
	}
	a.state = connection.New(a.dial, km, a.logger)
	return a.state, nil
}

// target is a parsed account[/database[/collection]] argument.
type target struct {
	Account    string
	Database   string
	Collection string
}

func (t target) String() string {
	return strings.Join(nonEmpty(t.Account, t.Database, t.Collection), "/")
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTarget splits arg into account, database and collection; depth is how many
// segments are required (1 to 3).
func parseTarget(arg string, depth int) (target, error) {
	parts := strings.SplitN(arg, "/", 3)
	want := []string{"<account>", "<account>/<database>", "<account>/<database>/<collection>"}[depth-1]
	if len(parts) != depth {
		return target{}, fmt.Errorf("expected %s, got %q", want, arg)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return target{}, fmt.Errorf("expected %s, got %q", want, arg)
		}
	}
	t := target{Account: parts[0]}
	if depth > 1 {
		t.Database = parts[1]
	}
	if depth > 2 {
		t.Collection = parts[2]
	}
	return t, nil
}

// open dials a short-lived client for t. Callers must Disconnect it.
func (a *app) open(ctx context.Context, t target) (docstore.Client, connection.Descriptor, error) {
	r, err := a.resolver()
	if err != nil {
		return nil, connection.Descriptor{}, err
	}
	d, err := r.Descriptor(t.Account, t.Database, t.Collection)
	if err != nil {
		return nil, connection.Descriptor{}, err
	}
	a.logger.Debug("opening", zap.String("target", t.String()), logging.DSN(d.DSN))

	stop := startSpinner("connecting to " + t.Account)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	client, err := a.dial(dialCtx, d.Kind, d.DSN)
	if err != nil {
		return nil, connection.Descriptor{}, apperrors.Wrap(apperrors.HandshakeFailed, "connect to "+t.Account, err)
	}
	if err := client.Ping(dialCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, connection.Descriptor{}, apperrors.Wrap(apperrors.HandshakeFailed, "connect to "+t.Account, err)
	}
	return client, d, nil
}

func (a *app) saveConfig() error {
	return config.SaveTo(a.cfgPath, a.cfg)
}
