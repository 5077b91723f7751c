// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"scrapbook/cli/internal/config"
	"scrapbook/cli/internal/connection"
	"scrapbook/cli/internal/dsn"
	apperrors "scrapbook/cli/internal/errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ConnectionStringEnv carries the full connection string to custom shell commands.
const ConnectionStringEnv = "SCRAPBOOK_CONNECTION_STRING"

// shellLaunch describes how to start a shell. Passwords never appear in Args.
type shellLaunch struct {
	Name string
	Args []string
	Env  []string
	// Script is a mongosh startup script; its path is appended to Args.
	Script string
}

// shellLaunchFor builds the launch for d. psql receives the password through
// PGPASSWORD and the selected schema through PGOPTIONS; mongosh connects from a
// startup script; custom commands get the password-free URI as their last argument
// and the full one in ConnectionStringEnv.
func shellLaunchFor(d connection.Descriptor, name string, extra []string) (shellLaunch, error) {
	info, err := dsn.ParseInfo(d.DSN)
	if err != nil {
		return shellLaunch{}, err
	}
	launch := shellLaunch{Name: name, Args: append([]string(nil), extra...)}

	if d.Kind == config.KindPostgres {
		if name == config.DefaultShellCommand {
			launch.Name, launch.Args = "psql", nil
		}
		uri, err := dsn.Render(info, false)
		if err != nil {
			return shellLaunch{}, err
		}
		launch.Args = append(launch.Args, uri)
		if info.Password != "" {
			launch.Env = append(launch.Env, "PGPASSWORD="+info.Password)
		}
		launch.Env = append(launch.Env, "PGOPTIONS=-c search_path="+strings.ReplaceAll(d.Database, " ", `\ `))
		if launch.Name != "psql" {
			full, err := dsn.Render(info, true)
			if err != nil {
				return shellLaunch{}, err
			}
			launch.Env = append(launch.Env, ConnectionStringEnv+"="+full)
		}
		return launch, nil
	}

	target := dsn.WithDatabase(info, d.Database)
	uri, err := dsn.Render(target, false)
	if err != nil {
		return shellLaunch{}, err
	}
	switch {
	case name != config.DefaultShellCommand:
		full, err := dsn.Render(target, true)
		if err != nil {
			return shellLaunch{}, err
		}
		launch.Args = append(launch.Args, uri)
		launch.Env = append(launch.Env, ConnectionStringEnv+"="+full)
	case info.Password == "":
		launch.Args = append(launch.Args, uri)
	default:
		full, err := dsn.Render(target, true)
		if err != nil {
			return shellLaunch{}, err
		}
		quoted, err := json.Marshal(full)
		if err != nil {
			return shellLaunch{}, err
		}
		launch.Args = append(launch.Args, "--nodb", "--shell")
		launch.Script = "db = connect(" + string(quoted) + ");\n"
	}
	return launch, nil
}

// writeScript stores a startup script readable only by the current user.
func writeScript(script string) (string, func(), error) {
	f, err := os.CreateTemp("", "scrapbook-shell-*.js")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}

// shellCmd launches the interactive shell of the connected database in the terminal.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive shell on the connected database",
	Long: `The shell command starts the configured shell (mongosh by default, psql for PostgreSQL
accounts) on the connected database. The password is handed over through the
environment or a private startup script, never on the command line.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		state, err := current.connection(ctx)
		if err != nil {
			return err
		}
		session := state.Current()
		if session == nil {
			return apperrors.New(apperrors.NotConnected, "connect to a database before opening a shell")
		}

		launch, err := shellLaunchFor(session.Descriptor, current.cfg.Shell.Command, current.cfg.Shell.Args)
		if err != nil {
			return err
		}
		bin, err := exec.LookPath(launch.Name)
		if err != nil {
			return fmt.Errorf("%s is not installed or not on PATH: %w", launch.Name, err)
		}
		if launch.Script != "" {
			path, cleanup, err := writeScript(launch.Script)
			if err != nil {
				return fmt.Errorf("write shell startup script: %w", err)
			}
			defer cleanup()
			launch.Args = append(launch.Args, path)
		}
		current.logger.Debug("launching shell",
			zap.String("shell", bin),
			zap.String("target", session.Descriptor.ID()),
			zap.Strings("args", launch.Args))

		sh := exec.CommandContext(ctx, bin, launch.Args...)
		sh.Env = append(os.Environ(), launch.Env...)
		sh.Stdin = os.Stdin
		sh.Stdout = os.Stdout
		sh.Stderr = os.Stderr
		return sh.Run()
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
