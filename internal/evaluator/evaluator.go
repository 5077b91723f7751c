// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package evaluator executes parsed scrapbook commands against the current connection.
//
// Operations are looked up in a closed dispatch table; anything else is an
// UnknownOperation. Each command makes at most one data-plane round trip: cursor
// modifiers such as .sort() and .limit() are folded into the find call. Failures of the
// data plane are reported as EvaluationError with the driver's message and are never retried.
package evaluator

import (
	"context"
	"fmt"

	"scrapbook/cli/internal/connection"
	"scrapbook/cli/internal/docstore"
	apperrors "scrapbook/cli/internal/errors"
	"scrapbook/cli/internal/scrapbook"

	"go.uber.org/zap"
)

// SessionSource supplies the active session; *connection.State implements it.
type SessionSource interface {
	Current() *connection.Session
}

// Result is the outcome of one command. Exactly one of Value and Err is meaningful.
type Result struct {
	Command scrapbook.Command
	Value   any
	Err     error
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Evaluator runs commands.
type Evaluator struct {
	sessions SessionSource
	logger   *zap.Logger
}

// New creates an Evaluator reading the session from sessions on every call.
func New(sessions SessionSource, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{sessions: sessions, logger: logger}
}

// Evaluate runs one command. Without a session it fails with NotConnected and a command
// carrying a parse error fails with ParseError; neither touches the network.
func (e *Evaluator) Evaluate(ctx context.Context, cmd scrapbook.Command) Result {
	res := Result{Command: cmd}

	session := e.sessions.Current()
	if session == nil {
		res.Err = apperrors.New(apperrors.NotConnected, "connect to a database before running scrapbook commands")
		return res
	}
	if cmd.Err != nil {
		res.Err = apperrors.Wrap(apperrors.ParseError, "", cmd.Err)
		return res
	}

	h, err := lookup(cmd)
	if err != nil {
		res.Err = err
		return res
	}

	chain := make([]scrapbook.Call, len(cmd.Chain))
	for i, call := range cmd.Chain {
		call.Args = resolve(call.Args)
		chain[i] = call
	}
	inv := &invocation{
		cmd:   cmd,
		args:  resolve(cmd.Args()),
		chain: chain,
		db:    session.Database(),
	}
	if !cmd.IsDatabaseCommand() {
		inv.coll = inv.db.Collection(cmd.Collection)
	}

	e.logger.Debug("evaluating",
		zap.String("target", session.Descriptor.ID()),
		zap.String("collection", cmd.Collection),
		zap.String("operation", cmd.Operation()),
		zap.Int("chain", len(cmd.Chain)))

	value, err := h(ctx, inv)
	if err != nil {
		if apperrors.KindOf(err) == "" {
			err = apperrors.Wrap(apperrors.EvaluationError, cmd.Operation(), err)
		}
		res.Err = err
		return res
	}
	res.Value = value
	return res
}

// EvaluateAll runs every command strictly in order. A failure does not stop later
// commands; the result list has one entry per command, in the same order.
func (e *Evaluator) EvaluateAll(ctx context.Context, cmds []scrapbook.Command) []Result {
	results := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		results = append(results, e.Evaluate(ctx, cmd))
	}
	return results
}

// resolve turns placeholders such as ObjectId() into fresh values for one run.
func resolve(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = scrapbook.Resolve(a)
	}
	return out
}

// Select picks the command for single evaluation: the one under line, or the first
// command when line is not positive.
func Select(cmds []scrapbook.Command, line int) (scrapbook.Command, error) {
	if len(cmds) == 0 {
		return scrapbook.Command{}, apperrors.New(apperrors.NotFound, "no command to run")
	}
	if line <= 0 {
		return cmds[0], nil
	}
	cmd, ok := scrapbook.At(cmds, line)
	if !ok {
		return scrapbook.Command{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("no command at or after line %d", line))
	}
	return cmd, nil
}

// Render formats a result value as indented extended JSON.
func Render(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := docstore.MarshalExtJSON(v, true)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
