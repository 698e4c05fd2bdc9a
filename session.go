// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LoadConfig loads configuration commands onto the device
//
// When the device supports configuration sessions (and UseSessions is
// enabled) the commands are applied inside a fresh session:
//
//  1. configure session <id>
//  2. rollback clean-config (replace only)
//  3. the commands
//  4. show session-config diffs
//  5. commit, or abort when commit is false (dry run)
//
// The returned LoadRes carries the session name and the diff in both cases.
// The session never outlives the call: on every failure path, including a
// failed commit, the session is aborted before LoadConfig returns, and an
// abort failure is joined onto the returned error.
//
// Without session support the commands are applied directly (see Configure).
// That path cannot diff or roll back, so replace=true and commit=false are
// rejected with ErrUnsupported before anything is sent.
//
// A privilege check runs first; without privilege the call fails with
// ErrAuthorization and nothing is sent.
//
// Example:
//
//	res, err := client.LoadConfig(ctx, eos.Commands(
//	    "interface Ethernet1",
//	    "description uplink",
//	), false, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Diff)  // changes that a commit would apply
func (c *Client) LoadConfig(ctx context.Context, cmds []Command, commit, replace bool, mods ...func(*Req)) (LoadRes, error) {
	if err := validateCommands(cmds); err != nil {
		return LoadRes{}, fmt.Errorf("eos: LoadConfig: %w", err)
	}

	var res LoadRes
	err := c.run(ctx, "LoadConfig", mods, func(ctx context.Context) error {
		r, err := c.loadConfig(ctx, cmds, commit, replace)
		res = r
		if err != nil {
			c.metrics.observeLoad(LoadOutcomeFailed)
		}
		return err
	})
	if err != nil {
		return LoadRes{}, err
	}
	return res, nil
}

// Configure applies commands directly in global configuration mode
//
// No session is used: there is no diff and no rollback. A command rejected
// part-way leaves the commands before it applied to the running
// configuration. Prefer LoadConfig, which uses this path only when the
// device lacks session support.
func (c *Client) Configure(ctx context.Context, cmds []Command, mods ...func(*Req)) error {
	if err := validateCommands(cmds); err != nil {
		return fmt.Errorf("eos: Configure: %w", err)
	}

	return c.run(ctx, "Configure", mods, func(ctx context.Context) error {
		if err := c.checkPrivilege(ctx); err != nil {
			return err
		}
		return c.configure(ctx, cmds)
	})
}

// checkPrivilege fails with an authorization error unless the connection
// runs with configuration privilege
func (c *Client) checkPrivilege(ctx context.Context) error {
	ok, err := c.transport.CheckAuthorization(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &EosError{
			Kind:    KindAuthorization,
			Message: "configuration operations require privilege escalation",
			Err:     ErrAuthorization,
		}
	}
	return nil
}

func (c *Client) configure(ctx context.Context, cmds []Command) error {
	c.logger.Info(ctx, "Applying configuration without session",
		"host", c.Host,
		"commands", len(cmds))
	c.logger.Debug(ctx, "Configuration commands",
		"commands", redactCommands(cmds))

	if err := c.transport.Configure(ctx, cmds); err != nil {
		return withCommands(err, cmds)
	}
	return nil
}

// loadConfig implements LoadConfig
//
// PRECONDITION: Caller must hold c.mu and the transport must be open.
func (c *Client) loadConfig(ctx context.Context, cmds []Command, commit, replace bool) (res LoadRes, err error) {
	if err := c.checkPrivilege(ctx); err != nil {
		return LoadRes{}, err
	}

	useSession := c.UseSessions
	if useSession {
		supported, err := c.transport.SupportsSessions(ctx)
		if err != nil {
			return LoadRes{}, err
		}
		useSession = supported
	}

	if !useSession {
		if replace {
			return LoadRes{}, &EosError{
				Kind:    KindUnsupported,
				Message: "replace requires configuration sessions",
			}
		}
		if !commit {
			return LoadRes{}, &EosError{
				Kind:    KindUnsupported,
				Message: "loading without commit requires configuration sessions",
			}
		}
		if err := c.configure(ctx, cmds); err != nil {
			return LoadRes{}, err
		}
		c.metrics.observeLoad(LoadOutcomeFallback)
		return LoadRes{Committed: true}, nil
	}

	session := c.sessionID()
	res = LoadRes{Session: session, Transactional: true}

	c.logger.Info(ctx, "Loading configuration",
		"host", c.Host,
		"session", session,
		"commands", len(cmds),
		"commit", commit,
		"replace", replace)
	c.logger.Debug(ctx, "Configuration commands",
		"session", session,
		"commands", redactCommands(cmds))

	if err := c.transport.EnterSession(ctx, session); err != nil {
		return LoadRes{}, withSession(err, session, "unable to enter configuration session")
	}

	open := true
	defer func() {
		if !open {
			return
		}
		if abortErr := c.abortSession(ctx, session); abortErr != nil {
			err = errors.Join(err, abortErr)
		}
	}()

	if replace {
		if _, err := c.transport.SendSession(ctx, session, []Command{{Text: cmdRollbackClean}}); err != nil {
			return res, withSession(err, session, "")
		}
	}

	if _, err := c.transport.SendSession(ctx, session, cmds); err != nil {
		return res, withSession(withCommands(err, cmds), session, "")
	}

	outputs, err := c.transport.SendSession(ctx, session, []Command{{Text: cmdSessionDiffs}})
	if err != nil {
		return res, withSession(err, session, "")
	}
	if len(outputs) > 0 {
		res.Diff = strings.TrimSpace(outputs[0])
	}

	if err := c.transport.ExitSession(ctx, session, commit); err != nil {
		return res, withSession(err, session, "")
	}
	open = false
	res.Committed = commit

	outcome := LoadOutcomeAborted
	if commit {
		outcome = LoadOutcomeCommitted
	}
	c.metrics.observeLoad(outcome)

	c.logger.Info(ctx, "Configuration session closed",
		"host", c.Host,
		"session", session,
		"outcome", outcome,
		"diff_lines", lineCount(res.Diff))

	return res, nil
}

// abortSession aborts session after a failure. It runs on a context detached
// from ctx cancellation so an expired deadline does not leave the session open.
func (c *Client) abortSession(ctx context.Context, session string) error {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.OperationTimeout)
	defer cancel()

	c.logger.Warn(abortCtx, "Aborting configuration session",
		"host", c.Host,
		"session", session)

	if err := c.transport.ExitSession(abortCtx, session, false); err != nil {
		c.logger.Error(abortCtx, "Configuration session abort failed",
			"host", c.Host,
			"session", session,
			"error", err.Error())
		return withSession(err, session, "unable to abort configuration session")
	}
	return nil
}

// sessionID returns a new session name: <prefix>_<unix seconds>, with a
// random suffix when UniqueSessionIDs is set
func (c *Client) sessionID() string {
	id := fmt.Sprintf("%s_%d", c.SessionPrefix, c.now().Unix())
	if c.UniqueSessionIDs {
		id += "_" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	return id
}

// withSession returns a copy of err carrying the session name and an
// optional message prefix
func withSession(err error, session, prefix string) error {
	var eosErr *EosError
	if !errors.As(err, &eosErr) {
		return &EosError{Kind: KindTransport, Message: err.Error(), Session: session, Err: err}
	}
	tagged := *eosErr
	tagged.Session = session
	if prefix != "" {
		tagged.Message = prefix + ": " + tagged.Message
	}
	return &tagged
}

// withCommands returns a copy of err listing the attempted commands
func withCommands(err error, cmds []Command) error {
	var eosErr *EosError
	if !errors.As(err, &eosErr) {
		return err
	}
	tagged := *eosErr
	tagged.Commands = commandTexts(cmds)
	return &tagged
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
