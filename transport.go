// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// TransportKind identifies the transport a Client drives
type TransportKind string

const (
	// TransportCLI drives the device through an interactive SSH shell
	TransportCLI TransportKind = "cli"

	// TransportEAPI drives the device through the JSON-RPC command API
	TransportEAPI TransportKind = "eapi"

	// TransportGNMI drives the device through gNMI with the cli origin
	TransportGNMI TransportKind = "gnmi"
)

// ParseTransportKind converts a transport name to a TransportKind
func ParseTransportKind(name string) (TransportKind, error) {
	switch TransportKind(strings.ToLower(strings.TrimSpace(name))) {
	case TransportCLI, "":
		return TransportCLI, nil
	case TransportEAPI:
		return TransportEAPI, nil
	case TransportGNMI:
		return TransportGNMI, nil
	default:
		return "", fmt.Errorf("invalid transport: %s (valid values: cli, eapi, gnmi)", name)
	}
}

// Transport is the capability set every device transport provides
//
// A Client drives exactly one Transport for its whole lifetime. Transports
// are not required to be safe for concurrent use; the Client serializes
// every call.
type Transport interface {
	// Kind returns the transport kind
	Kind() TransportKind

	// Open establishes the connection (called lazily by the Client)
	Open(ctx context.Context) error

	// Close releases the connection; Open may be called again afterwards
	Close() error

	// RunCommands executes commands and returns one result per command, in order
	RunCommands(ctx context.Context, cmds []Command) ([]Result, error)

	// GetConfig returns the running configuration for the given flags,
	// fetching it at most once per flag set
	GetConfig(ctx context.Context, flags []string) (string, error)

	// SupportsSessions reports whether the device supports configuration
	// sessions; the answer is cached after the first probe
	SupportsSessions(ctx context.Context) (bool, error)

	// CheckAuthorization reports whether the connection runs with the
	// privilege required for configuration
	CheckAuthorization(ctx context.Context) (bool, error)

	// Configure applies commands in global configuration mode without a
	// session. A failure part-way leaves the device partially configured.
	Configure(ctx context.Context, cmds []Command) error

	// EnterSession creates (or re-enters) the named configuration session
	EnterSession(ctx context.Context, session string) error

	// SendSession executes commands inside the named session and returns
	// the trimmed text output of each
	SendSession(ctx context.Context, session string, cmds []Command) ([]string, error)

	// ExitSession commits or aborts the named session
	ExitSession(ctx context.Context, session string, commit bool) error
}

// Session lifecycle commands sent verbatim to the device
const (
	cmdConfigureSession = "configure session"
	cmdRollbackClean    = "rollback clean-config"
	cmdSessionDiffs     = "show session-config diffs"
	cmdCommit           = "commit"
	cmdAbort            = "abort"
	cmdConfigure        = "configure"
	cmdConfigureTerm    = "configure terminal"
	cmdEnd              = "end"
	cmdShowSessions     = "show configuration sessions"
	cmdShowPrivilege    = "show privilege"
	cmdShowClock        = "show clock"
	cmdEnable           = "enable"
)

// sessionCommand returns the command that enters the named session
func sessionCommand(session string) string {
	return cmdConfigureSession + " " + session
}

// exitCommand returns the command that closes a session
func exitCommand(commit bool) string {
	if commit {
		return cmdCommit
	}
	return cmdAbort
}

// capabilityCache memoizes a boolean device capability probe
//
// Both positive and negative answers are kept: support does not change
// while a connection is alive. Probe errors are not cached.
type capabilityCache struct {
	mu    sync.Mutex
	known bool
	value bool
}

func (c *capabilityCache) get(ctx context.Context, probe func(context.Context) (bool, error)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.known {
		return c.value, nil
	}
	value, err := probe(ctx)
	if err != nil {
		return false, err
	}
	c.known = true
	c.value = value
	return value, nil
}
