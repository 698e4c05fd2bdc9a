// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import "time"

// Req represents a request modifier
//
// This struct is used to apply request-specific options via functional modifiers.
// Operation parameters (commands, flags) are passed directly to methods.
//
// Example:
//
//	// LoadConfig with a custom timeout
//	res, err := client.LoadConfig(ctx, cmds, true, false,
//	    eos.Timeout(2*time.Minute))
type Req struct {
	// Timeout is the request-specific timeout
	// Overrides client default timeout if set
	Timeout time.Duration
}

// LoadRes represents the outcome of a LoadConfig call
type LoadRes struct {
	// Session is the configuration session identifier
	// Empty when the device does not support sessions
	Session string

	// Diff is the session diff against the running configuration
	// Empty when the commands produced no net change or no session was used
	Diff string

	// Committed reports whether the changes became part of the running configuration
	Committed bool

	// Transactional reports whether a configuration session was used
	Transactional bool
}
