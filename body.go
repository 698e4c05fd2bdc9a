// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building JSON documents
// using sjson for path-based manipulation.
//
// The Body builder tracks errors internally to enable method chaining
// while providing error checking through String() or Err() methods.
// The eAPI transport builds every JSON-RPC request with it.
//
// Example:
//
//	body := eos.Body{}.
//	    Set("jsonrpc", "2.0").
//	    Set("method", "runCmds").
//	    Set("params.version", 1).
//	    Set("params.cmds.-1", "show version")
//
//	payload, err := body.String()
type Body struct {
	// str contains the JSON string being built
	str string
	// err tracks the first error encountered during building
	err error
}

// Set sets a value at the specified JSON path and returns a new Body
//
// The path uses dot notation for nested fields; "-1" as the last path
// element appends to an array. Once an error occurs, all subsequent
// operations are no-ops that preserve the error.
func (b Body) Set(path string, value any) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result}
}

// SetRaw sets a pre-encoded JSON value at the specified path
func (b Body) SetRaw(path, rawJSON string) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.SetRaw(b.str, path, rawJSON)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("SetRaw(%q): %w", path, err)}
	}
	return Body{str: result}
}

// String returns the JSON string representation and any error encountered during building
func (b Body) String() (string, error) {
	return b.str, b.err
}

// Err returns any error that occurred during the building process
func (b Body) Err() error {
	return b.err
}

// Bytes returns the JSON byte slice representation and any error encountered during building
func (b Body) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []byte(b.str), nil
}

// runCmdsBody builds a JSON-RPC 2.0 runCmds request
//
// Plain commands are encoded as strings; interactive commands become
// {"cmd": ..., "input": ...} objects, the eAPI form for commands that
// expect an answer (enable password, banner text).
func runCmdsBody(id string, cmds []Command, format string) Body {
	if err := ValidateFormat(format); err != nil {
		return Body{err: err}
	}

	body := Body{}.
		Set("jsonrpc", "2.0").
		Set("method", "runCmds").
		Set("params.version", 1).
		SetRaw("params.cmds", "[]").
		Set("params.format", format).
		Set("id", id)

	for _, cmd := range cmds {
		if cmd.Response != "" {
			body = body.Set("params.cmds.-1", map[string]string{
				"cmd":   cmd.Text,
				"input": cmd.Response,
			})
			continue
		}
		body = body.Set("params.cmds.-1", cmd.Text)
	}
	return body
}
