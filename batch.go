// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
)

// batch is a maximal run of adjacent commands sharing a response format
type batch struct {
	format   string
	commands []Command
}

// batchSender issues one device request for a batch and returns one entry
// per command, in order. Text entries are objects carrying an "output" string.
type batchSender func(ctx context.Context, b batch) ([]gjson.Result, error)

// batchByFormat groups commands into maximal runs of the same format
//
// The number of batches is 1 + the number of adjacent format transitions
// for non-empty input and 0 for empty input.
func batchByFormat(cmds []Command) []batch {
	var batches []batch
	for _, cmd := range cmds {
		format := cmd.Format()
		if n := len(batches); n > 0 && batches[n-1].format == format {
			batches[n-1].commands = append(batches[n-1].commands, cmd)
			continue
		}
		batches = append(batches, batch{format: format, commands: []Command{cmd}})
	}
	return batches
}

// runBatched executes commands with one request per batch and reassembles
// the results in input order
//
// Text entries are unwrapped from their "output" field and trimmed;
// structured entries are returned unmodified. The first failing request
// aborts the whole operation and partial results are discarded.
func runBatched(ctx context.Context, cmds []Command, send batchSender) ([]Result, error) {
	results := make([]Result, 0, len(cmds))

	for _, b := range batchByFormat(cmds) {
		entries, err := send(ctx, b)
		if err != nil {
			return nil, err
		}
		if len(entries) != len(b.commands) {
			return nil, &EosError{
				Kind:     KindDecode,
				Message:  fmt.Sprintf("expected %d results, device returned %d", len(b.commands), len(entries)),
				Commands: commandTexts(b.commands),
			}
		}

		for i, entry := range entries {
			cmd := b.commands[i].Text
			if b.format == FormatJSON {
				results = append(results, jsonResult(cmd, entry.Raw))
				continue
			}

			output := entry.Get("output")
			if !output.Exists() {
				return nil, &EosError{
					Kind:    KindDecode,
					Message: "text result has no output field",
					Command: cmd,
				}
			}
			results = append(results, textResult(cmd, output.String()))
		}
	}

	return results, nil
}
