// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Result represents the response of a single command
type Result struct {
	// Command is the command text that produced this result
	Command string

	// Format is the response format (text or json)
	Format string

	// Output is the trimmed text output for text results
	Output string

	// Raw is the JSON document for structured results
	Raw string
}

// GetValue retrieves a value from a structured result using a gjson path.
//
// Returns an empty gjson.Result for text results.
//
// Example:
//
//	res, err := client.RunCommands(ctx, eos.Commands("show version | json"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model := res[0].GetValue("modelName").String()
func (r Result) GetValue(path string) gjson.Result {
	if r.Raw == "" {
		return gjson.Result{}
	}
	return gjson.Get(r.Raw, path)
}

// IsJSON reports whether the result holds structured output
func (r Result) IsJSON() bool {
	return r.Format == FormatJSON
}

// String returns the text output, or the raw JSON for structured results
func (r Result) String() string {
	if r.IsJSON() {
		return r.Raw
	}
	return r.Output
}

// textResult builds a text Result, trimming surrounding whitespace
func textResult(cmd, output string) Result {
	return Result{
		Command: cmd,
		Format:  FormatText,
		Output:  strings.TrimSpace(output),
	}
}

// jsonResult builds a structured Result from a raw JSON document
func jsonResult(cmd, raw string) Result {
	return Result{
		Command: cmd,
		Format:  FormatJSON,
		Raw:     raw,
	}
}

// decodeJSONOutput builds a structured Result from shell output, which must
// be a valid JSON document
func decodeJSONOutput(cmd, out string) (Result, error) {
	if !gjson.Valid(out) {
		return Result{}, &EosError{
			Kind:        KindDecode,
			Message:     "command output is not valid JSON",
			InternalMsg: truncateBody([]byte(out)),
			Command:     cmd,
		}
	}
	return jsonResult(cmd, out), nil
}
