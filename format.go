// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import "fmt"

// Response format constants for command execution
const (
	// FormatText requests the plain CLI output of a command
	FormatText = "text"

	// FormatJSON requests the structured (JSON) output of a command
	FormatJSON = "json"
)

// ValidFormats contains the list of valid response formats
var ValidFormats = []string{
	FormatText,
	FormatJSON,
}

// ValidateFormat checks if the response format is valid
//
// Returns an error if the format is not one of the supported values.
//
// Example:
//
//	if err := eos.ValidateFormat("json"); err != nil {
//	    log.Fatal(err)
//	}
func ValidateFormat(format string) error {
	for _, valid := range ValidFormats {
		if format == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s (valid values: text, json)", format)
}
