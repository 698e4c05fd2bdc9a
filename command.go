// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"fmt"
	"regexp"
	"strings"
)

// JSONSuffix is the trailing pipe marker that requests structured output
const JSONSuffix = "| json"

// Command represents a single CLI command sent to the device
//
// A Command is immutable once constructed. Most commands are plain strings;
// Prompt and Response describe an interactive exchange (for example the
// password prompt that follows "enable"), and SendOnly marks a line for which
// the device emits no prompt (lines of a multi-line banner).
//
// Example:
//
//	cmds := []eos.Command{
//	    eos.NewCommand("show version"),
//	    eos.NewCommand("show interfaces | json"),
//	    eos.NewCommand("enable", eos.WithPrompt(`[Pp]assword: ?$`, "secret")),
//	}
type Command struct {
	// Text is the raw command line
	Text string

	// Prompt is a regular expression matched against the device output
	// after Text is sent; when it matches, Response is sent
	Prompt string

	// Response is the answer sent when Prompt matches
	Response string

	// SendOnly indicates that no reply or prompt is expected
	SendOnly bool
}

// NewCommand creates a Command from its text and optional modifiers
func NewCommand(text string, opts ...func(*Command)) Command {
	cmd := Command{Text: text}
	for _, opt := range opts {
		opt(&cmd)
	}
	return cmd
}

// Commands converts a list of command strings into Commands
//
// Example:
//
//	res, err := client.RunCommands(ctx, eos.Commands("show version", "show clock"))
func Commands(texts ...string) []Command {
	cmds := make([]Command, 0, len(texts))
	for _, text := range texts {
		cmds = append(cmds, Command{Text: text})
	}
	return cmds
}

// WithPrompt attaches an interactive prompt/response pair to a command
//
// The prompt is a regular expression; it is compiled when the command is
// executed over the CLI transport. Over eAPI the response is passed as the
// command "input" field.
func WithPrompt(prompt, response string) func(*Command) {
	return func(c *Command) {
		c.Prompt = prompt
		c.Response = response
	}
}

// AsSendOnly marks a command as send-only (no reply expected)
func AsSendOnly() func(*Command) {
	return func(c *Command) {
		c.SendOnly = true
	}
}

// Format returns the expected response format of the command
func (c Command) Format() string {
	if IsJSON(c.Text) {
		return FormatJSON
	}
	return FormatText
}

// Interactive reports whether the command carries a prompt/response pair
func (c Command) Interactive() bool {
	return c.Prompt != ""
}

// String returns the command text
func (c Command) String() string {
	return c.Text
}

// IsJSON reports whether a command requests structured output
//
// The decision is purely syntactic: a command ending in "| json" (ignoring
// trailing whitespace) is structured, anything else is plain text.
func IsJSON(cmd string) bool {
	return strings.HasSuffix(strings.TrimRight(cmd, " \t\r\n"), JSONSuffix)
}

// IsText reports whether a command requests plain text output
func IsText(cmd string) bool {
	return !IsJSON(cmd)
}

// commandTexts returns the raw text of each command
func commandTexts(cmds []Command) []string {
	texts := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		texts = append(texts, cmd.Text)
	}
	return texts
}

// validateCommands checks a command list before it is sent to the device
//
// Checks:
//   - Each command text is non-empty (send-only banner lines may be blank)
//   - No command contains a null byte
//   - Each prompt compiles as a regular expression
func validateCommands(cmds []Command) error {
	for i, cmd := range cmds {
		if strings.TrimSpace(cmd.Text) == "" && !cmd.SendOnly {
			return fmt.Errorf("command cannot be empty (at index %d)", i)
		}
		if strings.IndexByte(cmd.Text, 0) >= 0 {
			return fmt.Errorf("command at index %d contains a null byte", i)
		}
		if cmd.Prompt != "" {
			if _, err := regexp.Compile(cmd.Prompt); err != nil {
				return fmt.Errorf("command at index %d has an invalid prompt: %w", i, err)
			}
		}
	}
	return nil
}

// isBannerStart reports whether a configuration line opens a multi-line banner
func isBannerStart(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "banner")
}

// bannerTerminator ends a multi-line banner payload
const bannerTerminator = "EOF"
