// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"strings"
	"testing"
)

// TestIsJSON tests the response format classifier
func TestIsJSON(t *testing.T) {
	tests := []struct {
		cmd  string
		want bool
	}{
		{cmd: "show version | json", want: true},
		{cmd: "show version | json  ", want: true},
		{cmd: "show version | json\n", want: true},
		{cmd: "show interfaces Ethernet1 | json", want: true},
		{cmd: "show version", want: false},
		{cmd: "show version | json | include x", want: false},
		{cmd: "show version |json", want: false},
		{cmd: "show json-rpc | include port", want: false},
		{cmd: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if got := IsJSON(tt.cmd); got != tt.want {
				t.Errorf("IsJSON(%q) = %v, want %v", tt.cmd, got, tt.want)
			}
			if got := IsText(tt.cmd); got == tt.want {
				t.Errorf("IsText(%q) = %v, want %v", tt.cmd, got, !tt.want)
			}
		})
	}
}

// TestCommandFormat tests the per-command format and string form
func TestCommandFormat(t *testing.T) {
	text := NewCommand("show clock")
	if text.Format() != FormatText || text.String() != "show clock" {
		t.Errorf("NewCommand(show clock) = %+v", text)
	}

	structured := NewCommand("show clock | json")
	if structured.Format() != FormatJSON {
		t.Errorf("Format() = %q, want json", structured.Format())
	}
}

// TestCommandOptions tests the command modifiers
func TestCommandOptions(t *testing.T) {
	enable := NewCommand("enable", WithPrompt(`[Pp]assword:`, "secret"))
	if !enable.Interactive() {
		t.Error("command with prompt should be interactive")
	}
	if enable.Prompt != `[Pp]assword:` || enable.Response != "secret" {
		t.Errorf("WithPrompt() = %+v", enable)
	}

	line := NewCommand("Authorized access only", AsSendOnly())
	if !line.SendOnly || line.Interactive() {
		t.Errorf("AsSendOnly() = %+v", line)
	}

	cmds := Commands("a", "b", "c")
	if len(cmds) != 3 || cmds[2].Text != "c" {
		t.Errorf("Commands() = %+v", cmds)
	}
	if got := Commands(); got == nil || len(got) != 0 {
		t.Errorf("Commands() with no input = %v, want empty slice", got)
	}
}

// TestValidateCommands tests command list validation
func TestValidateCommands(t *testing.T) {
	tests := []struct {
		name       string
		cmds       []Command
		wantErrMsg string
	}{
		{
			name: "valid",
			cmds: Commands("show version", "show clock | json"),
		},
		{
			name: "empty list",
			cmds: nil,
		},
		{
			name: "blank send-only banner line",
			cmds: []Command{NewCommand("banner motd"), NewCommand("", AsSendOnly()), NewCommand("EOF")},
		},
		{
			name:       "empty command",
			cmds:       Commands("show version", ""),
			wantErrMsg: "command cannot be empty (at index 1)",
		},
		{
			name:       "whitespace command",
			cmds:       Commands(" \t "),
			wantErrMsg: "command cannot be empty (at index 0)",
		},
		{
			name:       "null byte",
			cmds:       Commands("show\x00version"),
			wantErrMsg: "command at index 0 contains a null byte",
		},
		{
			name:       "invalid prompt",
			cmds:       []Command{NewCommand("enable", WithPrompt("[Pp]assword(", "x"))},
			wantErrMsg: "command at index 0 has an invalid prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCommands(tt.cmds)
			if tt.wantErrMsg == "" {
				if err != nil {
					t.Errorf("validateCommands() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("validateCommands() error = %v, want %q", err, tt.wantErrMsg)
			}
		})
	}
}

// TestIsBannerStart tests banner detection
func TestIsBannerStart(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{line: "banner motd", want: true},
		{line: "  banner login", want: true},
		{line: "no banner motd", want: false},
		{line: "hostname banner", want: false},
	}

	for _, tt := range tests {
		if got := isBannerStart(tt.line); got != tt.want {
			t.Errorf("isBannerStart(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

// TestValidateFormat tests the format validator
func TestValidateFormat(t *testing.T) {
	for _, format := range ValidFormats {
		if err := ValidateFormat(format); err != nil {
			t.Errorf("ValidateFormat(%q) error = %v", format, err)
		}
	}
	if err := ValidateFormat("xml"); err == nil {
		t.Error("ValidateFormat(xml) should fail")
	}
}

// TestParseTransportKind tests transport name parsing
func TestParseTransportKind(t *testing.T) {
	tests := []struct {
		name    string
		want    TransportKind
		wantErr bool
	}{
		{name: "cli", want: TransportCLI},
		{name: "", want: TransportCLI},
		{name: "EAPI", want: TransportEAPI},
		{name: " gnmi ", want: TransportGNMI},
		{name: "netconf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTransportKind(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTransportKind(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTransportKind(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
