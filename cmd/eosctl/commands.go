// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/netascode/go-eos"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// commandResult is the YAML rendering of one command result
type commandResult struct {
	Command string `yaml:"command"`
	Format  string `yaml:"format"`
	Output  any    `yaml:"output"`
}

// loadResult is the YAML rendering of a LoadConfig outcome
type loadResult struct {
	Session       string `yaml:"session,omitempty"`
	Transactional bool   `yaml:"transactional"`
	Committed     bool   `yaml:"committed"`
	Diff          string `yaml:"diff,omitempty"`
}

// checkResult is the YAML rendering of the device capability checks
type checkResult struct {
	Host       string `yaml:"host"`
	Transport  string `yaml:"transport"`
	Authorized bool   `yaml:"authorized"`
	Sessions   bool   `yaml:"sessions"`
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run COMMAND...",
		Short: "Run show commands",
		Long: `Run one or more commands and print their output.

Commands ending in "| json" return structured output.`,
		Example: `  eosctl run --host leaf1 "show version" "show interfaces status | json"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := newClient()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best effort on exit
			defer client.Close()

			res, err := client.RunCommands(cmd.Context(), eos.Commands(args...))
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), res)
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "config [FLAG...]",
		Short:   "Print the running configuration",
		Example: `  eosctl config --host leaf1 section interface`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := newClient()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best effort on exit
			defer client.Close()

			cfg, err := client.GetConfig(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func newLoadCmd() *cobra.Command {
	var (
		file    string
		commit  bool
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load configuration lines from a file",
		Long: `Load configuration lines inside a configuration session and print
the session diff. Without --commit the session is aborted (dry run).

Blank lines and "!" comment lines are skipped outside of banners.`,
		Example: `  eosctl load --host leaf1 -f changes.cfg
  eosctl load --host leaf1 -f changes.cfg --commit
  cat full.cfg | eosctl load --host leaf1 -f - --replace --commit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				r = f
			}

			cmds, err := parseConfigLines(r)
			if err != nil {
				return err
			}

			client, logger, err := newClient()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best effort on exit
			defer client.Close()

			res, err := client.LoadConfig(cmd.Context(), cmds, commit, replace)
			if err != nil {
				return err
			}
			return printLoad(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration file (- for stdin)")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit the session (default: abort after diff)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the running configuration")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check privilege level and configuration session support",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := newClient()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best effort on exit
			defer client.Close()

			ctx := cmd.Context()

			authorized, err := client.CheckAuthorization(ctx)
			if err != nil {
				return err
			}
			sessions, err := client.SupportsSessions(ctx)
			if err != nil {
				return err
			}

			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(checkResult{
				Host:       client.Host,
				Transport:  string(client.Kind),
				Authorized: authorized,
				Sessions:   sessions,
			})
		},
	}
}

// parseConfigLines reads configuration lines
//
// Blank and "!" lines are skipped except inside a banner, whose body lines
// are kept verbatim up to the EOF terminator.
func parseConfigLines(r io.Reader) ([]eos.Command, error) {
	var cmds []eos.Command
	inBanner := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case inBanner && trimmed == "EOF":
			inBanner = false
			cmds = append(cmds, eos.NewCommand(trimmed))
		case inBanner:
			cmds = append(cmds, eos.NewCommand(line, eos.AsSendOnly()))
		case trimmed == "" || strings.HasPrefix(trimmed, "!"):
			continue
		default:
			if strings.HasPrefix(trimmed, "banner") {
				inBanner = true
			}
			cmds = append(cmds, eos.NewCommand(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return cmds, nil
}

func printResults(w io.Writer, res []eos.Result) error {
	if viper.GetString("output") != "yaml" {
		for _, r := range res {
			fmt.Fprintln(w, r.String())
		}
		return nil
	}

	out := make([]commandResult, 0, len(res))
	for _, r := range res {
		item := commandResult{Command: r.Command, Format: r.Format, Output: r.Output}
		if r.IsJSON() {
			var doc any
			if err := json.Unmarshal([]byte(r.Raw), &doc); err != nil {
				return fmt.Errorf("failed to decode %q output: %w", r.Command, err)
			}
			item.Output = doc
		}
		out = append(out, item)
	}
	return yaml.NewEncoder(w).Encode(out)
}

func printLoad(w io.Writer, res eos.LoadRes) error {
	if viper.GetString("output") == "yaml" {
		return yaml.NewEncoder(w).Encode(loadResult{
			Session:       res.Session,
			Transactional: res.Transactional,
			Committed:     res.Committed,
			Diff:          res.Diff,
		})
	}

	switch {
	case !res.Transactional:
		fmt.Fprintln(w, "configuration applied without session (no diff available)")
	case res.Diff == "":
		fmt.Fprintf(w, "session %s: no changes\n", res.Session)
	default:
		state := "aborted (dry run)"
		if res.Committed {
			state = "committed"
		}
		fmt.Fprintf(w, "session %s %s:\n%s\n", res.Session, state, res.Diff)
	}
	return nil
}
