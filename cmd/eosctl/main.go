// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Eosctl runs commands and loads configuration on Arista EOS switches.
//
// Usage:
//
//	eosctl [command] [flags]
//
// Connection settings are read from flags, from an eosctl.yaml file in the
// current directory or $HOME/.config/eosctl, and from EOS_* environment
// variables (EOS_HOST, EOS_PASSWORD, EOS_USE_SESSIONS, ...).
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eosctl",
		Short: "Arista EOS configuration client",
		Long: `Run commands and load configuration on Arista EOS switches over
SSH, eAPI or gNMI.

Configuration is loaded inside an EOS configuration session: the session
diff is printed and the session is committed with --commit or aborted
otherwise.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./eosctl.yaml or $HOME/.config/eosctl/eosctl.yaml)")
	flags.String("host", "", "device host name or address")
	flags.String("transport", "cli", "transport: cli, eapi or gnmi")
	flags.Int("port", 0, "device port (default depends on transport)")
	flags.StringP("username", "u", "", "login username")
	flags.String("password", "", "login password (prompted when empty on a terminal)")
	flags.String("enable-password", "", "enable password")
	flags.Bool("authorize", false, "enter enable mode after login")
	flags.Bool("tls", true, "use TLS (eapi, gnmi)")
	flags.Bool("verify", true, "verify the device TLS certificate")
	flags.Duration("timeout", 0, "operation timeout (default 10s)")
	flags.Bool("use-sessions", true, "use configuration sessions when supported")
	flags.String("session-prefix", "", "prefix of generated session names")
	flags.Bool("unique-sessions", false, "append a random token to session names")
	flags.String("log-level", "", "log level: debug, info, warn, error (default silent)")
	flags.StringP("output", "o", "text", "output format: text or yaml")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newCheckCmd())

	return rootCmd
}

// initConfig binds flags, config file and environment through viper
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("eosctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/eosctl")
	}

	viper.SetEnvPrefix("EOS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}
