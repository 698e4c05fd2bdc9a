// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/netascode/go-eos"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// newLogger builds a console zap logger; an empty level is silent
func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		return zap.NewNop(), nil
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// clientOptions translates the resolved viper settings into client options
func clientOptions(v *viper.Viper, logger *zap.Logger) ([]func(*eos.Client), error) {
	kind, err := eos.ParseTransportKind(v.GetString("transport"))
	if err != nil {
		return nil, err
	}

	opts := []func(*eos.Client){
		eos.UseTransport(kind),
		eos.Username(v.GetString("username")),
		eos.Password(v.GetString("password")),
		eos.Authorize(v.GetBool("authorize")),
		eos.TLS(v.GetBool("tls")),
		eos.VerifyCertificate(v.GetBool("verify")),
		eos.UseSessions(v.GetBool("use-sessions")),
		eos.UniqueSessionIDs(v.GetBool("unique-sessions")),
		eos.WithLogger(eos.NewZapLogger(logger)),
	}
	if p := v.GetString("enable-password"); p != "" {
		opts = append(opts, eos.EnablePassword(p))
	}
	if port := v.GetInt("port"); port != 0 {
		opts = append(opts, eos.Port(port))
	}
	if timeout := v.GetDuration("timeout"); timeout > 0 {
		opts = append(opts, eos.OperationTimeout(timeout))
	}
	if prefix := v.GetString("session-prefix"); prefix != "" {
		opts = append(opts, eos.SessionPrefix(prefix))
	}
	return opts, nil
}

// newClient creates a client from the global viper configuration, prompting
// for the password on a terminal when none is configured
func newClient() (*eos.Client, *zap.Logger, error) {
	host := viper.GetString("host")
	if host == "" {
		return nil, nil, fmt.Errorf("no host given (use --host or EOS_HOST)")
	}

	logger, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return nil, nil, err
	}

	if viper.GetString("password") == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Password for %s: ", host)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read password: %w", err)
		}
		viper.Set("password", string(pw))
	}

	opts, err := clientOptions(viper.GetViper(), logger)
	if err != nil {
		return nil, nil, err
	}

	client, err := eos.NewClient(host, opts...)
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}
