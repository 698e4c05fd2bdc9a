// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"regexp"
	"testing"
	"time"
)

// TestClientOptions tests each functional option on a bare Client
func TestClientOptions(t *testing.T) {
	custom := regexp.MustCompile(`% Unavailable command`)
	metrics := &Metrics{}
	logger := NewDefaultLogger(LogLevelWarn)
	ft := newFakeTransport()

	tests := []struct {
		name  string
		opt   func(*Client)
		check func(*Client) bool
	}{
		{name: "Username", opt: Username("admin"), check: func(c *Client) bool { return c.username == "admin" }},
		{name: "Password", opt: Password("secret123"), check: func(c *Client) bool { return c.password == "secret123" }},
		{name: "EnablePassword", opt: EnablePassword("en4ble"), check: func(c *Client) bool { return c.enablePassword == "en4ble" }},
		{name: "Authorize", opt: Authorize(true), check: func(c *Client) bool { return c.Authorize }},
		{name: "UseTransport", opt: UseTransport(TransportGNMI), check: func(c *Client) bool { return c.Kind == TransportGNMI }},
		{name: "WithTransport", opt: WithTransport(ft), check: func(c *Client) bool { return c.transport == ft }},
		{name: "TLSCert", opt: TLSCert("/path/to/cert.pem"), check: func(c *Client) bool { return c.tlsCert == "/path/to/cert.pem" }},
		{name: "TLSKey", opt: TLSKey("/path/to/key.pem"), check: func(c *Client) bool { return c.tlsKey == "/path/to/key.pem" }},
		{name: "TLSCA", opt: TLSCA("/path/to/ca.pem"), check: func(c *Client) bool { return c.tlsCA == "/path/to/ca.pem" }},
		{name: "Port", opt: Port(8443), check: func(c *Client) bool { return c.Port == 8443 }},
		{name: "TLS", opt: TLS(true), check: func(c *Client) bool { return c.UseTLS }},
		{name: "VerifyCertificate", opt: VerifyCertificate(true), check: func(c *Client) bool { return c.VerifyCertificate }},
		{name: "ConnectTimeout", opt: ConnectTimeout(45 * time.Second), check: func(c *Client) bool { return c.ConnectTimeout == 45*time.Second }},
		{name: "OperationTimeout", opt: OperationTimeout(2 * time.Minute), check: func(c *Client) bool { return c.OperationTimeout == 2*time.Minute }},
		{name: "MaxRetries", opt: MaxRetries(5), check: func(c *Client) bool { return c.MaxRetries == 5 }},
		{name: "BackoffMinDelay", opt: BackoffMinDelay(500 * time.Millisecond), check: func(c *Client) bool { return c.BackoffMinDelay == 500*time.Millisecond }},
		{name: "BackoffMaxDelay", opt: BackoffMaxDelay(time.Minute), check: func(c *Client) bool { return c.BackoffMaxDelay == time.Minute }},
		{name: "BackoffDelayFactor", opt: BackoffDelayFactor(1.5), check: func(c *Client) bool { return c.BackoffDelayFactor == 1.5 }},
		{name: "UseSessions", opt: UseSessions(true), check: func(c *Client) bool { return c.UseSessions }},
		{name: "SessionPrefix", opt: SessionPrefix("netops"), check: func(c *Client) bool { return c.SessionPrefix == "netops" }},
		{name: "UniqueSessionIDs", opt: UniqueSessionIDs(true), check: func(c *Client) bool { return c.UniqueSessionIDs }},
		{
			name:  "ErrorPatterns",
			opt:   ErrorPatterns(custom),
			check: func(c *Client) bool { return len(c.errorPatterns) == 1 && c.errorPatterns[0] == custom },
		},
		{name: "WithLogger", opt: WithLogger(logger), check: func(c *Client) bool { return c.logger == logger }},
		{name: "WithPrettyPrintLogs", opt: WithPrettyPrintLogs(true), check: func(c *Client) bool { return c.prettyPrintLogs }},
		{name: "WithMetrics", opt: WithMetrics(metrics), check: func(c *Client) bool { return c.metrics == metrics }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{}
			tt.opt(client)
			if !tt.check(client) {
				t.Errorf("%s() did not apply: %+v", tt.name, client)
			}
		})
	}
}

// TestWithLoggerNil tests that a nil logger keeps the current one
func TestWithLoggerNil(t *testing.T) {
	client := &Client{logger: &NoOpLogger{}}
	WithLogger(nil)(client)
	if _, ok := client.logger.(*NoOpLogger); !ok {
		t.Errorf("logger = %T, want *NoOpLogger", client.logger)
	}
}

// TestOptionsCombination tests that later options override earlier ones
func TestOptionsCombination(t *testing.T) {
	client, err := NewClient("leaf1",
		UseTransport(TransportEAPI),
		Port(8080),
		TLS(false),
		OperationTimeout(time.Minute),
		UseTransport(TransportGNMI),
		Port(6031),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.Kind != TransportGNMI || client.Port != 6031 || client.UseTLS {
		t.Errorf("client = %s:%d tls=%v", client.Kind, client.Port, client.UseTLS)
	}
	if client.OperationTimeout != time.Minute {
		t.Errorf("OperationTimeout = %v", client.OperationTimeout)
	}
}

// TestSecurityWarnings tests the warnings logged for insecure TLS settings
func TestSecurityWarnings(t *testing.T) {
	tests := []struct {
		name string
		opts []func(*Client)
		want string
	}{
		{
			name: "verification disabled",
			opts: []func(*Client){UseTransport(TransportEAPI), VerifyCertificate(false)},
			want: "InsecureSkipVerify enabled - TLS certificate verification disabled",
		},
		{
			name: "tls disabled",
			opts: []func(*Client){UseTransport(TransportGNMI), TLS(false)},
			want: "TLS disabled - connection is not encrypted",
		},
		{
			name: "no credentials",
			opts: []func(*Client){UseTransport(TransportCLI)},
			want: "No credentials configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingLogger{}
			if _, err := NewClient("leaf1", append(tt.opts, WithLogger(rec))...); err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			entry, ok := rec.find(tt.want)
			if !ok {
				t.Fatalf("warning %q not logged", tt.want)
			}
			if entry.level != "warn" {
				t.Errorf("level = %q, want warn", entry.level)
			}
		})
	}

	t.Run("no warning over ssh", func(t *testing.T) {
		rec := &recordingLogger{}
		if _, err := NewClient("leaf1", TLS(false), Username("admin"), WithLogger(rec)); err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if _, ok := rec.find("TLS disabled - connection is not encrypted"); ok {
			t.Error("TLS warning logged for the CLI transport")
		}
	})
}
