// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"regexp"
	"time"
)

// Client configuration options using the functional options pattern

// Username sets the login username
func Username(username string) func(*Client) {
	return func(c *Client) {
		c.username = username
	}
}

// Password sets the login password
func Password(password string) func(*Client) {
	return func(c *Client) {
		c.password = password
	}
}

// EnablePassword sets the password answered at the enable prompt
//
// Setting an enable password implies Authorize(true). Over eAPI the password
// is sent as the input of the enable pseudo-command prepended to every
// request; it is redacted from debug logs.
func EnablePassword(password string) func(*Client) {
	return func(c *Client) {
		c.enablePassword = password
	}
}

// Authorize enters privileged (enable) mode after login (default: false)
//
// Configuration operations require privilege level 15; without it
// LoadConfig and Configure fail with ErrAuthorization before any command is sent.
func Authorize(enabled bool) func(*Client) {
	return func(c *Client) {
		c.Authorize = enabled
	}
}

// UseTransport selects the transport (default: TransportCLI)
//
// Example:
//
//	client, _ := eos.NewClient("leaf1",
//	    eos.UseTransport(eos.TransportEAPI),
//	    eos.Username("admin"),
//	    eos.Password("secret"))
func UseTransport(kind TransportKind) func(*Client) {
	return func(c *Client) {
		c.Kind = kind
	}
}

// WithTransport supplies a ready-made Transport, overriding UseTransport
//
// The client adopts the transport's Kind. This is mainly useful for tests
// and for devices reached through a custom channel.
func WithTransport(t Transport) func(*Client) {
	return func(c *Client) {
		c.transport = t
	}
}

// TLSCert sets the client certificate file path (gNMI)
func TLSCert(certPath string) func(*Client) {
	return func(c *Client) {
		c.tlsCert = certPath
	}
}

// TLSKey sets the client private key file path (gNMI)
func TLSKey(keyPath string) func(*Client) {
	return func(c *Client) {
		c.tlsKey = keyPath
	}
}

// TLSCA sets the CA certificate file path for server verification (gNMI)
func TLSCA(caPath string) func(*Client) {
	return func(c *Client) {
		c.tlsCA = caPath
	}
}

// Port sets the device port
//
// Default: 22 (cli), 80 or 443 with TLS (eapi), 6030 (gnmi)
func Port(port int) func(*Client) {
	return func(c *Client) {
		c.Port = port
	}
}

// TLS enables or disables TLS for eAPI and gNMI (default: true)
//
// WARNING: Disabling TLS sends credentials in clear text. Only use this in
// isolated lab environments.
func TLS(enabled bool) func(*Client) {
	return func(c *Client) {
		c.UseTLS = enabled
	}
}

// VerifyCertificate enables or disables TLS certificate verification (default: true)
//
// WARNING: Disabling certificate verification makes the connection vulnerable
// to Man-in-the-Middle attacks. EOS ships with a self-signed certificate, so
// lab setups commonly disable it.
//
// Example:
//
//	client, _ := eos.NewClient("leaf1",
//	    eos.UseTransport(eos.TransportEAPI),
//	    eos.VerifyCertificate(false))  // Only for testing!
func VerifyCertificate(verify bool) func(*Client) {
	return func(c *Client) {
		c.VerifyCertificate = verify
	}
}

// ConnectTimeout sets the connection timeout (default: 30s)
//
// It bounds the TCP dial and the TLS or SSH handshake of every transport:
// the eAPI HTTP dialer, the SSH socket of the CLI transport and the gNMI
// dial.
func ConnectTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.ConnectTimeout = duration
	}
}

// OperationTimeout sets the default operation timeout (default: 10s)
func OperationTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.OperationTimeout = duration
	}
}

// MaxRetries sets the maximum number of retry attempts for transient gNMI
// read errors (default: 3). eAPI and CLI operations are never retried.
func MaxRetries(retries int) func(*Client) {
	return func(c *Client) {
		c.MaxRetries = retries
	}
}

// BackoffMinDelay sets the minimum backoff delay (default: 1s)
func BackoffMinDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMinDelay = duration
	}
}

// BackoffMaxDelay sets the maximum backoff delay (default: 60s)
func BackoffMaxDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMaxDelay = duration
	}
}

// BackoffDelayFactor sets the backoff multiplication factor (default: 2.0)
func BackoffDelayFactor(factor float64) func(*Client) {
	return func(c *Client) {
		c.BackoffDelayFactor = factor
	}
}

// UseSessions enables or disables configuration sessions (default: true)
//
// With sessions disabled LoadConfig always takes the direct configuration
// path: no diff, no rollback, and replace or dry-run requests are rejected.
func UseSessions(enabled bool) func(*Client) {
	return func(c *Client) {
		c.UseSessions = enabled
	}
}

// SessionPrefix sets the prefix of generated session names (default: "ansible")
func SessionPrefix(prefix string) func(*Client) {
	return func(c *Client) {
		c.SessionPrefix = prefix
	}
}

// UniqueSessionIDs appends a random token to session names (default: false)
//
// Session names are otherwise derived from the current second, so two
// processes loading configuration onto the same device within one second
// would share a session.
func UniqueSessionIDs(enabled bool) func(*Client) {
	return func(c *Client) {
		c.UniqueSessionIDs = enabled
	}
}

// ErrorPatterns replaces the patterns that mark CLI output as a command
// rejection (default: DefaultErrorPatterns)
//
// Example:
//
//	patterns := append([]*regexp.Regexp{regexp.MustCompile(`% Unavailable command`)},
//	    eos.DefaultErrorPatterns...)
//	client, _ := eos.NewClient("leaf1", eos.ErrorPatterns(patterns...))
func ErrorPatterns(patterns ...*regexp.Regexp) func(*Client) {
	return func(c *Client) {
		c.errorPatterns = patterns
	}
}

// WithLogger configures a custom logger for the client
//
// By default, the client uses NoOpLogger which discards all log messages.
// Request bodies logged at Debug level are redacted (enable password,
// secrets, keys, community strings).
//
// Example (DefaultLogger):
//
//	logger := eos.NewDefaultLogger(eos.LogLevelInfo)
//	client, _ := eos.NewClient("leaf1",
//	    eos.Username("admin"),
//	    eos.Password("secret"),
//	    eos.WithLogger(logger))
//
// Example (zap):
//
//	zl, _ := zap.NewProduction()
//	client, _ := eos.NewClient("leaf1", eos.WithLogger(eos.NewZapLogger(zl)))
func WithLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrettyPrintLogs enables/disables JSON pretty printing in logs
//
// Default: disabled (false)
func WithPrettyPrintLogs(enabled bool) func(*Client) {
	return func(c *Client) {
		c.prettyPrintLogs = enabled
	}
}

// WithMetrics records operation metrics into m
func WithMetrics(m *Metrics) func(*Client) {
	return func(c *Client) {
		c.metrics = m
	}
}

// Request modifiers for individual operations

// Timeout returns a request modifier that sets a custom timeout for the operation.
//
// The timeout priority model is:
//  1. Request-specific timeout (this modifier) - highest priority
//  2. Context deadline (if already set) - medium priority
//  3. Client.OperationTimeout - fallback default
//
// Over the CLI transport a single command is additionally bounded by the
// shell driver's operation timeout.
//
// Example:
//
//	// LoadConfig with 2 minute timeout for a large change
//	res, err := client.LoadConfig(ctx, cmds, true, false,
//	    eos.Timeout(2*time.Minute))
func Timeout(duration time.Duration) func(*Req) {
	return func(req *Req) {
		req.Timeout = duration
	}
}
