// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Default client configuration values
const (
	DefaultCLIPort            = 22
	DefaultEAPIPort           = 80
	DefaultEAPITLSPort        = 443
	DefaultGNMIPort           = 6030
	DefaultMaxRetries         = 3
	DefaultBackoffMinDelay    = 1 * time.Second
	DefaultBackoffMaxDelay    = 60 * time.Second
	DefaultBackoffDelayFactor = 2
	DefaultConnectTimeout     = 30 * time.Second
	DefaultOperationTimeout   = 10 * time.Second
	DefaultUseTLS             = true
	DefaultVerifyCertificate  = true
	DefaultPrettyPrintLogs    = false
	DefaultUseSessions        = true
	DefaultSessionPrefix      = "ansible"
)

// Security limits for JSON processing and logging
const (
	MaxJSONSizeForLogging = 1 * 1024 * 1024 // 1MB limit to prevent ReDoS attacks
	MaxSensitiveFields    = 1000            // Max redaction operations to prevent DoS
)

// Logging message constants
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// redactionRule replaces a sensitive JSON field
type redactionRule struct {
	field       string
	pattern     *regexp.Regexp
	replacement string
}

func newRedactionRule(field string) redactionRule {
	return redactionRule{
		field:       `"` + field + `"`,
		pattern:     regexp.MustCompile(`"` + field + `"\s*:\s*"[^"]*"`),
		replacement: `"` + field + `":"[REDACTED]"`,
	}
}

// defaultRedactionRules covers credentials that appear in request bodies;
// "input" carries the enable password in eAPI requests
var defaultRedactionRules = []redactionRule{
	newRedactionRule("input"),
	newRedactionRule("password"),
	newRedactionRule("secret"),
	newRedactionRule("key"),
	newRedactionRule("community"),
	newRedactionRule("token"),
}

// commandSecretPattern matches credentials inside configuration lines such as
// "username admin secret 0 s3cret" or "snmp-server community public ro"
var commandSecretPattern = regexp.MustCompile(`(?i)\b(secret|password|key|community)((?:\s+(?:\d+|sha512|md5))*)\s+\S+`)

// Client represents a configuration connection to one Arista EOS device
//
// A Client drives a single transport chosen at construction. Every public
// operation holds the client mutex for its whole duration, so operations on
// one Client never interleave on the device.
type Client struct {
	// transport is opened lazily on the first operation
	transport Transport

	// connected tracks if the transport has been opened
	connected bool

	// closed is set by Close; a closed client rejects every operation
	closed bool

	mu sync.Mutex

	// Connection parameters
	Host           string
	Port           int
	Kind           TransportKind
	username       string // unexported for security
	password       string // unexported for security
	enablePassword string // unexported for security

	// Authorize enters enable mode after login
	Authorize bool

	// TLS configuration (eAPI and gNMI)
	tlsCert string
	tlsKey  string
	tlsCA   string

	UseTLS             bool
	VerifyCertificate  bool
	InsecureSkipVerify bool // Alias for !VerifyCertificate

	// Timeout configuration
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration

	// Retry configuration (gNMI reads only)
	MaxRetries         int
	BackoffMinDelay    time.Duration
	BackoffMaxDelay    time.Duration
	BackoffDelayFactor float64

	// Session configuration
	UseSessions      bool
	SessionPrefix    string
	UniqueSessionIDs bool

	// errorPatterns classify CLI output as a command rejection
	errorPatterns []*regexp.Regexp

	// Logging configuration
	logger          Logger
	prettyPrintLogs bool
	redactionRules  []redactionRule

	metrics *Metrics
	now     func() time.Time
}

// NewClient creates a new EOS client for host with the specified options
//
// The client builds its transport but does NOT connect. The connection is
// established on the first operation. Use Ping() to verify connectivity
// explicitly.
//
// Example:
//
//	client, err := eos.NewClient(
//	    "leaf1.example.com",
//	    eos.UseTransport(eos.TransportEAPI),
//	    eos.Username("admin"),
//	    eos.Password("secret"),
//	    eos.Authorize(true),
//	    eos.VerifyCertificate(false),
//	)
//	if err != nil {
//	    log.Fatal(err)  // Configuration error
//	}
//	defer client.Close()
//
//	res, err := client.LoadConfig(ctx, eos.Commands("hostname leaf1"), true, false)
//
// Returns a configured Client or an error if configuration validation fails.
func NewClient(host string, opts ...func(*Client)) (*Client, error) {
	client := &Client{
		Host:               host,
		Kind:               TransportCLI,
		UseTLS:             DefaultUseTLS,
		VerifyCertificate:  DefaultVerifyCertificate,
		ConnectTimeout:     DefaultConnectTimeout,
		OperationTimeout:   DefaultOperationTimeout,
		MaxRetries:         DefaultMaxRetries,
		BackoffMinDelay:    DefaultBackoffMinDelay,
		BackoffMaxDelay:    DefaultBackoffMaxDelay,
		BackoffDelayFactor: DefaultBackoffDelayFactor,
		UseSessions:        DefaultUseSessions,
		SessionPrefix:      DefaultSessionPrefix,
		errorPatterns:      DefaultErrorPatterns,
		logger:             &NoOpLogger{},
		prettyPrintLogs:    DefaultPrettyPrintLogs,
		redactionRules:     defaultRedactionRules,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.InsecureSkipVerify = !client.VerifyCertificate
	if client.transport != nil {
		client.Kind = client.transport.Kind()
	}
	if client.Port == 0 {
		client.Port = defaultPort(client.Kind, client.UseTLS)
	}

	if err := client.validateConfig(); err != nil {
		return nil, err
	}

	if client.transport == nil {
		client.transport = client.newTransport()
	}

	client.logger.Info(context.Background(), "EOS client created",
		"host", client.Host,
		"port", client.Port,
		"transport", string(client.Kind),
		"connection", "lazy")

	return client, nil
}

// defaultPort returns the well-known port of a transport
func defaultPort(kind TransportKind, useTLS bool) int {
	switch kind {
	case TransportEAPI:
		if useTLS {
			return DefaultEAPITLSPort
		}
		return DefaultEAPIPort
	case TransportGNMI:
		return DefaultGNMIPort
	default:
		return DefaultCLIPort
	}
}

// newTransport builds the transport selected by Kind
//
// PRECONDITION: Configuration must be validated via validateConfig().
func (c *Client) newTransport() Transport {
	switch c.Kind {
	case TransportEAPI:
		return newEAPITransport(c)
	case TransportGNMI:
		return newGNMITransport(c)
	default:
		return newCLITransport(c)
	}
}

// Disconnect closes the device connection but preserves client configuration.
//
// Unlike Close(), this method allows the client to be reused: the next
// operation reconnects. Cached running configuration and the session
// capability answer survive a disconnect.
//
// Example:
//
//	client, _ := eos.NewClient("leaf1", opts...)
//	defer client.Close()
//
//	cfg, err := client.GetConfig(ctx, nil)
//
//	// Release connection temporarily
//	client.Disconnect()
//
//	// Automatically reconnects on next use
//	res, err := client.RunCommands(ctx, eos.Commands("show clock"))
//
// Thread-safe: safe for concurrent use with other client methods.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.connected {
		return nil
	}

	if err := c.transport.Close(); err != nil {
		c.logger.Warn(context.Background(), "connection close returned error during disconnect",
			"host", c.Host,
			"error", err.Error())
	}
	c.connected = false

	c.logger.Info(context.Background(), "EOS connection disconnected",
		"host", c.Host,
		"reusable", true)

	return nil
}

// Close closes the device connection and releases resources (terminal operation).
//
// The client cannot be reused after Close(); every later operation fails
// with a transport error. Use Disconnect() to release the connection
// temporarily.
//
// Example:
//
//	client, err := eos.NewClient("leaf1", opts...)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// Thread-safe: safe to call multiple times (subsequent calls are no-ops).
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if !c.connected {
		return nil
	}
	c.connected = false

	if err := c.transport.Close(); err != nil {
		return err
	}

	c.logger.Info(context.Background(), "EOS connection closed",
		"host", c.Host,
		"reusable", false)

	return nil
}

// HasCredentials returns true if credentials are configured
//
// This method only indicates if credentials exist without exposing
// the actual values.
func (c *Client) HasCredentials() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username != "" || c.password != "" || c.tlsCert != ""
}

// ensureConnected opens the transport if it is not open yet
//
// PRECONDITION: Caller must hold c.mu.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.closed {
		return &EosError{Kind: KindTransport, Message: "client is closed"}
	}
	if c.connected {
		return nil
	}

	c.logger.Debug(ctx, "Establishing EOS connection",
		"host", c.Host,
		"port", c.Port,
		"transport", string(c.Kind))

	if err := c.transport.Open(ctx); err != nil {
		c.logger.Error(ctx, "EOS connection failed",
			"host", c.Host,
			"error", err.Error())
		return err
	}
	c.connected = true

	c.logger.Info(ctx, "EOS connection established",
		"host", c.Host,
		"port", c.Port,
		"transport", string(c.Kind))

	return nil
}

// run executes fn as the named operation
//
// run serializes on the client mutex, applies the timeout model of
// createOperationContext, connects lazily, records metrics and tags any
// error with the operation name.
func (c *Client) run(ctx context.Context, op string, mods []func(*Req), fn func(ctx context.Context) error) error {
	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}

	if err := checkContextCancellation(ctx); err != nil {
		return withOperation(op, transportError(err, nil))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := c.createOperationContext(ctx, req)
	defer cancel()

	start := c.now()
	err := c.ensureConnected(ctx)
	if err == nil {
		err = fn(ctx)
	}
	c.metrics.observeRequest(c.Kind, op, err, c.now().Sub(start))

	if err != nil {
		// the connection state is unknown after a transport failure
		if errors.Is(err, ErrTransport) && c.connected {
			if closeErr := c.transport.Close(); closeErr != nil {
				c.logger.Warn(ctx, "connection close after transport error failed",
					"host", c.Host,
					"error", closeErr.Error())
			}
			c.connected = false
		}

		err = withOperation(op, err)
		c.logger.Error(ctx, "EOS operation failed",
			"operation", op,
			"host", c.Host,
			"error", err.Error())
		return err
	}
	return nil
}

// RunCommands executes commands and returns one result per command, in order
//
// Over eAPI and gNMI, adjacent commands with the same response format are
// sent in one request: text commands and "| json" commands never share a
// request. Over the CLI transport commands are sent one by one. Text output
// is trimmed; structured output is returned as raw JSON (see Result.GetValue).
//
// The first failing request aborts the call and partial results are discarded.
//
// Example:
//
//	res, err := client.RunCommands(ctx, eos.Commands(
//	    "show version | json",
//	    "show clock",
//	))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res[0].GetValue("version").String())
//	fmt.Println(res[1].Output)
func (c *Client) RunCommands(ctx context.Context, cmds []Command, mods ...func(*Req)) ([]Result, error) {
	if err := validateCommands(cmds); err != nil {
		return nil, fmt.Errorf("eos: RunCommands: %w", err)
	}
	if len(cmds) == 0 {
		return []Result{}, nil
	}

	var results []Result
	err := c.run(ctx, "RunCommands", mods, func(ctx context.Context) error {
		c.logger.Debug(ctx, "EOS RunCommands request",
			"host", c.Host,
			"commands", len(cmds),
			"batches", len(batchByFormat(cmds)))

		res, err := c.transport.RunCommands(ctx, cmds)
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetConfig returns the running configuration, optionally filtered by flags
//
// The result for each distinct flag set is fetched from the device once and
// cached for the lifetime of the client: later calls do not reflect changes
// made in the meantime. Create a new Client for fresh data.
//
// Example:
//
//	cfg, err := client.GetConfig(ctx, []string{"section", "interface"})
func (c *Client) GetConfig(ctx context.Context, flags []string, mods ...func(*Req)) (string, error) {
	var cfg string
	err := c.run(ctx, "GetConfig", mods, func(ctx context.Context) error {
		out, err := c.transport.GetConfig(ctx, flags)
		if err != nil {
			return err
		}
		cfg = out
		return nil
	})
	return cfg, err
}

// SupportsSessions reports whether the device supports configuration sessions
//
// The device is probed once; both answers are cached.
func (c *Client) SupportsSessions(ctx context.Context, mods ...func(*Req)) (bool, error) {
	var supported bool
	err := c.run(ctx, "SupportsSessions", mods, func(ctx context.Context) error {
		ok, err := c.transport.SupportsSessions(ctx)
		supported = ok
		return err
	})
	return supported, err
}

// CheckAuthorization reports whether the connection has the privilege
// required for configuration operations
func (c *Client) CheckAuthorization(ctx context.Context, mods ...func(*Req)) (bool, error) {
	var authorized bool
	err := c.run(ctx, "CheckAuthorization", mods, func(ctx context.Context) error {
		ok, err := c.transport.CheckAuthorization(ctx)
		authorized = ok
		return err
	})
	return authorized, err
}

// Ping verifies connectivity by running "show clock"
//
// Example:
//
//	client, err := eos.NewClient("leaf1", opts...)
//	if err != nil {
//	    log.Fatal(err)  // Configuration error
//	}
//	defer client.Close()
//
//	if err := client.Ping(ctx); err != nil {
//	    log.Fatal(err)  // Connection error
//	}
func (c *Client) Ping(ctx context.Context) error {
	return c.run(ctx, "Ping", nil, func(ctx context.Context) error {
		_, err := c.transport.RunCommands(ctx, []Command{{Text: cmdShowClock}})
		return err
	})
}

// Backoff calculates the backoff delay for retry attempt using exponential backoff with jitter
//
// The formula is: delay = min(minDelay * (factor ^ attempt) + jitter, maxDelay)
// where jitter is a cryptographically secure random value in [0, delay * 0.1].
//
// If crypto/rand fails, falls back to timestamp-based jitter.
func (c *Client) Backoff(attempt int) time.Duration {
	delay := float64(c.BackoffMinDelay) * math.Pow(c.BackoffDelayFactor, float64(attempt))

	if math.IsInf(delay, 1) || delay > float64(c.BackoffMaxDelay) {
		delay = float64(c.BackoffMaxDelay)
	}

	jitterMax := int64(delay * 0.1)
	if jitterMax > 0 {
		var jitterBytes [8]byte
		if _, err := rand.Read(jitterBytes[:]); err == nil {
			//nolint:gosec // G115: explicitly masked to prevent overflow
			jitter := int64(binary.BigEndian.Uint64(jitterBytes[:]) & 0x7FFFFFFFFFFFFFFF)
			delay += float64(jitter % jitterMax)
		} else {
			timestamp := c.now().UnixNano()
			delay += float64((timestamp%jitterMax + jitterMax) % jitterMax)

			c.logger.Warn(context.Background(), "crypto/rand failed, using timestamp-based jitter",
				"error", err.Error(),
				"attempt", attempt)
		}
	}

	return time.Duration(delay)
}

// calculateTotalTimeout calculates the budget for a gNMI read including retries
//
// Formula: OperationTimeout + sum(Backoff(0), ..., Backoff(MaxRetries-1))
func (c *Client) calculateTotalTimeout() time.Duration {
	total := c.OperationTimeout
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		total += c.Backoff(attempt)
	}
	return total
}

// checkContextCancellation checks if context is canceled or deadline exceeded
func checkContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// createOperationContext creates the context for one operation
//
// Timeout priority model:
//  1. Request-specific timeout (req.Timeout > 0) - highest priority
//  2. Existing context deadline (ctx.Deadline() set) - medium priority
//  3. Client default timeout - fallback; for gNMI it includes the retry
//     backoff budget
//
// Caller MUST call the returned cancel function.
func (c *Client) createOperationContext(ctx context.Context, req *Req) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		if req.Timeout < time.Second {
			c.logger.Warn(ctx, "request timeout is very short (may not complete)",
				"timeout", req.Timeout.String(),
				"host", c.Host)
		}
		return context.WithTimeout(ctx, req.Timeout)
	}

	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return context.WithCancel(ctx)
	}

	timeout := c.OperationTimeout
	if c.Kind == TransportGNMI {
		timeout = c.calculateTotalTimeout()
	}
	return context.WithTimeout(ctx, timeout)
}

// prepareJSONForLogging redacts sensitive data and formats JSON for logging
//
// Checks, in order: size limit (1MB), sensitive field count limit, then
// redaction and optional pretty-printing.
func (c *Client) prepareJSONForLogging(jsonStr string) string {
	if len(jsonStr) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}

	sensitiveCount := 0
	for _, rule := range c.redactionRules {
		sensitiveCount += strings.Count(jsonStr, rule.field)
	}
	if sensitiveCount > MaxSensitiveFields {
		c.logger.Warn(context.Background(), "Too many sensitive fields detected",
			"count", sensitiveCount,
			"max", MaxSensitiveFields)
		return JSONTooManySensitiveMsg
	}

	redacted := c.redactSensitiveData(jsonStr)

	if c.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			return buf.String()
		}
	}

	return redacted
}

// redactSensitiveData replaces sensitive JSON string fields with [REDACTED]
func (c *Client) redactSensitiveData(json string) string {
	result := json
	for _, rule := range c.redactionRules {
		result = rule.pattern.ReplaceAllString(result, rule.replacement)
	}
	return result
}

// redactCommands renders commands for logging with credentials masked
func redactCommands(cmds []Command) []string {
	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, commandSecretPattern.ReplaceAllString(cmd.Text, "$1$2 [REDACTED]"))
	}
	return out
}

// validateConfig validates client configuration before the transport is built
//
// Validates:
//   - Host is not empty and transport kind is known
//   - Port range (1-65535)
//   - Positive timeouts
//   - Retry parameters
//   - Session prefix is a single word
//   - TLS certificate file paths exist (if provided)
//
// Returns an error if validation fails.
func (c *Client) validateConfig() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if _, err := ParseTransportKind(string(c.Kind)); err != nil {
		return err
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got: %v", c.ConnectTimeout)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got: %v", c.OperationTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got: %d", c.MaxRetries)
	}
	if c.BackoffMinDelay <= 0 {
		return fmt.Errorf("backoff min delay must be positive, got: %v", c.BackoffMinDelay)
	}
	if c.BackoffMaxDelay <= c.BackoffMinDelay {
		return fmt.Errorf("backoff max delay (%v) must be greater than min delay (%v)",
			c.BackoffMaxDelay, c.BackoffMinDelay)
	}
	if c.BackoffDelayFactor < 1.0 {
		return fmt.Errorf("backoff delay factor must be >= 1.0, got: %f", c.BackoffDelayFactor)
	}

	if c.SessionPrefix == "" || strings.ContainsAny(c.SessionPrefix, " \t\r\n") {
		return fmt.Errorf("invalid session prefix: %q (must be a single non-empty word)", c.SessionPrefix)
	}

	if c.Kind != TransportCLI {
		if c.UseTLS && c.InsecureSkipVerify {
			c.logger.Warn(context.Background(), "InsecureSkipVerify enabled - TLS certificate verification disabled",
				"host", c.Host,
				"security_risk", "Man-in-the-Middle attacks possible")
		}
		if !c.UseTLS {
			c.logger.Warn(context.Background(), "TLS disabled - connection is not encrypted",
				"host", c.Host,
				"security_risk", "Credentials and data transmitted in clear text")
		}
	}

	for _, file := range []struct{ name, path string }{
		{"TLS certificate", c.tlsCert},
		{"TLS key", c.tlsKey},
		{"TLS CA", c.tlsCA},
	} {
		if file.path == "" {
			continue
		}
		if _, err := os.Stat(file.path); err != nil {
			c.logger.Debug(context.Background(), file.name+" validation failed",
				"path", file.path,
				"error", err.Error())
			// only the file name, to prevent path disclosure
			return fmt.Errorf("%s file not found: %s", file.name, filepath.Base(file.path))
		}
	}

	if c.username == "" && c.password == "" && c.tlsCert == "" {
		c.logger.Warn(context.Background(), "No credentials configured",
			"host", c.Host,
			"message", "device may reject connection")
	}

	return nil
}
