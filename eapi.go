// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

const (
	eapiPath        = "/command-api"
	eapiContentType = "application/json-rpc"

	// maxEAPIResponseSize bounds the response body read from the device (64MB)
	maxEAPIResponseSize = 64 * 1024 * 1024
)

// eapiTransport drives the device through the JSON-RPC command API
//
// eAPI is stateless: every request runs in a fresh CLI context, so the
// enable pseudo-command is prepended to each request (when authorization is
// configured) and session requests re-enter their session first.
type eapiTransport struct {
	url        string
	username   string
	password   string
	enable     *Command
	httpClient *http.Client

	logger  Logger
	logJSON func(string) string

	cache    *configCache
	sessions capabilityCache
	nextID   atomic.Uint64
}

// newEAPITransport builds the eAPI transport from client configuration
func newEAPITransport(c *Client) *eapiTransport {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}

	httpTransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   c.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			//nolint:gosec // G402: verification is a caller decision (VerifyCertificate option)
			InsecureSkipVerify: c.InsecureSkipVerify,
		},
		TLSHandshakeTimeout: c.ConnectTimeout,
		MaxIdleConns:        2,
		IdleConnTimeout:     90 * time.Second,
	}

	t := &eapiTransport{
		url:        fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), eapiPath),
		username:   c.username,
		password:   c.password,
		httpClient: &http.Client{Transport: httpTransport},
		logger:     c.logger,
		logJSON:    c.prepareJSONForLogging,
		cache:      newConfigCache(),
	}

	if c.Authorize || c.enablePassword != "" {
		enable := Command{Text: cmdEnable}
		if c.enablePassword != "" {
			enable.Response = c.enablePassword
		}
		t.enable = &enable
	}

	return t
}

// Kind returns TransportEAPI
func (t *eapiTransport) Kind() TransportKind {
	return TransportEAPI
}

// Open is a no-op: every request opens its own HTTP exchange
func (t *eapiTransport) Open(_ context.Context) error {
	return nil
}

// Close releases idle HTTP connections
func (t *eapiTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// send issues a single runCmds request and returns one result entry per
// command in cmds (the enable placeholder is stripped)
func (t *eapiTransport) send(ctx context.Context, cmds []Command, format string) ([]gjson.Result, error) {
	full := cmds
	offset := 0
	if t.enable != nil {
		full = append([]Command{*t.enable}, cmds...)
		offset = 1
	}

	id := strconv.FormatUint(t.nextID.Add(1), 10)
	payload, err := runCmdsBody(id, full, format).Bytes()
	if err != nil {
		return nil, &EosError{Kind: KindDecode, Message: "unable to build request", InternalMsg: err.Error(), Err: err}
	}

	t.logger.Debug(ctx, "eAPI request",
		"url", t.url,
		"id", id,
		"format", format,
		"commands", len(full),
		"body", t.logJSON(string(payload)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &EosError{Kind: KindTransport, Message: "unable to create request", InternalMsg: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", eapiContentType)
	req.Header.Set("Accept", "application/json")
	if t.username != "" || t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err, commandTexts(cmds))
	}
	defer resp.Body.Close() //nolint:errcheck // read errors are reported below

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEAPIResponseSize))
	if err != nil {
		return nil, transportError(err, commandTexts(cmds))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &EosError{
			Kind:        KindTransport,
			Message:     fmt.Sprintf("device returned HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			InternalMsg: truncateBody(data),
			Code:        resp.StatusCode,
			Commands:    commandTexts(cmds),
		}
	}

	if !gjson.ValidBytes(data) {
		return nil, &EosError{
			Kind:        KindDecode,
			Message:     "unable to load response from device",
			InternalMsg: truncateBody(data),
			Commands:    commandTexts(cmds),
		}
	}

	t.logger.Debug(ctx, "eAPI response",
		"id", id,
		"status", resp.StatusCode,
		"bytes", len(data))

	response := gjson.ParseBytes(data)
	if rpcErr := response.Get("error"); rpcErr.Exists() {
		return nil, deviceError(rpcErr, full, offset)
	}

	result := response.Get("result")
	if !result.IsArray() {
		return nil, &EosError{
			Kind:     KindDecode,
			Message:  "response has neither result nor error",
			Commands: commandTexts(cmds),
		}
	}

	entries := result.Array()
	if len(entries) != len(full) {
		return nil, &EosError{
			Kind:     KindDecode,
			Message:  fmt.Sprintf("expected %d results, device returned %d", len(full), len(entries)),
			Commands: commandTexts(cmds),
		}
	}
	return entries[offset:], nil
}

// deviceError converts a JSON-RPC error object into a command rejection
//
// The "data" array holds one entry per command sent; the first entry with
// an "errors" list identifies the offending command.
func deviceError(rpcErr gjson.Result, sent []Command, offset int) *EosError {
	e := &EosError{
		Kind:     KindCommand,
		Message:  rpcErr.Get("message").String(),
		Code:     int(rpcErr.Get("code").Int()),
		Commands: commandTexts(sent[offset:]),
	}

	for i, entry := range rpcErr.Get("data").Array() {
		errs := entry.Get("errors")
		if !errs.Exists() || i >= len(sent) {
			continue
		}
		e.Command = sent[i].Text
		msgs := make([]string, 0, len(errs.Array()))
		for _, msg := range errs.Array() {
			msgs = append(msgs, msg.String())
		}
		e.InternalMsg = strings.Join(msgs, "; ")
		break
	}
	return e
}

// transportError classifies an HTTP client failure
func transportError(err error, cmds []string) *EosError {
	msg := "request failed"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "request timed out"
	} else if errors.Is(err, context.Canceled) {
		msg = "request canceled"
	}
	return &EosError{
		Kind:        KindTransport,
		Message:     msg,
		InternalMsg: err.Error(),
		Commands:    cmds,
		Err:         err,
	}
}

// truncateBody renders a response body for error details
func truncateBody(data []byte) string {
	if len(data) > 512 {
		return string(data[:512]) + "..."
	}
	return string(data)
}

// RunCommands executes commands batched by response format
func (t *eapiTransport) RunCommands(ctx context.Context, cmds []Command) ([]Result, error) {
	return runBatched(ctx, cmds, func(ctx context.Context, b batch) ([]gjson.Result, error) {
		return t.send(ctx, b.commands, b.format)
	})
}

// GetConfig returns the running configuration, fetched once per flag set
func (t *eapiTransport) GetConfig(ctx context.Context, flags []string) (string, error) {
	return t.cache.get(ctx, flags, func(ctx context.Context, cmd string) (string, error) {
		entries, err := t.send(ctx, []Command{{Text: cmd}}, FormatText)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(entries[0].Get("output").String()), nil
	})
}

// SupportsSessions probes "show configuration sessions" once
func (t *eapiTransport) SupportsSessions(ctx context.Context) (bool, error) {
	return t.sessions.get(ctx, func(ctx context.Context) (bool, error) {
		_, err := t.send(ctx, []Command{{Text: cmdShowSessions}}, FormatText)
		return probeResult(err)
	})
}

// CheckAuthorization verifies the request runs at privilege level 15
func (t *eapiTransport) CheckAuthorization(ctx context.Context) (bool, error) {
	entries, err := t.send(ctx, []Command{{Text: cmdShowPrivilege}}, FormatJSON)
	if ok, probeErr := probeResult(err); !ok {
		return false, probeErr
	}
	return entries[0].Get("privilegeLevel").Int() >= 15, nil
}

// Configure sends "configure terminal" followed by the commands in one request
func (t *eapiTransport) Configure(ctx context.Context, cmds []Command) error {
	full := append([]Command{{Text: cmdConfigureTerm}}, foldBanners(cmds)...)
	_, err := t.send(ctx, full, FormatText)
	return err
}

// EnterSession creates the named session
func (t *eapiTransport) EnterSession(ctx context.Context, session string) error {
	_, err := t.send(ctx, []Command{{Text: sessionCommand(session)}}, FormatText)
	return err
}

// SendSession re-enters the session and executes commands inside it
func (t *eapiTransport) SendSession(ctx context.Context, session string, cmds []Command) ([]string, error) {
	full := append([]Command{{Text: sessionCommand(session)}}, foldBanners(cmds)...)
	entries, err := t.send(ctx, full, FormatText)
	if err != nil {
		return nil, err
	}

	outputs := make([]string, 0, len(entries)-1)
	for _, entry := range entries[1:] {
		outputs = append(outputs, strings.TrimSpace(entry.Get("output").String()))
	}
	return outputs, nil
}

// ExitSession re-enters the session and commits or aborts it
func (t *eapiTransport) ExitSession(ctx context.Context, session string, commit bool) error {
	_, err := t.send(ctx, []Command{
		{Text: sessionCommand(session)},
		{Text: exitCommand(commit)},
	}, FormatText)
	return err
}

// probeResult maps a probe error onto a capability answer: a command
// rejection means "not supported", any other failure is returned.
func probeResult(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrCommandRejected) {
		return false, nil
	}
	return false, err
}

// foldBanners converts multi-line banner payloads into single interactive
// commands, the eAPI form of "banner <type>" followed by lines up to EOF
func foldBanners(cmds []Command) []Command {
	out := make([]Command, 0, len(cmds))
	var banner *Command
	var lines []string

	for _, cmd := range cmds {
		if banner != nil {
			if strings.TrimSpace(cmd.Text) == bannerTerminator {
				banner.Response = strings.Join(lines, "\n")
				out = append(out, *banner)
				banner, lines = nil, nil
				continue
			}
			lines = append(lines, cmd.Text)
			continue
		}
		if isBannerStart(cmd.Text) && !cmd.Interactive() {
			banner = &Command{Text: cmd.Text}
			continue
		}
		out = append(out, cmd)
	}

	// unterminated banner: send what was collected
	if banner != nil {
		banner.Response = strings.Join(lines, "\n")
		out = append(out, *banner)
	}
	return out
}
