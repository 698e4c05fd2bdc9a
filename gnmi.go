// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"fmt"
	"strings"
	"time"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"github.com/openconfig/gnmic/pkg/api"
	target "github.com/openconfig/gnmic/pkg/api/target"
	"github.com/tidwall/gjson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/prototext"
)

// cliOrigin is the gNMI path origin under which EOS executes CLI commands
const cliOrigin = "cli"

// gnmiRPC is the subset of a gnmic target used by the gNMI transport
type gnmiRPC interface {
	Connect(ctx context.Context) error
	Get(ctx context.Context, req *gnmipb.GetRequest) (*gnmipb.GetResponse, error)
	Set(ctx context.Context, req *gnmipb.SetRequest) (*gnmipb.SetResponse, error)
	Close() error
}

// gnmicTarget adapts a gnmic target to gnmiRPC
type gnmicTarget struct {
	t *target.Target
}

func (g *gnmicTarget) Connect(ctx context.Context) error {
	return g.t.CreateGNMIClient(ctx)
}

func (g *gnmicTarget) Get(ctx context.Context, req *gnmipb.GetRequest) (*gnmipb.GetResponse, error) {
	return g.t.Get(ctx, req)
}

func (g *gnmicTarget) Set(ctx context.Context, req *gnmipb.SetRequest) (*gnmipb.SetResponse, error) {
	return g.t.Set(ctx, req)
}

func (g *gnmicTarget) Close() error {
	return g.t.Close()
}

// gnmiTransport executes CLI commands over gNMI using the "cli" path origin
//
// Show commands map to Get requests (ASCII encoding for text, JSON for
// structured output). Configuration is applied with a single Set update
// carrying the newline-joined commands. Configuration sessions are not
// available over this transport. Get requests are retried on transient
// gRPC status codes; Set requests are never retried.
type gnmiTransport struct {
	address   string
	newTarget func() (gnmiRPC, error)
	rpc       gnmiRPC

	logger     Logger
	maxRetries int
	backoff    func(attempt int) time.Duration

	cache *configCache
}

// newGNMITransport builds the gNMI transport from client configuration
func newGNMITransport(c *Client) *gnmiTransport {
	address := fmt.Sprintf("%s:%d", c.Host, c.Port)
	return &gnmiTransport{
		address: address,
		newTarget: func() (gnmiRPC, error) {
			return c.createGNMITarget(address)
		},
		logger:     c.logger,
		maxRetries: c.MaxRetries,
		backoff:    c.Backoff,
		cache:      newConfigCache(),
	}
}

// createGNMITarget builds a gnmic target handle without connecting
func (c *Client) createGNMITarget(address string) (gnmiRPC, error) {
	targetOpts := []api.TargetOption{
		api.Name(c.Host),
		api.Address(address),
		api.Timeout(c.ConnectTimeout),
	}

	if c.username != "" {
		targetOpts = append(targetOpts, api.Username(c.username))
	}
	if c.password != "" {
		targetOpts = append(targetOpts, api.Password(c.password))
	}
	if c.tlsCert != "" {
		targetOpts = append(targetOpts, api.TLSCert(c.tlsCert))
	}
	if c.tlsKey != "" {
		targetOpts = append(targetOpts, api.TLSKey(c.tlsKey))
	}
	if c.tlsCA != "" {
		targetOpts = append(targetOpts, api.TLSCA(c.tlsCA))
	}
	targetOpts = append(targetOpts,
		api.Insecure(!c.UseTLS),
		api.SkipVerify(c.InsecureSkipVerify))

	t, err := api.NewTarget(targetOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gnmic target: %w", err)
	}
	return &gnmicTarget{t: t}, nil
}

// Kind returns TransportGNMI
func (t *gnmiTransport) Kind() TransportKind {
	return TransportGNMI
}

// Open creates the target handle and establishes the gRPC connection
func (t *gnmiTransport) Open(ctx context.Context) error {
	if t.rpc == nil {
		rpc, err := t.newTarget()
		if err != nil {
			return &EosError{Kind: KindTransport, Message: "unable to create target", InternalMsg: err.Error(), Err: err}
		}
		t.rpc = rpc
	}

	t.logger.Debug(ctx, "Establishing gNMI connection", "address", t.address)
	if err := t.rpc.Connect(ctx); err != nil {
		return &EosError{Kind: KindTransport, Message: "failed to establish connection", InternalMsg: err.Error(), Err: err}
	}
	t.logger.Info(ctx, "gNMI connection established", "address", t.address)
	return nil
}

// Close closes the gRPC connection; Open recreates it
func (t *gnmiTransport) Close() error {
	if t.rpc == nil {
		return nil
	}
	rpc := t.rpc
	t.rpc = nil
	return rpc.Close()
}

// reconnect replaces a broken connection
func (t *gnmiTransport) reconnect(ctx context.Context) error {
	t.logger.Warn(ctx, "gNMI reconnecting", "address", t.address, "reason", "transport error")
	if t.rpc != nil {
		_ = t.rpc.Close() //nolint:errcheck // connection is likely already broken
		t.rpc = nil
	}
	return t.Open(ctx)
}

// cliPath returns the cli-origin path that executes cmd
//
// The command is carried as a single element so that slashes inside
// interface names are not treated as path separators.
func cliPath(cmd string) *gnmipb.Path {
	return &gnmipb.Path{
		Origin: cliOrigin,
		Elem:   []*gnmipb.PathElem{{Name: cmd}},
	}
}

// gnmiCommandText strips the json pipe; structure is requested through the encoding
func gnmiCommandText(cmd Command) string {
	text := strings.TrimRight(cmd.Text, " \t\r\n")
	return strings.TrimSpace(strings.TrimSuffix(text, JSONSuffix))
}

// gnmiEncoding maps a response format onto the encoding that requests it
func gnmiEncoding(format string) gnmipb.Encoding {
	if format == FormatJSON {
		return gnmipb.Encoding_JSON
	}
	return gnmipb.Encoding_ASCII
}

// getRequest builds a Get request for a batch of commands
func getRequest(b batch) *gnmipb.GetRequest {
	req := &gnmipb.GetRequest{Encoding: gnmiEncoding(b.format)}
	for _, cmd := range b.commands {
		req.Path = append(req.Path, cliPath(gnmiCommandText(cmd)))
	}
	return req
}

// get runs a Get request with retry on transient status codes
func (t *gnmiTransport) get(ctx context.Context, req *gnmipb.GetRequest, cmds []Command) (*gnmipb.GetResponse, error) {
	var lastErr error
	attempt := 0

	for ; attempt <= t.maxRetries; attempt++ {
		if err := checkContextCancellation(ctx); err != nil {
			return nil, transportError(err, commandTexts(cmds))
		}
		if t.rpc == nil {
			if err := t.Open(ctx); err != nil {
				return nil, err
			}
		}

		t.logger.Debug(ctx, "gNMI Get request",
			"address", t.address,
			"attempt", attempt,
			"request", prototext.Format(req))

		resp, err := t.rpc.Get(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransientStatus(err) || attempt == t.maxRetries {
			break
		}

		if isConnectionStatus(err) {
			if reconnectErr := t.reconnect(ctx); reconnectErr != nil {
				return nil, reconnectErr
			}
		}

		backoff := t.backoff(attempt)
		t.logger.Warn(ctx, "transient error, retrying",
			"operation", "get",
			"attempt", attempt+1,
			"max_retries", t.maxRetries,
			"backoff", backoff,
			"error", err.Error())

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, transportError(ctx.Err(), commandTexts(cmds))
		}
	}

	e := statusError(lastErr, cmds)
	e.Retries = attempt
	return nil, e
}

// isTransientStatus reports whether a gRPC error is worth retrying
func isTransientStatus(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	for _, code := range TransientErrors {
		if st.Code() == code {
			return true
		}
	}
	return false
}

// isConnectionStatus reports whether a gRPC error requires reconnection
func isConnectionStatus(err error) bool {
	st, ok := status.FromError(err)
	return ok && (st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded)
}

// statusError classifies a gRPC error; the device reports CLI rejections
// as argument or precondition failures
func statusError(err error, cmds []Command) *EosError {
	st, ok := status.FromError(err)
	if !ok {
		return transportError(err, commandTexts(cmds))
	}

	e := &EosError{
		Kind:        KindTransport,
		Message:     st.Message(),
		InternalMsg: st.String(),
		Code:        int(st.Code()),
		Commands:    commandTexts(cmds),
		Err:         err,
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.Unknown:
		e.Kind = KindCommand
		if len(cmds) == 1 {
			e.Command = cmds[0].Text
		}
	case codes.PermissionDenied:
		e.Kind = KindAuthorization
	}
	return e
}

// sendBatch runs one Get request and converts the notifications into
// result entries shaped like eAPI results
func (t *gnmiTransport) sendBatch(ctx context.Context, b batch) ([]gjson.Result, error) {
	resp, err := t.get(ctx, getRequest(b), b.commands)
	if err != nil {
		return nil, err
	}

	var entries []gjson.Result
	for _, notif := range resp.GetNotification() {
		for _, upd := range notif.GetUpdate() {
			entry, err := typedValueEntry(upd.GetVal(), b.format)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// typedValueEntry converts a gNMI value into a batch result entry
func typedValueEntry(val *gnmipb.TypedValue, format string) (gjson.Result, error) {
	if format == FormatJSON {
		raw := val.GetJsonVal()
		if raw == nil {
			raw = val.GetJsonIetfVal()
		}
		if !gjson.ValidBytes(raw) {
			return gjson.Result{}, &EosError{Kind: KindDecode, Message: "device returned invalid JSON value"}
		}
		return gjson.ParseBytes(raw), nil
	}

	entry, err := Body{}.Set("output", val.GetAsciiVal()).String()
	if err != nil {
		return gjson.Result{}, &EosError{Kind: KindDecode, Message: "unable to encode text value", InternalMsg: err.Error(), Err: err}
	}
	return gjson.Parse(entry), nil
}

// RunCommands executes commands with one Get request per format batch
func (t *gnmiTransport) RunCommands(ctx context.Context, cmds []Command) ([]Result, error) {
	return runBatched(ctx, cmds, t.sendBatch)
}

// GetConfig returns the running configuration, fetched once per flag set
func (t *gnmiTransport) GetConfig(ctx context.Context, flags []string) (string, error) {
	return t.cache.get(ctx, flags, func(ctx context.Context, cmd string) (string, error) {
		entries, err := t.sendBatch(ctx, batch{format: FormatText, commands: []Command{{Text: cmd}}})
		if err != nil {
			return "", err
		}
		if len(entries) != 1 {
			return "", &EosError{Kind: KindDecode, Message: fmt.Sprintf("expected 1 result, device returned %d", len(entries)), Command: cmd}
		}
		return strings.TrimSpace(entries[0].Get("output").String()), nil
	})
}

// SupportsSessions always reports false: sessions need a persistent CLI context
func (t *gnmiTransport) SupportsSessions(_ context.Context) (bool, error) {
	return false, nil
}

// CheckAuthorization verifies the gNMI user runs at privilege level 15
func (t *gnmiTransport) CheckAuthorization(ctx context.Context) (bool, error) {
	entries, err := t.sendBatch(ctx, batch{format: FormatJSON, commands: []Command{{Text: cmdShowPrivilege}}})
	if ok, probeErr := probeResult(err); !ok {
		return false, probeErr
	}
	if len(entries) == 0 {
		return false, &EosError{Kind: KindDecode, Message: "empty privilege response", Command: cmdShowPrivilege}
	}
	return entries[0].Get("privilegeLevel").Int() >= 15, nil
}

// Configure applies the commands with a single cli-origin Set update
func (t *gnmiTransport) Configure(ctx context.Context, cmds []Command) error {
	if t.rpc == nil {
		if err := t.Open(ctx); err != nil {
			return err
		}
	}

	req := &gnmipb.SetRequest{
		Update: []*gnmipb.Update{{
			Path: &gnmipb.Path{Origin: cliOrigin},
			Val: &gnmipb.TypedValue{
				Value: &gnmipb.TypedValue_AsciiVal{AsciiVal: strings.Join(commandTexts(cmds), "\n")},
			},
		}},
	}

	t.logger.Debug(ctx, "gNMI Set request",
		"address", t.address,
		"commands", len(cmds))

	if _, err := t.rpc.Set(ctx, req); err != nil {
		return statusError(err, cmds)
	}
	return nil
}

func (t *gnmiTransport) unsupported(session string) error {
	return &EosError{
		Kind:    KindUnsupported,
		Message: "configuration sessions are not available over gNMI",
		Session: session,
	}
}

// EnterSession is not supported over gNMI
func (t *gnmiTransport) EnterSession(_ context.Context, session string) error {
	return t.unsupported(session)
}

// SendSession is not supported over gNMI
func (t *gnmiTransport) SendSession(_ context.Context, session string, _ []Command) ([]string, error) {
	return nil, t.unsupported(session)
}

// ExitSession is not supported over gNMI
func (t *gnmiTransport) ExitSession(_ context.Context, session string, _ bool) error {
	return t.unsupported(session)
}
