// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"fmt"
	"regexp"
	"time"

	"github.com/scrapli/scrapligo/channel"
	"github.com/scrapli/scrapligo/driver/generic"
	"github.com/scrapli/scrapligo/driver/options"
	"github.com/scrapli/scrapligo/transport"
	"github.com/scrapli/scrapligo/util"
)

// eosPromptPattern matches the EOS exec, enable and configuration prompts
// ("leaf1>", "leaf1#", "leaf1(config-s-sess)#") and bash prompts
// ("[admin@leaf1 ~]$")
var eosPromptPattern = regexp.MustCompile(
	`(?m)^[\w+\-.:/\[\]]+(?:\([^)]+\)){0,3}[>#] ?$|^\[\w+@[\w\-.]+(?: [^\]]+)?\] ?[>#$] ?$`)

// withSocketTimeout bounds the TCP dial and SSH handshake of the transport
func withSocketTimeout(d time.Duration) util.Option {
	return func(o interface{}) error {
		a, ok := o.(*transport.Args)
		if !ok {
			return util.ErrIgnoredOption
		}
		a.TimeoutSocket = d
		return nil
	}
}

// scrapliDriver implements shellDriver with the scrapligo generic driver
type scrapliDriver struct {
	d *generic.Driver
}

// newScrapliDriver creates an unopened SSH driver from client configuration
func newScrapliDriver(c *Client) (*scrapliDriver, error) {
	opts := []util.Option{
		options.WithAuthNoStrictKey(),
		options.WithTransportType("standard"),
		options.WithPort(c.Port),
		withSocketTimeout(c.ConnectTimeout),
		options.WithTimeoutOps(c.OperationTimeout),
		options.WithPromptPattern(eosPromptPattern),
	}
	if c.username != "" {
		opts = append(opts, options.WithAuthUsername(c.username))
	}
	if c.password != "" {
		opts = append(opts, options.WithAuthPassword(c.password))
	}

	d, err := generic.NewDriver(c.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh driver: %w", err)
	}
	return &scrapliDriver{d: d}, nil
}

func (s *scrapliDriver) Open() error {
	return s.d.Open()
}

func (s *scrapliDriver) Close() error {
	return s.d.Close()
}

func (s *scrapliDriver) SendCommand(input string) (string, error) {
	r, err := s.d.SendCommand(input)
	if err != nil {
		return "", err
	}
	if r.Failed != nil {
		return r.Result, r.Failed
	}
	return r.Result, nil
}

// SendInteractive sends input, waits for prompt and answers with response.
// The answer is hidden from logs and the session transcript.
func (s *scrapliDriver) SendInteractive(input, prompt, response string) (string, error) {
	events := []*channel.SendInteractiveEvent{
		{
			ChannelInput:    input,
			ChannelResponse: prompt,
		},
		{
			ChannelInput: response,
			HideInput:    true,
		},
	}
	r, err := s.d.SendInteractive(events)
	if err != nil {
		return "", err
	}
	if r.Failed != nil {
		return r.Result, r.Failed
	}
	return r.Result, nil
}

func (s *scrapliDriver) SendOnly(line string) error {
	return s.d.Channel.WriteAndReturn([]byte(line), false)
}

func (s *scrapliDriver) Prompt() (string, error) {
	return s.d.GetPrompt()
}
