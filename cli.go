// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// DefaultErrorPatterns are matched, in order, against the output of every
// command sent over the CLI transport. The first match marks the command as
// rejected by the device.
var DefaultErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`% ?Error`),
	regexp.MustCompile(`(?m)^% \w+`),
	regexp.MustCompile(`% ?Bad secret`),
	regexp.MustCompile(`(?i)invalid input`),
	regexp.MustCompile(`(?i)(?:incomplete|ambiguous) command`),
	regexp.MustCompile(`(?i)connection timed out`),
	regexp.MustCompile(`(?i)[^\r\n]+ not found`),
	regexp.MustCompile(`'[^']+' +returned error code: ?\d+`),
	regexp.MustCompile(`[^\r\n]/bin/(?:ba)?sh`),
}

// enablePasswordPrompt is the password prompt that follows "enable"
const enablePasswordPrompt = "assword:"

const cmdTerminalLength = "terminal length 0"

// shellDriver is an interactive line-mode shell on the device
//
// SendCommand and SendInteractive block until the device prompt is seen
// again and return everything printed in between. SendOnly writes a line
// without waiting for anything.
type shellDriver interface {
	Open() error
	Close() error
	SendCommand(input string) (string, error)
	SendInteractive(input, prompt, response string) (string, error)
	SendOnly(line string) error
	Prompt() (string, error)
}

// cliTransport drives the device through an interactive SSH shell
//
// The shell is stateful: EnterSession leaves the shell inside the session
// and later SendSession/ExitSession calls rely on that.
type cliTransport struct {
	newDriver func() (shellDriver, error)
	driver    shellDriver

	authorize      bool
	enablePassword string
	errorPatterns  []*regexp.Regexp

	logger   Logger
	cache    *configCache
	sessions capabilityCache
}

// newCLITransport builds the CLI transport from client configuration
func newCLITransport(c *Client) *cliTransport {
	return &cliTransport{
		newDriver: func() (shellDriver, error) {
			return newScrapliDriver(c)
		},
		authorize:      c.Authorize || c.enablePassword != "",
		enablePassword: c.enablePassword,
		errorPatterns:  c.errorPatterns,
		logger:         c.logger,
		cache:          newConfigCache(),
	}
}

// Kind returns TransportCLI
func (t *cliTransport) Kind() TransportKind {
	return TransportCLI
}

// Open logs in, disables paging and enters enable mode when requested
func (t *cliTransport) Open(ctx context.Context) error {
	if t.driver != nil {
		return nil
	}

	driver, err := t.newDriver()
	if err != nil {
		return &EosError{Kind: KindTransport, Message: "unable to create shell driver", InternalMsg: err.Error(), Err: err}
	}
	if err := driver.Open(); err != nil {
		return &EosError{Kind: KindTransport, Message: "unable to open shell", InternalMsg: err.Error(), Err: err}
	}
	t.driver = driver

	if _, err := t.exec(ctx, Command{Text: cmdTerminalLength}); err != nil {
		t.closeDriver()
		return err
	}

	if t.authorize {
		enable := Command{Text: cmdEnable}
		if t.enablePassword != "" {
			enable.Prompt = enablePasswordPrompt
			enable.Response = t.enablePassword
		}
		if _, err := t.exec(ctx, enable); err != nil {
			t.closeDriver()
			return err
		}
	}

	t.logger.Debug(ctx, "CLI shell opened", "authorize", t.authorize)
	return nil
}

// Close closes the shell; Open logs in again
func (t *cliTransport) Close() error {
	return t.closeDriver()
}

func (t *cliTransport) closeDriver() error {
	if t.driver == nil {
		return nil
	}
	driver := t.driver
	t.driver = nil
	return driver.Close()
}

// send writes one command and returns the raw device output
func (t *cliTransport) send(ctx context.Context, cmd Command) (string, error) {
	if err := checkContextCancellation(ctx); err != nil {
		return "", transportError(err, []string{cmd.Text})
	}
	if t.driver == nil {
		return "", &EosError{Kind: KindTransport, Message: "shell is not open", Command: cmd.Text}
	}

	var out string
	var err error
	switch {
	case cmd.SendOnly:
		err = t.driver.SendOnly(cmd.Text)
	case cmd.Interactive():
		out, err = t.driver.SendInteractive(cmd.Text, cmd.Prompt, cmd.Response)
	default:
		out, err = t.driver.SendCommand(cmd.Text)
	}
	if err != nil {
		e := transportError(err, []string{cmd.Text})
		e.Command = cmd.Text
		return "", e
	}
	return out, nil
}

// exec sends one command and checks the output against the error patterns
func (t *cliTransport) exec(ctx context.Context, cmd Command) (string, error) {
	out, err := t.send(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := t.checkOutput(cmd, out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// checkOutput returns a command rejection when out matches an error pattern
func (t *cliTransport) checkOutput(cmd Command, out string) error {
	for _, pattern := range t.errorPatterns {
		if loc := pattern.FindStringIndex(out); loc != nil {
			return &EosError{
				Kind:        KindCommand,
				Message:     strings.TrimSpace(matchedLine(out, loc)),
				InternalMsg: strings.TrimSpace(out),
				Command:     cmd.Text,
				Commands:    []string{cmd.Text},
			}
		}
	}
	return nil
}

// matchedLine returns the full output line that contains the match at loc
func matchedLine(out string, loc []int) string {
	start := strings.LastIndexByte(out[:loc[0]], '\n') + 1
	end := len(out)
	if i := strings.IndexByte(out[loc[1]:], '\n'); i >= 0 {
		end = loc[1] + i
	}
	return out[start:end]
}

// RunCommands executes commands one by one
//
// Structured commands must produce valid JSON; text output is trimmed.
func (t *cliTransport) RunCommands(ctx context.Context, cmds []Command) ([]Result, error) {
	results := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		out, err := t.exec(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if cmd.Format() == FormatJSON {
			res, err := decodeJSONOutput(cmd.Text, out)
			if err != nil {
				return nil, err
			}
			results = append(results, res)
			continue
		}
		results = append(results, textResult(cmd.Text, out))
	}
	return results, nil
}

// GetConfig returns the running configuration, fetched once per flag set
func (t *cliTransport) GetConfig(ctx context.Context, flags []string) (string, error) {
	return t.cache.get(ctx, flags, func(ctx context.Context, cmd string) (string, error) {
		return t.exec(ctx, Command{Text: cmd})
	})
}

// SupportsSessions probes "show configuration sessions" once
func (t *cliTransport) SupportsSessions(ctx context.Context) (bool, error) {
	return t.sessions.get(ctx, func(ctx context.Context) (bool, error) {
		_, err := t.exec(ctx, Command{Text: cmdShowSessions})
		return probeResult(err)
	})
}

// CheckAuthorization runs a reference command and inspects the prompt,
// which ends in "#" in enable mode
func (t *cliTransport) CheckAuthorization(ctx context.Context) (bool, error) {
	if _, err := t.exec(ctx, Command{Text: cmdShowClock}); err != nil {
		return probeResult(err)
	}
	prompt, err := t.driver.Prompt()
	if err != nil {
		return false, transportError(err, []string{cmdShowClock})
	}
	return strings.HasSuffix(strings.TrimSpace(prompt), "#"), nil
}

// sendConfig sends configuration lines in order
//
// A line starting with "banner" switches to send-only mode: the following
// lines are written without waiting for a prompt until a line reading EOF,
// which closes the banner and returns to normal mode.
func (t *cliTransport) sendConfig(ctx context.Context, cmds []Command) ([]string, error) {
	outputs := make([]string, 0, len(cmds))
	banner := false

	for _, cmd := range cmds {
		switch {
		case banner && strings.TrimSpace(cmd.Text) == bannerTerminator:
			banner = false
			// banner text is echoed before the prompt returns, so it is not
			// matched against the error patterns
			out, err := t.send(ctx, Command{Text: cmd.Text})
			if err != nil {
				return outputs, err
			}
			outputs = append(outputs, strings.TrimSpace(out))
		case banner || (isBannerStart(cmd.Text) && !cmd.Interactive()):
			banner = true
			if _, err := t.send(ctx, Command{Text: cmd.Text, SendOnly: true}); err != nil {
				return outputs, err
			}
			outputs = append(outputs, "")
		default:
			out, err := t.exec(ctx, cmd)
			if err != nil {
				return outputs, err
			}
			outputs = append(outputs, out)
		}
	}
	return outputs, nil
}

// Configure enters global configuration mode, sends the commands and leaves
// with "end", also after a failure
func (t *cliTransport) Configure(ctx context.Context, cmds []Command) error {
	if _, err := t.exec(ctx, Command{Text: cmdConfigure}); err != nil {
		var eosErr *EosError
		if errors.As(err, &eosErr) {
			eosErr.Message = "unable to enter configuration mode: " + eosErr.Message
		}
		return err
	}

	_, sendErr := t.sendConfig(ctx, cmds)
	if sendErr != nil {
		var eosErr *EosError
		if errors.As(sendErr, &eosErr) {
			eosErr.Commands = commandTexts(cmds)
		}
	}

	if _, endErr := t.exec(ctx, Command{Text: cmdEnd}); endErr != nil {
		return errors.Join(sendErr, endErr)
	}
	return sendErr
}

// EnterSession enters the named session; the shell stays inside it
func (t *cliTransport) EnterSession(ctx context.Context, session string) error {
	_, err := t.exec(ctx, Command{Text: sessionCommand(session)})
	return err
}

// SendSession sends commands inside the current session
func (t *cliTransport) SendSession(ctx context.Context, _ string, cmds []Command) ([]string, error) {
	return t.sendConfig(ctx, cmds)
}

// ExitSession commits or aborts the current session, returning the shell to
// exec mode
func (t *cliTransport) ExitSession(ctx context.Context, _ string, commit bool) error {
	_, err := t.exec(ctx, Command{Text: exitCommand(commit)})
	return err
}
