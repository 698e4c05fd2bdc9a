// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package eos provides a client for configuring Arista EOS switches through
// the SSH command line, the eAPI JSON-RPC command API, or gNMI.
//
// The library handles connection management, privilege escalation,
// transactional configuration through EOS configuration sessions, response
// format batching and structured error reporting.
//
// # Quick Start
//
// Create a client and run commands:
//
//	client, err := eos.NewClient(
//	    "leaf1.example.com",
//	    eos.UseTransport(eos.TransportEAPI),
//	    eos.Username("admin"),
//	    eos.Password("secret"),
//	    eos.Authorize(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//	res, err := client.RunCommands(ctx, eos.Commands(
//	    "show version | json",
//	    "show clock",
//	))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res[0].GetValue("modelName").String())
//	fmt.Println(res[1].Output)
//
// # Loading Configuration
//
// LoadConfig applies commands inside a configuration session and returns the
// session diff. With commit=false the session is aborted after the diff is
// taken, so the running configuration is never changed (dry run):
//
//	res, err := client.LoadConfig(ctx, eos.Commands(
//	    "interface Ethernet1",
//	    "description uplink to spine1",
//	), true, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("session %s committed:\n%s\n", res.Session, res.Diff)
//
// With replace=true the session starts from "rollback clean-config", so the
// commands become the complete configuration.
//
// Devices without session support (or clients created with
// UseSessions(false)) fall back to direct configuration, which has no diff
// and no rollback.
//
// # Response Formats
//
// Commands ending in "| json" return structured output; all other commands
// return text. Over eAPI and gNMI adjacent commands of the same format share
// one request.
//
// # Error Handling
//
// All operation errors are *EosError values that match one of the sentinel
// errors with errors.Is:
//
//	_, err := client.LoadConfig(ctx, cmds, true, false)
//	switch {
//	case errors.Is(err, eos.ErrAuthorization):
//	    // enable mode required
//	case errors.Is(err, eos.ErrCommandRejected):
//	    var eosErr *eos.EosError
//	    errors.As(err, &eosErr)
//	    fmt.Println("rejected:", eosErr.Command)
//	}
//
// # Thread Safety
//
// A Client serializes all operations: concurrent calls are safe and execute
// one at a time. Use one Client per device.
//
// # References
//
//   - eAPI: https://arista.com/en/um-eos/eos-command-api-eapi
//   - Configuration sessions: https://arista.com/en/um-eos/eos-configure-session
//   - gjson: https://github.com/tidwall/gjson
//   - scrapligo: https://github.com/scrapli/scrapligo
//   - gnmic: https://github.com/openconfig/gnmic
package eos
