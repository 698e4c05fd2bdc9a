// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"
)

// eapiRequest is one JSON-RPC request received by the test server
type eapiRequest struct {
	format string
	cmds   []string
	inputs map[string]string
	user   string
	pass   string
}

// eapiDevice is a scripted eAPI endpoint
type eapiDevice struct {
	t  *testing.T
	mu sync.Mutex

	requests []eapiRequest

	// respond returns the raw response body for a request; nil uses echo
	respond func(id string, req eapiRequest) (int, string)
}

func (d *eapiDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != eapiPath {
		d.t.Errorf("request path = %q, want %q", r.URL.Path, eapiPath)
	}
	if ct := r.Header.Get("Content-Type"); ct != eapiContentType {
		d.t.Errorf("Content-Type = %q, want %q", ct, eapiContentType)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		d.t.Errorf("read body: %v", err)
		return
	}
	body := gjson.ParseBytes(data)
	if body.Get("jsonrpc").String() != "2.0" || body.Get("method").String() != "runCmds" {
		d.t.Errorf("unexpected request envelope: %s", data)
	}

	req := eapiRequest{
		format: body.Get("params.format").String(),
		inputs: map[string]string{},
	}
	req.user, req.pass, _ = r.BasicAuth()
	for _, c := range body.Get("params.cmds").Array() {
		if c.IsObject() {
			req.cmds = append(req.cmds, c.Get("cmd").String())
			req.inputs[c.Get("cmd").String()] = c.Get("input").String()
			continue
		}
		req.cmds = append(req.cmds, c.String())
	}

	d.mu.Lock()
	d.requests = append(d.requests, req)
	respond := d.respond
	d.mu.Unlock()

	id := body.Get("id").String()
	status, resp := http.StatusOK, echoResponse(id, req)
	if respond != nil {
		status, resp = respond(id, req)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (d *eapiDevice) received() []eapiRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]eapiRequest(nil), d.requests...)
}

// echoResponse answers each command like a permissive device: text commands
// get "output of <cmd>", structured ones {"cmd": <cmd>}
func echoResponse(id string, req eapiRequest) string {
	body := Body{}.Set("jsonrpc", "2.0").Set("id", id).SetRaw("result", "[]")
	for _, cmd := range req.cmds {
		switch {
		case cmd == cmdEnable:
			body = body.SetRaw("result.-1", "{}")
		case req.format == FormatJSON && cmd == cmdShowPrivilege:
			body = body.SetRaw("result.-1", `{"privilegeLevel":15}`)
		case req.format == FormatJSON:
			body = body.Set("result.-1", map[string]string{"cmd": cmd})
		default:
			body = body.Set("result.-1", map[string]string{"output": "output of " + cmd + "\n"})
		}
	}
	out, _ := body.String()
	return out
}

// newEAPITestClient starts a device and returns a client pointed at it
func newEAPITestClient(t *testing.T, opts ...func(*Client)) (*Client, *eapiDevice) {
	t.Helper()
	device := &eapiDevice{t: t}
	srv := httptest.NewServer(device)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	base := []func(*Client){
		UseTransport(TransportEAPI),
		TLS(false),
		Port(port),
		Username("admin"),
		Password("secret"),
	}
	client, err := NewClient(host, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, device
}

// TestEAPIRunCommands tests batching, ordering and credentials over eAPI
func TestEAPIRunCommands(t *testing.T) {
	client, device := newEAPITestClient(t)

	res, err := client.RunCommands(context.Background(), Commands(
		"show version | json",
		"show clock",
		"show interfaces | json",
	))
	if err != nil {
		t.Fatalf("RunCommands() error = %v", err)
	}

	reqs := device.received()
	if len(reqs) != 3 {
		t.Fatalf("device received %d requests, want 3", len(reqs))
	}
	gotFormats := []string{reqs[0].format, reqs[1].format, reqs[2].format}
	if diff := cmp.Diff([]string{"json", "text", "json"}, gotFormats); diff != "" {
		t.Errorf("request formats mismatch (-want +got):\n%s", diff)
	}
	if reqs[0].user != "admin" || reqs[0].pass != "secret" {
		t.Errorf("basic auth = %q/%q, want admin/secret", reqs[0].user, reqs[0].pass)
	}
	if reqs[0].cmds[0] == cmdEnable {
		t.Error("enable must not be sent without authorization")
	}

	if len(res) != 3 {
		t.Fatalf("got %d results, want 3", len(res))
	}
	if res[0].GetValue("cmd").String() != "show version | json" {
		t.Errorf("result 0 = %+v", res[0])
	}
	if res[1].Output != "output of show clock" {
		t.Errorf("result 1 output = %q", res[1].Output)
	}
	if !res[2].IsJSON() {
		t.Errorf("result 2 = %+v, want structured", res[2])
	}
}

// TestEAPIEnable tests injection and stripping of the enable command
func TestEAPIEnable(t *testing.T) {
	tests := []struct {
		name      string
		opts      []func(*Client)
		wantInput string
	}{
		{
			name: "authorize without password",
			opts: []func(*Client){Authorize(true)},
		},
		{
			name:      "enable password",
			opts:      []func(*Client){EnablePassword("en-secret")},
			wantInput: "en-secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, device := newEAPITestClient(t, tt.opts...)

			res, err := client.RunCommands(context.Background(), Commands("show clock", "show hostname"))
			if err != nil {
				t.Fatalf("RunCommands() error = %v", err)
			}
			if len(res) != 2 || res[0].Command != "show clock" {
				t.Errorf("enable result not stripped: %+v", res)
			}

			req := device.received()[0]
			if diff := cmp.Diff([]string{"enable", "show clock", "show hostname"}, req.cmds); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
			if got := req.inputs[cmdEnable]; got != tt.wantInput {
				t.Errorf("enable input = %q, want %q", got, tt.wantInput)
			}
		})
	}
}

// TestEAPIErrors tests the mapping of device responses onto error kinds
func TestEAPIErrors(t *testing.T) {
	tests := []struct {
		name        string
		respond     func(id string, req eapiRequest) (int, string)
		wantIs      error
		wantCode    int
		wantCommand string
		wantMsg     string
	}{
		{
			name: "command rejected",
			respond: func(id string, _ eapiRequest) (int, string) {
				return http.StatusOK, `{"jsonrpc":"2.0","id":"` + id + `","error":{"code":1002,` +
					`"message":"CLI command 2 of 2 'show foo' failed: invalid command",` +
					`"data":[{"output":""},{"errors":["Invalid input (at token 1: 'foo')"]}]}}`
			},
			wantIs:      ErrCommandRejected,
			wantCode:    1002,
			wantCommand: "show foo",
			wantMsg:     "invalid command",
		},
		{
			name: "http error",
			respond: func(_ string, _ eapiRequest) (int, string) {
				return http.StatusInternalServerError, "internal error"
			},
			wantIs:   ErrTransport,
			wantCode: 500,
			wantMsg:  "device returned HTTP 500",
		},
		{
			name: "unauthorized",
			respond: func(_ string, _ eapiRequest) (int, string) {
				return http.StatusUnauthorized, "Unable to authenticate user"
			},
			wantIs:   ErrTransport,
			wantCode: 401,
		},
		{
			name: "invalid json",
			respond: func(_ string, _ eapiRequest) (int, string) {
				return http.StatusOK, "<html>not json</html>"
			},
			wantIs:  ErrDecode,
			wantMsg: "unable to load response from device",
		},
		{
			name: "result count mismatch",
			respond: func(id string, _ eapiRequest) (int, string) {
				return http.StatusOK, `{"jsonrpc":"2.0","id":"` + id + `","result":[{"output":"x"}]}`
			},
			wantIs:  ErrDecode,
			wantMsg: "expected 2 results, device returned 1",
		},
		{
			name: "no result",
			respond: func(id string, _ eapiRequest) (int, string) {
				return http.StatusOK, `{"jsonrpc":"2.0","id":"` + id + `"}`
			},
			wantIs:  ErrDecode,
			wantMsg: "response has neither result nor error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, device := newEAPITestClient(t)
			device.respond = tt.respond

			res, err := client.RunCommands(context.Background(), Commands("show clock", "show foo"))
			if res != nil {
				t.Errorf("results returned on error: %v", res)
			}
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("error = %v, want %v", err, tt.wantIs)
			}

			var eosErr *EosError
			if !errors.As(err, &eosErr) {
				t.Fatalf("error = %v, want *EosError", err)
			}
			if eosErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", eosErr.Code, tt.wantCode)
			}
			if eosErr.Command != tt.wantCommand {
				t.Errorf("Command = %q, want %q", eosErr.Command, tt.wantCommand)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

// TestEAPIConnectionRefused tests the transport error for an unreachable device
func TestEAPIConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().(*net.TCPAddr)
	srv.Close()

	client, err := NewClient("127.0.0.1",
		UseTransport(TransportEAPI),
		TLS(false),
		Port(addr.Port))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.RunCommands(context.Background(), Commands("show clock"))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if !strings.Contains(err.Error(), "request failed") {
		t.Errorf("error = %q, want request failed", err.Error())
	}
}

// TestEAPIInvalidFormat tests that a request with an unknown format is not sent
func TestEAPIInvalidFormat(t *testing.T) {
	client, device := newEAPITestClient(t)
	tr := newEAPITransport(client)

	_, err := tr.send(context.Background(), Commands("show version"), "xml")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
	if n := len(device.received()); n != 0 {
		t.Errorf("device received %d requests, want 0", n)
	}
}

// TestEAPILoadConfig tests the complete session flow against the device
func TestEAPILoadConfig(t *testing.T) {
	client, device := newEAPITestClient(t, Authorize(true))
	device.respond = func(id string, req eapiRequest) (int, string) {
		last := req.cmds[len(req.cmds)-1]
		if last != cmdSessionDiffs {
			return http.StatusOK, echoResponse(id, req)
		}
		body := Body{}.Set("jsonrpc", "2.0").Set("id", id).SetRaw("result", "[{},{}]").
			Set("result.-1", map[string]string{"output": "--- system:/running-config\n+++ session:/ansible-session-config\n+hostname leaf1\n"})
		out, _ := body.String()
		return http.StatusOK, out
	}

	res, err := client.LoadConfig(context.Background(), []Command{
		NewCommand("hostname leaf1"),
		NewCommand("banner motd"),
		NewCommand("Authorized access only", AsSendOnly()),
		NewCommand("", AsSendOnly()),
		NewCommand("EOF"),
	}, true, false)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !res.Committed || !res.Transactional {
		t.Errorf("result = %+v, want committed session", res)
	}
	if !strings.HasPrefix(res.Session, "ansible_") {
		t.Errorf("Session = %q, want ansible_ prefix", res.Session)
	}
	if !strings.HasSuffix(res.Diff, "+hostname leaf1") {
		t.Errorf("Diff = %q", res.Diff)
	}

	reqs := device.received()
	var got [][]string
	for _, r := range reqs {
		got = append(got, r.cmds)
	}
	enter := sessionCommand(res.Session)
	want := [][]string{
		{"enable", "show privilege"},
		{"enable", "show configuration sessions"},
		{"enable", enter},
		{"enable", enter, "hostname leaf1", "banner motd"},
		{"enable", enter, "show session-config diffs"},
		{"enable", enter, "commit"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if input := reqs[3].inputs["banner motd"]; input != "Authorized access only\n" {
		t.Errorf("banner input = %q", input)
	}
}

// TestEAPILoadConfigWithoutSessions tests the fallback request
func TestEAPILoadConfigWithoutSessions(t *testing.T) {
	client, device := newEAPITestClient(t, Authorize(true))
	device.respond = func(id string, req eapiRequest) (int, string) {
		if req.cmds[len(req.cmds)-1] == cmdShowSessions {
			return http.StatusOK, `{"jsonrpc":"2.0","id":"` + id + `","error":{"code":1002,` +
				`"message":"CLI command 2 of 2 'show configuration sessions' failed: invalid command",` +
				`"data":[{},{"errors":["Invalid input"]}]}}`
		}
		return http.StatusOK, echoResponse(id, req)
	}

	res, err := client.LoadConfig(context.Background(), Commands("hostname leaf1"), true, false)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if res.Transactional || res.Session != "" || !res.Committed {
		t.Errorf("result = %+v, want non-transactional commit", res)
	}

	reqs := device.received()
	last := reqs[len(reqs)-1]
	if diff := cmp.Diff([]string{"enable", "configure terminal", "hostname leaf1"}, last.cmds); diff != "" {
		t.Errorf("configure request mismatch (-want +got):\n%s", diff)
	}

	// the negative probe answer is cached
	if ok, err := client.SupportsSessions(context.Background()); err != nil || ok {
		t.Errorf("SupportsSessions() = %v, %v; want false", ok, err)
	}
	if n := len(device.received()); n != len(reqs) {
		t.Errorf("probe repeated: %d requests, want %d", n, len(reqs))
	}
}

// TestEAPICheckAuthorization tests the privilege level check
func TestEAPICheckAuthorization(t *testing.T) {
	tests := []struct {
		name  string
		level int
		want  bool
	}{
		{name: "level 15", level: 15, want: true},
		{name: "level 1", level: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, device := newEAPITestClient(t)
			device.respond = func(id string, _ eapiRequest) (int, string) {
				return http.StatusOK, `{"jsonrpc":"2.0","id":"` + id + `","result":[{"privilegeLevel":` + strconv.Itoa(tt.level) + `}]}`
			}

			got, err := client.CheckAuthorization(context.Background())
			if err != nil {
				t.Fatalf("CheckAuthorization() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckAuthorization() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEAPIGetConfigCached tests that configuration is fetched once per flag set
func TestEAPIGetConfigCached(t *testing.T) {
	client, device := newEAPITestClient(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cfg, err := client.GetConfig(ctx, []string{"section", "vlan"})
		if err != nil {
			t.Fatalf("GetConfig() error = %v", err)
		}
		if cfg != "output of show running-config section vlan" {
			t.Errorf("GetConfig() = %q", cfg)
		}
	}
	if n := len(device.received()); n != 1 {
		t.Errorf("device received %d requests, want 1", n)
	}
}

// TestEAPIRequestRedacted tests that the enable password never reaches the log
func TestEAPIRequestRedacted(t *testing.T) {
	logger := &recordingLogger{}
	client, _ := newEAPITestClient(t, EnablePassword("en-secret"), WithLogger(logger))

	if _, err := client.RunCommands(context.Background(), Commands("show clock")); err != nil {
		t.Fatalf("RunCommands() error = %v", err)
	}

	entry, ok := logger.find("eAPI request")
	if !ok {
		t.Fatal("eAPI request was not logged")
	}
	body, _ := entry.kv["body"].(string)
	if !strings.Contains(body, `"input":"[REDACTED]"`) {
		t.Errorf("logged body = %q, want redacted input", body)
	}
	if logger.contains("en-secret") {
		t.Error("enable password leaked into the log")
	}
}

// TestFoldBanners tests conversion of banner lines into eAPI input commands
func TestFoldBanners(t *testing.T) {
	tests := []struct {
		name string
		in   []Command
		want []Command
	}{
		{
			name: "no banner",
			in:   Commands("hostname leaf1", "ip routing"),
			want: Commands("hostname leaf1", "ip routing"),
		},
		{
			name: "terminated banner",
			in: Commands("hostname leaf1", "banner login", "line one", "line two", "EOF", "ip routing"),
			want: []Command{
				{Text: "hostname leaf1"},
				{Text: "banner login", Response: "line one\nline two"},
				{Text: "ip routing"},
			},
		},
		{
			name: "unterminated banner",
			in:   Commands("banner motd", "only line"),
			want: []Command{{Text: "banner motd", Response: "only line"}},
		},
		{
			name: "interactive banner kept",
			in:   []Command{NewCommand("banner motd", WithPrompt("Enter TEXT", "hello"))},
			want: []Command{NewCommand("banner motd", WithPrompt("Enter TEXT", "hello"))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, foldBanners(tt.in)); diff != "" {
				t.Errorf("foldBanners() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestRunCmdsBody tests the JSON-RPC request encoding
func TestRunCmdsBody(t *testing.T) {
	body, err := runCmdsBody("7", []Command{
		{Text: "enable", Response: "pw"},
		{Text: "show clock"},
	}, FormatText).String()
	if err != nil {
		t.Fatalf("runCmdsBody() error = %v", err)
	}

	want := `{"jsonrpc":"2.0","method":"runCmds","params":{"version":1,"cmds":[{"cmd":"enable","input":"pw"},"show clock"],"format":"text"},"id":"7"}`
	if body != want {
		t.Errorf("runCmdsBody() =\n%s\nwant\n%s", body, want)
	}
}
