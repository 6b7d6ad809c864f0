package connector

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/masterzen/winrm"
	"golang.org/x/crypto/ssh"

	"github.com/devconn/devconn/internal/inventory"
)

// buildSSHConfig assembles the SSH client configuration from device
// secrets, supporting password and private-key auth.
func buildSSHConfig(sec *inventory.Secrets, timeout time.Duration) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if sec.Password != "" {
		authMethods = append(authMethods, ssh.Password(sec.Password))
	}

	if sec.PrivateKey != "" {
		var key ssh.Signer
		var err error

		if sec.Passphrase != "" {
			key, err = ssh.ParsePrivateKeyWithPassphrase([]byte(sec.PrivateKey), []byte(sec.Passphrase))
		} else {
			key, err = ssh.ParsePrivateKey([]byte(sec.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}

		authMethods = append(authMethods, ssh.PublicKeys(key))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication method available (password or private key required)")
	}

	return &ssh.ClientConfig{
		User:            sec.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Validation happens at connection time
		Timeout:         timeout,
	}, nil
}

// dialSSH opens an SSH client connection honoring context cancellation.
func dialSSH(ctx context.Context, address string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("TCP dial failed: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake failed: %w", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// runSSHCommand executes one command over a fresh session and returns the
// combined output. The session is closed on every path, including context
// expiry, so an unresponsive device cannot hold the caller.
func runSSHCommand(ctx context.Context, client *ssh.Client, command string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	type execResult struct {
		output string
		err    error
	}
	done := make(chan execResult, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- execResult{string(out), err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return res.output, fmt.Errorf("command failed: %w", res.err)
		}
		return res.output, nil
	case <-ctx.Done():
		session.Close()
		return "", fmt.Errorf("command aborted: %w", ctx.Err())
	}
}

// runSSHShell opens an interactive shell and feeds it the given lines in
// order, used for configuration pushes where devices reject exec-channel
// scripts. The final "exit" is appended so the shell terminates cleanly.
// A shell that never closes is torn down when ctx expires.
func runSSHShell(ctx context.Context, client *ssh.Client, lines []string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 80, 200, modes); err != nil {
		return "", fmt.Errorf("failed to request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open stdin: %w", err)
	}
	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	if err := session.Shell(); err != nil {
		return "", fmt.Errorf("failed to start shell: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, line := range lines {
			fmt.Fprintln(stdin, line)
		}
		fmt.Fprintln(stdin, "exit")
		stdin.Close()
		// Wait returns an ExitError on non-zero exit, which network devices
		// emit even for successful config sessions. The output decides.
		_ = session.Wait()
	}()

	select {
	case <-done:
		return out.String(), nil
	case <-ctx.Done():
		session.Close()
		return "", fmt.Errorf("shell session aborted: %w", ctx.Err())
	}
}

const netconfDelimiter = "]]>]]>"

var netconfHello = strings.Join([]string{
	`<?xml version="1.0" encoding="UTF-8"?>`,
	`<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">`,
	`<capabilities><capability>urn:ietf:params:xml:ns:netconf:base:1.0</capability></capabilities>`,
	`</hello>`,
}, "")

// execNETCONF runs one RPC over the device's NETCONF SSH subsystem and
// returns the reply frame. The exchange is abandoned when ctx expires.
func execNETCONF(ctx context.Context, client *ssh.Client, rpc string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open stdin: %w", err)
	}
	var out bytes.Buffer
	session.Stdout = &out

	if err := session.RequestSubsystem("netconf"); err != nil {
		return "", fmt.Errorf("NETCONF subsystem unavailable: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		fmt.Fprint(stdin, netconfHello, netconfDelimiter)
		fmt.Fprint(stdin, rpc, netconfDelimiter)
		stdin.Close()
		_ = session.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		session.Close()
		return "", fmt.Errorf("NETCONF session aborted: %w", ctx.Err())
	}

	frames := strings.Split(out.String(), netconfDelimiter)
	// Frame zero is the server hello; the reply to our RPC follows.
	for _, frame := range frames[1:] {
		frame = strings.TrimSpace(frame)
		if frame != "" {
			if strings.Contains(frame, "<rpc-error") {
				return frame, fmt.Errorf("RPC rejected by device")
			}
			return frame, nil
		}
	}
	return "", fmt.Errorf("no RPC reply received")
}

// runWinRM executes one command over WinRM.
func runWinRM(host string, port int, sec *inventory.Secrets, command string, timeout time.Duration) (string, error) {
	endpoint := winrm.NewEndpoint(host, port, false, false, nil, nil, nil, timeout)
	client, err := winrm.NewClient(endpoint, sec.Username, sec.Password)
	if err != nil {
		return "", fmt.Errorf("WinRM client creation failed: %w", err)
	}

	stdout, stderr, code, err := client.RunWithString(command, "")
	if err != nil {
		return "", fmt.Errorf("WinRM execution failed: %w", err)
	}
	if code != 0 {
		return stdout, fmt.Errorf("command exited with code %d: %s", code, strings.TrimSpace(stderr))
	}
	return stdout, nil
}

// snmpProbe performs an SNMP v2c GetRequest against sysDescr and sysName,
// a cheap liveness signal for devices with a recorded community.
func snmpProbe(host string, port int, community string, timeout time.Duration) (sysDescr, sysName string, err error) {
	g := &gosnmp.GoSNMP{
		Target:    host,
		Port:      uint16(port),
		Version:   gosnmp.Version2c,
		Community: community,
		Timeout:   timeout,
	}

	if err = g.Connect(); err != nil {
		return "", "", fmt.Errorf("SNMP connection failed: %w", err)
	}
	defer g.Conn.Close()

	result, err := g.Get([]string{"1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.5.0"})
	if err != nil {
		return "", "", fmt.Errorf("SNMP Get request failed: %w", err)
	}

	for _, variable := range result.Variables {
		switch variable.Name {
		case ".1.3.6.1.2.1.1.1.0":
			sysDescr = fmt.Sprintf("%v", variable.Value)
		case ".1.3.6.1.2.1.1.5.0":
			sysName = fmt.Sprintf("%v", variable.Value)
		}
	}
	return sysDescr, sysName, nil
}
