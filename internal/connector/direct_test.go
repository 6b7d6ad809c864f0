package connector

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/devconn/devconn/internal/config"
	"github.com/devconn/devconn/internal/inventory"
)

func directConfig() config.DirectConfig {
	return config.DirectConfig{
		DialTimeoutMS:    2000,
		SessionTimeoutMS: 5000,
		SSHPort:          22,
		WinRMPort:        5985,
		SNMPPort:         161,
	}
}

func TestTransportFor(t *testing.T) {
	cases := []struct {
		platform  string
		transport string
	}{
		{"juniper-junos", transportNETCONF},
		{"juniper-mist", transportNETCONF},
		{"arista-eos", transportEAPI},
		{"windows-server", transportWinRM},
		{"cisco-ios", transportSSH},
		{"cisco-nxos", transportSSH},
		{"", transportSSH},
	}
	for _, tc := range cases {
		if got := transportFor(tc.platform); got != tc.transport {
			t.Errorf("transportFor(%q) = %s, want %s", tc.platform, got, tc.transport)
		}
	}
}

func TestDirectConnectUnknownDevice(t *testing.T) {
	d := NewDirect(inventory.NewMockGateway(), directConfig(), slog.Default())

	result := d.Connect(context.Background(), "ghost")

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Method != MethodDirect {
		t.Errorf("expected method %s, got %s", MethodDirect, result.Method)
	}
	if !strings.Contains(result.Message, "not found in inventory") {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestDirectConnectMissingManagementIP(t *testing.T) {
	gw := inventory.NewMockGateway()
	gw.AddDevice(&inventory.Device{
		ID:           "sw1",
		Name:         "sw1",
		Platform:     "cisco-ios",
		Manufacturer: "cisco",
	})
	d := NewDirect(gw, directConfig(), slog.Default())

	result := d.Connect(context.Background(), "sw1")

	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Message, "management IP not available") {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestDirectConnectReachablePort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	gw := inventory.NewMockGateway()
	gw.AddDevice(&inventory.Device{
		ID:           "sw1",
		Name:         "sw1",
		ManagementIP: "127.0.0.1",
		Platform:     "cisco-ios",
		Manufacturer: "cisco",
	})
	gw.AddSecrets("sw1", &inventory.Secrets{
		Username: "admin",
		Password: "admin",
		Port:     port,
	})

	d := NewDirect(gw, directConfig(), slog.Default())
	result := d.Connect(context.Background(), "sw1")

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if result.Data["transport"] != transportSSH {
		t.Errorf("unexpected transport: %v", result.Data["transport"])
	}
	if result.Data["port"] != port {
		t.Errorf("unexpected port: %v", result.Data["port"])
	}
	if result.Endpoint != "127.0.0.1" {
		t.Errorf("unexpected endpoint: %s", result.Endpoint)
	}
}

func TestDirectConnectClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close() // port now refuses connections

	gw := inventory.NewMockGateway()
	gw.AddDevice(&inventory.Device{
		ID:           "sw1",
		Name:         "sw1",
		ManagementIP: "127.0.0.1",
		Platform:     "cisco-ios",
		Manufacturer: "cisco",
	})
	gw.AddSecrets("sw1", &inventory.Secrets{Username: "admin", Password: "admin", Port: port})

	d := NewDirect(gw, directConfig(), slog.Default())
	result := d.Connect(context.Background(), "sw1")

	if result.Success {
		t.Fatal("expected failure against closed port")
	}
	if !strings.Contains(result.Message, "connection failed") {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestDirectDeployEmptyPayload(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	gw := inventory.NewMockGateway()
	gw.AddDevice(&inventory.Device{
		ID:           "sw1",
		Name:         "sw1",
		ManagementIP: "127.0.0.1",
		Platform:     "cisco-ios",
		Manufacturer: "cisco",
	})
	gw.AddSecrets("sw1", &inventory.Secrets{Username: "admin", Password: "admin", Port: port})

	d := NewDirect(gw, directConfig(), slog.Default())
	result := d.DeployConfiguration(context.Background(), "sw1", "\n\n  \n", DeployOptions{})

	if result.Success {
		t.Fatal("expected failure for empty configuration")
	}
	if !strings.Contains(result.Message, "empty") {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestConfigLines(t *testing.T) {
	lines := configLines("interface Gi0/1\n description uplink\n\n no shutdown\n")
	want := []string{"interface Gi0/1", " description uplink", " no shutdown"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestWrapConfigMode(t *testing.T) {
	t.Run("ios style", func(t *testing.T) {
		wrapped := wrapConfigMode("cisco-ios", []string{"hostname sw1"})
		if wrapped[0] != "configure terminal" {
			t.Errorf("expected configure terminal first, got %q", wrapped[0])
		}
		if wrapped[len(wrapped)-1] != "write memory" {
			t.Errorf("expected write memory last, got %q", wrapped[len(wrapped)-1])
		}
	})

	t.Run("junos style", func(t *testing.T) {
		wrapped := wrapConfigMode("juniper-junos", []string{"set system host-name mx1"})
		if wrapped[0] != "configure" {
			t.Errorf("expected configure first, got %q", wrapped[0])
		}
		last := wrapped[len(wrapped)-1]
		if !strings.Contains(last, "commit") {
			t.Errorf("expected commit last, got %q", last)
		}
	})
}

func TestBackupCommand(t *testing.T) {
	if cmd := backupCommand("cisco-ios"); cmd != "show running-config" {
		t.Errorf("unexpected ios backup command: %s", cmd)
	}
	if cmd := backupCommand("juniper-junos"); !strings.Contains(cmd, "show configuration") {
		t.Errorf("unexpected junos backup command: %s", cmd)
	}
}
